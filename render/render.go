// Package render turns session snapshots into terminal output:
// paragraph listings, grouped comment threads, compliance badges and
// scheduled-deletion countdowns.
package render

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	redline "github.com/redlinehq/redline-go"
)

// ParagraphText returns the display text of a paragraph. Rich HTML
// content wins over the plain text when present, reduced to text with
// whitespace collapsed. Paragraphs carrying embedded images get an
// [img] marker per image.
func ParagraphText(p redline.Paragraph) string {
	text := p.Text
	if p.HTMLContent != "" {
		if extracted, err := htmlToText(p.HTMLContent); err == nil {
			text = extracted
		}
	}

	if p.HasImages {
		n := len(p.Images)
		if n == 0 {
			n = 1
		}
		marker := strings.TrimSpace(strings.Repeat("[img] ", n))
		if text == "" {
			return marker
		}
		return text + " " + marker
	}
	return text
}

func htmlToText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}
	return strings.Join(strings.Fields(doc.Text()), " "), nil
}

// Paragraphs renders the paragraph listing in ascending id order. The
// selected paragraph, if any, is marked with a leading ">".
func Paragraphs(doc redline.Document, selected int) string {
	paragraphs := make([]redline.Paragraph, len(doc.Paragraphs))
	copy(paragraphs, doc.Paragraphs)
	sort.Slice(paragraphs, func(i, j int) bool { return paragraphs[i].ID < paragraphs[j].ID })

	commented := make(map[int]int)
	for _, c := range doc.Comments {
		commented[c.ParagraphID]++
	}

	var b strings.Builder
	for _, p := range paragraphs {
		marker := " "
		if p.ID == selected {
			marker = ">"
		}
		fmt.Fprintf(&b, "%s %3d | %s", marker, p.ID, ParagraphText(p))
		if n := commented[p.ID]; n > 0 {
			fmt.Fprintf(&b, "  (%d comment", n)
			if n > 1 {
				b.WriteString("s")
			}
			b.WriteString(")")
		}
		b.WriteString("\n")
	}
	return b.String()
}

// commentTimeFormat is the display format for comment timestamps.
const commentTimeFormat = "2006-01-02 15:04"

// Comments renders comment threads grouped by paragraph. Groups appear
// in ascending paragraph id order; within a group, comments appear
// oldest first. Each line shows author, timestamp and body. Comments
// scheduled for deletion carry a countdown relative to now.
func Comments(comments []redline.Comment, now time.Time) string {
	if len(comments) == 0 {
		return "no comments\n"
	}

	sorted := make([]redline.Comment, len(comments))
	copy(sorted, comments)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].ParagraphID != sorted[j].ParagraphID {
			return sorted[i].ParagraphID < sorted[j].ParagraphID
		}
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})

	var b strings.Builder
	lastParagraph := -1
	for _, c := range sorted {
		if c.ParagraphID != lastParagraph {
			fmt.Fprintf(&b, "paragraph %d:\n", c.ParagraphID)
			lastParagraph = c.ParagraphID
		}
		fmt.Fprintf(&b, "  [%d] %s", c.ID, c.Author)
		if !c.CreatedAt.IsZero() {
			fmt.Fprintf(&b, " at %s", c.CreatedAt.Format(commentTimeFormat))
		}
		fmt.Fprintf(&b, ": %s", c.Text)
		if c.ScheduledForDeletion && c.ScheduledDeletionAt != nil {
			fmt.Fprintf(&b, "  (%s)", CountdownText(*c.ScheduledDeletionAt, now))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// CountdownText describes how long remains until a scheduled deletion.
func CountdownText(until, now time.Time) string {
	remaining := until.Sub(now)
	if remaining <= 0 {
		return "deleting now"
	}
	secs := int(remaining.Round(time.Second) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return fmt.Sprintf("auto-deletes in %ds", secs)
}

// StatusBadge maps a compliance status to its display badge.
func StatusBadge(status redline.ComplianceStatus) string {
	switch status {
	case redline.ComplianceCompliant:
		return "[ok]"
	case redline.CompliancePartial:
		return "[partial]"
	case redline.ComplianceNonCompliant:
		return "[non-compliant]"
	case redline.ComplianceChecking:
		return "[checking]"
	case redline.ComplianceError:
		return "[error]"
	default:
		return "[unknown]"
	}
}

// ComplianceSummary renders a compliance check result, one line per
// comment verdict plus an aggregate line.
func ComplianceSummary(check *redline.ComplianceCheck) string {
	var b strings.Builder
	fmt.Fprintf(&b, "paragraph %d: %s %s (score %.2f)\n",
		check.ParagraphID, StatusBadge(check.OverallStatus), check.OverallStatus, check.OverallScore)
	for _, res := range check.Results {
		fmt.Fprintf(&b, "  comment %d: %s score=%.2f confidence=%.2f",
			res.CommentID, StatusBadge(res.Status), res.Score, res.Confidence)
		if res.DeletionScheduled {
			b.WriteString("  deletion scheduled")
		}
		b.WriteString("\n")
	}
	return b.String()
}
