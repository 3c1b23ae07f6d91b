package render

import (
	"strings"
	"sync/atomic"
	"testing"
	"time"

	redline "github.com/redlinehq/redline-go"
)

func TestParagraphText(t *testing.T) {
	tests := []struct {
		name string
		p    redline.Paragraph
		want string
	}{
		{
			name: "plain text",
			p:    redline.Paragraph{ID: 1, Text: "Hello world."},
			want: "Hello world.",
		},
		{
			name: "html content wins over text",
			p:    redline.Paragraph{ID: 1, Text: "stale", HTMLContent: "<p>Rich <b>bold</b> text.</p>"},
			want: "Rich bold text.",
		},
		{
			name: "html whitespace collapsed",
			p:    redline.Paragraph{ID: 1, HTMLContent: "<p>a\n   b\t c</p>"},
			want: "a b c",
		},
		{
			name: "image markers",
			p: redline.Paragraph{ID: 1, Text: "Figure below.", HasImages: true, Images: []redline.ParagraphImage{
				{ID: 1, Filename: "a.png"},
				{ID: 2, Filename: "b.png"},
			}},
			want: "Figure below. [img] [img]",
		},
		{
			name: "image-only paragraph",
			p:    redline.Paragraph{ID: 1, HasImages: true},
			want: "[img]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParagraphText(tt.p); got != tt.want {
				t.Errorf("ParagraphText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParagraphsOrderAndSelection(t *testing.T) {
	doc := redline.Document{
		Paragraphs: []redline.Paragraph{
			{ID: 3, Text: "Third."},
			{ID: 1, Text: "First."},
			{ID: 2, Text: "Second."},
		},
		Comments: []redline.Comment{
			{ID: 10, ParagraphID: 2, Text: "note"},
			{ID: 11, ParagraphID: 2, Text: "another"},
		},
	}

	out := Paragraphs(doc, 2)
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3:\n%s", len(lines), out)
	}

	if !strings.Contains(lines[0], "First.") || !strings.Contains(lines[2], "Third.") {
		t.Errorf("paragraphs not in ascending id order:\n%s", out)
	}
	if !strings.HasPrefix(lines[1], ">") {
		t.Errorf("selected paragraph not marked: %q", lines[1])
	}
	if strings.HasPrefix(lines[0], ">") {
		t.Errorf("unselected paragraph marked: %q", lines[0])
	}
	if !strings.Contains(lines[1], "(2 comments)") {
		t.Errorf("comment count missing: %q", lines[1])
	}
}

func TestCommentsGrouping(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Minute)
	t2 := t0.Add(2 * time.Minute)

	// Arrival order deliberately scrambled: group by paragraph
	// ascending, oldest first within each group.
	comments := []redline.Comment{
		{ID: 1, ParagraphID: 2, Author: "A", Text: "second para, newest", CreatedAt: t2},
		{ID: 2, ParagraphID: 1, Author: "B", Text: "first para", CreatedAt: t1},
		{ID: 3, ParagraphID: 2, Author: "C", Text: "second para, oldest", CreatedAt: t0},
	}

	out := Comments(comments, t0)

	p1 := strings.Index(out, "paragraph 1:")
	p2 := strings.Index(out, "paragraph 2:")
	if p1 < 0 || p2 < 0 || p1 > p2 {
		t.Fatalf("groups out of order:\n%s", out)
	}

	oldest := strings.Index(out, "second para, oldest")
	newest := strings.Index(out, "second para, newest")
	if oldest < 0 || newest < 0 || oldest > newest {
		t.Errorf("comments within group not oldest-first:\n%s", out)
	}
}

func TestCommentsShowTimestamp(t *testing.T) {
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	comments := []redline.Comment{
		{ID: 1, ParagraphID: 1, Author: "A", Text: "note", CreatedAt: created},
	}

	out := Comments(comments, created)
	if !strings.Contains(out, "A at 2026-03-01 10:00: note") {
		t.Errorf("comment line missing author/timestamp/body:\n%s", out)
	}

	// A zero timestamp is omitted rather than rendered as year 1.
	out = Comments([]redline.Comment{{ID: 2, ParagraphID: 1, Author: "B", Text: "undated"}}, created)
	if strings.Contains(out, "0001") {
		t.Errorf("zero timestamp rendered:\n%s", out)
	}
	if !strings.Contains(out, "B: undated") {
		t.Errorf("undated comment line malformed:\n%s", out)
	}
}

func TestCommentsEmpty(t *testing.T) {
	if got := Comments(nil, time.Now()); got != "no comments\n" {
		t.Errorf("Comments(nil) = %q, want %q", got, "no comments\n")
	}
}

func TestCommentsCountdown(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	at := now.Add(25 * time.Second)
	comments := []redline.Comment{
		{ID: 1, ParagraphID: 1, Author: "A", Text: "resolved", ScheduledForDeletion: true, ScheduledDeletionAt: &at},
	}

	out := Comments(comments, now)
	if !strings.Contains(out, "auto-deletes in 25s") {
		t.Errorf("countdown missing:\n%s", out)
	}
}

func TestCountdownText(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		until time.Time
		want  string
	}{
		{"thirty seconds", now.Add(30 * time.Second), "auto-deletes in 30s"},
		{"sub-second remains", now.Add(400 * time.Millisecond), "auto-deletes in 1s"},
		{"expired", now.Add(-time.Second), "deleting now"},
		{"exactly now", now, "deleting now"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CountdownText(tt.until, now); got != tt.want {
				t.Errorf("CountdownText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStatusBadge(t *testing.T) {
	tests := []struct {
		status redline.ComplianceStatus
		want   string
	}{
		{redline.ComplianceCompliant, "[ok]"},
		{redline.CompliancePartial, "[partial]"},
		{redline.ComplianceNonCompliant, "[non-compliant]"},
		{redline.ComplianceChecking, "[checking]"},
		{redline.ComplianceError, "[error]"},
		{redline.ComplianceStatus("bogus"), "[unknown]"},
	}
	for _, tt := range tests {
		if got := StatusBadge(tt.status); got != tt.want {
			t.Errorf("StatusBadge(%q) = %q, want %q", tt.status, got, tt.want)
		}
	}
}

func TestComplianceSummary(t *testing.T) {
	check := &redline.ComplianceCheck{
		ParagraphID:   2,
		OverallStatus: redline.CompliancePartial,
		OverallScore:  0.65,
		Results: []redline.ComplianceResult{
			{CommentID: 10, Status: redline.ComplianceCompliant, Score: 0.9, Confidence: 0.8, DeletionScheduled: true},
			{CommentID: 11, Status: redline.ComplianceNonCompliant, Score: 0.4, Confidence: 0.7},
		},
	}

	out := ComplianceSummary(check)
	for _, want := range []string{"paragraph 2", "[partial]", "comment 10", "deletion scheduled", "comment 11", "[non-compliant]"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}

func TestCountdownStopIsIdempotent(t *testing.T) {
	var expired atomic.Bool
	c := NewCountdown(time.Now().Add(time.Hour),
		func(string) {},
		func() { expired.Store(true) })

	c.Stop()
	c.Stop()

	if expired.Load() {
		t.Error("expiry callback fired after Stop")
	}
}

func TestCountdownPastDeadlineExpiresImmediately(t *testing.T) {
	done := make(chan struct{})
	c := NewCountdown(time.Now().Add(-time.Second),
		nil,
		func() { close(done) })
	defer c.Stop()

	select {
	case <-done:
	case <-time.After(200 * time.Millisecond):
		t.Fatal("expiry callback did not fire for past deadline")
	}
}

func TestCountdownExpires(t *testing.T) {
	done := make(chan struct{})
	c := NewCountdown(time.Now().Add(1100*time.Millisecond),
		nil,
		func() { close(done) })
	defer c.Stop()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("expiry callback never fired")
	}
}
