// Package session keeps an in-memory copy of one document consistent
// with the Redline backend across edits, insertions, deletions and
// comment activity. It is the client-side source of truth the renderers
// draw from: paragraph ids stay a dense ascending run starting at 1, and
// comment paragraph references shift in lockstep with their paragraphs.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	redline "github.com/redlinehq/redline-go"
)

// Client-side validation failures, rejected before any network call.
var (
	ErrNoDocument       = errors.New("no document loaded")
	ErrUnknownParagraph = errors.New("unknown paragraph id")
	ErrUnknownComment   = errors.New("unknown comment id")
	ErrEmptyComment     = errors.New("comment text is required")
)

// API is the backend surface a Session depends on. *redline.Client
// satisfies it.
type API interface {
	UploadDocument(ctx context.Context, filename string, r io.Reader) (*redline.UploadResult, error)
	GetDocument(ctx context.Context, id int) (*redline.Document, error)
	EditParagraph(ctx context.Context, documentID, paragraphID int, text string) (*redline.EditResult, error)
	AddParagraph(ctx context.Context, documentID int, text string, position int) (*redline.AddParagraphResult, error)
	DeleteParagraph(ctx context.Context, documentID, paragraphID int) (*redline.DeleteParagraphResult, error)
	AddComment(ctx context.Context, documentID, paragraphID int, author, text string) (*redline.Comment, error)
	DeleteComment(ctx context.Context, documentID, commentID int) error
	CheckCompliance(ctx context.Context, documentID, paragraphID int, currentText string) (*redline.ComplianceCheck, error)
	CancelScheduledDeletion(ctx context.Context, documentID, commentID int) (*redline.CancelDeletionResult, error)
}

// Level classifies a status message.
type Level int

const (
	LevelInfo Level = iota
	LevelSuccess
	LevelError
)

// String returns the level name.
func (l Level) String() string {
	switch l {
	case LevelSuccess:
		return "success"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

// NotifyFunc receives transient status messages.
type NotifyFunc func(level Level, message string)

// Snapshot is a point-in-time copy of the session state, safe to render
// without holding any lock.
type Snapshot struct {
	Document redline.Document
	Selected int // selected paragraph id, 0 when none
	Unsaved  bool
}

// Session owns the in-memory paragraph and comment arrays for one loaded
// document and mediates every mutation through the backend. Mutations
// apply locally only after server confirmation; on failure the previous
// state is left untouched and no retry happens.
type Session struct {
	api    API
	caps   redline.Capabilities
	log    zerolog.Logger
	notify NotifyFunc
	change func()

	mu         sync.Mutex
	loaded     bool
	documentID int
	filename   string
	versionNum int
	versionSt  redline.VersionStatus
	paragraphs []redline.Paragraph
	comments   []redline.Comment
	unsaved    bool
	selected   int
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithNotifier sets the status message sink.
func WithNotifier(fn NotifyFunc) SessionOption {
	return func(s *Session) {
		s.notify = fn
	}
}

// WithOnChange sets a hook invoked after every successful state change,
// so owners can re-render.
func WithOnChange(fn func()) SessionOption {
	return func(s *Session) {
		s.change = fn
	}
}

// WithSessionLogger sets a structured logger.
func WithSessionLogger(log zerolog.Logger) SessionOption {
	return func(s *Session) {
		s.log = log
	}
}

// NewSession creates a session bound to a backend and a capability set.
func NewSession(api API, caps redline.Capabilities, opts ...SessionOption) *Session {
	s := &Session{
		api:    api,
		caps:   caps,
		log:    zerolog.Nop(),
		notify: func(Level, string) {},
		change: func() {},
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Upload validates and uploads a .docx file, then loads the resulting
// document. Validation failures surface before any network call.
func (s *Session) Upload(ctx context.Context, filename string, r io.Reader) error {
	result, err := s.api.UploadDocument(ctx, filename, r)
	if err != nil {
		s.notify(LevelError, fmt.Sprintf("upload failed: %v", err))
		return fmt.Errorf("upload: %w", err)
	}

	s.notify(LevelSuccess, "document uploaded")
	return s.Load(ctx, result.DocumentID)
}

// Load fetches a document and replaces the session state wholesale. On
// any error the previous state is untouched.
func (s *Session) Load(ctx context.Context, documentID int) error {
	doc, err := s.api.GetDocument(ctx, documentID)
	if err != nil {
		s.notify(LevelError, fmt.Sprintf("load failed: %v", err))
		return fmt.Errorf("load document %d: %w", documentID, err)
	}

	paragraphs := make([]redline.Paragraph, len(doc.Paragraphs))
	copy(paragraphs, doc.Paragraphs)
	sort.Slice(paragraphs, func(i, j int) bool { return paragraphs[i].ID < paragraphs[j].ID })
	comments := make([]redline.Comment, len(doc.Comments))
	copy(comments, doc.Comments)

	s.mu.Lock()
	s.loaded = true
	s.documentID = doc.DocumentID
	s.filename = doc.Filename
	s.versionNum = doc.VersionNumber
	s.versionSt = doc.VersionStatus
	s.paragraphs = paragraphs
	s.comments = comments
	s.unsaved = false
	s.selected = 0
	s.mu.Unlock()

	s.log.Debug().Int("document_id", doc.DocumentID).Int("paragraphs", len(paragraphs)).
		Int("comments", len(comments)).Msg("document loaded")
	s.change()
	return nil
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Document: redline.Document{
			DocumentID:    s.documentID,
			Filename:      s.filename,
			VersionNumber: s.versionNum,
			VersionStatus: s.versionSt,
			Paragraphs:    make([]redline.Paragraph, len(s.paragraphs)),
			Comments:      make([]redline.Comment, len(s.comments)),
		},
		Selected: s.selected,
		Unsaved:  s.unsaved,
	}
	copy(snap.Document.Paragraphs, s.paragraphs)
	copy(snap.Document.Comments, s.comments)
	return snap
}

// Loaded reports whether a document is loaded.
func (s *Session) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}

// DocumentID returns the id of the loaded document, 0 when none.
func (s *Session) DocumentID() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.documentID
}

// UnsavedChanges reports whether edits are staged that no autosave has
// confirmed yet. Owners should check this before tearing the session
// down, the way the browser blocks navigation while it is true.
func (s *Session) UnsavedChanges() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unsaved
}

// SelectParagraph marks a paragraph as selected for comment attachment.
func (s *Session) SelectParagraph(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded {
		return ErrNoDocument
	}
	if s.indexOfLocked(id) < 0 {
		return fmt.Errorf("select paragraph %d: %w", id, ErrUnknownParagraph)
	}
	s.selected = id
	return nil
}

// ClearSelection removes the paragraph selection.
func (s *Session) ClearSelection() {
	s.mu.Lock()
	s.selected = 0
	s.mu.Unlock()
}

// InsertParagraphAfter inserts an empty paragraph after the given id.
// Every paragraph id greater than the insertion point shifts up by one,
// and comment references shift with them, so ids stay dense.
func (s *Session) InsertParagraphAfter(ctx context.Context, id int) error {
	return s.insertAfter(ctx, id, "")
}

// DuplicateParagraph inserts a copy of a paragraph directly after it.
func (s *Session) DuplicateParagraph(ctx context.Context, id int) error {
	s.mu.Lock()
	idx := s.indexOfLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return fmt.Errorf("duplicate paragraph %d: %w", id, ErrUnknownParagraph)
	}
	text := s.paragraphs[idx].Text
	s.mu.Unlock()

	return s.insertAfter(ctx, id, text)
}

func (s *Session) insertAfter(ctx context.Context, id int, text string) error {
	s.mu.Lock()
	if !s.loaded {
		s.mu.Unlock()
		return ErrNoDocument
	}
	if s.indexOfLocked(id) < 0 {
		s.mu.Unlock()
		return fmt.Errorf("insert after paragraph %d: %w", id, ErrUnknownParagraph)
	}
	docID := s.documentID
	s.mu.Unlock()

	position := id + 1
	if _, err := s.api.AddParagraph(ctx, docID, text, position); err != nil {
		s.notify(LevelError, fmt.Sprintf("insert paragraph failed: %v", err))
		return fmt.Errorf("insert paragraph: %w", err)
	}

	s.mu.Lock()
	if s.documentID != docID {
		// The document was replaced while the request was in flight.
		s.mu.Unlock()
		return nil
	}
	for i := range s.paragraphs {
		if s.paragraphs[i].ID >= position {
			s.paragraphs[i].ID++
		}
	}
	for i := range s.comments {
		if s.comments[i].ParagraphID >= position {
			s.comments[i].ParagraphID++
		}
	}
	s.paragraphs = append(s.paragraphs, redline.Paragraph{ID: position, Text: text})
	sort.Slice(s.paragraphs, func(i, j int) bool { return s.paragraphs[i].ID < s.paragraphs[j].ID })
	s.mu.Unlock()

	s.notify(LevelSuccess, "paragraph inserted")
	s.change()
	return nil
}

// DeleteParagraph removes a paragraph, discards its comments to mirror
// the server-side cascade, and shifts every following id down by one.
func (s *Session) DeleteParagraph(ctx context.Context, id int) error {
	s.mu.Lock()
	if !s.loaded {
		s.mu.Unlock()
		return ErrNoDocument
	}
	if s.indexOfLocked(id) < 0 {
		s.mu.Unlock()
		return fmt.Errorf("delete paragraph %d: %w", id, ErrUnknownParagraph)
	}
	docID := s.documentID
	s.mu.Unlock()

	result, err := s.api.DeleteParagraph(ctx, docID, id)
	if err != nil {
		s.notify(LevelError, fmt.Sprintf("delete paragraph failed: %v", err))
		return fmt.Errorf("delete paragraph: %w", err)
	}

	s.mu.Lock()
	if s.documentID != docID {
		s.mu.Unlock()
		return nil
	}
	kept := s.paragraphs[:0]
	for _, p := range s.paragraphs {
		switch {
		case p.ID == id:
			continue
		case p.ID > id:
			p.ID--
		}
		kept = append(kept, p)
	}
	s.paragraphs = kept

	keptComments := s.comments[:0]
	for _, c := range s.comments {
		switch {
		case c.ParagraphID == id:
			continue
		case c.ParagraphID > id:
			c.ParagraphID--
		}
		keptComments = append(keptComments, c)
	}
	s.comments = keptComments

	if s.selected == id {
		s.selected = 0
	} else if s.selected > id {
		s.selected--
	}
	s.mu.Unlock()

	if result.DeletedComments > 0 {
		s.notify(LevelSuccess, fmt.Sprintf("paragraph deleted (%d comments removed)", result.DeletedComments))
	} else {
		s.notify(LevelSuccess, "paragraph deleted")
	}
	s.change()
	return nil
}

// EditParagraph replaces a paragraph's text through the backend. When
// the response signals a server-side version rollover, the session
// reloads under the new version id instead of continuing on the old one.
func (s *Session) EditParagraph(ctx context.Context, id int, text string) error {
	s.mu.Lock()
	if !s.loaded {
		s.mu.Unlock()
		return ErrNoDocument
	}
	if s.indexOfLocked(id) < 0 {
		s.mu.Unlock()
		return fmt.Errorf("edit paragraph %d: %w", id, ErrUnknownParagraph)
	}
	docID := s.documentID
	s.mu.Unlock()

	result, err := s.api.EditParagraph(ctx, docID, id, text)
	if err != nil {
		s.notify(LevelError, fmt.Sprintf("save failed: %v", err))
		return fmt.Errorf("edit paragraph: %w", err)
	}

	if result.VersionCreated && result.NewVersionID != 0 {
		if result.VersionMessage != "" {
			s.notify(LevelInfo, result.VersionMessage)
		}
		return s.Load(ctx, result.NewVersionID)
	}

	s.mu.Lock()
	if s.documentID == docID {
		if idx := s.indexOfLocked(id); idx >= 0 {
			s.paragraphs[idx].Text = text
			// The plain text now supersedes any rich content.
			s.paragraphs[idx].HTMLContent = ""
		}
		s.unsaved = false
	}
	s.mu.Unlock()

	s.change()
	return nil
}

// StageEdit replaces a paragraph's text locally only, marking the
// session dirty. The autosave scheduler persists staged text later; the
// staged value is what compliance checks run against in the meantime.
func (s *Session) StageEdit(id int, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded {
		return ErrNoDocument
	}
	idx := s.indexOfLocked(id)
	if idx < 0 {
		return fmt.Errorf("stage edit for paragraph %d: %w", id, ErrUnknownParagraph)
	}
	s.paragraphs[idx].Text = text
	s.paragraphs[idx].HTMLContent = ""
	s.unsaved = true
	return nil
}

// markSaved records that an autosave confirmed persistence.
func (s *Session) markSaved(documentID int) {
	s.mu.Lock()
	if s.documentID == documentID {
		s.unsaved = false
	}
	s.mu.Unlock()
}

// AddComment attaches a comment to a paragraph. Empty text is rejected
// before any network call.
func (s *Session) AddComment(ctx context.Context, paragraphID int, author, text string) error {
	if strings.TrimSpace(text) == "" {
		s.notify(LevelError, "comment text is required")
		return ErrEmptyComment
	}

	s.mu.Lock()
	if !s.loaded {
		s.mu.Unlock()
		return ErrNoDocument
	}
	if s.indexOfLocked(paragraphID) < 0 {
		s.mu.Unlock()
		return fmt.Errorf("comment on paragraph %d: %w", paragraphID, ErrUnknownParagraph)
	}
	docID := s.documentID
	s.mu.Unlock()

	comment, err := s.api.AddComment(ctx, docID, paragraphID, author, text)
	if err != nil {
		s.notify(LevelError, fmt.Sprintf("add comment failed: %v", err))
		return fmt.Errorf("add comment: %w", err)
	}

	stored := *comment
	if stored.ParagraphID == 0 {
		stored.ParagraphID = paragraphID
	}

	s.mu.Lock()
	if s.documentID == docID {
		s.comments = append(s.comments, stored)
	}
	s.mu.Unlock()

	s.notify(LevelSuccess, "comment added")
	s.change()
	return nil
}

// DeleteComment removes a comment.
func (s *Session) DeleteComment(ctx context.Context, commentID int) error {
	s.mu.Lock()
	if !s.loaded {
		s.mu.Unlock()
		return ErrNoDocument
	}
	if !s.hasCommentLocked(commentID) {
		s.mu.Unlock()
		return fmt.Errorf("delete comment %d: %w", commentID, ErrUnknownComment)
	}
	docID := s.documentID
	s.mu.Unlock()

	if err := s.api.DeleteComment(ctx, docID, commentID); err != nil {
		s.notify(LevelError, fmt.Sprintf("delete comment failed: %v", err))
		return fmt.Errorf("delete comment: %w", err)
	}

	s.mu.Lock()
	if s.documentID == docID {
		kept := s.comments[:0]
		for _, c := range s.comments {
			if c.ID != commentID {
				kept = append(kept, c)
			}
		}
		s.comments = kept
	}
	s.mu.Unlock()

	s.notify(LevelSuccess, "comment deleted")
	s.change()
	return nil
}

// CancelScheduledDeletion keeps a comment the backend had scheduled for
// automatic removal, restoring its normal lifecycle locally.
func (s *Session) CancelScheduledDeletion(ctx context.Context, commentID int) error {
	s.mu.Lock()
	if !s.loaded {
		s.mu.Unlock()
		return ErrNoDocument
	}
	if !s.hasCommentLocked(commentID) {
		s.mu.Unlock()
		return fmt.Errorf("cancel deletion of comment %d: %w", commentID, ErrUnknownComment)
	}
	docID := s.documentID
	s.mu.Unlock()

	if _, err := s.api.CancelScheduledDeletion(ctx, docID, commentID); err != nil {
		s.notify(LevelError, fmt.Sprintf("cancel scheduled deletion failed: %v", err))
		return fmt.Errorf("cancel scheduled deletion: %w", err)
	}

	s.mu.Lock()
	if s.documentID == docID {
		for i := range s.comments {
			if s.comments[i].ID == commentID {
				s.comments[i].ScheduledDeletionAt = nil
				s.comments[i].ScheduledForDeletion = false
				break
			}
		}
	}
	s.mu.Unlock()

	s.notify(LevelSuccess, "scheduled deletion cancelled")
	s.change()
	return nil
}

// ApplyScheduledDeletions copies scheduled-deletion metadata from a
// compliance response onto the matching local comments.
func (s *Session) ApplyScheduledDeletions(check *redline.ComplianceCheck) {
	s.mu.Lock()
	for _, res := range check.Results {
		if !res.DeletionScheduled {
			continue
		}
		for i := range s.comments {
			if s.comments[i].ID == res.CommentID {
				s.comments[i].ScheduledDeletionAt = res.ScheduledDeletionAt
				s.comments[i].ScheduledForDeletion = true
			}
		}
	}
	s.mu.Unlock()
	s.change()
}

// ParagraphHasComments reports whether any comment references the
// paragraph.
func (s *Session) ParagraphHasComments(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.comments {
		if c.ParagraphID == id {
			return true
		}
	}
	return false
}

// ParagraphText returns the current (possibly staged) text of a
// paragraph.
func (s *Session) ParagraphText(id int) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOfLocked(id)
	if idx < 0 {
		return "", false
	}
	return s.paragraphs[idx].Text, true
}

func (s *Session) indexOfLocked(id int) int {
	for i := range s.paragraphs {
		if s.paragraphs[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Session) hasCommentLocked(id int) bool {
	for i := range s.comments {
		if s.comments[i].ID == id {
			return true
		}
	}
	return false
}
