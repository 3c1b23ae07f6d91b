package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"

	redline "github.com/redlinehq/redline-go"
)

// fakeAPI is an in-memory backend double. Each response field can be
// set per test; call counters let tests assert that client-side
// validation short-circuits before the network.
type fakeAPI struct {
	mu sync.Mutex

	documents map[int]*redline.Document

	uploadResult *redline.UploadResult
	editResult   *redline.EditResult
	checkResult  *redline.ComplianceCheck
	deleteResult *redline.DeleteParagraphResult
	comment      *redline.Comment

	err error

	uploadCalls int
	getCalls    int
	editCalls   int
	addCalls    int
	delCalls    int
	commCalls   int
	delCommCall int
	checkCalls  int
	cancelCalls int

	lastEditText  string
	lastAddText   string
	lastAddPos    int
	lastCheckText string
}

func (f *fakeAPI) UploadDocument(ctx context.Context, filename string, r io.Reader) (*redline.UploadResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploadCalls++
	if f.err != nil {
		return nil, f.err
	}
	return f.uploadResult, nil
}

func (f *fakeAPI) GetDocument(ctx context.Context, id int) (*redline.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	if f.err != nil {
		return nil, f.err
	}
	doc, ok := f.documents[id]
	if !ok {
		return nil, fmt.Errorf("document %d: not found", id)
	}
	return doc, nil
}

func (f *fakeAPI) EditParagraph(ctx context.Context, documentID, paragraphID int, text string) (*redline.EditResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.editCalls++
	f.lastEditText = text
	if f.err != nil {
		return nil, f.err
	}
	if f.editResult != nil {
		return f.editResult, nil
	}
	return &redline.EditResult{ParagraphID: paragraphID, Text: text}, nil
}

func (f *fakeAPI) AddParagraph(ctx context.Context, documentID int, text string, position int) (*redline.AddParagraphResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.addCalls++
	f.lastAddText = text
	f.lastAddPos = position
	if f.err != nil {
		return nil, f.err
	}
	return &redline.AddParagraphResult{ParagraphID: position, Text: text}, nil
}

func (f *fakeAPI) DeleteParagraph(ctx context.Context, documentID, paragraphID int) (*redline.DeleteParagraphResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delCalls++
	if f.err != nil {
		return nil, f.err
	}
	if f.deleteResult != nil {
		return f.deleteResult, nil
	}
	return &redline.DeleteParagraphResult{}, nil
}

func (f *fakeAPI) AddComment(ctx context.Context, documentID, paragraphID int, author, text string) (*redline.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commCalls++
	if f.err != nil {
		return nil, f.err
	}
	if f.comment != nil {
		return f.comment, nil
	}
	return &redline.Comment{ID: 100 + f.commCalls, ParagraphID: paragraphID, Author: author, Text: text}, nil
}

func (f *fakeAPI) DeleteComment(ctx context.Context, documentID, commentID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delCommCall++
	return f.err
}

func (f *fakeAPI) CheckCompliance(ctx context.Context, documentID, paragraphID int, currentText string) (*redline.ComplianceCheck, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checkCalls++
	f.lastCheckText = currentText
	if f.err != nil {
		return nil, f.err
	}
	if f.checkResult != nil {
		return f.checkResult, nil
	}
	return &redline.ComplianceCheck{ParagraphID: paragraphID, OverallStatus: redline.ComplianceCompliant}, nil
}

func (f *fakeAPI) CancelScheduledDeletion(ctx context.Context, documentID, commentID int) (*redline.CancelDeletionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelCalls++
	if f.err != nil {
		return nil, f.err
	}
	return &redline.CancelDeletionResult{CommentID: commentID, Status: "cancelled"}, nil
}

func threeParagraphDoc() *redline.Document {
	return &redline.Document{
		DocumentID:    1,
		Filename:      "contract.docx",
		VersionNumber: 1,
		VersionStatus: redline.VersionOriginal,
		Paragraphs: []redline.Paragraph{
			{ID: 1, Text: "First clause."},
			{ID: 2, Text: "Second clause."},
			{ID: 3, Text: "Third clause."},
		},
		Comments: []redline.Comment{
			{ID: 10, ParagraphID: 2, Author: "Reviewer", Text: "Tighten this."},
			{ID: 11, ParagraphID: 3, Author: "Reviewer", Text: "Citation needed."},
		},
	}
}

func loadedSession(t *testing.T, api *fakeAPI) *Session {
	t.Helper()
	if api.documents == nil {
		api.documents = map[int]*redline.Document{1: threeParagraphDoc()}
	}
	s := NewSession(api, redline.Capabilities{Edit: true, Export: true})
	if err := s.Load(context.Background(), 1); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return s
}

func paragraphIDs(snap Snapshot) []int {
	ids := make([]int, len(snap.Document.Paragraphs))
	for i, p := range snap.Document.Paragraphs {
		ids[i] = p.ID
	}
	return ids
}

func assertDense(t *testing.T, snap Snapshot) {
	t.Helper()
	for i, p := range snap.Document.Paragraphs {
		if p.ID != i+1 {
			t.Fatalf("paragraph ids not dense: got %v", paragraphIDs(snap))
		}
	}
}

func TestLoadReplacesState(t *testing.T) {
	api := &fakeAPI{}
	s := loadedSession(t, api)

	snap := s.Snapshot()
	if snap.Document.DocumentID != 1 {
		t.Errorf("DocumentID = %d, want 1", snap.Document.DocumentID)
	}
	if got := len(snap.Document.Paragraphs); got != 3 {
		t.Errorf("len(Paragraphs) = %d, want 3", got)
	}
	if got := len(snap.Document.Comments); got != 2 {
		t.Errorf("len(Comments) = %d, want 2", got)
	}
	if snap.Unsaved {
		t.Error("Unsaved = true after load, want false")
	}
}

func TestLoadErrorKeepsPreviousState(t *testing.T) {
	api := &fakeAPI{}
	s := loadedSession(t, api)

	api.mu.Lock()
	api.err = errors.New("backend down")
	api.mu.Unlock()

	if err := s.Load(context.Background(), 2); err == nil {
		t.Fatal("Load() error = nil, want error")
	}

	snap := s.Snapshot()
	if snap.Document.DocumentID != 1 {
		t.Errorf("DocumentID = %d, want previous document 1", snap.Document.DocumentID)
	}
	if got := len(snap.Document.Paragraphs); got != 3 {
		t.Errorf("len(Paragraphs) = %d, want 3", got)
	}
}

func TestInsertParagraphAfterRenumbers(t *testing.T) {
	api := &fakeAPI{}
	s := loadedSession(t, api)

	if err := s.InsertParagraphAfter(context.Background(), 1); err != nil {
		t.Fatalf("InsertParagraphAfter() error = %v", err)
	}

	if api.lastAddPos != 2 {
		t.Errorf("position sent = %d, want 2", api.lastAddPos)
	}

	snap := s.Snapshot()
	assertDense(t, snap)
	if got := len(snap.Document.Paragraphs); got != 4 {
		t.Fatalf("len(Paragraphs) = %d, want 4", got)
	}
	if snap.Document.Paragraphs[1].Text != "" {
		t.Errorf("inserted paragraph text = %q, want empty", snap.Document.Paragraphs[1].Text)
	}
	if snap.Document.Paragraphs[2].Text != "Second clause." {
		t.Errorf("shifted paragraph text = %q, want %q", snap.Document.Paragraphs[2].Text, "Second clause.")
	}

	// Comments on former paragraphs 2 and 3 now point at 3 and 4.
	want := map[int]int{10: 3, 11: 4}
	for _, c := range snap.Document.Comments {
		if c.ParagraphID != want[c.ID] {
			t.Errorf("comment %d ParagraphID = %d, want %d", c.ID, c.ParagraphID, want[c.ID])
		}
	}
}

func TestInsertUnknownParagraph(t *testing.T) {
	api := &fakeAPI{}
	s := loadedSession(t, api)

	err := s.InsertParagraphAfter(context.Background(), 99)
	if !errors.Is(err, ErrUnknownParagraph) {
		t.Fatalf("error = %v, want ErrUnknownParagraph", err)
	}
	if api.addCalls != 0 {
		t.Errorf("addCalls = %d, want 0", api.addCalls)
	}
}

func TestDuplicateParagraphCopiesText(t *testing.T) {
	api := &fakeAPI{}
	s := loadedSession(t, api)

	if err := s.DuplicateParagraph(context.Background(), 2); err != nil {
		t.Fatalf("DuplicateParagraph() error = %v", err)
	}

	if api.lastAddText != "Second clause." {
		t.Errorf("text sent = %q, want %q", api.lastAddText, "Second clause.")
	}
	if api.lastAddPos != 3 {
		t.Errorf("position sent = %d, want 3", api.lastAddPos)
	}

	snap := s.Snapshot()
	assertDense(t, snap)
	if snap.Document.Paragraphs[2].Text != "Second clause." {
		t.Errorf("duplicate text = %q, want %q", snap.Document.Paragraphs[2].Text, "Second clause.")
	}
}

func TestDeleteParagraphCascades(t *testing.T) {
	api := &fakeAPI{deleteResult: &redline.DeleteParagraphResult{DeletedComments: 1, UpdatedParagraphs: 1}}
	s := loadedSession(t, api)

	if err := s.DeleteParagraph(context.Background(), 2); err != nil {
		t.Fatalf("DeleteParagraph() error = %v", err)
	}

	snap := s.Snapshot()
	assertDense(t, snap)
	if got := len(snap.Document.Paragraphs); got != 2 {
		t.Fatalf("len(Paragraphs) = %d, want 2", got)
	}
	if snap.Document.Paragraphs[1].Text != "Third clause." {
		t.Errorf("paragraph 2 text = %q, want %q", snap.Document.Paragraphs[1].Text, "Third clause.")
	}

	// Comment 10 lived on the deleted paragraph and is gone, comment 11
	// followed its paragraph down from 3 to 2.
	if got := len(snap.Document.Comments); got != 1 {
		t.Fatalf("len(Comments) = %d, want 1", got)
	}
	if c := snap.Document.Comments[0]; c.ID != 11 || c.ParagraphID != 2 {
		t.Errorf("surviving comment = {ID:%d ParagraphID:%d}, want {ID:11 ParagraphID:2}", c.ID, c.ParagraphID)
	}
}

func TestDeleteParagraphAdjustsSelection(t *testing.T) {
	api := &fakeAPI{}
	s := loadedSession(t, api)

	if err := s.SelectParagraph(3); err != nil {
		t.Fatalf("SelectParagraph() error = %v", err)
	}
	if err := s.DeleteParagraph(context.Background(), 2); err != nil {
		t.Fatalf("DeleteParagraph() error = %v", err)
	}
	if got := s.Snapshot().Selected; got != 2 {
		t.Errorf("Selected = %d, want 2", got)
	}

	if err := s.DeleteParagraph(context.Background(), 2); err != nil {
		t.Fatalf("DeleteParagraph() error = %v", err)
	}
	if got := s.Snapshot().Selected; got != 0 {
		t.Errorf("Selected after deleting selected paragraph = %d, want 0", got)
	}
}

func TestEditParagraph(t *testing.T) {
	t.Run("updates text in place", func(t *testing.T) {
		api := &fakeAPI{}
		s := loadedSession(t, api)

		if err := s.EditParagraph(context.Background(), 2, "Rewritten."); err != nil {
			t.Fatalf("EditParagraph() error = %v", err)
		}

		text, ok := s.ParagraphText(2)
		if !ok || text != "Rewritten." {
			t.Errorf("ParagraphText(2) = %q, %v, want %q, true", text, ok, "Rewritten.")
		}
	})

	t.Run("version promotion reloads", func(t *testing.T) {
		promoted := threeParagraphDoc()
		promoted.DocumentID = 7
		promoted.VersionNumber = 2
		promoted.VersionStatus = redline.VersionEdited

		api := &fakeAPI{
			documents: map[int]*redline.Document{1: threeParagraphDoc(), 7: promoted},
			editResult: &redline.EditResult{
				ParagraphID:    2,
				VersionCreated: true,
				NewVersionID:   7,
			},
		}
		s := loadedSession(t, api)

		if err := s.EditParagraph(context.Background(), 2, "Rewritten."); err != nil {
			t.Fatalf("EditParagraph() error = %v", err)
		}

		snap := s.Snapshot()
		if snap.Document.DocumentID != 7 {
			t.Errorf("DocumentID = %d, want promoted version 7", snap.Document.DocumentID)
		}
		if snap.Document.VersionNumber != 2 {
			t.Errorf("VersionNumber = %d, want 2", snap.Document.VersionNumber)
		}
	})
}

func TestStageEditMarksUnsaved(t *testing.T) {
	api := &fakeAPI{}
	s := loadedSession(t, api)

	if err := s.StageEdit(1, "Draft text"); err != nil {
		t.Fatalf("StageEdit() error = %v", err)
	}
	if !s.UnsavedChanges() {
		t.Error("UnsavedChanges() = false after StageEdit, want true")
	}
	if api.editCalls != 0 {
		t.Errorf("editCalls = %d, want 0 (staging is local)", api.editCalls)
	}

	if err := s.EditParagraph(context.Background(), 1, "Draft text"); err != nil {
		t.Fatalf("EditParagraph() error = %v", err)
	}
	if s.UnsavedChanges() {
		t.Error("UnsavedChanges() = true after confirmed save, want false")
	}
}

func TestAddComment(t *testing.T) {
	t.Run("appends confirmed comment", func(t *testing.T) {
		api := &fakeAPI{}
		s := loadedSession(t, api)

		if err := s.AddComment(context.Background(), 1, "Alex", "Looks wrong."); err != nil {
			t.Fatalf("AddComment() error = %v", err)
		}

		snap := s.Snapshot()
		if got := len(snap.Document.Comments); got != 3 {
			t.Fatalf("len(Comments) = %d, want 3", got)
		}
		added := snap.Document.Comments[2]
		if added.ParagraphID != 1 || added.Author != "Alex" {
			t.Errorf("added comment = {ParagraphID:%d Author:%q}, want {ParagraphID:1 Author:%q}", added.ParagraphID, added.Author, "Alex")
		}
	})

	t.Run("rejects empty text before network", func(t *testing.T) {
		api := &fakeAPI{}
		s := loadedSession(t, api)

		err := s.AddComment(context.Background(), 1, "Alex", "   ")
		if !errors.Is(err, ErrEmptyComment) {
			t.Fatalf("error = %v, want ErrEmptyComment", err)
		}
		if api.commCalls != 0 {
			t.Errorf("commCalls = %d, want 0", api.commCalls)
		}
	})
}

func TestDeleteComment(t *testing.T) {
	api := &fakeAPI{}
	s := loadedSession(t, api)

	if err := s.DeleteComment(context.Background(), 10); err != nil {
		t.Fatalf("DeleteComment() error = %v", err)
	}

	snap := s.Snapshot()
	if got := len(snap.Document.Comments); got != 1 {
		t.Fatalf("len(Comments) = %d, want 1", got)
	}
	if snap.Document.Comments[0].ID != 11 {
		t.Errorf("remaining comment ID = %d, want 11", snap.Document.Comments[0].ID)
	}

	if err := s.DeleteComment(context.Background(), 999); !errors.Is(err, ErrUnknownComment) {
		t.Errorf("error = %v, want ErrUnknownComment", err)
	}
}

func TestCancelScheduledDeletion(t *testing.T) {
	doc := threeParagraphDoc()
	at := doc.Comments[0].CreatedAt
	doc.Comments[0].ScheduledForDeletion = true
	doc.Comments[0].ScheduledDeletionAt = &at

	api := &fakeAPI{documents: map[int]*redline.Document{1: doc}}
	s := loadedSession(t, api)

	if err := s.CancelScheduledDeletion(context.Background(), 10); err != nil {
		t.Fatalf("CancelScheduledDeletion() error = %v", err)
	}

	snap := s.Snapshot()
	c := snap.Document.Comments[0]
	if c.ScheduledForDeletion || c.ScheduledDeletionAt != nil {
		t.Errorf("comment still scheduled: ScheduledForDeletion=%v ScheduledDeletionAt=%v", c.ScheduledForDeletion, c.ScheduledDeletionAt)
	}
}

func TestMutationErrorLeavesStateUntouched(t *testing.T) {
	api := &fakeAPI{}
	s := loadedSession(t, api)
	before := s.Snapshot()

	api.mu.Lock()
	api.err = errors.New("backend down")
	api.mu.Unlock()

	if err := s.DeleteParagraph(context.Background(), 2); err == nil {
		t.Fatal("DeleteParagraph() error = nil, want error")
	}

	after := s.Snapshot()
	if len(after.Document.Paragraphs) != len(before.Document.Paragraphs) {
		t.Errorf("paragraph count changed on failed delete: %d -> %d", len(before.Document.Paragraphs), len(after.Document.Paragraphs))
	}
	if len(after.Document.Comments) != len(before.Document.Comments) {
		t.Errorf("comment count changed on failed delete: %d -> %d", len(before.Document.Comments), len(after.Document.Comments))
	}
}

func TestOperationsRequireLoadedDocument(t *testing.T) {
	api := &fakeAPI{}
	s := NewSession(api, redline.Capabilities{Edit: true, Export: true})
	ctx := context.Background()

	checks := []struct {
		name string
		call func() error
	}{
		{"StageEdit", func() error { return s.StageEdit(1, "x") }},
		{"InsertParagraphAfter", func() error { return s.InsertParagraphAfter(ctx, 1) }},
		{"DeleteParagraph", func() error { return s.DeleteParagraph(ctx, 1) }},
		{"EditParagraph", func() error { return s.EditParagraph(ctx, 1, "x") }},
		{"AddComment", func() error { return s.AddComment(ctx, 1, "a", "b") }},
		{"DeleteComment", func() error { return s.DeleteComment(ctx, 1) }},
		{"SelectParagraph", func() error { return s.SelectParagraph(1) }},
	}
	for _, tc := range checks {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.call(); !errors.Is(err, ErrNoDocument) {
				t.Errorf("error = %v, want ErrNoDocument", err)
			}
		})
	}
}

func TestNotifierReceivesMessages(t *testing.T) {
	var mu sync.Mutex
	var levels []Level
	api := &fakeAPI{}
	api.documents = map[int]*redline.Document{1: threeParagraphDoc()}

	s := NewSession(api, redline.Capabilities{Edit: true, Export: true},
		WithNotifier(func(level Level, msg string) {
			mu.Lock()
			levels = append(levels, level)
			mu.Unlock()
		}))
	if err := s.Load(context.Background(), 1); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if err := s.InsertParagraphAfter(context.Background(), 1); err != nil {
		t.Fatalf("InsertParagraphAfter() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(levels) == 0 || levels[len(levels)-1] != LevelSuccess {
		t.Errorf("levels = %v, want trailing LevelSuccess", levels)
	}
}
