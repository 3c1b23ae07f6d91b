package redline

import "time"

// Mode selects which backend surface the client talks to. The editor
// surface allows paragraph mutation and version creation; the commenter
// surface is comment-only.
type Mode string

const (
	ModeEditor    Mode = "editor"
	ModeCommenter Mode = "commenter"
)

// basePath returns the API prefix for the mode.
func (m Mode) basePath() string {
	if m == ModeCommenter {
		return "/commenter/api"
	}
	return "/editor/api"
}

// Capabilities describes what operations a mode permits.
type Capabilities struct {
	Edit   bool // paragraph mutation, autosave, version creation
	Export bool // server-side file export
}

// Capabilities returns the capability set for the mode.
func (m Mode) Capabilities() Capabilities {
	return Capabilities{
		Edit:   m != ModeCommenter,
		Export: true,
	}
}

// VersionStatus is a document version's place in the review workflow.
type VersionStatus string

const (
	VersionOriginal  VersionStatus = "original"
	VersionCommented VersionStatus = "commented"
	VersionEdited    VersionStatus = "edited"
	VersionArchived  VersionStatus = "archived"
)

// Paragraph is one ordered text block of a document. IDs are dense,
// 1-based and contiguous within a document.
type Paragraph struct {
	ID          int              `json:"id"`
	Text        string           `json:"text"`
	HTMLContent string           `json:"html_content,omitempty"`
	HasImages   bool             `json:"has_images,omitempty"`
	Images      []ParagraphImage `json:"images,omitempty"`
}

// ParagraphImage describes an image embedded in a paragraph.
type ParagraphImage struct {
	ID       int    `json:"id"`
	Filename string `json:"filename"`
	ImageID  string `json:"image_id"`
	Position int    `json:"position"`
}

// Comment is an annotation attached to a paragraph. A comment may be
// scheduled for automatic deletion at a future time unless canceled.
type Comment struct {
	ID                   int        `json:"id"`
	ParagraphID          int        `json:"paragraph_id"`
	Author               string     `json:"author"`
	Text                 string     `json:"text"`
	CreatedAt            time.Time  `json:"created_at"`
	ScheduledDeletionAt  *time.Time `json:"scheduled_deletion_at,omitempty"`
	ScheduledForDeletion bool       `json:"is_scheduled_for_deletion,omitempty"`
}

// Document is the full server-side state of one document version.
type Document struct {
	DocumentID    int           `json:"document_id"`
	Filename      string        `json:"filename"`
	VersionNumber int           `json:"version_number"`
	VersionStatus VersionStatus `json:"version_status"`
	Paragraphs    []Paragraph   `json:"paragraphs"`
	Comments      []Comment     `json:"comments"`
}

// DocumentSummary is one entry of the document listing.
type DocumentSummary struct {
	ID           int       `json:"id"`
	Filename     string    `json:"filename"`
	UploadedAt   time.Time `json:"uploaded_at"`
	CommentCount int       `json:"comment_count"`
}

// UploadResult is the outcome of a document upload. The backend answers
// with either a flat payload or a {status, data: {...}} envelope depending
// on the surface; UnmarshalJSON accepts both.
type UploadResult struct {
	DocumentID int         `json:"document_id"`
	Paragraphs []Paragraph `json:"paragraphs"`
	Comments   []Comment   `json:"comments"`
}

// EditResult is the response to a paragraph edit. When the backend
// decides that all commented paragraphs have been addressed, it creates a
// new version server-side and signals it here; callers must continue under
// NewVersionID.
type EditResult struct {
	ParagraphID    int    `json:"paragraph_id"`
	Text           string `json:"text"`
	VersionCreated bool   `json:"version_created,omitempty"`
	NewVersionID   int    `json:"new_version_id,omitempty"`
	VersionMessage string `json:"version_message,omitempty"`
}

// AddParagraphResult is the response to an insert.
type AddParagraphResult struct {
	ParagraphID int    `json:"paragraph_id"`
	Text        string `json:"text"`
	Message     string `json:"message,omitempty"`
}

// DeleteParagraphResult reports the server-side cascade of a paragraph
// deletion.
type DeleteParagraphResult struct {
	DeletedComments   int `json:"deleted_comments"`
	UpdatedParagraphs int `json:"updated_paragraphs"`
}

// ComplianceStatus classifies how well a paragraph's current text
// addresses a comment. The checking and error values are client-side
// only; the backend never returns them.
type ComplianceStatus string

const (
	ComplianceCompliant    ComplianceStatus = "compliant"
	CompliancePartial      ComplianceStatus = "partial"
	ComplianceNonCompliant ComplianceStatus = "non_compliant"
	ComplianceChecking     ComplianceStatus = "checking"
	ComplianceError        ComplianceStatus = "error"
)

// ComplianceResult is the per-comment outcome of a compliance check.
type ComplianceResult struct {
	CommentID           int              `json:"comment_id"`
	Status              ComplianceStatus `json:"status"`
	Score               float64          `json:"compliance_score"`
	Confidence          float64          `json:"confidence"`
	DeletionScheduled   bool             `json:"deletion_scheduled,omitempty"`
	ScheduledDeletionAt *time.Time       `json:"scheduled_deletion_at,omitempty"`
}

// ComplianceCheck is the full response of the realtime compliance
// endpoint: per-comment results, an aggregate, and possibly a
// version-promotion signal.
type ComplianceCheck struct {
	ParagraphID        int                `json:"paragraph_id"`
	OverallStatus      ComplianceStatus   `json:"overall_status"`
	OverallScore       float64            `json:"overall_score"`
	Results            []ComplianceResult `json:"results"`
	AllCommentedEdited bool               `json:"all_commented_paragraphs_edited,omitempty"`
	VersionCreated     bool               `json:"version_created,omitempty"`
	NewVersionID       int                `json:"new_version_id,omitempty"`
	VersionMessage     string             `json:"version_message,omitempty"`
}

// CancelDeletionResult confirms a canceled scheduled deletion.
type CancelDeletionResult struct {
	CommentID       int        `json:"comment_id"`
	WasScheduledFor *time.Time `json:"was_scheduled_for,omitempty"`
	Status          string     `json:"status"`
}

// Version is one entry of a document's version history.
type Version struct {
	DocumentID          int           `json:"document_id"`
	VersionNumber       int           `json:"version_number"`
	VersionStatus       VersionStatus `json:"version_status"`
	CreatedAt           time.Time     `json:"created_at"`
	Notes               string        `json:"version_notes,omitempty"`
	CommentCount        int           `json:"comment_count"`
	CreatedFromComments bool          `json:"created_from_comments,omitempty"`
}

// VersionList is the version history of a document chain.
type VersionList struct {
	Versions         []Version `json:"versions"`
	CurrentVersionID int       `json:"current_version_id,omitempty"`
	BaseDocumentID   int       `json:"base_document_id,omitempty"`
}

// CreateVersionResult is the response to a manual version creation.
type CreateVersionResult struct {
	NewVersionID  int    `json:"new_version_id"`
	VersionNumber int    `json:"version_number"`
	Message       string `json:"message,omitempty"`
}

// Export is a server-rendered .docx file.
type Export struct {
	Filename string
	Data     []byte
}
