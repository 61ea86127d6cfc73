// Package domain defines the persistence models for documents, AI summaries,
// flashcards, and study sessions. These types are mapped with GORM and form
// the core data layer of the study-notes application.
package domain

import (
	"time"

	"gorm.io/gorm"
)

// ProcessingStatus tracks the server-side AI summarization job embedded in a
// Summary row. A job that reached Completed or Failed does not revert to an
// in-flight state unless a new mutation restarts it.
type ProcessingStatus string

const (
	// StatusPending means the job has been accepted but not started.
	StatusPending ProcessingStatus = "pending"
	// StatusProcessing means the job is running server-side.
	StatusProcessing ProcessingStatus = "processing"
	// StatusCompleted means the result payload fields are populated.
	StatusCompleted ProcessingStatus = "completed"
	// StatusFailed means the job failed; ErrorMessage carries the reason.
	// This is a terminal data state, not a client-side error.
	StatusFailed ProcessingStatus = "failed"
)

// Terminal reports whether the status will no longer change on its own.
func (s ProcessingStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// InFlight reports whether the job is still pending or processing.
func (s ProcessingStatus) InFlight() bool {
	return s == StatusPending || s == StatusProcessing
}

// Document represents an uploaded piece of study material owned by a user.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - UserID: identifier of the owner; indexed for efficient retrieval.
//   - Title: human-readable document title.
//   - SourcePath: storage location of the uploaded content.
//   - IsStarred: user-controlled favorite flag, toggled optimistically.
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
//   - DeletedAt: soft deletion marker (retains row for audit/history).
type Document struct {
	ID         string         `json:"id"          gorm:"type:char(36);primaryKey"`
	UserID     string         `json:"user_id"     gorm:"type:varchar(64);not null;index:idx_user_docs"`
	Title      string         `json:"title"       gorm:"type:varchar(255);not null;default:'Untitled'"`
	SourcePath string         `json:"source_path" gorm:"type:varchar(512)"`
	IsStarred  bool           `json:"is_starred"  gorm:"not null;default:false;index"`
	PageCount  int            `json:"page_count"  gorm:"not null;default:0"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `json:"-"           gorm:"index"`
}

// TableName returns the database table name for Document.
func (Document) TableName() string { return "documents" }

// Summary carries the AI summarization result for one document together with
// the embedded processing job state. Content is only meaningful when Status is
// completed, and ErrorMessage only when Status is failed; callers must check
// Status before dereferencing either.
type Summary struct {
	ID           string           `json:"id"            gorm:"type:char(36);primaryKey"`
	DocumentID   string           `json:"document_id"   gorm:"type:char(36);not null;uniqueIndex"`
	UserID       string           `json:"user_id"       gorm:"type:varchar(64);not null;index"`
	Status       ProcessingStatus `json:"status"        gorm:"type:varchar(16);not null;default:'pending';check:status IN ('pending','processing','completed','failed')"`
	Content      *string          `json:"content,omitempty"       gorm:"type:text"`
	ErrorMessage *string          `json:"error_message,omitempty" gorm:"type:text"`
	Language     string           `json:"language"      gorm:"type:varchar(16);not null;default:'en'"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
	DeletedAt    gorm.DeletedAt   `json:"-"             gorm:"index"`

	// Document is the summarized source. Summaries are cascade-deleted
	// if their document is removed.
	Document Document `json:"-" gorm:"foreignKey:DocumentID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Summary.
func (Summary) TableName() string { return "summaries" }

// Result returns the summary content when the job completed. The boolean is
// false for any non-completed status, including failed jobs that carry text in
// ErrorMessage instead.
func (s *Summary) Result() (string, bool) {
	if s == nil || s.Status != StatusCompleted || s.Content == nil {
		return "", false
	}
	return *s.Content, true
}

// Flashcard is a single generated question/answer pair tied to a document.
// MasteryScore is populated by background scoring and may lag behind reviews.
type Flashcard struct {
	ID           string         `json:"id"          gorm:"type:char(36);primaryKey"`
	DocumentID   string         `json:"document_id" gorm:"type:char(36);not null;index:idx_doc_cards,priority:1"`
	UserID       string         `json:"user_id"     gorm:"type:varchar(64);not null;index"`
	Front        string         `json:"front"       gorm:"type:text;not null"`
	Back         string         `json:"back"        gorm:"type:text;not null"`
	Position     int            `json:"position"    gorm:"not null;default:0;index:idx_doc_cards,priority:2"`
	MasteryScore *float64       `json:"mastery_score,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `json:"-"           gorm:"index"`

	// Document is the source material. Cards are cascade-deleted with it.
	Document Document `json:"-" gorm:"foreignKey:DocumentID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Flashcard.
func (Flashcard) TableName() string { return "flashcards" }

// StudySession tracks one pass of a user through a document's flashcard set.
// While a session is open its flashcard set is pinned fresh in the entity
// cache so the deck cannot regenerate mid-session.
type StudySession struct {
	ID         string         `json:"id"          gorm:"type:char(36);primaryKey"`
	UserID     string         `json:"user_id"     gorm:"type:varchar(64);not null;index"`
	DocumentID string         `json:"document_id" gorm:"type:char(36);not null;index"`
	CardCount  int            `json:"card_count"  gorm:"not null;default:0"`
	StartedAt  time.Time      `json:"started_at"`
	EndedAt    *time.Time     `json:"ended_at,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `json:"-"           gorm:"index"`
}

// TableName returns the database table name for StudySession.
func (StudySession) TableName() string { return "study_sessions" }

// Active reports whether the session has not been ended yet.
func (s *StudySession) Active() bool { return s != nil && s.EndedAt == nil }

// Review records a single graded answer within a study session.
// A user can grade a given card once per session (enforced by unique index).
type Review struct {
	ID          string         `json:"id"           gorm:"type:char(36);primaryKey"`
	SessionID   string         `json:"session_id"   gorm:"type:char(36);not null;index;uniqueIndex:ux_review_session_card"`
	FlashcardID string         `json:"flashcard_id" gorm:"type:char(36);not null;index;uniqueIndex:ux_review_session_card"`
	UserID      string         `json:"user_id"      gorm:"type:varchar(64);not null;index"`
	Grade       int            `json:"grade"        gorm:"not null;check:grade IN (-1,1)"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-"            gorm:"index"`

	// Session is the owning study session. Reviews are cascade-deleted with it.
	Session StudySession `json:"-" gorm:"foreignKey:SessionID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Review.
func (Review) TableName() string { return "reviews" }

// Profile is the dependent record provisioned once after the first successful
// credential verification following a sign-in. Provisioning is best-effort.
type Profile struct {
	UserID      string         `json:"user_id"      gorm:"type:varchar(64);primaryKey"`
	Email       string         `json:"email"        gorm:"type:varchar(255);not null"`
	DisplayName string         `json:"display_name" gorm:"type:varchar(128)"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-"            gorm:"index"`
}

// TableName returns the database table name for Profile.
func (Profile) TableName() string { return "profiles" }
