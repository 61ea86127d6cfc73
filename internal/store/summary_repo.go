// Package store – Summary repository.
//
// Summaries carry the embedded AI processing job state. Status transitions are
// persisted here; deciding when to transition is the service layer's job.
// A document has at most one summary row (unique index on document_id).
package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dkontos/go-study-sync/internal/domain"
)

// GetSummaryByDocument fetches the summary row for a document, enforcing user
// ownership. Returns ErrNotFound when no summary exists yet.
func GetSummaryByDocument(ctx context.Context, db *gorm.DB, documentID, userID string) (*domain.Summary, error) {
	var s domain.Summary
	err := db.WithContext(ctx).
		Where("document_id = ? AND user_id = ?", documentID, userID).
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// CreateSummary inserts a pending summary row for a document. The unique index
// on document_id rejects a second row for the same document; callers restart a
// job with ResetSummary instead.
func CreateSummary(ctx context.Context, db *gorm.DB, documentID, userID, language string) (*domain.Summary, error) {
	s := &domain.Summary{
		ID:         uuid.NewString(),
		DocumentID: documentID,
		UserID:     userID,
		Status:     domain.StatusPending,
		Language:   language,
		CreatedAt:  time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(s).Error; err != nil {
		return nil, err
	}
	return s, nil
}

// ResetSummary returns an existing summary row to pending and clears any
// previous result, so a failed or completed job can be re-run. Returns
// ErrNotFound when the row does not exist.
func ResetSummary(ctx context.Context, db *gorm.DB, documentID, userID, language string) error {
	res := db.WithContext(ctx).
		Model(&domain.Summary{}).
		Where("document_id = ? AND user_id = ?", documentID, userID).
		Updates(map[string]any{
			"status":        domain.StatusPending,
			"content":       nil,
			"error_message": nil,
			"language":      language,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// MarkSummaryProcessing moves a pending summary to processing. The status
// guard keeps a late transition from reviving a terminal row.
func MarkSummaryProcessing(ctx context.Context, db *gorm.DB, documentID string) error {
	res := db.WithContext(ctx).
		Model(&domain.Summary{}).
		Where("document_id = ? AND status = ?", documentID, domain.StatusPending).
		Update("status", domain.StatusProcessing)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// CompleteSummary stores the result content and marks the job completed.
// Only in-flight rows transition; a terminal row is left untouched and
// ErrNotFound is returned.
func CompleteSummary(ctx context.Context, db *gorm.DB, documentID, content string) error {
	res := db.WithContext(ctx).
		Model(&domain.Summary{}).
		Where("document_id = ? AND status IN ?", documentID,
			[]domain.ProcessingStatus{domain.StatusPending, domain.StatusProcessing}).
		Updates(map[string]any{
			"status":        domain.StatusCompleted,
			"content":       content,
			"error_message": nil,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// FailSummary marks the job failed with a reason. Only in-flight rows
// transition.
func FailSummary(ctx context.Context, db *gorm.DB, documentID, reason string) error {
	res := db.WithContext(ctx).
		Model(&domain.Summary{}).
		Where("document_id = ? AND status IN ?", documentID,
			[]domain.ProcessingStatus{domain.StatusPending, domain.StatusProcessing}).
		Updates(map[string]any{
			"status":        domain.StatusFailed,
			"error_message": reason,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
