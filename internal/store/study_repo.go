// Package store – StudySession and Review repositories.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dkontos/go-study-sync/internal/domain"
)

// CreateStudySession opens a new study session over a document's deck.
func CreateStudySession(ctx context.Context, db *gorm.DB, userID, documentID string, cardCount int) (*domain.StudySession, error) {
	now := time.Now().UTC()
	s := &domain.StudySession{
		ID:         uuid.NewString(),
		UserID:     userID,
		DocumentID: documentID,
		CardCount:  cardCount,
		StartedAt:  now,
		CreatedAt:  now,
	}
	if err := db.WithContext(ctx).Create(s).Error; err != nil {
		return nil, err
	}
	return s, nil
}

// GetStudySession fetches a session by ID, enforcing user ownership.
// Returns ErrNotFound when missing.
func GetStudySession(ctx context.Context, db *gorm.DB, id, userID string) (*domain.StudySession, error) {
	var s domain.StudySession
	err := db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// EndStudySession stamps EndedAt on an open session. Ending an already ended
// session returns ErrNotFound, which callers treat as idempotent success.
func EndStudySession(ctx context.Context, db *gorm.DB, id, userID string) error {
	res := db.WithContext(ctx).
		Model(&domain.StudySession{}).
		Where("id = ? AND user_id = ? AND ended_at IS NULL", id, userID).
		Update("ended_at", time.Now().UTC())
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// CreateReview records a graded answer. Grade is +1 (knew it) or -1 (missed
// it). A second grade for the same card in the same session returns
// gorm.ErrDuplicatedKey; the unique index backs this check at the DB level.
func CreateReview(ctx context.Context, db *gorm.DB, userID, sessionID, flashcardID string, grade int) (*domain.Review, error) {
	var n int64
	if err := db.WithContext(ctx).
		Model(&domain.Review{}).
		Where("session_id = ? AND flashcard_id = ?", sessionID, flashcardID).
		Count(&n).Error; err != nil {
		return nil, err
	}
	if n > 0 {
		return nil, gorm.ErrDuplicatedKey
	}

	r := &domain.Review{
		ID:          uuid.NewString(),
		SessionID:   sessionID,
		FlashcardID: flashcardID,
		UserID:      userID,
		Grade:       grade,
		CreatedAt:   time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(r).Error; err != nil {
		return nil, err
	}
	return r, nil
}

// ListReviews returns all reviews recorded in a session, oldest first.
func ListReviews(ctx context.Context, db *gorm.DB, sessionID, userID string) ([]domain.Review, error) {
	var out []domain.Review
	err := db.WithContext(ctx).
		Where("session_id = ? AND user_id = ?", sessionID, userID).
		Order("created_at asc").
		Find(&out).Error
	return out, err
}
