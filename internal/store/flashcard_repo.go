// Package store – Flashcard repository.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dkontos/go-study-sync/internal/domain"
)

// ListFlashcards returns the flashcards generated for a document, ordered by
// their position in the deck. It returns an empty slice if none exist.
func ListFlashcards(ctx context.Context, db *gorm.DB, documentID, userID string) ([]domain.Flashcard, error) {
	var out []domain.Flashcard
	err := db.WithContext(ctx).
		Where("document_id = ? AND user_id = ?", documentID, userID).
		Order("position asc").
		Find(&out).Error
	return out, err
}

// FlashcardInput is one card to persist in a batch insert.
type FlashcardInput struct {
	Front string
	Back  string
}

// ReplaceFlashcards atomically swaps the deck for a document: existing cards
// are soft-deleted and the new batch is inserted with fresh IDs and positions.
// Regeneration must not leave a half-replaced deck, hence the transaction.
func ReplaceFlashcards(ctx context.Context, db *gorm.DB, documentID, userID string, cards []FlashcardInput) ([]domain.Flashcard, error) {
	now := time.Now().UTC()
	rows := make([]domain.Flashcard, len(cards))
	for i, c := range cards {
		rows[i] = domain.Flashcard{
			ID:         uuid.NewString(),
			DocumentID: documentID,
			UserID:     userID,
			Front:      c.Front,
			Back:       c.Back,
			Position:   i,
			CreatedAt:  now,
		}
	}

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Where("document_id = ? AND user_id = ?", documentID, userID).
			Delete(&domain.Flashcard{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.Create(&rows).Error
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// UpdateFlashcardMastery sets the background mastery score of one card.
// Returns ErrNotFound when the card does not exist or is not owned by userID.
func UpdateFlashcardMastery(ctx context.Context, db *gorm.DB, id, userID string, score float64) error {
	res := db.WithContext(ctx).
		Model(&domain.Flashcard{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("mastery_score", score)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
