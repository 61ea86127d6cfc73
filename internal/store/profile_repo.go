// Package store – Profile repository.
package store

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/dkontos/go-study-sync/internal/domain"
)

// EnsureProfile creates the user's profile row if it does not exist yet.
// Idempotent: an existing row is left as-is, including user edits to
// DisplayName. Called best-effort after sign-in verification.
func EnsureProfile(ctx context.Context, db *gorm.DB, userID, email string) error {
	var existing domain.Profile
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	p := &domain.Profile{
		UserID:      userID,
		Email:       email,
		DisplayName: displayNameFromEmail(email),
	}
	return db.WithContext(ctx).Create(p).Error
}

// GetProfile fetches a profile by user ID. Returns ErrNotFound when missing.
func GetProfile(ctx context.Context, db *gorm.DB, userID string) (*domain.Profile, error) {
	var p domain.Profile
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func displayNameFromEmail(email string) string {
	if i := strings.IndexByte(email, '@'); i > 0 {
		return email[:i]
	}
	return email
}
