// Package store implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Document
// model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a document is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dkontos/go-study-sync/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// CreateDocument inserts a new Document row owned by userID. The document ID
// is a randomly generated UUID (string), and CreatedAt is set to UTC.
//
// On success, it returns the persisted Document. On failure, it returns a DB error.
func CreateDocument(ctx context.Context, db *gorm.DB, userID, title, sourcePath string, pageCount int) (*domain.Document, error) {
	d := &domain.Document{
		ID:         uuid.NewString(),
		UserID:     userID,
		Title:      title,
		SourcePath: sourcePath,
		PageCount:  pageCount,
		CreatedAt:  time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(d).Error; err != nil {
		return nil, err
	}
	return d, nil
}

// ListDocuments returns all documents belonging to userID, ordered by creation
// time descending (most recent first). When starredOnly is true, only starred
// documents are included. It returns an empty slice if the user has no
// matching documents. On DB error, it returns the error.
func ListDocuments(ctx context.Context, db *gorm.DB, userID string, starredOnly bool) ([]domain.Document, error) {
	q := db.WithContext(ctx).Where("user_id = ?", userID)
	if starredOnly {
		q = q.Where("is_starred = ?", true)
	}
	var out []domain.Document
	err := q.Order("created_at desc").Find(&out).Error
	return out, err
}

// CountDocuments returns the total number of documents owned by userID.
// On DB error, it returns the error.
func CountDocuments(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Document{}).
		Where("user_id = ?", userID).
		Count(&total).Error
	return total, err
}

// GetDocument fetches a single document by its ID and owner (userID). If the
// record does not exist, it returns ErrNotFound. On other DB errors, the raw
// error is returned.
func GetDocument(ctx context.Context, db *gorm.DB, id, userID string) (*domain.Document, error) {
	var d domain.Document
	err := db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&d).Error
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// SetDocumentStarred updates the starred flag of a document identified by id
// and owned by userID. If no rows are affected (document missing or not owned
// by userID), it returns ErrNotFound. On DB error, the raw error is returned.
func SetDocumentStarred(ctx context.Context, db *gorm.DB, id, userID string, starred bool) error {
	res := db.WithContext(ctx).
		Model(&domain.Document{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("is_starred", starred)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteDocument soft-deletes a document identified by id and owned by userID.
// Dependent summaries and flashcards are cascade-deleted by the schema. If no
// rows are affected, it returns ErrNotFound.
func DeleteDocument(ctx context.Context, db *gorm.DB, id, userID string) error {
	res := db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&domain.Document{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
