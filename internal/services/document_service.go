// Package services – DocumentService
//
// This file implements the DocumentService, which manages the lifecycle of
// uploaded documents. Reads go through the entity cache (list results are
// shared and deduplicated); writes go through the mutation coordinator so
// star toggles and deletions appear instantly and roll back on failure.
//
// Service-level errors (e.g., ErrDocumentNotFound) are returned for
// predictable cases so handlers can map them to HTTP results consistently.
package services

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/dkontos/go-study-sync/internal/cache"
	"github.com/dkontos/go-study-sync/internal/domain"
	"github.com/dkontos/go-study-sync/internal/mutation"
)

// DocumentRepo defines the repository contract required by DocumentService.
type DocumentRepo interface {
	// CreateDocument inserts a new document row for the given user.
	CreateDocument(ctx context.Context, db *gorm.DB, userID, title, sourcePath string, pageCount int) (*domain.Document, error)

	// ListDocuments returns the user's documents, optionally starred only.
	ListDocuments(ctx context.Context, db *gorm.DB, userID string, starredOnly bool) ([]domain.Document, error)

	// GetDocument fetches a document by ID ensuring it belongs to the user.
	GetDocument(ctx context.Context, db *gorm.DB, id, userID string) (*domain.Document, error)

	// SetDocumentStarred updates the starred flag (only if owned by the user).
	SetDocumentStarred(ctx context.Context, db *gorm.DB, id, userID string, starred bool) error

	// DeleteDocument soft-deletes a document owned by the user.
	DeleteDocument(ctx context.Context, db *gorm.DB, id, userID string) error
}

// DocumentService provides document-level operations: listing through the
// entity cache, creating, star toggling, and deleting with optimistic
// cache updates.
type DocumentService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the document repository used by this service.
	Repo DocumentRepo
	// Cache is the shared entity cache.
	Cache *cache.Store
	// Mutations executes the write path with optimistic update semantics.
	Mutations *mutation.Coordinator

	// TitleMaxLen caps stored titles by rune length.
	TitleMaxLen int
}

// NewDocumentService constructs a DocumentService with sane defaults.
func NewDocumentService(db *gorm.DB, r DocumentRepo, c *cache.Store, m *mutation.Coordinator) *DocumentService {
	return &DocumentService{
		DB:          db,
		Repo:        r,
		Cache:       c,
		Mutations:   m,
		TitleMaxLen: 120,
	}
}

// List returns the user's documents for the given filter through the entity
// cache. Concurrent callers share one repository query; a fresh cached list is
// served without touching the database. On refresh failure the last cached
// list is returned alongside the error.
func (s *DocumentService) List(ctx context.Context, userID string, starredOnly bool) ([]domain.Document, error) {
	filter := cache.FilterAll
	if starredOnly {
		filter = cache.FilterStarred
	}
	key := cache.DocumentListKey(userID, filter)

	e, err := s.Cache.Get(ctx, key, func(ctx context.Context) (any, error) {
		docs, err := s.Repo.ListDocuments(ctx, s.DB, userID, starredOnly)
		if err != nil {
			return nil, err
		}
		return docs, nil
	})
	docs, _ := e.Value.([]domain.Document)
	return docs, err
}

// Get fetches a single document through the entity cache.
func (s *DocumentService) Get(ctx context.Context, id, userID string) (*domain.Document, error) {
	e, err := s.Cache.Get(ctx, cache.DocumentKey(id), func(ctx context.Context) (any, error) {
		return s.Repo.GetDocument(ctx, s.DB, id, userID)
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDocumentNotFound
		}
		return nil, err
	}
	doc, _ := e.Value.(*domain.Document)
	if doc == nil || doc.UserID != userID {
		return nil, ErrDocumentNotFound
	}
	return doc, nil
}

// Create inserts a new document owned by userID. The cached lists go stale on
// success so the next read shows the new row; creation is not optimistic
// because the server assigns the ID.
func (s *DocumentService) Create(ctx context.Context, userID, title, sourcePath string, pageCount int) (*domain.Document, error) {
	title = normalizeTitle(title)
	if title == "" {
		title = "Untitled"
	}
	title = clipRunes(title, s.TitleMaxLen)

	var created *domain.Document
	err := s.Mutations.Mutate(ctx, func(ctx context.Context) error {
		d, err := s.Repo.CreateDocument(ctx, s.DB, userID, title, sourcePath, pageCount)
		if err != nil {
			return err
		}
		created = d
		return nil
	}, mutation.Options{
		Invalidates: []cache.Key{
			cache.DocumentListKey(userID, cache.FilterAll),
			cache.DocumentListKey(userID, cache.FilterStarred),
		},
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// ToggleStar flips the starred flag with an optimistic cross-list patch: the
// document row and every cached list of this user show the new flag before the
// write settles. On failure everything is restored verbatim; on success the
// starred list goes stale because its membership changed.
func (s *DocumentService) ToggleStar(ctx context.Context, id, userID string, starred bool) error {
	lists := cache.DocumentListsOf(userID)
	docKey := cache.DocumentKey(id)

	err := s.Mutations.Mutate(ctx, func(ctx context.Context) error {
		return s.Repo.SetDocumentStarred(ctx, s.DB, id, userID, starred)
	}, mutation.Options{
		Keys:         []cache.Key{docKey},
		KeysMatching: lists,
		Optimistic: func(c *cache.Store) {
			c.Update(cache.AnyOf(cache.ByKey(docKey), lists), func(k cache.Key, v any) (any, bool) {
				switch val := v.(type) {
				case *domain.Document:
					if val.ID != id {
						return v, false
					}
					cp := *val
					cp.IsStarred = starred
					return &cp, true
				case []domain.Document:
					return patchDocList(val, id, func(d *domain.Document) { d.IsStarred = starred }), true
				}
				return v, false
			})
		},
		Invalidates: []cache.Key{cache.DocumentListKey(userID, cache.FilterStarred)},
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrDocumentNotFound
	}
	return err
}

// Delete removes a document. The row disappears from every cached list
// immediately; on failure the lists are restored. On success the dependent
// summary and flashcard entries are dropped from the cache (the schema
// cascade-deletes the rows).
func (s *DocumentService) Delete(ctx context.Context, id, userID string) error {
	lists := cache.DocumentListsOf(userID)
	docKey := cache.DocumentKey(id)

	err := s.Mutations.Mutate(ctx, func(ctx context.Context) error {
		return s.Repo.DeleteDocument(ctx, s.DB, id, userID)
	}, mutation.Options{
		Keys:         []cache.Key{docKey},
		KeysMatching: lists,
		Optimistic: func(c *cache.Store) {
			c.Remove(docKey)
			c.Update(lists, func(k cache.Key, v any) (any, bool) {
				docs, ok := v.([]domain.Document)
				if !ok {
					return v, false
				}
				out := make([]domain.Document, 0, len(docs))
				for _, d := range docs {
					if d.ID != id {
						out = append(out, d)
					}
				}
				return out, len(out) != len(docs)
			})
		},
		OnSuccess: func() {
			s.Cache.Remove(cache.SummaryKey(id))
			s.Cache.Remove(cache.FlashcardSetKey(id))
		},
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrDocumentNotFound
	}
	return err
}

// patchDocList returns a copy of docs with fn applied to the document with the
// given ID. The input slice is never mutated; rollback depends on the
// snapshot keeping its exact pre-patch backing array.
func patchDocList(docs []domain.Document, id string, fn func(*domain.Document)) []domain.Document {
	out := make([]domain.Document, len(docs))
	copy(out, docs)
	for i := range out {
		if out[i].ID == id {
			fn(&out[i])
		}
	}
	return out
}

// normalizeTitle collapses internal whitespace and trims the result.
func normalizeTitle(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// clipRunes truncates s to at most n runes.
func clipRunes(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
