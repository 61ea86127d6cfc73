// Package services – FlashcardService
//
// This file implements the FlashcardService, which serves generated flashcard
// decks through the entity cache and runs study sessions over them. While a
// session is open its deck is pinned fresh in the cache so a background
// regeneration cannot swap cards mid-session. Review grades are applied to the
// cached mastery score optimistically and rolled back if the write fails.
package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/dkontos/go-study-sync/internal/cache"
	"github.com/dkontos/go-study-sync/internal/domain"
	"github.com/dkontos/go-study-sync/internal/mutation"
)

// FlashcardRepo defines the repository contract required by FlashcardService.
type FlashcardRepo interface {
	// ListFlashcards returns a document's deck ordered by position.
	ListFlashcards(ctx context.Context, db *gorm.DB, documentID, userID string) ([]domain.Flashcard, error)

	// UpdateFlashcardMastery sets the mastery score of one card.
	UpdateFlashcardMastery(ctx context.Context, db *gorm.DB, id, userID string, score float64) error
}

// StudyRepo defines the study-session repository contract.
type StudyRepo interface {
	// CreateStudySession opens a session over a document's deck.
	CreateStudySession(ctx context.Context, db *gorm.DB, userID, documentID string, cardCount int) (*domain.StudySession, error)

	// GetStudySession fetches a session by ID ensuring ownership.
	GetStudySession(ctx context.Context, db *gorm.DB, id, userID string) (*domain.StudySession, error)

	// EndStudySession stamps EndedAt on an open session.
	EndStudySession(ctx context.Context, db *gorm.DB, id, userID string) error

	// CreateReview records a graded answer within a session.
	CreateReview(ctx context.Context, db *gorm.DB, userID, sessionID, flashcardID string, grade int) (*domain.Review, error)
}

// Mastery adjustment factors for the optimistic local estimate. The
// authoritative score is recomputed server-side and may lag.
const (
	masteryGainFactor = 0.3
	masteryLossFactor = 0.7
)

// FlashcardService provides deck reads and study-session operations.
type FlashcardService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Cards is the flashcard repository used by this service.
	Cards FlashcardRepo
	// Sessions is the study-session repository used by this service.
	Sessions StudyRepo
	// Cache is the shared entity cache.
	Cache *cache.Store
	// Mutations executes the write path with optimistic update semantics.
	Mutations *mutation.Coordinator
}

// NewFlashcardService constructs a FlashcardService.
func NewFlashcardService(db *gorm.DB, cards FlashcardRepo, sessions StudyRepo, c *cache.Store, m *mutation.Coordinator) *FlashcardService {
	return &FlashcardService{DB: db, Cards: cards, Sessions: sessions, Cache: c, Mutations: m}
}

// GetSet returns the document's flashcard deck through the entity cache.
func (s *FlashcardService) GetSet(ctx context.Context, documentID, userID string) ([]domain.Flashcard, error) {
	e, err := s.Cache.Get(ctx, cache.FlashcardSetKey(documentID), func(ctx context.Context) (any, error) {
		return s.Cards.ListFlashcards(ctx, s.DB, documentID, userID)
	})
	cards, _ := e.Value.([]domain.Flashcard)
	return cards, err
}

// StartSession opens a study session over the document's deck and pins the
// deck in the cache for the session's lifetime. Returns ErrEmptyDeck when the
// document has no generated flashcards.
func (s *FlashcardService) StartSession(ctx context.Context, userID, documentID string) (*domain.StudySession, error) {
	cards, err := s.GetSet(ctx, documentID, userID)
	if err != nil {
		return nil, err
	}
	if len(cards) == 0 {
		return nil, ErrEmptyDeck
	}

	session, err := s.Sessions.CreateStudySession(ctx, s.DB, userID, documentID, len(cards))
	if err != nil {
		return nil, err
	}
	s.Cache.Pin(cache.FlashcardSetKey(documentID))
	s.Cache.Put(cache.StudySessionKey(session.ID), session)
	return session, nil
}

// GetSession fetches a study session through the entity cache.
func (s *FlashcardService) GetSession(ctx context.Context, sessionID, userID string) (*domain.StudySession, error) {
	e, err := s.Cache.Get(ctx, cache.StudySessionKey(sessionID), func(ctx context.Context) (any, error) {
		return s.Sessions.GetStudySession(ctx, s.DB, sessionID, userID)
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	session, _ := e.Value.(*domain.StudySession)
	if session == nil || session.UserID != userID {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// RecordReview persists one graded answer. The cached deck's mastery score
// moves immediately (toward 1 on a known card, toward 0 on a miss) and is
// restored verbatim if the write fails, e.g. on a duplicate grade for the
// same card in this session.
func (s *FlashcardService) RecordReview(ctx context.Context, userID, sessionID, documentID, flashcardID string, grade int) error {
	if grade != -1 && grade != 1 {
		return ErrInvalidGrade
	}
	deckKey := cache.FlashcardSetKey(documentID)

	return s.Mutations.Mutate(ctx, func(ctx context.Context) error {
		_, err := s.Sessions.CreateReview(ctx, s.DB, userID, sessionID, flashcardID, grade)
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateReview
		}
		return err
	}, mutation.Options{
		Keys: []cache.Key{deckKey},
		Optimistic: func(c *cache.Store) {
			c.Update(cache.ByKey(deckKey), func(k cache.Key, v any) (any, bool) {
				cards, ok := v.([]domain.Flashcard)
				if !ok {
					return v, false
				}
				out := make([]domain.Flashcard, len(cards))
				copy(out, cards)
				for i := range out {
					if out[i].ID == flashcardID {
						score := adjustMastery(out[i].MasteryScore, grade)
						out[i].MasteryScore = &score
					}
				}
				return out, true
			})
		},
	})
}

// EndSession closes a study session, unpins the deck, and marks the deck and
// session entries stale so the next read picks up server-side recomputed
// mastery scores. Ending an already ended session is treated as success.
func (s *FlashcardService) EndSession(ctx context.Context, userID, sessionID, documentID string) error {
	err := s.Sessions.EndStudySession(ctx, s.DB, sessionID, userID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	deckKey := cache.FlashcardSetKey(documentID)
	s.Cache.Unpin(deckKey)
	s.Cache.InvalidateKey(deckKey)
	s.Cache.InvalidateKey(cache.StudySessionKey(sessionID))
	return nil
}

// adjustMastery computes the optimistic local estimate of a card's mastery
// after one grade.
func adjustMastery(current *float64, grade int) float64 {
	score := 0.5
	if current != nil {
		score = *current
	}
	if grade > 0 {
		return score + (1-score)*masteryGainFactor
	}
	return score * masteryLossFactor
}
