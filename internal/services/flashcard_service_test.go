package services

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/dkontos/go-study-sync/internal/cache"
	"github.com/dkontos/go-study-sync/internal/domain"
	"github.com/dkontos/go-study-sync/internal/mutation"
)

type fakeCardRepo struct {
	cards     []domain.Flashcard
	listErr   error
	listCalls int
}

func (r *fakeCardRepo) ListFlashcards(ctx context.Context, db *gorm.DB, documentID, userID string) ([]domain.Flashcard, error) {
	r.listCalls++
	return r.cards, r.listErr
}

func (r *fakeCardRepo) UpdateFlashcardMastery(ctx context.Context, db *gorm.DB, id, userID string, score float64) error {
	return nil
}

type fakeStudyRepo struct {
	session   *domain.StudySession
	createErr error

	endErr   error
	endCalls int

	reviewErr   error
	reviewCalls int
	gotGrade    int
}

func (r *fakeStudyRepo) CreateStudySession(ctx context.Context, db *gorm.DB, userID, documentID string, cardCount int) (*domain.StudySession, error) {
	if r.createErr != nil {
		return nil, r.createErr
	}
	r.session = &domain.StudySession{ID: "s1", UserID: userID, DocumentID: documentID, CardCount: cardCount}
	return r.session, nil
}

func (r *fakeStudyRepo) GetStudySession(ctx context.Context, db *gorm.DB, id, userID string) (*domain.StudySession, error) {
	if r.session == nil || r.session.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *r.session
	return &cp, nil
}

func (r *fakeStudyRepo) EndStudySession(ctx context.Context, db *gorm.DB, id, userID string) error {
	r.endCalls++
	return r.endErr
}

func (r *fakeStudyRepo) CreateReview(ctx context.Context, db *gorm.DB, userID, sessionID, flashcardID string, grade int) (*domain.Review, error) {
	r.reviewCalls++
	r.gotGrade = grade
	if r.reviewErr != nil {
		return nil, r.reviewErr
	}
	return &domain.Review{ID: "r1", SessionID: sessionID, FlashcardID: flashcardID, Grade: grade}, nil
}

func newCardService(t *testing.T, cards *fakeCardRepo, study *fakeStudyRepo) (*FlashcardService, *cache.Store) {
	t.Helper()
	c := newTestCache(t)
	return NewFlashcardService(nil, cards, study, c, mutation.New(c, zerolog.Nop())), c
}

func deck(n int) []domain.Flashcard {
	out := make([]domain.Flashcard, n)
	for i := range out {
		out[i] = domain.Flashcard{ID: "c" + string(rune('1'+i)), DocumentID: "d1", Position: i}
	}
	return out
}

func TestGetSet_CachedAcrossReads(t *testing.T) {
	r := &fakeCardRepo{cards: deck(3)}
	s, _ := newCardService(t, r, &fakeStudyRepo{})

	for i := 0; i < 2; i++ {
		cards, err := s.GetSet(context.Background(), "d1", "u1")
		if err != nil || len(cards) != 3 {
			t.Fatalf("GetSet() = %v, %v", cards, err)
		}
	}
	if r.listCalls != 1 {
		t.Fatalf("repo queried %d times; want 1", r.listCalls)
	}
}

func TestStartSession_PinsDeck(t *testing.T) {
	r := &fakeCardRepo{cards: deck(2)}
	s, c := newCardService(t, r, &fakeStudyRepo{})

	session, err := s.StartSession(context.Background(), "u1", "d1")
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if session.CardCount != 2 {
		t.Fatalf("CardCount = %d; want 2", session.CardCount)
	}
	e, ok := c.Read(cache.FlashcardSetKey("d1"))
	if !ok || !e.Pinned {
		t.Fatalf("deck not pinned for the open session")
	}
	if _, ok := c.Read(cache.StudySessionKey("s1")); !ok {
		t.Fatalf("session not cached")
	}
}

func TestStartSession_EmptyDeck(t *testing.T) {
	s, _ := newCardService(t, &fakeCardRepo{}, &fakeStudyRepo{})
	if _, err := s.StartSession(context.Background(), "u1", "d1"); !errors.Is(err, ErrEmptyDeck) {
		t.Fatalf("StartSession error = %v; want ErrEmptyDeck", err)
	}
}

func TestRecordReview_InvalidGrade(t *testing.T) {
	study := &fakeStudyRepo{}
	s, _ := newCardService(t, &fakeCardRepo{}, study)
	if err := s.RecordReview(context.Background(), "u1", "s1", "d1", "c1", 0); !errors.Is(err, ErrInvalidGrade) {
		t.Fatalf("RecordReview error = %v; want ErrInvalidGrade", err)
	}
	if study.reviewCalls != 0 {
		t.Fatalf("invalid grade must not reach the repository")
	}
}

func TestRecordReview_OptimisticMasteryApplied(t *testing.T) {
	r := &fakeCardRepo{cards: deck(1)}
	study := &fakeStudyRepo{}
	s, c := newCardService(t, r, study)
	if _, err := s.GetSet(context.Background(), "d1", "u1"); err != nil {
		t.Fatalf("warm deck: %v", err)
	}

	if err := s.RecordReview(context.Background(), "u1", "s1", "d1", "c1", 1); err != nil {
		t.Fatalf("RecordReview: %v", err)
	}
	e, _ := c.Read(cache.FlashcardSetKey("d1"))
	got := e.Value.([]domain.Flashcard)[0].MasteryScore
	if got == nil || math.Abs(*got-0.65) > 1e-9 {
		t.Fatalf("mastery after known card = %v; want 0.65", got)
	}
	if study.gotGrade != 1 {
		t.Fatalf("grade not persisted: %d", study.gotGrade)
	}
}

func TestRecordReview_FailureRestoresDeck(t *testing.T) {
	r := &fakeCardRepo{cards: deck(1)}
	study := &fakeStudyRepo{reviewErr: errors.New("duplicate review")}
	s, c := newCardService(t, r, study)
	if _, err := s.GetSet(context.Background(), "d1", "u1"); err != nil {
		t.Fatalf("warm deck: %v", err)
	}

	if err := s.RecordReview(context.Background(), "u1", "s1", "d1", "c1", -1); err == nil {
		t.Fatalf("RecordReview should propagate the write failure")
	}
	e, _ := c.Read(cache.FlashcardSetKey("d1"))
	if e.Value.([]domain.Flashcard)[0].MasteryScore != nil {
		t.Fatalf("optimistic mastery survived the rollback")
	}
}

func TestEndSession_UnpinsAndInvalidates(t *testing.T) {
	r := &fakeCardRepo{cards: deck(1)}
	study := &fakeStudyRepo{}
	s, c := newCardService(t, r, study)
	if _, err := s.StartSession(context.Background(), "u1", "d1"); err != nil {
		t.Fatalf("StartSession: %v", err)
	}

	if err := s.EndSession(context.Background(), "u1", "s1", "d1"); err != nil {
		t.Fatalf("EndSession: %v", err)
	}
	e, _ := c.Read(cache.FlashcardSetKey("d1"))
	if e.Pinned || !e.Stale {
		t.Fatalf("deck must be unpinned and stale after the session ends: %+v", e)
	}

	// A second end hits zero rows server-side; treated as success.
	study.endErr = gorm.ErrRecordNotFound
	if err := s.EndSession(context.Background(), "u1", "s1", "d1"); err != nil {
		t.Fatalf("idempotent EndSession returned %v", err)
	}
}

func TestGetSession_MapsNotFound(t *testing.T) {
	s, _ := newCardService(t, &fakeCardRepo{}, &fakeStudyRepo{})
	if _, err := s.GetSession(context.Background(), "missing", "u1"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("GetSession error = %v; want ErrSessionNotFound", err)
	}
}

func TestAdjustMastery(t *testing.T) {
	half := 0.5
	high := 0.9
	cases := []struct {
		current *float64
		grade   int
		want    float64
	}{
		{nil, 1, 0.65},
		{nil, -1, 0.35},
		{&half, 1, 0.65},
		{&half, -1, 0.35},
		{&high, -1, 0.63},
	}
	for _, tc := range cases {
		if got := adjustMastery(tc.current, tc.grade); math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("adjustMastery(%v, %d) = %v; want %v", tc.current, tc.grade, got, tc.want)
		}
	}
}
