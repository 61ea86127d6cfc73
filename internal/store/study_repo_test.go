package store

import (
	"context"
	"errors"
	"testing"

	"gorm.io/gorm"

	"github.com/dkontos/go-study-sync/internal/domain"
)

func TestStudySessionLifecycle(t *testing.T) {
	db := newStoreDB(t, &domain.StudySession{})
	ctx := context.Background()

	s, err := CreateStudySession(ctx, db, "u1", "d1", 10)
	if err != nil {
		t.Fatalf("CreateStudySession: %v", err)
	}
	if s.ID == "" || s.CardCount != 10 || !s.Active() {
		t.Fatalf("unexpected session: %+v", s)
	}

	got, err := GetStudySession(ctx, db, s.ID, "u1")
	if err != nil || !got.Active() {
		t.Fatalf("GetStudySession: %+v, %v", got, err)
	}
	if _, err := GetStudySession(ctx, db, s.ID, "u2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("foreign session must read as ErrNotFound, got %v", err)
	}

	if err := EndStudySession(ctx, db, s.ID, "u1"); err != nil {
		t.Fatalf("EndStudySession: %v", err)
	}
	got, err = GetStudySession(ctx, db, s.ID, "u1")
	if err != nil {
		t.Fatalf("GetStudySession after end: %v", err)
	}
	if got.Active() || got.EndedAt == nil {
		t.Fatalf("session still active after end: %+v", got)
	}

	// Ending twice hits zero rows; callers treat that as idempotent success.
	if err := EndStudySession(ctx, db, s.ID, "u1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second end must return ErrNotFound, got %v", err)
	}
}

func TestCreateReview_GradeAndOnePerCard(t *testing.T) {
	db := newStoreDB(t, &domain.StudySession{}, &domain.Review{})
	ctx := context.Background()

	s, err := CreateStudySession(ctx, db, "u1", "d1", 2)
	if err != nil {
		t.Fatalf("CreateStudySession: %v", err)
	}

	if _, err := CreateReview(ctx, db, "u1", s.ID, "card1", 1); err != nil {
		t.Fatalf("CreateReview: %v", err)
	}
	if _, err := CreateReview(ctx, db, "u1", s.ID, "card2", -1); err != nil {
		t.Fatalf("CreateReview: %v", err)
	}

	// A second grade for the same card in one session is rejected.
	if _, err := CreateReview(ctx, db, "u1", s.ID, "card1", -1); !errors.Is(err, gorm.ErrDuplicatedKey) {
		t.Fatalf("duplicate review error = %v; want gorm.ErrDuplicatedKey", err)
	}

	got, err := ListReviews(ctx, db, s.ID, "u1")
	if err != nil {
		t.Fatalf("ListReviews: %v", err)
	}
	if len(got) != 2 || got[0].FlashcardID != "card1" || got[1].Grade != -1 {
		t.Fatalf("unexpected reviews: %+v", got)
	}

	foreign, err := ListReviews(ctx, db, s.ID, "u2")
	if err != nil || len(foreign) != 0 {
		t.Fatalf("foreign user saw reviews: %v err=%v", foreign, err)
	}
}
