// Package services – SummaryService
//
// This file implements the SummaryService, which owns the AI summarization
// flow: requesting a summary, reading it through the entity cache, and polling
// the persisted job status until it terminates. Polling is driven exclusively
// by the stored status, never by the outcome of the request that started the
// job, so a trigger that errors after the backend accepted the work still
// converges on the server-side truth.
package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/text/language"
	"gorm.io/gorm"

	"github.com/dkontos/go-study-sync/internal/cache"
	"github.com/dkontos/go-study-sync/internal/domain"
	"github.com/dkontos/go-study-sync/internal/mutation"
	"github.com/dkontos/go-study-sync/internal/poll"
)

// SummaryRepo defines the repository contract required by SummaryService.
type SummaryRepo interface {
	// GetSummaryByDocument fetches the summary row for a document.
	GetSummaryByDocument(ctx context.Context, db *gorm.DB, documentID, userID string) (*domain.Summary, error)

	// CreateSummary inserts a pending summary row for a document.
	CreateSummary(ctx context.Context, db *gorm.DB, documentID, userID, language string) (*domain.Summary, error)

	// ResetSummary returns an existing row to pending for a re-run.
	ResetSummary(ctx context.Context, db *gorm.DB, documentID, userID, language string) error
}

// Processor triggers the server-side summarization job.
type Processor interface {
	StartSummary(ctx context.Context, documentID, language string) error
}

// SummaryService reads summaries through the entity cache and manages one
// status poller per in-flight document.
type SummaryService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the summary repository used by this service.
	Repo SummaryRepo
	// Cache is the shared entity cache.
	Cache *cache.Store
	// Mutations executes the write path with optimistic update semantics.
	Mutations *mutation.Coordinator
	// Processor triggers summarization jobs.
	Processor Processor
	// Poll configures the status pollers spawned per document.
	Poll poll.Config

	Log zerolog.Logger

	mu      sync.Mutex
	pollers map[string]context.CancelFunc
	wg      sync.WaitGroup
	baseCtx context.Context
	cancel  context.CancelFunc
}

// NewSummaryService constructs a SummaryService.
func NewSummaryService(db *gorm.DB, r SummaryRepo, c *cache.Store, m *mutation.Coordinator, p Processor, pollCfg poll.Config, log zerolog.Logger) *SummaryService {
	ctx, cancel := context.WithCancel(context.Background())
	return &SummaryService{
		DB:        db,
		Repo:      r,
		Cache:     c,
		Mutations: m,
		Processor: p,
		Poll:      pollCfg,
		Log:       log,
		pollers:   make(map[string]context.CancelFunc),
		baseCtx:   ctx,
		cancel:    cancel,
	}
}

// Close stops every running poller and waits for them to exit.
func (s *SummaryService) Close() {
	s.cancel()
	s.wg.Wait()
}

// Get returns the document's summary through the entity cache. A summary
// whose job is still in flight is never considered fresh, so reads during
// processing hit the store. ErrSummaryNotFound means no summary was ever
// requested for the document.
func (s *SummaryService) Get(ctx context.Context, documentID, userID string) (*domain.Summary, error) {
	e, err := s.Cache.Get(ctx, cache.SummaryKey(documentID), s.loader(documentID, userID))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSummaryNotFound
		}
		return nil, err
	}
	sum, _ := e.Value.(*domain.Summary)
	if sum == nil {
		return nil, ErrSummaryNotFound
	}
	return sum, nil
}

// Generate requests (or re-requests) a summary for the document. The cache
// shows a pending summary immediately, before the trigger call resolves; on
// trigger failure the optimistic entry is rolled back, but if the summary row
// was persisted a poller still runs, because the backend may have accepted
// the job regardless of what the trigger response said.
func (s *SummaryService) Generate(ctx context.Context, documentID, userID, lang string) error {
	lang = normalizeLanguage(lang)
	key := cache.SummaryKey(documentID)

	rowReady := false
	err := s.Mutations.Mutate(ctx, func(ctx context.Context) error {
		_, err := s.Repo.GetSummaryByDocument(ctx, s.DB, documentID, userID)
		switch {
		case err == nil:
			if err := s.Repo.ResetSummary(ctx, s.DB, documentID, userID, lang); err != nil {
				return err
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			if _, err := s.Repo.CreateSummary(ctx, s.DB, documentID, userID, lang); err != nil {
				return err
			}
		default:
			return err
		}
		rowReady = true
		if err := s.Processor.StartSummary(ctx, documentID, lang); err != nil {
			return fmt.Errorf("%w: %w", ErrSummaryTrigger, err)
		}
		return nil
	}, mutation.Options{
		Keys: []cache.Key{key},
		Optimistic: func(c *cache.Store) {
			c.Put(key, &domain.Summary{
				DocumentID: documentID,
				UserID:     userID,
				Status:     domain.StatusPending,
				Language:   lang,
			})
		},
	})

	if rowReady {
		s.startPoller(documentID, userID)
	}
	return err
}

// Watch starts a status poller for a document whose summary is already in
// flight, e.g. after a process restart while a job was running.
func (s *SummaryService) Watch(documentID, userID string) {
	s.startPoller(documentID, userID)
}

// loader reads the persisted summary row for the cache.
func (s *SummaryService) loader(documentID, userID string) cache.Loader {
	return func(ctx context.Context) (any, error) {
		return s.Repo.GetSummaryByDocument(ctx, s.DB, documentID, userID)
	}
}

// startPoller spawns at most one poller per document. The poller stops on its
// own once the persisted status turns terminal; Close cancels stragglers.
func (s *SummaryService) startPoller(documentID, userID string) {
	s.mu.Lock()
	if _, running := s.pollers[documentID]; running {
		s.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(s.baseCtx)
	s.pollers[documentID] = cancel
	s.mu.Unlock()

	p := poll.New(s.Cache, cache.SummaryKey(documentID), s.loader(documentID, userID), s.Poll, s.Log)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			cancel()
			s.mu.Lock()
			delete(s.pollers, documentID)
			s.mu.Unlock()
		}()
		p.Run(ctx)
	}()
}

// normalizeLanguage canonicalizes a BCP 47 tag to its base language,
// defaulting to English for anything unparseable.
func normalizeLanguage(lang string) string {
	tag, err := language.Parse(lang)
	if err != nil || tag == language.Und {
		return "en"
	}
	base, conf := tag.Base()
	if conf == language.No {
		return "en"
	}
	return base.String()
}
