// Package session runs tutoring sessions: the phase state machine, answer
// capture, the post-test analysis pipeline and retest assembly.
package session

import (
	"context"
	"hash/fnv"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/pavelanni/satsession/internal/model"
	"github.com/pavelanni/satsession/internal/store"
)

// ContentGenerator produces lesson material. Implementations may be slow and
// may fail; callers record failures rather than retrying.
type ContentGenerator interface {
	// TutorGuide writes a lesson guide for a concept from up to five of the
	// questions students missed and the names of the students in the group.
	TutorGuide(ctx context.Context, concept string, questions []model.Question, studentNames []string) (string, error)
	// PracticeProblems returns count problems ordered from easiest to hardest.
	PracticeProblems(ctx context.Context, concept string, section model.Section, sample *string, count int) ([]model.PracticeProblem, error)
	// Counterpart rewrites a question so it tests the same concept.
	Counterpart(ctx context.Context, q model.Question) (model.Counterpart, error)
}

// Config tunes a Service. Zero values pick defaults.
type Config struct {
	// RetestWorkers bounds concurrent per-student retest assembly.
	RetestWorkers int
	// TaskTimeout bounds each background task.
	TaskTimeout time.Duration
	// Now is the clock.
	Now func() time.Time
	// NewRand returns the source used for random retest padding.
	NewRand func(sessionID, studentID string) *rand.Rand
}

const (
	defaultRetestWorkers = 4
	defaultTaskTimeout   = 10 * time.Minute
)

// Service implements session operations on top of the store.
type Service struct {
	store   *store.Store
	gen     ContentGenerator
	now     func() time.Time
	newRand func(sessionID, studentID string) *rand.Rand
	workers int
	timeout time.Duration

	baseCtx context.Context
	cancel  context.CancelFunc
	bg      sync.WaitGroup

	mu      sync.Mutex
	running map[string]bool

	counterparts singleflight.Group
}

func New(st *store.Store, gen ContentGenerator, cfg Config) *Service {
	if cfg.RetestWorkers <= 0 {
		cfg.RetestWorkers = defaultRetestWorkers
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = defaultTaskTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewRand == nil {
		cfg.NewRand = seededRand
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		store:   st,
		gen:     gen,
		now:     cfg.Now,
		newRand: cfg.NewRand,
		workers: cfg.RetestWorkers,
		timeout: cfg.TaskTimeout,
		baseCtx: ctx,
		cancel:  cancel,
		running: make(map[string]bool),
	}
}

// seededRand derives a stable source from the session and student ids so a
// student's random padding is reproducible.
func seededRand(sessionID, studentID string) *rand.Rand {
	h := fnv.New64a()
	h.Write([]byte(sessionID))
	h.Write([]byte{0})
	h.Write([]byte(studentID))
	seed := h.Sum64()
	return rand.New(rand.NewPCG(seed, seed>>1|1))
}

// Wait blocks until all background tasks have finished.
func (s *Service) Wait() {
	s.bg.Wait()
}

// Close cancels running background tasks and waits for them to return.
func (s *Service) Close() {
	s.cancel()
	s.bg.Wait()
}

// goBackground runs task detached from the caller. Errors are logged only.
func (s *Service) goBackground(name, sessionID string, task func(ctx context.Context) error) {
	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		ctx, cancel := context.WithTimeout(s.baseCtx, s.timeout)
		defer cancel()
		if err := task(ctx); err != nil {
			slog.Error("background task failed", "task", name, "session_id", sessionID, "error", err)
			return
		}
		slog.Debug("background task finished", "task", name, "session_id", sessionID)
	}()
}
