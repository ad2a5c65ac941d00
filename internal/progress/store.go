// Package progress persists the learner's progress record as a single JSON
// value in a key-value backend.
package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/felixgeelhaar/academy/internal/domain"
	"github.com/felixgeelhaar/academy/internal/storage"
)

// Key is the fixed storage key of the progress record
const Key = "esp8266_progress"

// ErrInvalidRecord is returned by Decode for structurally invalid records
var ErrInvalidRecord = errors.New("invalid progress record")

// Store loads and saves the progress record. When the backend fails it
// degrades to an in-memory KV for the rest of the process.
type Store struct {
	mu          sync.Mutex
	kv          storage.KV
	backend     string
	degraded    bool
	firstLesson string
	logger      *slog.Logger
	now         func() time.Time
}

// Option configures a Store
type Option func(*Store)

// WithLogger sets the logger used for degradation warnings
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

// WithClock sets the time source for default records
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore creates a store over kv. firstLesson seeds default records.
func NewStore(kv storage.KV, backend, firstLesson string, opts ...Option) *Store {
	s := &Store{
		kv:          kv,
		backend:     backend,
		firstLesson: firstLesson,
		logger:      slog.Default(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Backend returns the active backend name
func (s *Store) Backend() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.degraded {
		return "memory (degraded from " + s.backend + ")"
	}
	return s.backend
}

// Degraded reports whether the store fell back to memory
func (s *Store) Degraded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.degraded
}

// Load returns the persisted record if present and valid, otherwise a
// fresh default. It never fails.
func (s *Store) Load(ctx context.Context) *domain.UserProgress {
	data, err := s.get(ctx)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.logger.Warn("load progress failed, using defaults", "error", err)
		}
		return s.Default()
	}

	p, err := Decode(data)
	if err != nil {
		s.logger.Warn("stored progress is invalid, using defaults", "error", err)
		return s.Default()
	}
	return p
}

// Save serialises the full record under Key. Last write wins.
func (s *Store) Save(ctx context.Context, p *domain.UserProgress) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode progress: %w", err)
	}
	return s.put(ctx, data)
}

// Reset removes the persisted record
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	kv := s.kv
	s.mu.Unlock()

	err := kv.Delete(ctx, Key)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("delete progress: %w", err)
	}
	return nil
}

// Default returns the record of a new learner
func (s *Store) Default() *domain.UserProgress {
	return domain.NewUserProgress(s.firstLesson, s.now())
}

func (s *Store) get(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	kv := s.kv
	s.mu.Unlock()

	data, err := kv.Get(ctx, Key)
	if err != nil && !errors.Is(err, storage.ErrNotFound) && !callerGone(ctx, err) {
		s.degrade(err)
	}
	return data, err
}

func (s *Store) put(ctx context.Context, data []byte) error {
	s.mu.Lock()
	kv := s.kv
	s.mu.Unlock()

	err := kv.Put(ctx, Key, data)
	if err == nil {
		return nil
	}
	if callerGone(ctx, err) {
		return fmt.Errorf("save progress: %w", err)
	}
	s.degrade(err)

	s.mu.Lock()
	kv = s.kv
	s.mu.Unlock()
	return kv.Put(ctx, Key, data)
}

// callerGone reports whether err comes from the caller's context rather
// than from the backend.
func callerGone(ctx context.Context, err error) bool {
	return ctx.Err() != nil ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

func (s *Store) degrade(cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.degraded {
		return
	}
	s.degraded = true
	s.kv = storage.NewMemory()
	s.logger.Warn("progress storage unavailable, keeping progress in memory for this session",
		"backend", s.backend,
		"error", cause)
}

// Decode parses and validates a stored record, then normalises it
func Decode(data []byte) (*domain.UserProgress, error) {
	var p domain.UserProgress
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	if p.TotalXP < 0 {
		return nil, fmt.Errorf("%w: negative total_xp", ErrInvalidRecord)
	}
	if p.CurrentLevel < 1 {
		return nil, fmt.Errorf("%w: current_level below 1", ErrInvalidRecord)
	}
	if p.CurrentLesson == "" {
		return nil, fmt.Errorf("%w: empty current_lesson", ErrInvalidRecord)
	}
	p.Normalize()
	return &p, nil
}
