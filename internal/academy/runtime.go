package academy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/academy/internal/config"
	"github.com/felixgeelhaar/academy/internal/curriculum"
	"github.com/felixgeelhaar/academy/internal/domain"
	"github.com/felixgeelhaar/academy/internal/engine"
	"github.com/felixgeelhaar/academy/internal/progress"
	"github.com/felixgeelhaar/academy/internal/storage"
	"github.com/felixgeelhaar/academy/internal/storage/sqlite"
)

// activityWriteTimeout bounds a single activity log insert
const activityWriteTimeout = 5 * time.Second

// Runtime is a fully wired academy: content, storage, engine and app
type Runtime struct {
	App        *App
	Registry   *curriculum.Registry
	Engine     *engine.Engine
	Store      *progress.Store
	Backend    *progress.Backend
	Dispatcher *domain.EventDispatcher
	// Activity is set when the sqlite backend is in use
	Activity *sqlite.ActivityStore
}

// Open wires a runtime from configuration. A backend that cannot be opened
// is replaced by memory storage so the session can continue.
func Open(ctx context.Context, cfg *config.LocalConfig, dataDir string, logger *slog.Logger) (*Runtime, error) {
	if logger == nil {
		logger = slog.Default()
	}

	registry, err := curriculum.Load(curriculum.NewLoader(cfg.Content.CatalogPath))
	if err != nil {
		return nil, err
	}

	backend, err := progress.OpenBackend(ctx, cfg.Storage, dataDir, logger)
	if err != nil {
		logger.Warn("storage backend unavailable, progress kept in memory",
			"backend", cfg.Storage.Backend,
			"error", err)
		backend = &progress.Backend{Name: config.BackendMemory, KV: storage.NewMemory()}
	}

	rt := &Runtime{
		Registry:   registry,
		Backend:    backend,
		Dispatcher: domain.NewEventDispatcher(),
	}
	rt.Store = progress.NewStore(backend.KV, backend.Name, registry.FirstLessonID(), progress.WithLogger(logger))

	if backend.SQLite != nil {
		rt.Activity = sqlite.NewActivityStore(backend.SQLite)
		rt.Dispatcher.SubscribeAll(func(e domain.Event) {
			ctx, cancel := context.WithTimeout(context.Background(), activityWriteTimeout)
			defer cancel()
			if err := rt.Activity.Record(ctx, e); err != nil {
				logger.Warn("record activity failed", "event", e.EventType(), "error", err)
			}
		})
	}

	rt.Engine = engine.New(registry, rt.Store,
		engine.WithRepeatPolicy(engine.RepeatPolicy(cfg.Progress.RepeatPolicy)),
		engine.WithDispatcher(rt.Dispatcher),
		engine.WithLogger(logger),
	)
	rt.App = New(ctx, registry, rt.Store, rt.Engine,
		WithLogger(logger),
		WithDelays(cfg.Academy.RunDelay, cfg.Academy.TestDelay),
	)

	logger.Info("academy ready",
		"backend", backend.Name,
		"modules", len(registry.Modules()),
		"lessons", registry.LessonCount(),
		"repeat_policy", cfg.Progress.RepeatPolicy)

	return rt, nil
}

// Close releases the storage backend
func (r *Runtime) Close() error {
	if r.Backend == nil {
		return nil
	}
	if err := r.Backend.Close(); err != nil {
		return fmt.Errorf("close backend: %w", err)
	}
	return nil
}

// IsNotFound reports whether err is a lesson or module lookup failure
func IsNotFound(err error) bool {
	return errors.Is(err, domain.ErrLessonNotFound) || errors.Is(err, domain.ErrModuleNotFound)
}
