// Package watch observes the employee profiles tree and turns dashboard
// mutations into notifications.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/renshaw/taskwire/internal/apperr"
	"github.com/renshaw/taskwire/internal/models"
	"github.com/renshaw/taskwire/internal/parser"
	"github.com/renshaw/taskwire/internal/profiles"
)

// Notifier receives the engine's output.
type Notifier interface {
	Broadcast(ctx context.Context, n models.Notification) (delivered int, queued bool, err error)
}

// Strategy names.
const (
	StrategyPoll   = "poll"
	StrategyNative = "native"
)

// Engine watches for dashboard changes using the configured strategy.
// Polling is the default: native change events are unreliable on network
// mounts, and a missed event there is a missed notification.
type Engine struct {
	store    profiles.Provider
	notifier Notifier
	logger   *slog.Logger
	strategy string
	interval time.Duration

	mu       sync.Mutex
	watching bool
	cancel   context.CancelFunc
	done     chan struct{}
}

// New creates an engine. interval is only used by the poll strategy.
func New(store profiles.Provider, notifier Notifier, logger *slog.Logger, strategy string, interval time.Duration) (*Engine, error) {
	switch strategy {
	case StrategyPoll, StrategyNative:
	default:
		return nil, fmt.Errorf("watch: unknown strategy %q", strategy)
	}
	if strategy == StrategyPoll && interval <= 0 {
		return nil, fmt.Errorf("watch: poll interval must be positive")
	}
	return &Engine{
		store:    store,
		notifier: notifier,
		logger:   logger,
		strategy: strategy,
		interval: interval,
	}, nil
}

// Start begins observation in a background goroutine. Calling Start on a
// running engine is a no-op.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.watching {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	e.cancel = cancel
	e.done = done
	e.watching = true

	go func() {
		defer close(done)
		defer func() {
			e.mu.Lock()
			e.watching = false
			e.mu.Unlock()
		}()

		var err error
		switch e.strategy {
		case StrategyNative:
			err = e.runNative(runCtx)
		default:
			err = e.runPoll(runCtx)
		}
		if err != nil && runCtx.Err() == nil {
			e.logger.Error("watch: loop exited", slog.String("error", err.Error()))
		}
	}()

	e.logger.Info("watch: started",
		slog.String("strategy", e.strategy),
		slog.String("root", e.store.Root()))
	return nil
}

// Stop releases the observer and waits for the loop to exit.
func (e *Engine) Stop() {
	e.mu.Lock()
	cancel := e.cancel
	done := e.done
	e.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	if done != nil {
		<-done
	}
	e.logger.Info("watch: stopped")
}

// IsWatching reports whether the engine is currently observing.
func (e *Engine) IsWatching() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.watching
}

// handleEvent processes one change event. Every failure is contained here:
// a bad file or unroutable path degrades only this event, never the loop.
func (e *Engine) handleEvent(ctx context.Context, ev models.ChangeEvent) {
	if ev.Kind == models.ChangeRemoved {
		// Dashboards are not expected to disappear while relevant.
		e.logger.Debug("watch: dashboard removed", slog.String("path", ev.Path))
		return
	}

	identity, ok := profiles.IdentityFromPath(ev.Path)
	if !ok {
		e.logger.Warn("watch: unroutable path, dropping event", slog.String("path", ev.Path))
		return
	}

	data, err := e.store.ReadPath(ev.Path)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			// Removed between the event and the read.
			e.logger.Debug("watch: dashboard gone before read", slog.String("path", ev.Path))
			return
		}
		e.logger.Warn("watch: read failed",
			slog.String("path", ev.Path),
			slog.String("error", err.Error()))
		return
	}

	tasks, err := parser.ParseDashboard(data)
	if err != nil {
		e.logger.Warn("watch: parse failed",
			slog.String("path", ev.Path),
			slog.String("error", err.Error()))
		return
	}

	assigned := parser.FilterAssigned(tasks)
	if len(assigned) > 0 {
		n, err := models.New(models.TypeTaskUpdate, identity, models.TaskUpdateData{
			Tasks:      assigned,
			ChangeType: ev.Kind,
			FilePath:   ev.Path,
		})
		if err != nil {
			e.logger.Warn("watch: build notification failed", slog.String("error", err.Error()))
			return
		}
		if _, _, err := e.notifier.Broadcast(ctx, n); err != nil {
			e.logger.Warn("watch: broadcast failed",
				slog.String("identity", identity),
				slog.String("error", err.Error()))
		} else {
			e.logger.Debug("watch: task update emitted",
				slog.String("identity", identity),
				slog.Int("assigned", len(assigned)))
		}
	}

	fsChange, err := models.New(models.TypeFileSystemChange, "", models.FileChangeData{
		Path:       ev.Path,
		ChangeType: ev.Kind,
	})
	if err != nil {
		return
	}
	if _, _, err := e.notifier.Broadcast(ctx, fsChange); err != nil {
		e.logger.Warn("watch: file change broadcast failed", slog.String("error", err.Error()))
	}
}
