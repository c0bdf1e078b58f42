package health

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// task is a supervised polling goroutine. fn runs once immediately and
// then on every tick until the context is cancelled.
type task struct {
	name   string
	cancel context.CancelFunc
	done   chan struct{}
}

func startTask(ctx context.Context, name string, interval time.Duration, fn func(context.Context)) *task {
	ctx, cancel := context.WithCancel(ctx)
	t := &task{name: name, cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(t.done)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			t.run(ctx, fn)
			select {
			case <-ctx.Done():
				slog.Info("loop stopped", slog.String("loop", name))
				return
			case <-ticker.C:
			}
		}
	}()
	return t
}

func (t *task) run(ctx context.Context, fn func(context.Context)) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("loop iteration panicked", slog.String("loop", t.name), slog.Any("panic", r))
		}
	}()
	fn(ctx)
}

// stop cancels the task and waits up to grace for it to exit.
func (t *task) stop(grace time.Duration) bool {
	t.cancel()
	select {
	case <-t.done:
		return true
	case <-time.After(grace):
		slog.Warn("loop did not stop in time", slog.String("loop", t.name), slog.Duration("grace", grace))
		return false
	}
}

// runner owns at most one task.
type runner struct {
	mu   sync.Mutex
	task *task
}

func (r *runner) start(ctx context.Context, name string, interval time.Duration, fn func(context.Context)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.task != nil {
		select {
		case <-r.task.done:
		default:
			slog.Warn("loop already running", slog.String("loop", name))
			return false
		}
	}
	r.task = startTask(ctx, name, interval, fn)
	return true
}

func (r *runner) stop(grace time.Duration) {
	r.mu.Lock()
	t := r.task
	r.task = nil
	r.mu.Unlock()
	if t != nil {
		t.stop(grace)
	}
}

// running is false once the goroutine has exited, even before stop.
func (r *runner) running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.task == nil {
		return false
	}
	select {
	case <-r.task.done:
		return false
	default:
		return true
	}
}
