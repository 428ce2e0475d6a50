package janitor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/MrEthical07/goGuard/clock"
	"github.com/rs/zerolog"
)

// ErrAlreadyStarted is returned by Start on a running Janitor.
var ErrAlreadyStarted = errors.New("janitor already started")

// Task is one periodic sweep. It returns how many entries it removed.
type Task struct {
	Name  string
	Sweep func(ctx context.Context) (int, error)
}

// Janitor runs its tasks in order on every tick of a clock.Ticker.
// Nothing runs until Start; Stop waits for an in-flight pass.
type Janitor struct {
	interval time.Duration
	clock    clock.Clock
	logger   zerolog.Logger
	tasks    []Task
	onPass   func(removed map[string]int)

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// New returns a stopped Janitor. onPass, if non-nil, is called after each
// pass with the per-task removal counts.
func New(interval time.Duration, clk clock.Clock, logger zerolog.Logger, onPass func(map[string]int), tasks ...Task) *Janitor {
	if clk == nil {
		clk = clock.Real()
	}
	return &Janitor{
		interval: interval,
		clock:    clk,
		logger:   logger.With().Str("component", "janitor").Logger(),
		tasks:    tasks,
		onPass:   onPass,
	}
}

// Start launches the sweep goroutine. It stops when ctx is canceled or
// Stop is called.
func (j *Janitor) Start(ctx context.Context) error {
	if j.interval <= 0 {
		return errors.New("janitor interval must be > 0")
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.running {
		return ErrAlreadyStarted
	}

	runCtx, cancel := context.WithCancel(ctx)
	ticker := j.clock.NewTicker(j.interval)
	j.cancel = cancel
	j.done = make(chan struct{})
	j.running = true

	go j.run(runCtx, ticker, j.done)

	j.logger.Debug().Dur("interval", j.interval).Int("tasks", len(j.tasks)).Msg("janitor started")
	return nil
}

// Stop cancels the goroutine and waits for it to exit. It is safe to call
// on a Janitor that was never started.
func (j *Janitor) Stop() {
	j.mu.Lock()
	if !j.running {
		j.mu.Unlock()
		return
	}
	cancel, done := j.cancel, j.done
	j.running = false
	j.mu.Unlock()

	cancel()
	<-done
	j.logger.Debug().Msg("janitor stopped")
}

// Running reports whether the sweep goroutine is active.
func (j *Janitor) Running() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.running
}

func (j *Janitor) run(ctx context.Context, ticker *clock.Ticker, done chan struct{}) {
	defer close(done)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.RunOnce(ctx)
		}
	}
}

// RunOnce executes every task once. A failing task is logged and does not
// prevent the rest from running.
func (j *Janitor) RunOnce(ctx context.Context) map[string]int {
	removed := make(map[string]int, len(j.tasks))
	for _, task := range j.tasks {
		if ctx.Err() != nil {
			break
		}
		n, err := task.Sweep(ctx)
		if err != nil {
			j.logger.Warn().Err(err).Str("task", task.Name).Msg("sweep failed")
			continue
		}
		removed[task.Name] = n
		if n > 0 {
			j.logger.Debug().Str("task", task.Name).Int("removed", n).Msg("sweep removed entries")
		}
	}
	if j.onPass != nil {
		j.onPass(removed)
	}
	return removed
}
