package engine

import (
	"context"
	"sync"
	"time"

	"github.com/datallboy/autodl/internal/app"
	"github.com/datallboy/autodl/internal/domain"
	"github.com/datallboy/autodl/internal/infra/config"
	"github.com/datallboy/autodl/internal/infra/logger"
	"github.com/datallboy/autodl/internal/queue"
	"github.com/datallboy/autodl/internal/state"
	"github.com/datallboy/autodl/internal/ytdlp"
	"github.com/google/uuid"
)

// DefaultPollInterval is how often idle workers and the batch monitor
// look at the control flags.
const DefaultPollInterval = 100 * time.Millisecond

// historyTimeout bounds a single history write so a slow database never
// holds a worker.
const historyTimeout = 5 * time.Second

// Manager runs batches: it loads the links file into the state actor,
// spawns one worker per slot and tracks when the batch is over.
type Manager struct {
	cfg      *config.Config
	log      *logger.Logger
	state    *state.Actor
	queue    *queue.Guarded
	launcher ytdlp.Launcher
	checker  app.DependencyChecker
	history  domain.HistoryStore

	now          func() time.Time
	pollInterval time.Duration

	// base outlives the request that started a batch
	base context.Context

	mu      sync.Mutex
	running bool
	wg      sync.WaitGroup
	done    chan struct{}
}

// NewManager wires a Manager from the shared application context
func NewManager(app *app.Context) *Manager {
	return &Manager{
		cfg:          app.Config,
		log:          app.Logger,
		state:        app.State,
		queue:        app.Queue,
		launcher:     app.Launcher,
		checker:      app.Checker,
		history:      app.History,
		now:          time.Now,
		pollInterval: DefaultPollInterval,
		base:         context.Background(),
		done:         closedChan(),
	}
}

func closedChan() chan struct{} {
	c := make(chan struct{})
	close(c)
	return c
}

// StartProcessing validates dependencies, loads the persisted queue and
// starts concurrency workers. A non-positive concurrency falls back to the
// configured value. An empty queue completes the batch immediately.
func (m *Manager) StartProcessing(ctx context.Context, concurrency int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return domain.ErrAlreadyRunning
	}

	if concurrency <= 0 {
		concurrency = m.cfg.Download.Concurrency
	}

	if m.checker != nil {
		if err := m.checker.Validate(ctx); err != nil {
			return err
		}
	}

	urls, err := m.queue.Load()
	if err != nil {
		return err
	}

	batchID := uuid.NewString()

	if err := m.state.Send(state.LoadQueue{Items: urls}); err != nil {
		return err
	}
	m.state.Send(state.StartBatch{
		ID:            batchID,
		Concurrency:   concurrency,
		ResetCounters: m.cfg.Download.ResetStatsOnNewBatch,
	})

	if len(urls) == 0 {
		m.state.Send(state.FinishBatch{Completed: true})
		m.log.Info("Queue %s is empty, nothing to download", m.queue.Path())
		return m.state.Flush()
	}

	// Workers must see the force quit channel of this batch
	if err := m.state.Flush(); err != nil {
		return err
	}
	forceQuit := m.state.ForceQuitC()

	m.running = true
	m.done = make(chan struct{})

	m.log.Info("Starting batch %s: %d URLs, %d workers", batchID, len(urls), concurrency)

	for i := 0; i < concurrency; i++ {
		w := &worker{m: m, slot: i, batchID: batchID, forceQuit: forceQuit}
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			w.run(m.base)
		}()
	}

	go m.monitor(batchID, forceQuit, m.done)

	return nil
}

// monitor marks the batch completed once it drains, then waits for every
// worker to exit and tears the batch down.
func (m *Manager) monitor(batchID string, forceQuit <-chan struct{}, done chan struct{}) {
	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

watch:
	for {
		select {
		case <-ticker.C:
		case <-forceQuit:
			break watch
		}

		flags := m.state.Flags()
		if flags.ForceQuitRequested || flags.ShutdownRequested {
			break
		}
		if m.state.Drained() {
			m.state.Send(state.MarkCompleted{})
			break
		}
	}

	m.wg.Wait()

	flags := m.state.Flags()
	completed := m.state.Drained() && !flags.ForceQuitRequested
	m.state.Send(state.FinishBatch{Completed: completed})
	m.state.Flush()

	c := m.state.Counters()
	switch {
	case flags.ForceQuitRequested:
		m.log.Warn("Batch %s force quit: %d completed, %d failed", batchID, c.Completed, c.Failed)
	case completed:
		m.log.Info("Batch %s finished: %d completed, %d failed, %d retries", batchID, c.Completed, c.Failed, c.Retries)
	default:
		m.log.Info("Batch %s stopped: %d completed, %d failed, %d left in queue", batchID, c.Completed, c.Failed, len(m.state.Queue()))
	}

	m.mu.Lock()
	m.running = false
	close(done)
	m.mu.Unlock()
}

// RequestGracefulShutdown lets in-flight jobs finish, starts no new ones
// and blocks until every worker has exited.
func (m *Manager) RequestGracefulShutdown() error {
	done, err := m.current()
	if err != nil {
		return err
	}

	m.log.Info("Shutdown requested: finishing in-flight downloads")
	if err := m.state.Send(state.RequestShutdown{}); err != nil {
		return err
	}

	<-done
	return nil
}

// RequestForceQuit kills in-flight downloads without finalizing them.
// It returns immediately; use Wait to join the workers.
func (m *Manager) RequestForceQuit() error {
	if _, err := m.current(); err != nil {
		return err
	}

	m.log.Warn("Force quit requested: killing in-flight downloads")
	return m.state.Send(state.RequestForceQuit{})
}

func (m *Manager) Pause() error {
	m.log.Info("Pausing: no new downloads will start")
	return m.state.Send(state.SetPaused{Paused: true})
}

func (m *Manager) Resume() error {
	m.log.Info("Resuming downloads")
	return m.state.Send(state.SetPaused{Paused: false})
}

// Wait blocks until the current batch is over or ctx is done
func (m *Manager) Wait(ctx context.Context) error {
	m.mu.Lock()
	done := m.done
	m.mu.Unlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *Manager) current() (chan struct{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return nil, domain.ErrNotRunning
	}
	return m.done, nil
}

func (m *Manager) recordHistory(rec *domain.HistoryRecord) {
	if m.history == nil {
		return
	}

	ctx, cancel := context.WithTimeout(m.base, historyTimeout)
	defer cancel()

	if err := m.history.SaveRecord(ctx, rec); err != nil {
		m.log.Error("Failed to save history for %s: %v", rec.URL, err)
	}
}
