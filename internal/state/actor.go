package state

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/datallboy/autodl/internal/domain"
)

// mailboxSize bounds how many messages may be in flight before Send waits
// for the processing loop to catch up.
const mailboxSize = 1024

// Actor is the single owner of all shared download state.
// Any goroutine may Send messages; only the actor's own loop applies them.
// After every applied message a fresh immutable snapshot is published,
// which is what the read accessors and Snapshot() return.
type Actor struct {
	msgs chan Message
	done chan struct{}
	now  func() time.Time

	// closeMu orders Send against Close so a message is either applied or
	// rejected with ErrActorUnavailable, never dropped.
	closeMu sync.RWMutex
	closed  bool

	current atomic.Pointer[domain.Snapshot]
	model   *model

	sigMu     sync.Mutex
	forceQuit chan struct{}
	fqClosed  bool

	lock fileLock
}

// New starts an actor using the wall clock.
func New() *Actor {
	return NewWithClock(time.Now)
}

// NewWithClock starts an actor that stamps slots with the given clock.
func NewWithClock(now func() time.Time) *Actor {
	a := &Actor{
		msgs:      make(chan Message, mailboxSize),
		done:      make(chan struct{}),
		now:       now,
		model:     &model{queue: make([]string, 0)},
		forceQuit: make(chan struct{}),
	}
	a.publish()

	go a.run()
	return a
}

func (a *Actor) run() {
	defer close(a.done)

	for msg := range a.msgs {
		msg.apply(a.model, a.now())
		a.publish()
		a.syncForceQuitSignal()
	}
}

// Send enqueues a mutation. It fails with ErrActorUnavailable once Close was called.
func (a *Actor) Send(msg Message) error {
	a.closeMu.RLock()
	defer a.closeMu.RUnlock()

	if a.closed {
		return domain.ErrActorUnavailable
	}

	a.msgs <- msg
	return nil
}

// Close stops accepting messages, applies everything already queued and
// waits for the processing loop to exit. It is safe to call more than once.
func (a *Actor) Close() {
	a.closeMu.Lock()
	if !a.closed {
		a.closed = true
		close(a.msgs)
	}
	a.closeMu.Unlock()

	<-a.done
}

// PopQueue asks the actor for the next URL and assigns it to slot in the same step.
func (a *Actor) PopQueue(slot int) (PopResult, error) {
	reply := make(chan PopResult, 1)
	if err := a.Send(popRequest{slot: slot, reply: reply}); err != nil {
		return PopResult{}, err
	}
	return <-reply, nil
}

// Flush blocks until every message sent before it has been applied,
// giving the caller read-your-writes on the accessors.
func (a *Actor) Flush() error {
	reply := make(chan struct{})
	if err := a.Send(barrier{reply: reply}); err != nil {
		return err
	}
	<-reply
	return nil
}

// ForceQuitC returns a channel that is closed once a force quit is applied.
// A new channel is handed out after the next batch starts.
func (a *Actor) ForceQuitC() <-chan struct{} {
	a.sigMu.Lock()
	defer a.sigMu.Unlock()
	return a.forceQuit
}

func (a *Actor) syncForceQuitSignal() {
	requested := a.current.Load().Flags.ForceQuitRequested

	a.sigMu.Lock()
	defer a.sigMu.Unlock()

	switch {
	case requested && !a.fqClosed:
		close(a.forceQuit)
		a.fqClosed = true
	case !requested && a.fqClosed:
		a.forceQuit = make(chan struct{})
		a.fqClosed = false
	}
}

// publish copies the model into a new snapshot. Only the loop (and New,
// before the loop starts) may call it.
func (a *Actor) publish() {
	snap := a.model.snapshot()
	snap.TakenAt = a.now()
	a.current.Store(snap)
}

func (a *Actor) IsPaused() bool {
	return a.current.Load().Flags.Paused
}

func (a *Actor) IsShuttingDown() bool {
	return a.current.Load().Flags.ShutdownRequested
}

func (a *Actor) IsForceQuit() bool {
	return a.current.Load().Flags.ForceQuitRequested
}

func (a *Actor) IsStarted() bool {
	return a.current.Load().Flags.Started
}

func (a *Actor) IsCompleted() bool {
	return a.current.Load().Flags.Completed
}

func (a *Actor) Flags() domain.ControlFlags {
	return a.current.Load().Flags
}

func (a *Actor) Counters() domain.Counters {
	return a.current.Load().Counters
}

// Queue returns a copy of the in-memory queue
func (a *Actor) Queue() []string {
	q := a.current.Load().Queue
	out := make([]string, len(q))
	copy(out, q)
	return out
}

// Drained reports whether nothing is queued and no slot holds a job
func (a *Actor) Drained() bool {
	return a.current.Load().Drained()
}

// Snapshot returns a private copy of the state as of the last applied message.
// Active slots that have not been updated for domain.StaleAfter report SlotStale.
func (a *Actor) Snapshot() *domain.Snapshot {
	snap := cloneSnapshot(a.current.Load())

	now := a.now()
	for i := range snap.Slots {
		s := &snap.Slots[i]
		if s.Active() && s.Status == domain.SlotDownloading && now.Sub(s.LastUpdated) > domain.StaleAfter {
			s.Status = domain.SlotStale
		}
	}
	return snap
}

func cloneSnapshot(src *domain.Snapshot) *domain.Snapshot {
	dst := *src
	dst.Queue = append(make([]string, 0, len(src.Queue)), src.Queue...)
	dst.Slots = append(make([]domain.DownloadSlot, 0, len(src.Slots)), src.Slots...)
	dst.Failed = append(make([]string, 0, len(src.Failed)), src.Failed...)
	return &dst
}
