package state

import (
	"time"

	"github.com/datallboy/autodl/internal/domain"
)

// Message is a state mutation request. Only types in this package implement it.
type Message interface {
	apply(m *model, now time.Time)
}

// model is the mutable state. It is touched exclusively by the actor loop.
type model struct {
	batchID  string
	queue    []string
	slots    []domain.DownloadSlot
	flags    domain.ControlFlags
	counters domain.Counters
	failed   []string
}

func (m *model) snapshot() *domain.Snapshot {
	return &domain.Snapshot{
		BatchID:  m.batchID,
		Queue:    append(make([]string, 0, len(m.queue)), m.queue...),
		Slots:    append(make([]domain.DownloadSlot, 0, len(m.slots)), m.slots...),
		Flags:    m.flags,
		Counters: m.counters,
		Failed:   append(make([]string, 0, len(m.failed)), m.failed...),
	}
}

func (m *model) slot(i int) *domain.DownloadSlot {
	if i < 0 || i >= len(m.slots) {
		return nil
	}
	return &m.slots[i]
}

// idleStatus is what an empty slot shows given the current flags
func (m *model) idleStatus() domain.SlotStatus {
	if m.flags.Paused {
		return domain.SlotPaused
	}
	return domain.SlotIdle
}

// LoadQueue replaces the in-memory queue, e.g. after (re)reading links.txt
type LoadQueue struct {
	Items []string
}

func (msg LoadQueue) apply(m *model, _ time.Time) {
	m.queue = append(make([]string, 0, len(msg.Items)), msg.Items...)
}

// AddToQueue appends URLs to the end of the queue
type AddToQueue struct {
	URLs []string
}

func (msg AddToQueue) apply(m *model, _ time.Time) {
	m.queue = append(m.queue, msg.URLs...)
}

// RemoveQueueItem drops the first queued occurrence of URL. Absent values are ignored.
type RemoveQueueItem struct {
	URL string
}

func (msg RemoveQueueItem) apply(m *model, _ time.Time) {
	for i, u := range m.queue {
		if u == msg.URL {
			m.queue = append(m.queue[:i], m.queue[i+1:]...)
			return
		}
	}
}

// ReorderQueueItem moves the item at From to position To. Out of range indexes are ignored.
type ReorderQueueItem struct {
	From int
	To   int
}

func (msg ReorderQueueItem) apply(m *model, _ time.Time) {
	n := len(m.queue)
	if msg.From < 0 || msg.From >= n || msg.To < 0 || msg.To >= n || msg.From == msg.To {
		return
	}

	item := m.queue[msg.From]
	m.queue = append(m.queue[:msg.From], m.queue[msg.From+1:]...)
	m.queue = append(m.queue[:msg.To], append([]string{item}, m.queue[msg.To:]...)...)
}

// PopOutcome tells a worker what PopQueue did
type PopOutcome int

const (
	// PopAssigned means URL was taken off the queue and assigned to the slot
	PopAssigned PopOutcome = iota
	// PopEmpty means nothing is queued
	PopEmpty
	// PopRefused means the flags forbid starting new work (paused, shutdown, force quit, batch done)
	PopRefused
)

type PopResult struct {
	Outcome PopOutcome
	URL     string
}

type popRequest struct {
	slot  int
	reply chan PopResult
}

func (msg popRequest) apply(m *model, now time.Time) {
	msg.reply <- m.pop(msg.slot, now)
}

func (m *model) pop(i int, now time.Time) PopResult {
	s := m.slot(i)
	if s == nil || s.Active() {
		return PopResult{Outcome: PopRefused}
	}

	f := m.flags
	if f.Paused || f.ShutdownRequested || f.ForceQuitRequested || f.Completed {
		return PopResult{Outcome: PopRefused}
	}

	if len(m.queue) == 0 {
		return PopResult{Outcome: PopEmpty}
	}

	url := m.queue[0]
	m.queue = m.queue[1:]

	*s = domain.DownloadSlot{
		Index:       s.Index,
		URL:         url,
		Status:      domain.SlotDownloading,
		Phase:       domain.PhaseDownloading,
		Attempt:     1,
		LastUpdated: now,
	}

	return PopResult{Outcome: PopAssigned, URL: url}
}

type barrier struct {
	reply chan struct{}
}

func (msg barrier) apply(*model, time.Time) {
	close(msg.reply)
}

// UpdateSlotProgress records parser output for an active slot.
// Percent never goes backwards within one job.
type UpdateSlotProgress struct {
	Slot     int
	Progress domain.Progress
}

func (msg UpdateSlotProgress) apply(m *model, now time.Time) {
	s := m.slot(msg.Slot)
	if s == nil || !s.Active() {
		return
	}

	p := msg.Progress
	if p.Percent > s.Percent {
		s.Percent = min(p.Percent, 100)
	}
	if p.Speed != "" {
		s.Speed = p.Speed
	}
	if p.ETA != "" {
		s.ETA = p.ETA
	}
	if p.Phase != "" {
		s.Phase = p.Phase
	}
	if p.FragmentCount > 0 {
		s.FragmentIndex = p.FragmentIndex
		s.FragmentCount = p.FragmentCount
	}

	s.Status = domain.SlotDownloading
	s.LastUpdated = now
}

// SetSlotStatus overrides a slot's status. Setting Idle also releases the slot's job.
type SetSlotStatus struct {
	Slot   int
	Status domain.SlotStatus
}

func (msg SetSlotStatus) apply(m *model, now time.Time) {
	s := m.slot(msg.Slot)
	if s == nil {
		return
	}

	if msg.Status == domain.SlotIdle {
		if s.URL != "" {
			s.LastURL = s.URL
		}
		s.URL = ""
		s.Status = m.idleStatus()
	} else {
		s.Status = msg.Status
	}
	s.LastUpdated = now
}

// RetrySlot marks an active slot as waiting for another attempt and counts the retry
type RetrySlot struct {
	Slot    int
	Attempt int
}

func (msg RetrySlot) apply(m *model, now time.Time) {
	s := m.slot(msg.Slot)
	if s == nil || !s.Active() {
		return
	}

	s.Status = domain.SlotRetrying
	s.Attempt = msg.Attempt
	s.Speed = ""
	s.ETA = ""
	s.LastUpdated = now
	m.counters.Retries++
}

// FinishJob is the finalize step of a job: slot status, counters and the
// failed list change together so no snapshot sees half of it.
type FinishJob struct {
	Slot    int
	Outcome domain.JobOutcome
}

func (msg FinishJob) apply(m *model, now time.Time) {
	s := m.slot(msg.Slot)
	if s == nil || !s.Active() {
		return
	}

	url := s.URL
	s.LastURL = url
	s.URL = ""
	s.Speed = ""
	s.ETA = ""
	s.LastUpdated = now

	switch msg.Outcome {
	case domain.OutcomeCompleted:
		s.Status = domain.SlotCompleted
		s.Percent = 100
		m.counters.Completed++
		m.counters.TotalProcessedThisBatch++
	case domain.OutcomeFailed:
		s.Status = domain.SlotFailed
		s.RetryEligible = true
		m.counters.Failed++
		m.counters.TotalProcessedThisBatch++
		m.failed = append(m.failed, url)
	default:
		s.Status = m.idleStatus()
	}
}

type SetPaused struct {
	Paused bool
}

func (msg SetPaused) apply(m *model, _ time.Time) {
	m.flags.Paused = msg.Paused

	for i := range m.slots {
		s := &m.slots[i]
		if s.Active() {
			continue
		}
		switch {
		case msg.Paused && s.Status == domain.SlotIdle:
			s.Status = domain.SlotPaused
		case !msg.Paused && s.Status == domain.SlotPaused:
			s.Status = domain.SlotIdle
		}
	}
}

type RequestShutdown struct{}

func (RequestShutdown) apply(m *model, _ time.Time) {
	m.flags.ShutdownRequested = true
}

type RequestForceQuit struct{}

func (RequestForceQuit) apply(m *model, _ time.Time) {
	m.flags.ForceQuitRequested = true
}

type IncrementCompleted struct{}

func (IncrementCompleted) apply(m *model, _ time.Time) {
	m.counters.Completed++
	m.counters.TotalProcessedThisBatch++
}

type IncrementFailed struct{}

func (IncrementFailed) apply(m *model, _ time.Time) {
	m.counters.Failed++
	m.counters.TotalProcessedThisBatch++
}

type IncrementRetries struct{}

func (IncrementRetries) apply(m *model, _ time.Time) {
	m.counters.Retries++
}

type ResetCounters struct{}

func (ResetCounters) apply(m *model, _ time.Time) {
	m.counters = domain.Counters{}
}

// StartBatch prepares Concurrency idle slots and clears the lifecycle flags
type StartBatch struct {
	ID            string
	Concurrency   int
	ResetCounters bool
}

func (msg StartBatch) apply(m *model, now time.Time) {
	m.batchID = msg.ID
	m.flags = domain.ControlFlags{Started: true}
	if msg.ResetCounters {
		m.counters = domain.Counters{}
	}

	m.slots = make([]domain.DownloadSlot, msg.Concurrency)
	for i := range m.slots {
		m.slots[i] = domain.DownloadSlot{Index: i, Status: domain.SlotIdle, LastUpdated: now}
	}
}

// FinishBatch tears down the slots once every worker has exited
type FinishBatch struct {
	Completed bool
}

func (msg FinishBatch) apply(m *model, _ time.Time) {
	m.flags.Started = false
	m.flags.Completed = msg.Completed
	m.slots = nil
}

// MarkCompleted tells idle workers the batch has drained
type MarkCompleted struct{}

func (MarkCompleted) apply(m *model, _ time.Time) {
	m.flags.Completed = true
}

// RequeueFailed moves every failed URL back to the end of the queue
type RequeueFailed struct{}

func (RequeueFailed) apply(m *model, _ time.Time) {
	m.queue = append(m.queue, m.failed...)
	m.failed = nil
	m.flags.Completed = false
}

// TouchSlots refreshes every active slot's timestamp to dismiss stale indicators
type TouchSlots struct{}

func (TouchSlots) apply(m *model, now time.Time) {
	for i := range m.slots {
		if m.slots[i].Active() {
			m.slots[i].LastUpdated = now
		}
	}
}
