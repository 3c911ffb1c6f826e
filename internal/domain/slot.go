package domain

import "time"

type SlotStatus string

const (
	SlotIdle        SlotStatus = "idle"
	SlotDownloading SlotStatus = "downloading"
	SlotPaused      SlotStatus = "paused"
	SlotRetrying    SlotStatus = "retrying"
	SlotFailed      SlotStatus = "failed"
	SlotCompleted   SlotStatus = "completed"
	SlotStale       SlotStatus = "stale"
)

// StaleAfter is how long an active slot may go without an update before it reports stale
const StaleAfter = 30 * time.Second

const (
	PhaseDownloading = "downloading"
	PhaseProcessing  = "processing"
)

// DownloadSlot is one worker's view of its current unit of work.
// The Index is stable for the lifetime of the worker.
type DownloadSlot struct {
	Index   int        `json:"index"`
	URL     string     `json:"url,omitempty"`
	LastURL string     `json:"last_url,omitempty"`
	Status  SlotStatus `json:"status"`
	Phase   string     `json:"phase,omitempty"`
	Percent float64    `json:"percent"`
	Speed   string     `json:"speed,omitempty"`
	ETA     string     `json:"eta,omitempty"`
	Attempt int        `json:"attempt"`

	// Fragment counters are only set for segmented (HLS/DASH) streams
	FragmentIndex int `json:"fragment_index,omitempty"`
	FragmentCount int `json:"fragment_count,omitempty"`

	// RetryEligible is set on a Failed slot whose URL stays in the persisted queue
	RetryEligible bool `json:"retry_eligible,omitempty"`

	LastUpdated time.Time `json:"last_updated"`
}

// Active reports whether the slot currently holds a job
func (s DownloadSlot) Active() bool {
	return s.URL != ""
}

// Progress is a single throttled update forwarded by a worker for its slot
type Progress struct {
	Percent       float64
	Speed         string
	ETA           string
	Phase         string
	FragmentIndex int
	FragmentCount int
}

// ControlFlags are process-wide switches read by workers on every iteration
type ControlFlags struct {
	Paused             bool `json:"paused"`
	ShutdownRequested  bool `json:"shutdown_requested"`
	ForceQuitRequested bool `json:"force_quit_requested"`

	// Started is true while a batch is being processed
	Started bool `json:"started"`
	// Completed is set once a batch drained without being interrupted
	Completed bool `json:"completed"`
}

type Counters struct {
	Completed               int `json:"completed"`
	Failed                  int `json:"failed"`
	TotalProcessedThisBatch int `json:"total_processed_this_batch"`
	Retries                 int `json:"retries"`
}

// Snapshot is an immutable copy of all shared state taken at a message boundary
type Snapshot struct {
	BatchID  string         `json:"batch_id,omitempty"`
	Queue    []string       `json:"queue"`
	Slots    []DownloadSlot `json:"slots"`
	Flags    ControlFlags   `json:"flags"`
	Counters Counters       `json:"counters"`
	Failed   []string       `json:"failed"`
	TakenAt  time.Time      `json:"taken_at"`
}

// Drained reports whether there is no pending or in-flight work left
func (s *Snapshot) Drained() bool {
	if len(s.Queue) > 0 {
		return false
	}
	for _, slot := range s.Slots {
		if slot.Active() {
			return false
		}
	}
	return true
}

// ActiveSlots returns the slots that currently hold a job
func (s *Snapshot) ActiveSlots() []DownloadSlot {
	var active []DownloadSlot
	for _, slot := range s.Slots {
		if slot.Active() {
			active = append(active, slot)
		}
	}
	return active
}
