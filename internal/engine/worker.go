package engine

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/datallboy/autodl/internal/domain"
	"github.com/datallboy/autodl/internal/progress"
	"github.com/datallboy/autodl/internal/state"
	"github.com/datallboy/autodl/internal/ytdlp"
	"github.com/segmentio/ksuid"
)

type jobKind int

const (
	jobSuccess jobKind = iota
	jobRetryable
	jobFatal
	jobAborted
)

// jobResult is everything one attempt can end in. Job errors never leave
// the worker as anything else.
type jobResult struct {
	kind jobKind
	err  error
}

func success() jobResult            { return jobResult{kind: jobSuccess} }
func retryable(err error) jobResult { return jobResult{kind: jobRetryable, err: err} }
func fatal(err error) jobResult     { return jobResult{kind: jobFatal, err: err} }
func aborted() jobResult            { return jobResult{kind: jobAborted, err: errAborted} }

var errAborted = errors.New("aborted by force quit")

// worker owns one slot for the lifetime of a batch
type worker struct {
	m         *Manager
	slot      int
	batchID   string
	forceQuit <-chan struct{}
}

// run pulls jobs until the batch completes, a shutdown is requested or the
// actor goes away.
func (w *worker) run(ctx context.Context) {
	st := w.m.state

	for {
		flags := st.Flags()
		if flags.ForceQuitRequested || flags.ShutdownRequested || flags.Completed {
			return
		}

		if flags.Paused {
			if !w.sleep(ctx, w.m.pollInterval) {
				return
			}
			continue
		}

		res, err := st.PopQueue(w.slot)
		if err != nil {
			w.m.log.Error("[Slot %d] state unavailable, stopping: %v", w.slot, err)
			return
		}

		if res.Outcome != state.PopAssigned {
			if !w.sleep(ctx, w.m.pollInterval) {
				return
			}
			continue
		}

		w.process(ctx, res.URL)
	}
}

// process runs one URL through every attempt and finalizes it
func (w *worker) process(ctx context.Context, url string) {
	started := w.m.now()
	retry := w.m.cfg.Retry

	w.m.log.Info("[Slot %d] Starting download: %s", w.slot, url)

	attempt := 1
	for {
		res := w.execute(ctx, url)

		if res.kind == jobRetryable && retry.Enabled && attempt < retry.MaxAttempts {
			attempt++
			w.m.log.Warn("[Retry] %s: Attempt %d/%d in %s - Error: %v", url, attempt, retry.MaxAttempts, retry.Delay, res.err)
			w.send(state.RetrySlot{Slot: w.slot, Attempt: attempt})

			if !w.sleep(ctx, retry.Delay) {
				res = aborted()
			} else {
				continue
			}
		}

		w.finalize(url, res, attempt, started)
		return
	}
}

// execute runs a single attempt
func (w *worker) execute(ctx context.Context, url string) jobResult {
	if w.aborting(ctx) {
		return aborted()
	}

	jobCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Force quit cancels the attempt, which kills the process tree
	go func() {
		select {
		case <-w.forceQuit:
			cancel()
		case <-jobCtx.Done():
		}
	}()

	proc, err := w.m.launcher.Start(jobCtx, ytdlp.BuildArgs(w.m.cfg.Download, url))
	if err != nil {
		w.m.log.Error("[Slot %d] Error spawning downloader for %s: %v", w.slot, url, err)
		return fatal(err)
	}

	out := w.stream(url, proc.Output())

	code, waitErr := proc.Wait()

	if w.aborting(ctx) {
		w.m.log.Warn("[Slot %d] Force quit: killed download of %s", w.slot, url)
		return aborted()
	}

	if waitErr != nil {
		return fatal(fmt.Errorf("%w: wait: %w", domain.ErrProcessLaunch, waitErr))
	}

	if code == 0 && !out.sawFatal {
		return success()
	}

	reason := out.lastError
	if reason == "" {
		reason = fmt.Sprintf("yt-dlp exited with code %d", code)
	}

	switch {
	case out.sawFatal:
		return fatal(fmt.Errorf("%w: %s", domain.ErrFatalJob, reason))
	case out.sawNetwork:
		return retryable(fmt.Errorf("%w: %s", domain.ErrNetworkClass, reason))
	default:
		return fatal(errors.New(reason))
	}
}

type streamSummary struct {
	sawFatal   bool
	sawNetwork bool
	lastError  string
}

// stream drains the process output, reporting throttled progress
func (w *worker) stream(url string, r io.Reader) streamSummary {
	var sum streamSummary
	th := newThrottle(ProgressInterval, w.m.now)

	var pending *domain.Progress
	flush := func() {
		if pending != nil {
			w.send(state.UpdateSlotProgress{Slot: w.slot, Progress: *pending})
			pending = nil
		}
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for sc.Scan() {
		ev := progress.Parse(sc.Text())

		switch ev.Kind {
		case progress.KindProgress, progress.KindFragment:
			p := toProgress(ev)
			if th.Allow(ev.Final()) {
				pending = &p
				flush()
			} else {
				pending = &p
			}

		case progress.KindPostProcess:
			flush()
			w.send(state.UpdateSlotProgress{
				Slot:     w.slot,
				Progress: domain.Progress{Percent: 100, Phase: domain.PhaseProcessing},
			})
			w.m.log.Info("[Slot %d] %s", w.slot, ev.Message)

		case progress.KindDestination, progress.KindAlreadyDownloaded:
			w.m.log.Info("[Slot %d] %s", w.slot, ev.Message)

		case progress.KindError:
			sum.lastError = ev.Message
			switch ev.ErrorKind {
			case progress.ErrorFatal:
				sum.sawFatal = true
			case progress.ErrorNetwork:
				sum.sawNetwork = true
			}
			w.m.log.Warn("[Slot %d] %s (%s)", w.slot, ev.Message, ev.ErrorKind)

		case progress.KindInfo:
			w.m.log.Debug("[Slot %d] %s", w.slot, ev.Message)
		}
	}

	if err := sc.Err(); err != nil {
		w.m.log.Warn("[Slot %d] output of %s unreadable: %v", w.slot, url, err)
		// The process blocks on a full pipe unless we keep reading
		io.Copy(io.Discard, r)
	}

	flush()
	return sum
}

func toProgress(ev progress.Event) domain.Progress {
	return domain.Progress{
		Percent:       ev.Percent,
		Speed:         ev.Speed,
		ETA:           ev.ETA,
		Phase:         domain.PhaseDownloading,
		FragmentIndex: ev.FragmentIndex,
		FragmentCount: ev.FragmentCount,
	}
}

// finalize persists the outcome: file removal on success, then one
// FinishJob so counters and slot change together.
func (w *worker) finalize(url string, res jobResult, attempts int, started time.Time) {
	rec := &domain.HistoryRecord{
		ID:         ksuid.New().String(),
		BatchID:    w.batchID,
		URL:        url,
		Attempts:   attempts,
		StartedAt:  started,
		FinishedAt: w.m.now(),
	}

	switch res.kind {
	case jobSuccess:
		if err := w.m.queue.RemoveValue(url); err != nil {
			w.m.log.Error("[Slot %d] Failed to remove %s from %s: %v", w.slot, url, w.m.queue.Path(), err)
		}
		w.send(state.FinishJob{Slot: w.slot, Outcome: domain.OutcomeCompleted})
		rec.Outcome = domain.OutcomeCompleted
		w.m.log.Info("[Slot %d] Completed: %s", w.slot, url)

	case jobAborted:
		w.send(state.FinishJob{Slot: w.slot, Outcome: domain.OutcomeAborted})
		rec.Outcome = domain.OutcomeAborted
		rec.Error = res.err.Error()
		w.m.log.Warn("[Slot %d] Download aborted due to force quit: %s", w.slot, url)

	default:
		w.send(state.FinishJob{Slot: w.slot, Outcome: domain.OutcomeFailed})
		rec.Outcome = domain.OutcomeFailed
		if res.err != nil {
			rec.Error = res.err.Error()
		}
		if attempts > 1 {
			w.m.log.Error("[FAIL] %s failed after %d attempts: %v", url, attempts, res.err)
		} else {
			w.m.log.Error("[FAIL] %s: %v", url, res.err)
		}
	}

	w.m.recordHistory(rec)
}

// send applies a state update, logging it when the actor is gone
func (w *worker) send(msg state.Message) {
	if err := w.m.state.Send(msg); err != nil {
		w.m.log.Warn("[Slot %d] state update %T lost: %v", w.slot, msg, err)
	}
}

func (w *worker) aborting(ctx context.Context) bool {
	if ctx.Err() != nil {
		return true
	}
	select {
	case <-w.forceQuit:
		return true
	default:
		return false
	}
}

// sleep waits d unless a force quit or cancellation comes first
func (w *worker) sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return true
	case <-w.forceQuit:
		return false
	case <-ctx.Done():
		return false
	}
}
