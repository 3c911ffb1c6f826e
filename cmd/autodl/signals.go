package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/datallboy/autodl/internal/app"
)

// forceQuitTimeout bounds how long a force quit waits for workers
const forceQuitTimeout = 2 * time.Second

var errForceQuit = errors.New("force quit: in-flight downloads were killed")

// superviseBatch waits for the running batch to end while handling Ctrl+C:
// the first interrupt finishes in-flight downloads, the second kills them.
// tick is called periodically for display and may be nil.
func superviseBatch(appCtx *app.Context, sigCh <-chan os.Signal, tick func()) error {
	return supervise(appCtx, sigCh, tick, 0)
}

// superviseSecondInterrupt is superviseBatch after a graceful shutdown was
// already requested
func superviseSecondInterrupt(appCtx *app.Context, sigCh <-chan os.Signal) error {
	return supervise(appCtx, sigCh, nil, 1)
}

func supervise(appCtx *app.Context, sigCh <-chan os.Signal, tick func(), interrupts int) error {
	ctrl := appCtx.Controller
	log := appCtx.Logger

	done := make(chan struct{})
	go func() {
		ctrl.Wait(context.Background())
		close(done)
	}()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return nil

		case <-ticker.C:
			if tick != nil {
				tick()
			}

		case <-sigCh:
			interrupts++
			if interrupts == 1 {
				log.Warn("Interrupt received: finishing in-flight downloads. Press Ctrl+C again to force quit.")
				go ctrl.RequestGracefulShutdown()
				continue
			}

			ctrl.RequestForceQuit()

			ctx, cancel := context.WithTimeout(context.Background(), forceQuitTimeout)
			err := ctrl.Wait(ctx)
			cancel()
			if err != nil {
				log.Error("Workers did not exit within %s", forceQuitTimeout)
			}
			return errForceQuit
		}
	}
}

func notifyInterrupts() (chan os.Signal, func()) {
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	return sigCh, func() { signal.Stop(sigCh) }
}
