package main

import (
	"fmt"
	"io"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/datallboy/autodl/internal/app"
)

func newRunCmd(opts *rootOptions) *cobra.Command {
	var noProgress bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Download every URL in the links file, then exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			appCtx, err := opts.bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer shutdown(appCtx)

			sigCh, stop := notifyInterrupts()
			defer stop()

			if err := appCtx.Controller.StartProcessing(cmd.Context(), 0); err != nil {
				return err
			}
			if !appCtx.Controller.Running() {
				fmt.Printf("Nothing to download in %s\n", appCtx.Queue.Path())
				return nil
			}

			var tick func()
			if !noProgress {
				bar := newBatchBar(appCtx)
				tick = bar.render
				defer bar.finish()
			}

			err = superviseBatch(appCtx, sigCh, tick)
			printSummary(appCtx)
			return err
		},
	}

	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "disable the terminal progress bar")
	return cmd
}

// batchBar renders overall batch progress from state snapshots
type batchBar struct {
	app *app.Context
	bar *progressbar.ProgressBar

	// log mirror target before the bar took over
	prevStdout io.Writer
}

func newBatchBar(appCtx *app.Context) *batchBar {
	snap := appCtx.State.Snapshot()
	total := len(snap.Queue) + len(snap.ActiveSlots())

	return &batchBar{
		app: appCtx,
		// Log lines share the bar's stream so stdout carries only the summary
		prevStdout: appCtx.Logger.SetStdout(os.Stderr),
		bar: progressbar.NewOptions(total,
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetDescription("Starting"),
			progressbar.OptionSetItsString("url"),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(30),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "=",
				SaucerHead:    ">",
				SaucerPadding: " ",
				BarStart:      "[",
				BarEnd:        "]",
			}),
		),
	}
}

func (b *batchBar) render() {
	snap := b.app.State.Snapshot()
	c := snap.Counters

	active := snap.ActiveSlots()
	desc := fmt.Sprintf("%d active, %d failed", len(active), c.Failed)
	if len(active) > 0 {
		s := active[0]
		desc = fmt.Sprintf("%s | slot %d %.1f%% %s", desc, s.Index, s.Percent, s.Speed)
	}
	if snap.Flags.Paused {
		desc = "Paused | " + desc
	}

	b.bar.Describe(desc)
	b.bar.Set(c.Completed + c.Failed)
}

func (b *batchBar) finish() {
	b.render()
	b.bar.Finish()
	fmt.Fprintln(os.Stderr)
	b.app.Logger.SetStdout(b.prevStdout)
}

func printSummary(appCtx *app.Context) {
	snap := appCtx.State.Snapshot()
	c := snap.Counters

	fmt.Printf("\nCompleted: %d  Failed: %d  Retries: %d  Remaining: %d\n",
		c.Completed, c.Failed, c.Retries, len(snap.Queue))
	for _, u := range snap.Failed {
		fmt.Printf("  failed: %s\n", u)
	}
}
