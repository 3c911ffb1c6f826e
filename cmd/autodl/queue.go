package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/datallboy/autodl/internal/queue"
)

func newQueueCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and edit the links file",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "Print the queued URLs",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				appCtx, err := opts.bootstrapLite()
				if err != nil {
					return err
				}
				defer appCtx.Close()

				urls, err := appCtx.Queue.Load()
				if err != nil {
					return err
				}
				for i, u := range urls {
					fmt.Fprintf(cmd.OutOrStdout(), "%3d  %s\n", i+1, u)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "add URL...",
			Short: "Append URLs to the links file",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				appCtx, err := opts.bootstrapLite()
				if err != nil {
					return err
				}
				defer appCtx.Close()

				var valid []string
				for _, u := range args {
					if !queue.ValidURL(u) {
						fmt.Fprintf(cmd.ErrOrStderr(), "skipping invalid URL: %s\n", u)
						continue
					}
					valid = append(valid, u)
				}
				if len(valid) == 0 {
					return fmt.Errorf("no valid http(s) URLs given")
				}

				if err := appCtx.Queue.Append(valid...); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added %d URL(s) to %s\n", len(valid), appCtx.Queue.Path())
				return nil
			},
		},
		&cobra.Command{
			Use:   "remove URL",
			Short: "Remove the first occurrence of a URL",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				appCtx, err := opts.bootstrapLite()
				if err != nil {
					return err
				}
				defer appCtx.Close()

				return appCtx.Queue.RemoveValue(args[0])
			},
		},
		&cobra.Command{
			Use:   "sanitize",
			Short: "Drop every line that is not an http(s) URL",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				appCtx, err := opts.bootstrapLite()
				if err != nil {
					return err
				}
				defer appCtx.Close()

				res, err := appCtx.Queue.Sanitize()
				if err != nil {
					return err
				}
				for _, d := range res.Dropped {
					fmt.Fprintf(cmd.OutOrStdout(), "dropped: %s\n", d)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Kept %d, dropped %d\n", len(res.Kept), len(res.Dropped))
				return nil
			},
		},
	)

	return cmd
}
