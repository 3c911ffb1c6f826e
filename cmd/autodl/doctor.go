package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/datallboy/autodl/internal/platform"
)

func newDoctorCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check external binaries and host resources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			appCtx, err := opts.bootstrapLite()
			if err != nil {
				return err
			}
			defer appCtx.Close()

			out := cmd.OutOrStdout()
			sys := platform.ReadSystemInfo()

			fmt.Fprintf(out, "System: %s/%s, %d CPUs", sys.OS, sys.Arch, sys.LogicalCPUs)
			if sys.CPUModel != "" {
				fmt.Fprintf(out, " (%s)", sys.CPUModel)
			}
			fmt.Fprintf(out, "\nMemory: %.1f GB available of %.1f GB\n", sys.MemAvailGB, sys.MemTotalGB)
			fmt.Fprintf(out, "Concurrency: configured %d, suggested %d\n\n", appCtx.Config.Download.Concurrency, sys.SuggestedMax)

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "BINARY\tPATH\tVERSION")
			for _, st := range appCtx.Checker.Status(cmd.Context()) {
				if st.Error != "" {
					fmt.Fprintf(tw, "%s\t-\t%s\n", st.Name, st.Error)
					continue
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", st.Name, st.Path, st.Version)
			}
			tw.Flush()

			return appCtx.Checker.Validate(cmd.Context())
		},
	}
}
