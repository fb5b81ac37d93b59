package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/GoSim-25-26J-441/natsim/internal/probe"
	"github.com/GoSim-25-26J-441/natsim/pkg/logger"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func registerProbe(rootCmd *cobra.Command) {
	var timeout time.Duration
	subCmd := &cobra.Command{
		Use:   "probe",
		Short: "Sends ICMPv4 and ICMPv6 echo requests to the default targets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			results := probe.New(probe.DefaultTargets, timeout).Run(cmd.Context())
			printProbeResults(cmd.OutOrStdout(), results)
			return nil
		},
	}
	subCmd.Flags().DurationVar(&timeout, "timeout", 2*time.Second, "how long to wait for each reply")
	rootCmd.AddCommand(subCmd)
}

// runProbe is the best-effort probe that follows a simulation
func runProbe(ctx context.Context, out io.Writer, timeout time.Duration) {
	results := probe.New(probe.DefaultTargets, timeout).Run(ctx)
	for _, r := range results {
		if r.Err != nil {
			attrs := []any{"target", r.Target, "family", r.Family, "error", r.Err}
			if probe.PermissionDenied(r.Err) {
				attrs = append(attrs, "hint", "raw ICMP sockets need elevated privileges")
			}
			logger.Warn("reachability probe failed", attrs...)
		}
	}
	printProbeResults(out, results)
}

func printProbeResults(out io.Writer, results []probe.Result) {
	ok := color.New(color.FgGreen).SprintFunc()
	bad := color.New(color.FgRed).SprintFunc()
	for _, r := range results {
		switch {
		case r.Replied:
			fmt.Fprintf(out, "%-5s %-16s %s rtt=%s\n", r.Family, r.Target, ok("reachable"), r.RTT.Round(time.Microsecond))
		case r.Err != nil:
			fmt.Fprintf(out, "%-5s %-16s %s (%v)\n", r.Family, r.Target, bad("failed"), r.Err)
		default:
			fmt.Fprintf(out, "%-5s %-16s %s\n", r.Family, r.Target, bad("no reply"))
		}
	}
}
