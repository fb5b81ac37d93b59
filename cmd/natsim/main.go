// Command natsim runs dual-path network performance simulations from the
// command line.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "natsim",
		Short:         "Simulates direct vs address-shared network paths",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	registerSimulate(rootCmd)
	registerInitConfig(rootCmd)
	registerProbe(rootCmd)
	return rootCmd
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
