package main

import (
	"fmt"

	"github.com/GoSim-25-26J-441/natsim/pkg/config"
	"github.com/spf13/cobra"
)

func registerInitConfig(rootCmd *cobra.Command) {
	var path string
	subCmd := &cobra.Command{
		Use:   "init-config",
		Short: "Writes the default configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			created, err := config.WriteDefault(path, config.Default())
			if err != nil {
				return err
			}
			if created {
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "%s already exists, left unchanged\n", path)
			}
			return nil
		},
	}
	subCmd.Flags().StringVar(&path, "config", "config.yaml", "path of the configuration file")
	rootCmd.AddCommand(subCmd)
}
