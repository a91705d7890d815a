package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	var printSnapshot bool
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a single detection cycle",
		Long:  "Fetches market data, runs one classification cycle, persists the updated state and writes the snapshot.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			a, err := newApp(ctx, flagConfig, nil)
			if err != nil {
				return err
			}
			defer a.close()

			snap, err := a.runCycle(ctx)
			if err != nil {
				return fmt.Errorf("detection cycle failed: %w", err)
			}

			if printSnapshot {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(snap)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&printSnapshot, "print", false, "Print the snapshot JSON to stdout")
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "Overall cycle timeout")
	return cmd
}
