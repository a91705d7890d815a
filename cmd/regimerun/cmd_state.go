package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sawpanic/regimerun/internal/config"
	"github.com/sawpanic/regimerun/internal/regime"
	"github.com/sawpanic/regimerun/internal/state"
)

func newStateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Inspect or reset the persisted engine state",
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the persisted state as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(flagConfig)
			if err != nil {
				return err
			}

			st, reset, err := state.NewFileStore(cfg.Storage.StatePath).Load()
			if err != nil {
				return err
			}
			if reset {
				fmt.Fprintln(os.Stderr, "note: no usable state on disk, showing cold-start state")
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(st)
		},
	}

	resetCmd := &cobra.Command{
		Use:   "reset",
		Short: "Reset the persisted state to a cold start",
		Long:  "Replaces the state file with a fresh TRANSITION cold-start state. The next cycle carries a STATE_RESET risk flag.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(flagConfig)
			if err != nil {
				return err
			}

			store := state.NewFileStore(cfg.Storage.StatePath)
			if err := store.Save(regime.NewState()); err != nil {
				return err
			}
			log.Info().Str("path", cfg.Storage.StatePath).Msg("Engine state reset")
			return nil
		},
	}

	cmd.AddCommand(showCmd)
	cmd.AddCommand(resetCmd)
	return cmd
}
