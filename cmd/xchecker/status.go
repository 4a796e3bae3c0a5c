package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xchecker-dev/xchecker/internal/orchestrator"
	"github.com/xchecker-dev/xchecker/internal/receipt"
	"github.com/xchecker-dev/xchecker/internal/spec"
)

var statusCmd = &cobra.Command{
	Use:   "status <spec-id>",
	Short: "Show the most recent receipt for every phase of a spec",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		specID := args[0]
		home := cfgViper.GetString("home")
		if home == "" {
			h, err := orchestrator.Home()
			if err != nil {
				return err
			}
			home = h
		}

		mgr := receipt.New(orchestrator.ReceiptsDir(orchestrator.SpecDir(home, specID)))
		receipts, err := mgr.List()
		if err != nil {
			return err
		}
		if len(receipts) == 0 {
			fmt.Printf("no receipts yet for spec %q\n", specID)
			return nil
		}

		// receipt.Manager.List returns entries sorted by EmittedAt
		// ascending, so the last write per phase wins here.
		latest := map[spec.PhaseID]int{}
		for i, r := range receipts {
			latest[r.Phase] = i
		}
		for _, phase := range spec.Phases {
			idx, ok := latest[phase]
			if !ok {
				continue
			}
			r := receipts[idx]
			status := "ok"
			if r.Outcome.ExitCode != 0 {
				status = r.Outcome.ErrorKind
			}
			fmt.Printf("%-14s %-20s %-18s exit=%d\n", phase, r.EmittedAt.Format("2006-01-02T15:04:05Z"), status, r.Outcome.ExitCode)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
