package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/xchecker-dev/xchecker/internal/orchestrator"
	"github.com/xchecker-dev/xchecker/internal/spec"
)

var cleanYesFlag bool

var cleanCmd = &cobra.Command{
	Use:   "clean <spec-id>",
	Short: "Remove a spec's entire directory tree (artifacts, receipts, context, lock)",
	Long: `clean permanently deletes <home>/specs/<spec-id>. This is the only
supported way to destroy a spec (spec.md §3: "destroyed only by explicit
user command") — there is no soft-delete or trash.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		specID := args[0]
		if err := spec.ValidateSpecID(specID); err != nil {
			return err
		}

		home := cfgViper.GetString("home")
		if home == "" {
			h, err := orchestrator.Home()
			if err != nil {
				return err
			}
			home = h
		}
		specDir := orchestrator.SpecDir(home, specID)

		if _, err := os.Stat(specDir); os.IsNotExist(err) {
			fmt.Printf("spec %q has no directory under %s; nothing to clean\n", specID, home)
			return nil
		}

		if !cleanYesFlag {
			fmt.Printf("this will permanently delete %s\nre-run with --yes to confirm\n", specDir)
			return nil
		}

		if err := os.RemoveAll(specDir); err != nil {
			return fmt.Errorf("xchecker: clean %q: %w", specID, err)
		}
		fmt.Printf("removed %s\n", specDir)
		return nil
	},
}

func init() {
	cleanCmd.Flags().BoolVar(&cleanYesFlag, "yes", false, "confirm deletion (clean is a no-op dry run without this)")
	rootCmd.AddCommand(cleanCmd)
}
