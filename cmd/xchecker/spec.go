package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xchecker-dev/xchecker/internal/backend"
	"github.com/xchecker-dev/xchecker/internal/orchestrator"
	"github.com/xchecker-dev/xchecker/internal/spec"
)

var (
	specPhaseFlag string
	specAllFlag   bool

	specProblemStatementPath string
	specProblemStatementText string
	specForceLockFlag        bool
)

var specCmd = &cobra.Command{
	Use:   "spec",
	Short: "Create and run a spec's phase pipeline",
}

var specInitCmd = &cobra.Command{
	Use:   "init <spec-id>",
	Short: "Create a spec's directory tree without running any phase",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		o, err := newOrchestrator(args[0])
		if err != nil {
			return err
		}
		_ = o
		fmt.Printf("initialized spec %q\n", args[0])
		return nil
	},
}

var specRunCmd = &cobra.Command{
	Use:   "run <spec-id>",
	Short: "Run one phase (--phase) or the full pipeline (--all) for a spec",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		specID := args[0]
		o, err := newOrchestrator(specID)
		if err != nil {
			return err
		}

		ctx := context.Background()
		if specAllFlag {
			results, err := o.RunAll(ctx)
			for _, r := range results {
				printPhaseResult(r)
			}
			return err
		}

		if specPhaseFlag == "" {
			return fmt.Errorf("xchecker: --phase or --all is required")
		}
		phase, err := spec.ParsePhaseID(specPhaseFlag)
		if err != nil {
			return err
		}
		res, err := o.RunPhase(ctx, phase)
		if err != nil {
			return err
		}
		printPhaseResult(res)
		if !res.Success {
			return res.Error
		}
		return nil
	},
}

func printPhaseResult(r *orchestrator.ExecutionResult) {
	if r == nil {
		return
	}
	if r.Success {
		fmt.Printf("%-14s ok      %s\n", r.Phase, r.ArtifactPaths)
		return
	}
	fmt.Printf("%-14s FAILED  %s (exit %d)\n", r.Phase, r.Error, r.ExitCode)
}

func init() {
	specRunCmd.Flags().StringVar(&specPhaseFlag, "phase", "", "phase to run: requirements, design, tasks, review, fixup, final")
	specRunCmd.Flags().BoolVar(&specAllFlag, "all", false, "run every phase in order, stopping at the first failure")
	specRunCmd.Flags().StringVar(&specProblemStatementPath, "problem-statement-file", "", "path (relative to --repo) to the problem statement")
	specRunCmd.Flags().StringVar(&specProblemStatementText, "problem-statement", "", "problem statement text, read directly instead of from a file")
	specRunCmd.Flags().BoolVar(&specForceLockFlag, "force", false, "steal a stale or held lock instead of failing")

	specCmd.AddCommand(specInitCmd, specRunCmd)
	rootCmd.AddCommand(specCmd)
}

// newOrchestrator builds an Orchestrator from the bound viper config and
// this command's own problem-statement flags.
func newOrchestrator(specID string) (*orchestrator.Orchestrator, error) {
	be, err := resolveBackend()
	if err != nil {
		return nil, err
	}

	cfg := orchestrator.Config{
		Home:                 cfgViper.GetString("home"),
		RepoRoot:             cfgViper.GetString("repo"),
		Model:                cfgViper.GetString("model"),
		Backend:              be,
		PhaseTimeout:         cfgViper.GetDuration("phase_timeout"),
		Force:                specForceLockFlag,
		ProblemStatementPath: specProblemStatementPath,
	}
	if specProblemStatementText != "" {
		cfg.ProblemStatementSource = spec.ProblemStatementStdin
		cfg.ProblemStatementText = specProblemStatementText
	}
	return orchestrator.New(specID, cfg)
}

// resolveBackend honors an explicit --backend/config value over the
// XCHECKER_BACKEND env var orchestrator.New would otherwise fall back to.
func resolveBackend() (backend.Backend, error) {
	switch cfgViper.GetString("backend") {
	case "api":
		return backend.NewAPIBackend("")
	case "cli", "":
		return backend.NewCLIBackend(backend.CLIConfig{}), nil
	default:
		return nil, fmt.Errorf("xchecker: unknown backend %q (want cli or api)", cfgViper.GetString("backend"))
	}
}
