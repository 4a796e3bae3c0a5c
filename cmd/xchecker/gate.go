package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/xchecker-dev/xchecker/internal/fixup"
	"github.com/xchecker-dev/xchecker/internal/gate"
	"github.com/xchecker-dev/xchecker/internal/orchestrator"
	"github.com/xchecker-dev/xchecker/internal/policyfile"
	"github.com/xchecker-dev/xchecker/internal/receipt"
	"github.com/xchecker-dev/xchecker/internal/spec"
)

var (
	gatePolicyPath string
	gateJSONOut    bool
)

var gateCmd = &cobra.Command{
	Use:   "gate <spec-id>",
	Short: "Evaluate a spec's receipts against a gate policy and exit non-zero on failure",
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
		specDir := orchestrator.SpecDir(home, specID)

		path, found, err := policyfile.Resolve(gatePolicyPath, specDir)
		if err != nil {
			return err
		}
		var policy spec.GatePolicy
		if found {
			policy, err = policyfile.Load(path)
			if err != nil {
				return err
			}
		}

		mgr := receipt.New(orchestrator.ReceiptsDir(specDir))
		provider, err := newReceiptDataProvider(mgr, specDir)
		if err != nil {
			return err
		}

		result := gate.Evaluate(policy, provider)

		if gateJSONOut {
			body, _ := json.MarshalIndent(result, "", "  ")
			fmt.Println(string(body))
		} else {
			fmt.Println(result.Summary)
			for _, c := range result.Conditions {
				mark := "PASS"
				if !c.Passed {
					mark = "FAIL"
				}
				fmt.Printf("  [%s] %s: expected %s, got %s\n", mark, c.Description, c.Expected, c.Actual)
			}
		}

		if !result.Passed {
			os.Exit(gate.ExitPolicyViolation)
		}
		return nil
	},
}

func init() {
	gateCmd.Flags().StringVar(&gatePolicyPath, "policy", "", "explicit path to policy.toml (default: discovery chain)")
	gateCmd.Flags().BoolVar(&gateJSONOut, "json", false, "emit the gate result as JSON")
	rootCmd.AddCommand(gateCmd)
}

// receiptDataProvider adapts a receipt.Manager and the latest review
// artifact into gate.DataProvider.
type receiptDataProvider struct {
	mgr            *receipt.Manager
	specDir        string
	latestByPhase  map[spec.PhaseID]spec.Receipt
	mostRecentTime time.Time
	hasReceipts    bool
}

func newReceiptDataProvider(mgr *receipt.Manager, specDir string) (*receiptDataProvider, error) {
	receipts, err := mgr.List()
	if err != nil {
		return nil, err
	}
	p := &receiptDataProvider{mgr: mgr, specDir: specDir, latestByPhase: map[spec.PhaseID]spec.Receipt{}}
	for _, r := range receipts {
		p.latestByPhase[r.Phase] = r
		if r.EmittedAt.After(p.mostRecentTime) {
			p.mostRecentTime = r.EmittedAt
			p.hasReceipts = true
		}
	}
	return p, nil
}

func (p *receiptDataProvider) PhaseCompleted(phase spec.PhaseID) bool {
	r, ok := p.latestByPhase[phase]
	return ok && r.Outcome.ExitCode == 0
}

func (p *receiptDataProvider) LatestPhaseEmittedAt() (time.Time, bool) {
	return p.mostRecentTime, p.hasReceipts
}

func (p *receiptDataProvider) PendingFixups() fixup.PendingResult {
	reviewPath := orchestrator.ArtifactsDir(p.specDir) + "/" + orchestrator.ArtifactFilename(spec.PhaseReview)
	body, err := os.ReadFile(reviewPath)
	if err != nil {
		return fixup.PendingResult{State: fixup.PendingNone}
	}
	return fixup.PendingFixups(string(body))
}
