package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/xchecker-dev/xchecker/internal/orchestrator"
)

var doctorJSONFlag bool

// doctorCheck is one diagnostic probe; Detail explains a failure, and is
// empty on success.
type doctorCheck struct {
	Name   string `json:"name"`
	OK     bool   `json:"ok"`
	Detail string `json:"detail,omitempty"`
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the local environment for problems that would break phase runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		checks := runDoctorChecks()

		if doctorJSONFlag {
			body, err := json.MarshalIndent(checks, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(body))
		} else {
			allOK := true
			for _, c := range checks {
				mark := "ok  "
				if !c.OK {
					mark = "FAIL"
					allOK = false
				}
				if c.Detail != "" {
					fmt.Printf("[%s] %-24s %s\n", mark, c.Name, c.Detail)
				} else {
					fmt.Printf("[%s] %-24s\n", mark, c.Name)
				}
			}
			if allOK {
				fmt.Println("all checks passed")
			}
		}

		for _, c := range checks {
			if !c.OK {
				os.Exit(70)
			}
		}
		return nil
	},
}

// runDoctorChecks probes the parts of the environment that the core
// reads directly (spec §6 "Environment variables consumed by the
// core"), plus the backend binary and home directory writability. It
// never mutates anything under <home>.
func runDoctorChecks() []doctorCheck {
	var checks []doctorCheck

	home, err := orchestrator.Home()
	if err != nil {
		checks = append(checks, doctorCheck{Name: "home-dir", OK: false, Detail: err.Error()})
	} else {
		checks = append(checks, checkHomeDir(home))
	}

	checks = append(checks, checkBackendBinary())
	checks = append(checks, checkEnvVar("XCHECKER_HOME", false))
	checks = append(checks, checkEnvVar("XCHECKER_OPENROUTER_BUDGET", false))
	checks = append(checks, checkEnvVar("XCHECKER_E2E", false))

	return checks
}

func checkHomeDir(home string) doctorCheck {
	if _, err := os.Stat(home); os.IsNotExist(err) {
		return doctorCheck{Name: "home-dir", OK: true, Detail: fmt.Sprintf("%s does not exist yet (created on first spec)", home)}
	}
	probe := filepath.Join(home, ".doctor-write-probe")
	if err := os.MkdirAll(home, 0o750); err != nil {
		return doctorCheck{Name: "home-dir", OK: false, Detail: err.Error()}
	}
	if err := os.WriteFile(probe, []byte("ok"), 0o640); err != nil {
		return doctorCheck{Name: "home-dir", OK: false, Detail: fmt.Sprintf("%s is not writable: %v", home, err)}
	}
	_ = os.Remove(probe)
	return doctorCheck{Name: "home-dir", OK: true, Detail: home}
}

func checkBackendBinary() doctorCheck {
	cmd := cfgViper.GetString("backend")
	if cmd == "api" {
		return doctorCheck{Name: "backend-binary", OK: true, Detail: "api backend configured; no local binary required"}
	}
	path, err := exec.LookPath("claude")
	if err != nil {
		return doctorCheck{Name: "backend-binary", OK: false, Detail: `"claude" not found on PATH`}
	}
	return doctorCheck{Name: "backend-binary", OK: true, Detail: path}
}

// checkEnvVar reports whether an optional environment variable is set;
// required=false always passes, it just surfaces the value for visibility.
func checkEnvVar(name string, required bool) doctorCheck {
	v, set := os.LookupEnv(name)
	if !set {
		if required {
			return doctorCheck{Name: name, OK: false, Detail: "not set"}
		}
		return doctorCheck{Name: name, OK: true, Detail: "not set (optional)"}
	}
	return doctorCheck{Name: name, OK: true, Detail: v}
}

func init() {
	doctorCmd.Flags().BoolVar(&doctorJSONFlag, "json", false, "emit check results as JSON")
	rootCmd.AddCommand(doctorCmd)
}
