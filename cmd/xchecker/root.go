package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// cfgViper is the process-wide configuration singleton, initialized once
// in initConfig and consulted by every subcommand for flag defaults that
// weren't passed explicitly (spec §6: CLI flags > env vars > config file
// > documented defaults).
var cfgViper *viper.Viper

var rootCmd = &cobra.Command{
	Use:   "xchecker",
	Short: "Drive an external LLM CLI through a six-phase spec-authoring pipeline",
	Long: `xchecker turns a problem statement and a repository into a reviewed,
receipted specification by running six phases in order — requirements,
design, tasks, review, fixup, final — each one a single invocation of an
external LLM CLI, each one leaving behind a canonical artifact and an
append-only JCS receipt.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig()
	},
}

func init() {
	rootCmd.PersistentFlags().String("home", "", "xchecker home directory (default $XCHECKER_HOME or ./.xchecker)")
	rootCmd.PersistentFlags().String("repo", "", "repository root to select context from (default: cwd)")
	rootCmd.PersistentFlags().String("model", "", "backend model identifier")
	rootCmd.PersistentFlags().String("backend", "", "backend to invoke: cli or api (default cli)")
	rootCmd.PersistentFlags().Duration("phase-timeout", 0, "per-phase timeout (default 600s)")
	rootCmd.PersistentFlags().Bool("json", false, "emit machine-readable JSON output where supported")

	_ = cfgViper // referenced lazily from initConfig
}

// initConfig builds the viper singleton: flags bind directly, then env
// vars under the XCHECKER_ prefix, then an optional config.toml found by
// walking up from cwd, mirroring the teacher's config discovery chain
// but rooted in .xchecker/ instead of .beads/.
func initConfig() error {
	v := viper.New()
	v.SetConfigType("toml")
	v.SetConfigName("config")

	if home, _ := os.UserHomeDir(); home != "" {
		v.AddConfigPath(home + "/.config/xchecker")
	}
	if cwd, err := os.Getwd(); err == nil {
		v.AddConfigPath(cwd + "/.xchecker")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("xchecker: read config: %w", err)
		}
	}

	v.SetEnvPrefix("XCHECKER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("model", "claude-sonnet-4-20250514")
	v.SetDefault("backend", "cli")
	v.SetDefault("phase_timeout", "600s")

	_ = v.BindPFlag("home", rootCmd.PersistentFlags().Lookup("home"))
	_ = v.BindPFlag("repo", rootCmd.PersistentFlags().Lookup("repo"))
	_ = v.BindPFlag("model", rootCmd.PersistentFlags().Lookup("model"))
	_ = v.BindPFlag("backend", rootCmd.PersistentFlags().Lookup("backend"))
	_ = v.BindPFlag("phase_timeout", rootCmd.PersistentFlags().Lookup("phase-timeout"))
	_ = v.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))

	cfgViper = v
	return nil
}
