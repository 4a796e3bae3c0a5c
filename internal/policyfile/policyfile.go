// Package policyfile discovers and parses .xchecker/policy.toml, the
// declarative gate policy file (spec §4.13). Discovery order and the
// duration-suffix grammar are ported from the original Rust
// xchecker-gate::policy module; parsing itself uses BurntSushi/toml,
// the same TOML library the teacher repo's config layer depends on.
package policyfile

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/xchecker-dev/xchecker/internal/spec"
)

// DefaultRelPath is where a repo-local policy file lives.
const DefaultRelPath = ".xchecker/policy.toml"

// Resolve searches for a policy file in the order the original CLI used:
// an explicit path, then .xchecker/policy.toml in the working directory,
// then the same relative path at the repository root (walking up to 10
// parents looking for .git), then ~/.config/xchecker/policy.toml. It
// returns ("", false, nil) if none is found and no explicit path was given.
func Resolve(explicitPath, workingDir string) (string, bool, error) {
	if explicitPath != "" {
		if _, err := os.Stat(explicitPath); err != nil {
			return "", false, fmt.Errorf("policyfile: explicit path %q not found: %w", explicitPath, err)
		}
		return explicitPath, true, nil
	}

	local := filepath.Join(workingDir, DefaultRelPath)
	if _, err := os.Stat(local); err == nil {
		return local, true, nil
	}

	repoRoot := findRepoRoot(workingDir)
	repoPolicy := filepath.Join(repoRoot, DefaultRelPath)
	if repoPolicy != local {
		if _, err := os.Stat(repoPolicy); err == nil {
			return repoPolicy, true, nil
		}
	}

	if configDir, err := os.UserConfigDir(); err == nil {
		userPolicy := filepath.Join(configDir, "xchecker", "policy.toml")
		if _, err := os.Stat(userPolicy); err == nil {
			return userPolicy, true, nil
		}
	}

	return "", false, nil
}

// findRepoRoot walks up from start looking for a .git directory, giving
// up after 10 levels and returning start unchanged if none is found.
func findRepoRoot(start string) string {
	current := start
	for i := 0; i < 10; i++ {
		if info, err := os.Stat(filepath.Join(current, ".git")); err == nil && info != nil {
			return current
		}
		parent := filepath.Dir(current)
		if parent == current {
			break
		}
		current = parent
	}
	return start
}

// Load reads and parses a policy file, resolving MaxPhaseAgeRaw into
// MaxPhaseAge and validating MinPhase against the closed phase set.
func Load(path string) (spec.GatePolicy, error) {
	var policy spec.GatePolicy
	if _, err := toml.DecodeFile(path, &policy); err != nil {
		return spec.GatePolicy{}, fmt.Errorf("policyfile: parse %q: %w", path, err)
	}

	if policy.MinPhase != nil && !policy.MinPhase.Valid() {
		return spec.GatePolicy{}, fmt.Errorf("policyfile: unknown min_phase %q", *policy.MinPhase)
	}

	if policy.MaxPhaseAgeRaw != "" {
		d, err := ParseDuration(policy.MaxPhaseAgeRaw)
		if err != nil {
			return spec.GatePolicy{}, fmt.Errorf("policyfile: max_phase_age: %w", err)
		}
		policy.MaxPhaseAge = &d
	}

	return policy, nil
}

// ParsePhase parses a case-insensitive phase name into a spec.PhaseID.
func ParsePhase(phaseStr string) (spec.PhaseID, error) {
	p := spec.PhaseID(strings.ToLower(strings.TrimSpace(phaseStr)))
	if !p.Valid() {
		return "", fmt.Errorf("policyfile: unknown phase %q (valid: requirements, design, tasks, review, fixup, final)", phaseStr)
	}
	return p, nil
}

// ParseDuration parses a duration string of the form "<number><unit>"
// where unit is one of s/m/h/d/w (with their long forms also accepted),
// matching the original policy.rs grammar rather than Go's
// time.ParseDuration (which has no day/week units).
func ParseDuration(durationStr string) (time.Duration, error) {
	s := strings.ToLower(strings.TrimSpace(durationStr))

	var numPart, unitPart strings.Builder
	for _, c := range s {
		if (c >= '0' && c <= '9') || c == '.' {
			numPart.WriteRune(c)
		} else {
			unitPart.WriteRune(c)
		}
	}

	value, err := strconv.ParseFloat(numPart.String(), 64)
	if err != nil {
		return 0, fmt.Errorf("policyfile: invalid duration value %q: %w", numPart.String(), err)
	}

	switch unitPart.String() {
	case "s", "sec", "second", "seconds":
		return time.Duration(value * float64(time.Second)), nil
	case "m", "min", "minute", "minutes":
		return time.Duration(value * float64(time.Minute)), nil
	case "h", "hour", "hours":
		return time.Duration(value * float64(time.Hour)), nil
	case "d", "day", "days":
		return time.Duration(value * 24 * float64(time.Hour)), nil
	case "w", "week", "weeks":
		return time.Duration(value * 7 * 24 * float64(time.Hour)), nil
	default:
		return 0, fmt.Errorf("policyfile: unknown duration unit %q (valid: s/m/h/d/w)", unitPart.String())
	}
}
