package spec

import (
	"errors"
	"fmt"
)

// ProblemStatementSource is a closed enum of where the problem statement
// feeding the Requirements phase may come from. The original Rust
// crates/xchecker-utils/src/source.rs reserves SourceType::{GitHub,
// FileSystem, Stdin} for future multi-source ingestion; xchecker
// implements FileSystem and Stdin and leaves GitHub issue ingestion
// explicitly unsupported, since nothing in the pack grounds a GitHub API
// client.
type ProblemStatementSource string

const (
	ProblemStatementFileSystem ProblemStatementSource = "filesystem"
	ProblemStatementStdin      ProblemStatementSource = "stdin"
	problemStatementGitHub     ProblemStatementSource = "github"
)

// ErrUnsupportedSource is returned for a recognized-but-unimplemented
// source, mirroring the original's "reserved for future" framing.
var ErrUnsupportedSource = errors.New("spec: problem statement source not yet supported (reserved for future GitHub issue ingestion)")

// ParseProblemStatementSource parses a source name, defaulting the empty
// string to FileSystem.
func ParseProblemStatementSource(s string) (ProblemStatementSource, error) {
	switch ProblemStatementSource(s) {
	case "", ProblemStatementFileSystem:
		return ProblemStatementFileSystem, nil
	case ProblemStatementStdin:
		return ProblemStatementStdin, nil
	case problemStatementGitHub:
		return "", ErrUnsupportedSource
	default:
		return "", fmt.Errorf("spec: unknown problem statement source %q", s)
	}
}

// DefaultProblemStatementPath is where the Requirements phase looks for
// the problem statement when FileSystem is the configured source and no
// explicit path is given.
const DefaultProblemStatementPath = "source/00-problem-statement.md"

// FallbackProblemStatement is rendered into the phase prompt when no
// problem statement file exists, per spec §4.11 step 4's "or a documented
// fallback string".
const FallbackProblemStatement = "No problem statement was provided. Infer scope and intent solely from the repository content in the packet below."
