package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/xchecker-dev/xchecker/internal/xerrors"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "xchecker:", err)
		os.Exit(exitCodeFor(err))
	}
}

// exitCodeFor maps a returned error to the process exit code it should
// produce, per the closed error taxonomy (spec §6/§7); errors that
// don't carry a classified kind exit 70.
func exitCodeFor(err error) int {
	var xerr *xerrors.Error
	if errors.As(err, &xerr) {
		return xerr.Kind.ExitCode()
	}
	return 70
}
