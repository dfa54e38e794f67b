// Command conduit runs, serves, and introspects Conduit pipelines.
package main

import (
	"fmt"
	"os"

	// Blank-imported so every built-in element registers itself against
	// the default registry via its package init(), the Go idiom for
	// driver-style registration (C4) this codebase follows throughout.
	_ "github.com/conduit-run/conduit/internal/elements/data"
	_ "github.com/conduit-run/conduit/internal/elements/flow"
	_ "github.com/conduit-run/conduit/internal/elements/numeric"
	_ "github.com/conduit-run/conduit/internal/elements/sftpel"
	_ "github.com/conduit-run/conduit/internal/elements/sink"
	_ "github.com/conduit-run/conduit/internal/elements/source"
	_ "github.com/conduit-run/conduit/internal/elements/transform"

	"github.com/conduit-run/conduit/internal/runerr"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(runerr.ExitCode(err))
	}
}
