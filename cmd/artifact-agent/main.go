// artifact-agent turns founder/advisor conversations into structured
// deliverables and credits the founder's readiness score for them.
//
// Usage:
//
//	artifact-agent config init [--listen=<addr>] [--access=<preset>]
//	artifact-agent secrets set-key --provider=<id> [--fallback]
//	artifact-agent secrets add-token --owner=<id>
//	artifact-agent serve [--listen=<addr>]
//	artifact-agent generate -f <request.json> [-f <request.json> ...]
//	artifact-agent artifacts list --owner=<id>
//	artifact-agent score seed --owner=<id> --market=.. --product=.. ...
package main

import (
	"fmt"
	"os"
)

// Set at build time via -ldflags.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorLabel(), err)
		os.Exit(1)
	}
}
