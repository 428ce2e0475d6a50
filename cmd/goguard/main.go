// Command goguard runs the goGuard demo server and offers envelope and
// configuration tooling.
//
//	goguard serve --addr :8080 [--redis localhost:6379]
//	goguard sign --data '{"amount":10}'
//	goguard verify < envelope.json
//	goguard config print
//
// Configuration comes from --config and GOGUARD_* variables, for example
// GOGUARD_SIGNER_SECRET.
package main

import (
	"context"
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "goguard:", err)
		os.Exit(1)
	}
}
