// Command agentx is the headless CLI entry point, generalizing
// cmd/opencode: it drives the Local runtime (or a remote agentx-server via
// --server-url) directly, with no RPC transport of its own.
package main

import (
	"fmt"
	"os"

	"github.com/agentx/agentx/cmd/agentx/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
