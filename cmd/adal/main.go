// Command adal is the entry point for Adal, the CSPC thesis assistant.
// It provides a CLI interface (via Cobra) for serving the HTTP chat API,
// asking one-shot questions, building the thesis index, and diagnosing a
// deployment.
package main

import (
	"fmt"
	"os"

	"github.com/adal-ai/adal-go/cmd/adal/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
