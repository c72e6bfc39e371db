// Package main provides the entry point for the chainlit-ui server CLI.
package main

import (
	"fmt"
	"os"

	"github.com/FabG/chainlit-ui/cmd/chainlit/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
