// Package main is the entry point for the chatplugins daemon and CLI.
package main

import (
	"os"

	"github.com/InfiniteCod3/chatplugins/internal/cli/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
