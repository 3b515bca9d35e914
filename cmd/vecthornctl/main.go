// Package main provides the entry point for the vecthornctl CLI.
package main

import (
	"os"

	"github.com/vecthorn/vecthorn/cmd/vecthornctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
