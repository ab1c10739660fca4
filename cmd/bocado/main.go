// Package main is the entry point for the bocado CLI.
package main

import (
	"os"

	"github.com/runger/bocado/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
