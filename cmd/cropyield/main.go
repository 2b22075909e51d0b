package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"

	"github.com/YuminosukeSato/cropyield/internal/cli/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		color.New(color.FgRed, color.Bold).Fprintf(os.Stderr, "✗ %v\n", err)
		fmt.Fprintln(os.Stderr, "\nRun 'cropyield --help' for usage.")
		os.Exit(1)
	}
}
