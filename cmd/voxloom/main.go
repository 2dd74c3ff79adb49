// Package main is the entry point for the voxloom pipeline CLI.
//
// Usage:
//
//	voxloom [flags] <command> [args]
//
// Commands:
//
//	collector     - Run the content collection worker
//	preprocessor  - Run the script generation worker
//	synthesizer   - Run the audio synthesis worker
//	enqueue       - Enqueue a collection request for an episode
//	status        - Show an episode's pipeline state and logs
//	version       - Show version information
package main

import (
	"fmt"
	"os"

	"github.com/voxloom/voxloom/cmd/voxloom/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
