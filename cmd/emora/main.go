// Command emora runs and administers the Emora voice authentication service.
//
// Usage:
//
//	emora [flags] <command> [subcommand] [args]
//
// Commands:
//
//	serve      - Run the HTTP API
//	enroll     - Enroll a voice from an audio file
//	verify     - Verify an audio file against an enrolled voice
//	profile    - Inspect, list and delete voice profiles
//	account    - Manage password accounts
//	synth      - Write a synthetic test recording
//	config     - Configuration management (contexts, server.yaml)
//	version    - Show version information
package main

import (
	"fmt"
	"os"

	"github.com/emora/voiceauth/cmd/emora/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
