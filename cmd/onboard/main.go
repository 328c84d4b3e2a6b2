// cmd/onboard/main.go
//
// This is the entry point for the onboard CLI.
// Running `onboard` with no subcommand opens the TUI on the main menu; the
// subcommands jump straight to a screen or run the local sandbox API.

package main

import (
	"os"

	"github.com/kingrea/onboard/cmd/onboard/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
