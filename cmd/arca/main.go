// Package main provides the arca CLI entrypoint.
//
// All archive decoding runs in a separate arca-engine process; the CLI
// spawns one on demand and talks to it over stdin/stdout frames.
//
// Usage:
//
//	arca <command> [options] [args]
//
// Exit codes for archive commands:
//   - 0: success
//   - 1: generic error
//   - 2: unsupported or corrupt archive
//   - 3: password required
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/arca-io/arca/cli/cmd"
	"github.com/arca-io/arca/types"
)

// Commit is set via ldflags at build time.
var commit = "unknown"

func main() {
	app := &cli.App{
		Name:           "arca",
		Usage:          "Archive extraction and creation CLI",
		Version:        fmt.Sprintf("%s (commit: %s)", types.Version, commit),
		ExitErrHandler: exitErrHandler,
		Commands: []*cli.Command{
			cmd.ExtractCommand(),
			cmd.CreateCommand(),
			cmd.InspectCommand(),
			cmd.StatsCommand(),
			cmd.BrowseCommand(),
			cmd.FormatsCommand(),
			cmd.VersionCommand(commit),
		},
	}

	if err := app.Run(os.Args); err != nil {
		// ExitErrHandler already handled the exit for cli.ExitCoder errors.
		// This branch handles unexpected errors that weren't wrapped.
		os.Exit(1)
	}
}

// exitErrHandler handles errors from the CLI, preserving exit codes from
// cli.Exit() so archive command exit codes are propagated.
func exitErrHandler(_ *cli.Context, err error) {
	if err == nil {
		return
	}

	// Check for ExitCoder (from cli.Exit), handles wrapped errors
	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		code := exitCoder.ExitCode()
		msg := exitCoder.Error()

		// Only print if there's a real message (not just "exit status N")
		// cli.Exit("", N).Error() returns "exit status N", so skip those
		if msg != "" && msg != fmt.Sprintf("exit status %d", code) {
			fmt.Fprintln(os.Stderr, msg)
		}
		os.Exit(code)
	}

	// Unexpected error - print and exit with code 1
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
