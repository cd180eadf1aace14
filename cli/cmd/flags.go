// Package cmd provides CLI commands for the arca binary.
package cmd

import "github.com/urfave/cli/v2"

// Shared flags.
var (
	// FormatFlag selects output format: json, table, yaml.
	FormatFlag = &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format: json, table, yaml",
	}

	// NoColorFlag disables colored output.
	NoColorFlag = &cli.BoolFlag{
		Name:  "no-color",
		Usage: "Disable colored output",
	}

	// TUIFlag enables Bubble Tea interactive mode.
	// Only valid for the read-only inspect and stats commands.
	TUIFlag = &cli.BoolFlag{
		Name:  "tui",
		Usage: "Enable interactive TUI mode (inspect, stats only)",
	}

	// ConfigFlag points at an arca.yaml configuration file.
	ConfigFlag = &cli.StringFlag{
		Name:  "config",
		Usage: "Path to arca.yaml (defaults to ./arca.yaml when present)",
	}

	// EngineFlag overrides the engine binary path.
	EngineFlag = &cli.StringFlag{
		Name:  "engine",
		Usage: "Path to the arca-engine binary",
	}

	// PasswordFlag supplies a decryption or encryption password.
	PasswordFlag = &cli.StringFlag{
		Name:    "password",
		Aliases: []string{"p"},
		Usage:   "Archive password",
	}
)

// ReadOnlyFlags returns the shared flags for all read-only commands.
// Includes --tui so that unsupported commands can provide explicit error
// messages instead of generic "flag not defined" errors.
func ReadOnlyFlags() []cli.Flag {
	return []cli.Flag{
		FormatFlag,
		NoColorFlag,
		TUIFlag,
	}
}

// EngineFlags returns the flags shared by every command that spawns an
// engine process.
func EngineFlags() []cli.Flag {
	return []cli.Flag{
		ConfigFlag,
		EngineFlag,
	}
}
