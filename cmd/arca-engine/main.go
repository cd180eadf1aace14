// Package main provides the arca-engine entrypoint.
//
// The engine is a single-threaded subprocess owned by one host. It reads
// length-prefixed msgpack request frames from stdin, writes result and
// chunk frames to stdout, and logs to stderr where the host captures the
// stream for crash diagnostics.
//
// Usage:
//
//	arca-engine [--archiver <path>] [--scratch-dir <dir>]
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/arca-io/arca/create"
	"github.com/arca-io/arca/extract"
	"github.com/arca-io/arca/log"
	"github.com/arca-io/arca/types"
	"github.com/arca-io/arca/worker"
)

func main() {
	app := &cli.App{
		Name:    "arca-engine",
		Usage:   "Archive engine subprocess - speaks frames over stdin/stdout",
		Version: types.Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "archiver",
				Usage:   "External archiver binary for 7z creation (7zz-compatible)",
				EnvVars: []string{"ARCA_ARCHIVER"},
			},
			&cli.StringFlag{
				Name:    "scratch-dir",
				Usage:   "Staging directory root for archive creation",
				EnvVars: []string{"ARCA_SCRATCH_DIR"},
			},
		},
		Action: serveAction,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func serveAction(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Stdout carries frames; all logging goes to stderr.
	logger := log.NewLogger("engine")

	extractor := extract.NewService(logger)
	creator := create.NewService(logger, create.Config{
		Archiver:    c.String("archiver"),
		ScratchRoot: c.String("scratch-dir"),
	})

	srv := worker.NewServer(os.Stdin, os.Stdout, extractor, creator, logger)
	return srv.Run(ctx)
}
