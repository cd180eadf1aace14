package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/arca-io/arca/cli/render"
	"github.com/arca-io/arca/cli/tui"
	"github.com/arca-io/arca/log"
	"github.com/arca-io/arca/tree"
	"github.com/arca-io/arca/types"
)

// InspectCommand returns the inspect command. It lists an archive's
// contents without writing anything to disk.
func InspectCommand() *cli.Command {
	flags := append([]cli.Flag{PasswordFlag}, ReadOnlyFlags()...)
	flags = append(flags, EngineFlags()...)

	return &cli.Command{
		Name:      "inspect",
		Usage:     "List archive contents (read-only)",
		ArgsUsage: "<archive>",
		Flags:     flags,
		Action:    inspectAction,
	}
}

// StatsCommand returns the stats command. It reports aggregate statistics
// for an archive without writing anything to disk.
func StatsCommand() *cli.Command {
	flags := append([]cli.Flag{PasswordFlag}, ReadOnlyFlags()...)
	flags = append(flags, EngineFlags()...)

	return &cli.Command{
		Name:      "stats",
		Usage:     "Show archive statistics (read-only)",
		ArgsUsage: "<archive>",
		Flags:     flags,
		Action:    statsAction,
	}
}

func inspectAction(c *cli.Context) error {
	view, err := readArchive(c)
	if err != nil {
		return err
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	if c.Bool("tui") {
		return r.RenderTUI("inspect_archive", view)
	}
	return r.Render(view)
}

func statsAction(c *cli.Context) error {
	view, err := readArchive(c)
	if err != nil {
		return err
	}

	stats := view.Stats
	sv := &tui.StatsView{
		FileName:         view.FileName,
		Format:           view.Format,
		TotalFiles:       stats.TotalFiles,
		TotalSize:        stats.TotalSize,
		TotalCompressed:  stats.TotalCompressed,
		CompressionRatio: stats.CompressionRatio,
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	if c.Bool("tui") {
		return r.RenderTUI("stats_archive", sv)
	}
	return r.Render(sv)
}

// readArchive runs a metadata-only extraction and releases the engine
// session before returning.
func readArchive(c *cli.Context) (*tui.ArchiveView, error) {
	archive := c.Args().First()
	if archive == "" {
		return nil, cli.Exit("archive path required", exitGenericError)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	data, err := os.ReadFile(archive)
	if err != nil {
		return nil, cli.Exit(fmt.Sprintf("read %s: %v", archive, err), exitGenericError)
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return nil, cli.Exit(err.Error(), exitGenericError)
	}

	logger := log.NewLogger("cli")
	h := newEngine(c, cfg, logger)
	defer func() { _ = h.Close() }()

	res, err := h.Extract(ctx, &types.ExtractRequest{
		FileName: filepath.Base(archive),
		Data:     data,
		Password: c.String("password"),
	})
	if err != nil {
		if f, ok := types.AsFailure(err); ok {
			return nil, cli.Exit(f.Message, failureExitCode(f))
		}
		return nil, cli.Exit(err.Error(), exitGenericError)
	}
	_ = h.Release(ctx, res.SessionID)

	files := tree.BuildTree(res.Entries)
	stats := tree.ComputeStats(files)

	return &tui.ArchiveView{
		FileName:  filepath.Base(archive),
		Format:    res.Format,
		Engine:    res.Engine,
		Encrypted: res.Encrypted,
		Warnings:  res.Warnings,
		Files:     files,
		Stats:     &stats,
	}, nil
}
