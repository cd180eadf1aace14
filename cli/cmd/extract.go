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
	"github.com/arca-io/arca/create"
	"github.com/arca-io/arca/log"
	"github.com/arca-io/arca/types"
)

// ExtractSummary is the success payload of the extract command.
type ExtractSummary struct {
	FileName string       `json:"file_name"`
	Format   types.Format `json:"format"`
	Engine   string       `json:"engine"`
	Files    int          `json:"files"`
	Bytes    int64        `json:"bytes"`
	Output   string       `json:"output"`
	Warnings []string     `json:"warnings,omitempty"`
}

// ExtractCommand returns the extract command. It unpacks an archive onto
// the local filesystem through a spawned engine process.
func ExtractCommand() *cli.Command {
	flags := []cli.Flag{
		PasswordFlag,
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Destination directory",
			Value:   ".",
		},
		&cli.StringSliceFlag{
			Name:  "entry",
			Usage: "Extract only the named entry paths (repeatable)",
		},
		&cli.BoolFlag{
			Name:  "quiet",
			Usage: "Suppress the extraction summary",
		},
		FormatFlag,
		NoColorFlag,
	}
	flags = append(flags, EngineFlags()...)

	return &cli.Command{
		Name:      "extract",
		Usage:     "Extract an archive to a directory",
		ArgsUsage: "<archive>",
		Flags:     flags,
		Action:    extractAction,
	}
}

func extractAction(c *cli.Context) error {
	archive := c.Args().First()
	if archive == "" {
		return cli.Exit("archive path required", exitGenericError)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	data, err := os.ReadFile(archive)
	if err != nil {
		return cli.Exit(fmt.Sprintf("read %s: %v", archive, err), exitGenericError)
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), exitGenericError)
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
			return cli.Exit(f.Message, failureExitCode(f))
		}
		return cli.Exit(err.Error(), exitGenericError)
	}
	defer func() { _ = h.Release(ctx, res.SessionID) }()

	only := map[string]bool{}
	for _, p := range c.StringSlice("entry") {
		only[p] = true
	}

	outDir := c.String("output")
	var files int
	var written int64
	for _, e := range res.Entries {
		if e.IsDirectory || (len(only) > 0 && !only[e.Path]) {
			continue
		}
		rel, err := create.SanitizePath(e.Path)
		if err != nil {
			return cli.Exit(fmt.Sprintf("unsafe entry path %q: %v", e.Path, err), exitGenericError)
		}
		payload, err := h.FetchEntry(ctx, res.SessionID, e.Path)
		if err != nil {
			return cli.Exit(fmt.Sprintf("fetch %s: %v", e.Path, err), exitGenericError)
		}
		dest := filepath.Join(outDir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return cli.Exit(err.Error(), exitGenericError)
		}
		if err := os.WriteFile(dest, payload, 0o644); err != nil {
			return cli.Exit(err.Error(), exitGenericError)
		}
		files++
		written += int64(len(payload))
	}

	if len(only) > 0 && files < len(only) {
		return cli.Exit(fmt.Sprintf("extracted %d of %d requested entries", files, len(only)), exitGenericError)
	}

	if c.Bool("quiet") {
		return nil
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	return r.Render(&ExtractSummary{
		FileName: filepath.Base(archive),
		Format:   res.Format,
		Engine:   res.Engine,
		Files:    files,
		Bytes:    written,
		Output:   outDir,
		Warnings: res.Warnings,
	})
}
