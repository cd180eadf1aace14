package cmd

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/arca-io/arca/cli/render"
	"github.com/arca-io/arca/log"
	"github.com/arca-io/arca/types"
)

// CreateSummary is the success payload of the create command.
type CreateSummary struct {
	Output            string       `json:"output"`
	Format            types.Format `json:"format"`
	Engine            string       `json:"engine"`
	Files             int          `json:"files"`
	Bytes             int64        `json:"bytes"`
	PasswordProtected bool         `json:"password_protected"`
	Warnings          []string     `json:"warnings,omitempty"`
}

// CreateCommand returns the create command. It builds a zip or 7z archive
// from local files and directories through a spawned engine process.
func CreateCommand() *cli.Command {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:  "type",
			Usage: "Archive format: zip or 7z (inferred from the output extension)",
		},
		PasswordFlag,
		&cli.IntFlag{
			Name:    "level",
			Aliases: []string{"l"},
			Usage:   "Compression level 0-9",
			Value:   -1,
		},
		&cli.BoolFlag{
			Name:  "encrypt-headers",
			Usage: "Also encrypt entry names (7z only)",
		},
		&cli.BoolFlag{
			Name:  "quiet",
			Usage: "Suppress the creation summary",
		},
		FormatFlag,
		NoColorFlag,
	}
	flags = append(flags, EngineFlags()...)

	return &cli.Command{
		Name:      "create",
		Usage:     "Create a zip or 7z archive from files and directories",
		ArgsUsage: "<output> <input>...",
		Flags:     flags,
		Action:    createAction,
	}
}

func createAction(c *cli.Context) error {
	if c.NArg() < 2 {
		return cli.Exit("usage: create <output> <input>...", exitGenericError)
	}
	output := c.Args().First()
	inputs := c.Args().Tail()

	format, err := resolveFormat(c.String("type"), output)
	if err != nil {
		return cli.Exit(err.Error(), exitUnreadableArchive)
	}

	files, err := collectInputs(inputs)
	if err != nil {
		return cli.Exit(err.Error(), exitGenericError)
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), exitGenericError)
	}

	req := &types.CreateRequest{
		Format:         format,
		Files:          files,
		Password:       c.String("password"),
		EncryptHeaders: c.Bool("encrypt-headers"),
	}
	if lvl := c.Int("level"); lvl >= 0 {
		req.CompressionLevel = &lvl
	} else if cfg.Creation.CompressionLevel != nil {
		req.CompressionLevel = cfg.Creation.CompressionLevel
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := log.NewLogger("cli")
	h := newEngine(c, cfg, logger)
	defer func() { _ = h.Close() }()

	res, err := h.Create(ctx, req)
	if err != nil {
		if f, ok := types.AsFailure(err); ok {
			return cli.Exit(f.Message, failureExitCode(f))
		}
		return cli.Exit(err.Error(), exitGenericError)
	}

	if err := os.WriteFile(output, res.Data, 0o644); err != nil {
		return cli.Exit(fmt.Sprintf("write %s: %v", output, err), exitGenericError)
	}

	if c.Bool("quiet") {
		return nil
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	return r.Render(&CreateSummary{
		Output:            output,
		Format:            res.Format,
		Engine:            res.Engine,
		Files:             len(files),
		Bytes:             int64(len(res.Data)),
		PasswordProtected: res.PasswordProtected,
		Warnings:          res.Warnings,
	})
}

// resolveFormat picks the container format from --type, falling back to the
// output file extension.
func resolveFormat(explicit, output string) (types.Format, error) {
	name := explicit
	if name == "" {
		switch strings.ToLower(filepath.Ext(output)) {
		case ".zip":
			name = "zip"
		case ".7z":
			name = "7z"
		default:
			return "", fmt.Errorf("cannot infer archive format from %q; pass --type zip or --type 7z", output)
		}
	}
	switch name {
	case "zip":
		return types.FormatZip, nil
	case "7z":
		return types.FormatSevenZip, nil
	default:
		return "", fmt.Errorf("unsupported archive format %q (must be zip or 7z)", name)
	}
}

// collectInputs expands the input arguments into archive entries. Plain
// files keep their base name; directories contribute their whole subtree
// rooted at the directory name.
func collectInputs(inputs []string) ([]types.CreateFile, error) {
	var out []types.CreateFile

	addFile := func(osPath, entryPath string, info fs.FileInfo) error {
		data, err := os.ReadFile(osPath)
		if err != nil {
			return err
		}
		mod := info.ModTime()
		out = append(out, types.CreateFile{
			Path:    entryPath,
			Data:    data,
			ModTime: &mod,
		})
		return nil
	}

	for _, in := range inputs {
		info, err := os.Stat(in)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			if err := addFile(in, filepath.Base(in), info); err != nil {
				return nil, err
			}
			continue
		}
		root := filepath.Clean(in)
		base := filepath.Base(root)
		err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return err
			}
			rel, err := filepath.Rel(root, p)
			if err != nil {
				return err
			}
			info, err := d.Info()
			if err != nil {
				return err
			}
			return addFile(p, filepath.ToSlash(filepath.Join(base, rel)), info)
		})
		if err != nil {
			return nil, err
		}
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("no input files found")
	}
	return out, nil
}
