package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/arca-io/arca/cli/render"
	"github.com/arca-io/arca/detect"
	"github.com/arca-io/arca/types"
)

// FormatInfo describes one supported archive or compression format.
type FormatInfo struct {
	Format types.Format `json:"format"`
	Name   string       `json:"name"`
	Kind   string       `json:"kind"`
	Create bool         `json:"create"`
}

// FormatsCommand returns the formats command. It lists supported formats
// without contacting the engine.
func FormatsCommand() *cli.Command {
	return &cli.Command{
		Name:   "formats",
		Usage:  "List supported archive and compression formats",
		Flags:  ReadOnlyFlags(),
		Action: formatsAction,
	}
}

// SupportedFormats returns the supported format listing in display order.
func SupportedFormats() []FormatInfo {
	formats := []types.Format{
		types.FormatZip,
		types.FormatSevenZip,
		types.FormatRar,
		types.FormatTar,
		types.FormatTarGz,
		types.FormatTarBz2,
		types.FormatTarXz,
		types.FormatIso,
		types.FormatCab,
		types.FormatAr,
		types.FormatCpio,
		types.FormatXar,
		types.FormatLha,
		types.FormatGzip,
		types.FormatBzip2,
		types.FormatXz,
		types.FormatZstd,
		types.FormatLz4,
	}

	out := make([]FormatInfo, 0, len(formats))
	for _, f := range formats {
		out = append(out, FormatInfo{
			Format: f,
			Name:   detect.DisplayName(f),
			Kind:   string(f.Kind()),
			Create: f == types.FormatZip || f == types.FormatSevenZip,
		})
	}
	return out
}

func formatsAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	if c.Bool("tui") {
		return cli.Exit("--tui is not supported for formats command", exitGenericError)
	}

	return r.Render(SupportedFormats())
}
