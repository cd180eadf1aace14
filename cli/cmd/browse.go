package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/arca-io/arca/cli/tui"
	"github.com/arca-io/arca/controller"
	"github.com/arca-io/arca/log"
	"github.com/arca-io/arca/telemetry"
)

// BrowseCommand returns the browse command: an interactive tree browser
// over an extraction session. Unlike inspect it keeps the engine session
// open so entries stay fetchable while browsing.
func BrowseCommand() *cli.Command {
	flags := append([]cli.Flag{PasswordFlag}, EngineFlags()...)

	return &cli.Command{
		Name:      "browse",
		Usage:     "Browse an archive interactively",
		ArgsUsage: "<archive>",
		Flags:     flags,
		Action:    browseAction,
	}
}

func browseAction(c *cli.Context) error {
	archive := c.Args().First()
	if archive == "" {
		return cli.Exit("archive path required", exitGenericError)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), exitGenericError)
	}

	sink, err := buildSink(cfg)
	if err != nil {
		return cli.Exit(err.Error(), exitGenericError)
	}
	defer func() { _ = sink.Close() }()

	logger := log.NewLogger("cli")
	h := newEngine(c, cfg, logger)

	ctrl := controller.New(h, logger,
		controller.WithTelemetry(sink),
		controller.WithCollector(telemetry.NewCollector()),
	)
	defer func() { _ = ctrl.Close(ctx) }()

	st := ctrl.HandleFilesSelected(ctx, &controller.DiskFile{Path: archive})
	if pw := c.String("password"); pw != "" && st.Phase == controller.PhasePasswordRequired {
		st = ctrl.SubmitPassword(ctx, pw)
	}
	if st.Phase == controller.PhaseError {
		return cli.Exit(st.ErrMsg, exitGenericError)
	}

	return tui.RunBrowseTUI(ctx, ctrl)
}
