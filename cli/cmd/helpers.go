package cmd

import (
	"os"

	"github.com/urfave/cli/v2"

	"github.com/arca-io/arca/cli/config"
	"github.com/arca-io/arca/engine"
	"github.com/arca-io/arca/log"
	"github.com/arca-io/arca/telemetry"
	"github.com/arca-io/arca/telemetry/redis"
	"github.com/arca-io/arca/telemetry/webhook"
	"github.com/arca-io/arca/types"
)

// Exit codes shared by all archive commands.
const (
	exitSuccess           = 0
	exitGenericError      = 1
	exitUnreadableArchive = 2
	exitPasswordRequired  = 3
)

// failureExitCode maps an expected failure to a process exit code.
func failureExitCode(f *types.Failure) int {
	switch f.Code {
	case types.FailurePasswordRequired:
		return exitPasswordRequired
	case types.FailureUnsupportedFormat, types.FailureCorruptArchive:
		return exitUnreadableArchive
	default:
		return exitGenericError
	}
}

// loadConfig reads the config file named by --config, falling back to
// ./arca.yaml when one exists. A missing default file is not an error.
func loadConfig(c *cli.Context) (*config.Config, error) {
	path := c.String("config")
	if path == "" {
		if _, err := os.Stat("arca.yaml"); err != nil {
			return &config.Config{}, nil
		}
		path = "arca.yaml"
	}
	return config.Load(path)
}

// enginePath resolves the engine binary: flag, then config, then PATH lookup.
func enginePath(c *cli.Context, cfg *config.Config) string {
	if p := c.String("engine"); p != "" {
		return p
	}
	if cfg.Engine.Path != "" {
		return cfg.Engine.Path
	}
	return "arca-engine"
}

// newEngine builds an engine handle for the resolved binary, forwarding
// creation settings from the config file to the engine process.
func newEngine(c *cli.Context, cfg *config.Config, logger *log.Logger) *engine.Handle {
	var args []string
	if cfg.Creation.Archiver != "" {
		args = append(args, "--archiver", cfg.Creation.Archiver)
	}
	if cfg.Creation.ScratchDir != "" {
		args = append(args, "--scratch-dir", cfg.Creation.ScratchDir)
	}
	return engine.NewHandle(logger, engine.NewExecFactory(enginePath(c, cfg), args...))
}

// buildSink constructs the telemetry sink named by the config file.
func buildSink(cfg *config.Config) (telemetry.Sink, error) {
	switch cfg.Telemetry.Type {
	case "", "none":
		return telemetry.Nop{}, nil
	case "webhook":
		retries := webhook.DefaultRetries
		if cfg.Telemetry.Retries != nil {
			retries = *cfg.Telemetry.Retries
		}
		sink, err := webhook.New(webhook.Config{
			URL:     cfg.Telemetry.URL,
			Headers: cfg.Telemetry.Headers,
			Timeout: cfg.Telemetry.Timeout.Duration,
			Retries: retries,
		})
		if err != nil {
			return nil, err
		}
		return sink, nil
	case "redis":
		sink, err := redis.New(redis.Config{
			URL:     cfg.Telemetry.URL,
			Channel: cfg.Telemetry.Channel,
		})
		if err != nil {
			return nil, err
		}
		return sink, nil
	default:
		return nil, cli.Exit("unknown telemetry type: "+cfg.Telemetry.Type, exitGenericError)
	}
}
