// Package create implements the in-engine archive creation service.
//
// Inputs are staged into a private scratch filesystem under a uniquely named
// directory, then an external archiver is invoked from inside the scratch
// root so stored entry paths come out relative. When no archiver binary is
// configured, zip archives are built with an in-process writer instead.
// Creation always builds a new archive from scratch; existing archives are
// never modified.
package create

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/arca-io/arca/log"
	"github.com/arca-io/arca/types"
)

// Engine names reported in creation results.
const (
	EngineArchiver  = "archiver"
	EngineZipWriter = "zipwriter"
)

// DefaultCompressionLevel is used when the request does not set one.
const DefaultCompressionLevel = 6

// CommandRunner executes the archiver command with the working directory set
// to dir and returns its combined output. Injected for tests.
type CommandRunner func(ctx context.Context, dir, name string, args []string) ([]byte, error)

// Config configures the creation service.
type Config struct {
	// Archiver is the external archiver binary (7zz-compatible argument
	// surface). Empty disables the external path; zip creation then uses the
	// built-in writer and 7z creation is unavailable.
	Archiver string
	// ScratchRoot is the OS directory backing the scratch filesystem.
	// Defaults to a per-process directory under os.TempDir().
	ScratchRoot string
	// Runner overrides archiver invocation (for tests).
	Runner CommandRunner
	// Fs overrides the scratch filesystem (for tests). When set together with
	// a Runner, no real OS paths are touched.
	Fs afero.Fs
}

// Service is the creation engine. One instance lives inside each engine
// process; calls are serialized by the host.
type Service struct {
	fs       afero.Fs
	root     string
	archiver string
	run      CommandRunner
	logger   *log.Logger
}

// NewService creates a creation service.
func NewService(logger *log.Logger, cfg Config) *Service {
	root := cfg.ScratchRoot
	if root == "" {
		root = filepath.Join(os.TempDir(), fmt.Sprintf("arca-engine-%d", os.Getpid()))
	}
	fs := cfg.Fs
	if fs == nil {
		fs = afero.NewBasePathFs(afero.NewOsFs(), root)
	}
	run := cfg.Runner
	if run == nil {
		run = runCommand
	}
	return &Service{
		fs:       fs,
		root:     root,
		archiver: cfg.Archiver,
		run:      run,
		logger:   logger,
	}
}

// Create builds a new archive from the request's input files.
// Expected failures are returned as *types.Failure values. The scratch
// filesystem is left clean on every path.
func (s *Service) Create(ctx context.Context, req *types.CreateRequest) (*types.CreateResult, error) {
	if req.Format != types.FormatZip && req.Format != types.FormatSevenZip {
		return nil, &types.Failure{
			Code:        types.FailureUnsupportedFormat,
			Message:     fmt.Sprintf("cannot create %q archives; supported formats: zip, 7z", req.Format),
			Recoverable: false,
			Format:      req.Format,
		}
	}
	if len(req.Files) == 0 {
		return nil, &types.Failure{
			Code:        types.FailureCreateFailed,
			Message:     "at least one input file is required",
			Recoverable: true,
			Format:      req.Format,
		}
	}

	// Sanitize every path before anything is staged: a single traversal
	// attempt rejects the whole request with zero filesystem writes.
	sanitized := make([]string, len(req.Files))
	for i, f := range req.Files {
		clean, err := SanitizePath(f.Path)
		if err != nil {
			return nil, &types.Failure{
				Code:        types.FailureCreateFailed,
				Message:     fmt.Sprintf("rejected input path %q: %v", f.Path, err),
				Recoverable: false,
				Format:      req.Format,
			}
		}
		sanitized[i] = clean
	}

	level := clampLevel(req.CompressionLevel)

	var warnings []string
	if req.EncryptHeaders && req.Format != types.FormatSevenZip {
		warnings = append(warnings, "header encryption applies to 7z archives only; ignored")
	}

	if s.archiver == "" {
		if req.Format == types.FormatSevenZip {
			return nil, &types.Failure{
				Code:        types.FailureUnsupportedFormat,
				Message:     "7z creation requires an external archiver binary; none is configured",
				Recoverable: false,
				Format:      req.Format,
			}
		}
		return s.builtinZip(req, sanitized, level, warnings)
	}

	return s.archiverCreate(ctx, req, sanitized, level, warnings)
}

// archiverCreate stages inputs and invokes the external archiver.
func (s *Service) archiverCreate(ctx context.Context, req *types.CreateRequest, sanitized []string, level int, warnings []string) (*types.CreateResult, error) {
	stageID := uuid.NewString()
	stageDir := "stage-" + stageID
	outName := "out-" + stageID + "." + extensionFor(req.Format)

	// Remove every staged input, the scratch tree, and the output archive on
	// all paths so repeated calls do not leak scratch state.
	defer func() {
		_ = s.fs.RemoveAll(stageDir)
		_ = s.fs.Remove(outName)
	}()

	for i, f := range req.Files {
		target := path.Join(stageDir, sanitized[i])
		if err := s.fs.MkdirAll(path.Dir(target), 0o755); err != nil {
			return nil, stageFailure(req.Format, err)
		}
		if err := afero.WriteFile(s.fs, target, f.Data, 0o644); err != nil {
			return nil, stageFailure(req.Format, err)
		}
		if f.ModTime != nil {
			_ = s.fs.Chtimes(target, *f.ModTime, *f.ModTime)
		}
	}

	outReal := filepath.Join(s.root, outName)
	args := BuildArgs(req.Format, level, req.Password, req.EncryptHeaders, outReal, sanitized)

	// Run from inside the scratch dir so stored entry paths are relative.
	out, err := s.run(ctx, filepath.Join(s.root, stageDir), s.archiver, args)
	if err != nil {
		return nil, classifyCreateErr(req.Format, out, err)
	}

	data, err := afero.ReadFile(s.fs, outName)
	if err != nil {
		return nil, &types.Failure{
			Code:        types.FailureCreateFailed,
			Message:     fmt.Sprintf("archiver produced no output: %v", err),
			Recoverable: true,
			Format:      req.Format,
		}
	}

	s.logger.Info("archive created", map[string]any{
		"format": string(req.Format),
		"files":  len(req.Files),
		"bytes":  len(data),
	})

	return &types.CreateResult{
		Data:              data,
		Format:            req.Format,
		Engine:            EngineArchiver,
		Warnings:          warnings,
		PasswordProtected: req.Password != "",
	}, nil
}

// BuildArgs constructs the archiver argument list for an add-to-archive
// operation. Arguments are passed as an array, never through a shell, so the
// password value is concatenated rather than escaped.
func BuildArgs(format types.Format, level int, password string, encryptHeaders bool, outPath string, inputs []string) []string {
	args := []string{"a", "-t" + containerType(format), "-mx=" + strconv.Itoa(level)}
	if format == types.FormatZip && password != "" {
		args = append(args, "-mem=AES256")
	}
	if format == types.FormatSevenZip && encryptHeaders {
		args = append(args, "-mhe=on")
	}
	if password != "" {
		args = append(args, "-p"+password)
	}
	args = append(args, outPath)
	args = append(args, inputs...)
	return args
}

func containerType(format types.Format) string {
	if format == types.FormatSevenZip {
		return "7z"
	}
	return "zip"
}

func extensionFor(format types.Format) string {
	if format == types.FormatSevenZip {
		return "7z"
	}
	return "zip"
}

// clampLevel clamps the compression level to [0,9], defaulting to 6.
func clampLevel(level *int) int {
	if level == nil {
		return DefaultCompressionLevel
	}
	if *level < 0 {
		return 0
	}
	if *level > 9 {
		return 9
	}
	return *level
}

func stageFailure(format types.Format, err error) *types.Failure {
	return &types.Failure{
		Code:        types.FailureCreateFailed,
		Message:     fmt.Sprintf("failed to stage input files: %v", err),
		Recoverable: true,
		Format:      format,
	}
}

// classifyCreateErr maps archiver diagnostics to a typed failure: output
// mentioning "unsupported" is a format problem, everything else is a
// recoverable creation failure carrying the raw message.
func classifyCreateErr(format types.Format, out []byte, err error) *types.Failure {
	msg := strings.TrimSpace(string(out))
	if msg == "" {
		msg = err.Error()
	}
	if strings.Contains(strings.ToLower(msg), "unsupported") {
		return &types.Failure{
			Code:        types.FailureUnsupportedFormat,
			Message:     msg,
			Recoverable: false,
			Format:      format,
		}
	}
	return &types.Failure{
		Code:        types.FailureCreateFailed,
		Message:     msg,
		Recoverable: true,
		Format:      format,
	}
}

// runCommand is the production CommandRunner.
func runCommand(ctx context.Context, dir, name string, args []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	return cmd.CombinedOutput()
}
