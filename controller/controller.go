// Package controller implements the user-facing extraction workflow.
//
// A Controller composes one engine handle and the tree builder into a state
// machine: idle, loading, success, password required, error. It owns password
// retry memory, the open engine session, and the UI selection and expansion
// sets. The engine handle is injected and owned by the caller's lifecycle;
// the controller never shares it.
package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/arca-io/arca/engine"
	"github.com/arca-io/arca/handoff"
	"github.com/arca-io/arca/log"
	"github.com/arca-io/arca/telemetry"
	"github.com/arca-io/arca/tree"
	"github.com/arca-io/arca/types"
)

// Engine is the extraction capability the controller depends on.
// *engine.Handle is the production implementation.
type Engine interface {
	Warmup(ctx context.Context) error
	Extract(ctx context.Context, req *types.ExtractRequest) (*types.ExtractResult, error)
	FetchEntry(ctx context.Context, sessionID, path string) ([]byte, error)
	Release(ctx context.Context, sessionID string) error
	Close() error
}

// Controller drives one extraction workflow over one engine instance.
// Methods are safe for concurrent use; engine calls are serialized.
type Controller struct {
	mu        sync.Mutex
	engine    Engine
	sink      telemetry.Sink
	collector *telemetry.Collector
	logger    *log.Logger

	state State
	// passwords remembers, per filename, the last password that unlocked it.
	passwords map[string]string
	// pending is the selected file's raw bytes, kept for password retries.
	pendingName string
	pendingData []byte
	attempts    int
	closed      bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithTelemetry sets the event sink.
func WithTelemetry(sink telemetry.Sink) Option {
	return func(c *Controller) { c.sink = sink }
}

// WithCollector sets the metrics collector.
func WithCollector(collector *telemetry.Collector) Option {
	return func(c *Controller) { c.collector = collector }
}

// New creates a controller owning the given engine handle's usage (but not
// its construction).
func New(eng Engine, logger *log.Logger, opts ...Option) *Controller {
	c := &Controller{
		engine:    eng,
		sink:      telemetry.Nop{},
		logger:    logger,
		passwords: make(map[string]string),
		state: State{
			Phase:    PhaseIdle,
			Expanded: NewPathSet(),
			Selected: NewPathSet(),
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current snapshot.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// WarmupEngines initializes the engine ahead of the first extraction.
func (c *Controller) WarmupEngines(ctx context.Context) error {
	return c.engine.Warmup(ctx)
}

// HandleFilesSelected starts an extraction for the selected files.
// Exactly one file is required: multiple selection is rejected up front with
// zero extraction attempts. Selection and expansion state reset on every new
// attempt.
func (c *Controller) HandleFilesSelected(ctx context.Context, files ...SourceFile) State {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(files) != 1 {
		c.state.Phase = PhaseError
		c.state.ErrMsg = fmt.Sprintf("Select a single archive to extract (%d files selected).", len(files))
		c.state.Pending = nil
		return c.state
	}
	file := files[0]

	c.releaseSessionLocked(ctx)
	c.state = State{
		Phase:    PhaseLoading,
		FileName: file.Name(),
		Expanded: NewPathSet(),
		Selected: NewPathSet(),
	}
	c.attempts = 0

	data, err := file.Read()
	if err != nil {
		msg := readErrMessage(err)
		c.logger.Warn("source read failed", map[string]any{"file": file.Name(), "error": err.Error()})
		c.collector.IncExtractionFailed("SOURCE_READ")
		c.emit(ctx, telemetry.EventExtractionFailed, map[string]any{
			"file":   file.Name(),
			"reason": "source_read",
		})
		c.state.Phase = PhaseError
		c.state.ErrMsg = msg
		return c.state
	}

	c.pendingName = file.Name()
	c.pendingData = data

	// A password that unlocked this exact filename earlier in the session is
	// reused silently instead of re-prompting.
	c.extractLocked(ctx, c.passwords[file.Name()])
	return c.state
}

// HandleHandoff consumes the file parked by another surface, if any, and
// selects it for extraction. With nothing pending the state is unchanged.
func (c *Controller) HandleHandoff(ctx context.Context, store handoff.Store) State {
	f := store.Take()
	if f == nil {
		return c.State()
	}
	return c.HandleFilesSelected(ctx, &MemoryFile{FileName: f.Name, Data: f.Data})
}

// SubmitPassword retries the pending extraction with the given password.
func (c *Controller) SubmitPassword(ctx context.Context, password string) State {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Phase != PhasePasswordRequired || c.pendingData == nil {
		return c.state
	}

	c.emit(ctx, telemetry.EventPasswordSubmitted, map[string]any{
		"file":     c.pendingName,
		"attempts": c.attempts,
	})
	c.state.Phase = PhaseLoading
	c.state.Pending = nil
	c.extractLocked(ctx, password)
	return c.state
}

// DismissPassword closes the password prompt without extracting.
func (c *Controller) DismissPassword(ctx context.Context) State {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Phase != PhasePasswordRequired {
		return c.state
	}

	c.emit(ctx, telemetry.EventPasswordDismissed, map[string]any{
		"file":     c.pendingName,
		"attempts": c.attempts,
	})
	c.state.Pending = nil
	c.pendingData = nil
	if c.state.ErrMsg != "" {
		c.state.Phase = PhaseError
	} else {
		c.state.Phase = PhaseIdle
	}
	return c.state
}

// DismissError clears a dismissible error, returning to idle.
func (c *Controller) DismissError() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Phase == PhaseError {
		c.state.Phase = PhaseIdle
		c.state.ErrMsg = ""
	}
	return c.state
}

// Clear discards the current result set and returns to idle. The open engine
// session is released; password memory survives for the controller lifetime.
func (c *Controller) Clear(ctx context.Context) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.releaseSessionLocked(ctx)
	c.pendingName = ""
	c.pendingData = nil
	c.attempts = 0
	c.state = State{
		Phase:    PhaseIdle,
		Expanded: NewPathSet(),
		Selected: NewPathSet(),
	}
	return c.state
}

// ToggleExpand flips a directory's expansion state. Independent of the
// extraction phase.
func (c *Controller) ToggleExpand(path string) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Expanded = c.state.Expanded.Toggle(path)
	return c.state
}

// ToggleSelect flips an entry's selection state.
func (c *Controller) ToggleSelect(path string) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Selected = c.state.Selected.Toggle(path)
	return c.state
}

// FetchEntry retrieves one entry payload from the current result set.
func (c *Controller) FetchEntry(ctx context.Context, path string) ([]byte, error) {
	c.mu.Lock()
	sessionID := c.state.SessionID
	c.mu.Unlock()
	if sessionID == "" {
		return nil, errors.New("no extraction result is open")
	}
	return c.engine.FetchEntry(ctx, sessionID, path)
}

// Close releases the open session and shuts the engine down. Idempotent.
func (c *Controller) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.releaseSessionLocked(ctx)
	return c.engine.Close()
}

// extractLocked runs one extraction attempt and applies the resulting state
// transition. Caller holds the lock.
func (c *Controller) extractLocked(ctx context.Context, password string) {
	c.collector.IncExtractionStarted()

	res, err := c.engine.Extract(ctx, &types.ExtractRequest{
		FileName: c.pendingName,
		Data:     c.pendingData,
		Password: password,
	})
	if err != nil {
		c.applyFailureLocked(ctx, err)
		return
	}

	if password != "" {
		c.passwords[c.pendingName] = password
	}

	roots := tree.BuildTree(res.Entries)
	stats := tree.ComputeStats(roots)

	c.state.Phase = PhaseSuccess
	c.state.Format = res.Format
	c.state.Engine = res.Engine
	c.state.Files = roots
	c.state.Stats = &stats
	c.state.Warnings = res.Warnings
	c.state.SessionID = res.SessionID
	c.state.Encrypted = res.Encrypted
	c.state.Pending = nil
	c.state.ErrMsg = ""

	c.collector.IncExtractionSucceeded()
	c.emit(ctx, telemetry.EventExtractionSucceeded, map[string]any{
		"file":      c.pendingName,
		"format":    string(res.Format),
		"engine":    res.Engine,
		"entries":   len(res.Entries),
		"encrypted": res.Encrypted,
	})
}

// applyFailureLocked transitions state for a failed extraction attempt.
func (c *Controller) applyFailureLocked(ctx context.Context, err error) {
	if failure, ok := types.AsFailure(err); ok {
		if failure.Code == types.FailurePasswordRequired {
			c.attempts++
			if c.attempts > 1 {
				c.collector.IncPasswordRetry()
			}
			c.collector.IncPasswordPrompt()
			c.emit(ctx, telemetry.EventPasswordPrompted, map[string]any{
				"file":     c.pendingName,
				"reason":   string(failure.Reason),
				"attempts": c.attempts,
			})
			c.state.Phase = PhasePasswordRequired
			c.state.Pending = &PasswordPrompt{
				FileName: c.pendingName,
				Reason:   failure.Reason,
				Message:  failure.Message,
				Attempts: c.attempts,
			}
			return
		}

		// All other failures render as a dismissible error carrying the
		// underlying message verbatim.
		c.collector.IncExtractionFailed(string(failure.Code))
		c.emit(ctx, telemetry.EventExtractionFailed, map[string]any{
			"file": c.pendingName,
			"code": string(failure.Code),
		})
		c.state.Phase = PhaseError
		c.state.ErrMsg = failure.Message
		c.state.Pending = nil
		return
	}

	var crash *engine.CrashError
	if errors.As(err, &crash) {
		c.logger.Error("engine crashed", map[string]any{"file": c.pendingName, "error": crash.Error()})
		c.collector.IncEngineCrash()
		c.collector.IncExtractionFailed("ENGINE_CRASH")
		c.emit(ctx, telemetry.EventExtractionFailed, map[string]any{
			"file": c.pendingName,
			"code": "ENGINE_CRASH",
		})
		c.state.Phase = PhaseError
		c.state.ErrMsg = "The extraction engine stopped unexpectedly. Reopen the file to try again."
		return
	}

	c.collector.IncExtractionFailed("UNEXPECTED")
	c.emit(ctx, telemetry.EventExtractionFailed, map[string]any{
		"file": c.pendingName,
		"code": "UNEXPECTED",
	})
	c.state.Phase = PhaseError
	c.state.ErrMsg = err.Error()
}

func (c *Controller) releaseSessionLocked(ctx context.Context) {
	if c.state.SessionID == "" {
		return
	}
	if err := c.engine.Release(ctx, c.state.SessionID); err != nil {
		c.logger.Warn("session release failed", map[string]any{"error": err.Error()})
	}
	c.state.SessionID = ""
}

// emit delivers a telemetry event best-effort. Failures are logged, never
// surfaced.
func (c *Controller) emit(ctx context.Context, name string, properties map[string]any) {
	if c.sink == nil {
		return
	}
	if err := c.sink.Emit(ctx, telemetry.NewEvent(name, properties)); err != nil {
		c.logger.Debug("telemetry emit failed", map[string]any{"event": name, "error": err.Error()})
	}
}
