// Package engine manages the isolated engine process from the host side.
//
// A Handle owns exactly one engine process. Requests are written as
// length-prefixed frames on the child's stdin and answered on its stdout;
// stderr is captured for crash diagnostics. Warmup is memoized: concurrent
// callers collapse onto one in-flight initialization, and calls after a
// successful warmup return immediately. Calls against a single handle are
// serialized; the controller never issues two concurrent requests.
package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/arca-io/arca/ipc"
	"github.com/arca-io/arca/log"
	"github.com/arca-io/arca/types"
)

// MaxEntrySize bounds a reassembled entry payload (1 GiB).
const MaxEntrySize = 1 * 1024 * 1024 * 1024

// stderrTailSize bounds captured engine stderr in crash reports.
const stderrTailSize = 8 * 1024

// CrashError reports an engine process that died or broke the frame protocol
// mid-operation. Partial work is lost; the handle is unusable afterwards.
type CrashError struct {
	Err    error
	Stderr string
}

func (e *CrashError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("engine crashed: %v (stderr: %s)", e.Err, e.Stderr)
	}
	return fmt.Sprintf("engine crashed: %v", e.Err)
}

func (e *CrashError) Unwrap() error { return e.Err }

// Handle is the host-side handle to one engine process.
type Handle struct {
	factory ProcFactory
	logger  *log.Logger

	// mu serializes request/response roundtrips and guards process state.
	mu     sync.Mutex
	proc   Proc
	enc    *ipc.FrameEncoder
	dec    *ipc.FrameDecoder
	closed bool

	stderrMu  sync.Mutex
	stderrBuf bytes.Buffer

	warmupMu  sync.Mutex
	warmupCh  chan struct{}
	warmupErr error

	reqSeq atomic.Int64
}

// NewHandle creates a handle. The engine process is not started until the
// first Warmup or operation.
func NewHandle(logger *log.Logger, factory ProcFactory) *Handle {
	return &Handle{factory: factory, logger: logger}
}

// Warmup starts the engine process and initializes its decoders. Idempotent
// and memoized: concurrent calls share one in-flight initialization.
func (h *Handle) Warmup(ctx context.Context) error {
	h.warmupMu.Lock()
	if h.warmupCh == nil {
		h.warmupCh = make(chan struct{})
		go h.doWarmup(ctx)
	}
	ch := h.warmupCh
	h.warmupMu.Unlock()

	select {
	case <-ch:
		return h.warmupErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Handle) doWarmup(ctx context.Context) {
	defer close(h.warmupCh)

	proc := h.factory()
	if err := proc.Start(ctx); err != nil {
		h.warmupErr = err
		return
	}

	h.mu.Lock()
	h.proc = proc
	h.enc = ipc.NewFrameEncoder(proc.Stdin())
	h.dec = ipc.NewFrameDecoder(proc.Stdout())
	h.mu.Unlock()

	go h.captureStderr(proc.Stderr())

	_, _, err := h.roundtrip(ctx, &types.RequestFrame{
		Type:  types.FrameTypeWarmup,
		ReqID: h.nextReqID(),
	})
	if err != nil {
		h.warmupErr = err
		return
	}
	h.logger.Debug("engine warmed up", nil)
}

// Extract runs an extraction in the engine process. Expected failures come
// back as *types.Failure; a dead engine comes back as *CrashError.
func (h *Handle) Extract(ctx context.Context, req *types.ExtractRequest) (*types.ExtractResult, error) {
	if err := h.Warmup(ctx); err != nil {
		return nil, err
	}
	res, data, err := h.roundtrip(ctx, &types.RequestFrame{
		Type:    types.FrameTypeExtract,
		ReqID:   h.nextReqID(),
		Extract: req,
	})
	if err != nil {
		return nil, err
	}
	if res.Failure != nil {
		return nil, res.Failure
	}
	if res.Extract != nil {
		return res.Extract, nil
	}
	// An oversized result arrives as a chunk stream followed by a bare
	// result frame.
	if len(data) > 0 {
		var out types.ExtractResult
		if err := msgpack.Unmarshal(data, &out); err != nil {
			return nil, &CrashError{Err: fmt.Errorf("decode chunked extract result: %w", err), Stderr: h.stderrTail()}
		}
		return &out, nil
	}
	return nil, &CrashError{Err: fmt.Errorf("result frame missing extract payload"), Stderr: h.stderrTail()}
}

// Create runs an archive creation in the engine process.
func (h *Handle) Create(ctx context.Context, req *types.CreateRequest) (*types.CreateResult, error) {
	if err := h.Warmup(ctx); err != nil {
		return nil, err
	}
	res, data, err := h.roundtrip(ctx, &types.RequestFrame{
		Type:   types.FrameTypeCreate,
		ReqID:  h.nextReqID(),
		Create: req,
	})
	if err != nil {
		return nil, err
	}
	if res.Failure != nil {
		return nil, res.Failure
	}
	if res.Create != nil {
		return res.Create, nil
	}
	if len(data) > 0 {
		var out types.CreateResult
		if err := msgpack.Unmarshal(data, &out); err != nil {
			return nil, &CrashError{Err: fmt.Errorf("decode chunked create result: %w", err), Stderr: h.stderrTail()}
		}
		return &out, nil
	}
	return nil, &CrashError{Err: fmt.Errorf("result frame missing create payload"), Stderr: h.stderrTail()}
}

// FetchEntry retrieves one entry payload from an open extraction session.
// The payload arrives as a chunk stream reassembled here.
func (h *Handle) FetchEntry(ctx context.Context, sessionID, path string) ([]byte, error) {
	if err := h.Warmup(ctx); err != nil {
		return nil, err
	}
	res, data, err := h.roundtrip(ctx, &types.RequestFrame{
		Type:      types.FrameTypeFetchEntry,
		ReqID:     h.nextReqID(),
		SessionID: sessionID,
		EntryPath: path,
	})
	if err != nil {
		return nil, err
	}
	if res.Failure != nil {
		return nil, res.Failure
	}
	return data, nil
}

// Release discards an extraction session. Safe to call for unknown sessions.
func (h *Handle) Release(ctx context.Context, sessionID string) error {
	if err := h.Warmup(ctx); err != nil {
		return err
	}
	res, _, err := h.roundtrip(ctx, &types.RequestFrame{
		Type:      types.FrameTypeRelease,
		ReqID:     h.nextReqID(),
		SessionID: sessionID,
	})
	if err != nil {
		return err
	}
	if res.Failure != nil {
		return res.Failure
	}
	return nil
}

// Close shuts the engine process down. Idempotent and safe to invoke multiple
// times. A shutdown frame is sent best-effort before the process is killed.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	if h.proc == nil {
		return nil
	}

	_ = h.enc.WriteFrame(&types.RequestFrame{
		Type:  types.FrameTypeShutdown,
		ReqID: h.nextReqID(),
	})
	_ = h.proc.Kill()
	_, err := h.proc.Wait()
	return err
}

func (h *Handle) nextReqID() string {
	return "req-" + strconv.FormatInt(h.reqSeq.Add(1), 10)
}

// roundtrip writes one request frame and reads engine frames until the
// matching result arrives. Log frames are forwarded; entry chunk frames are
// reassembled into the returned byte slice.
func (h *Handle) roundtrip(ctx context.Context, req *types.RequestFrame) (*types.ResultFrame, []byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, nil, fmt.Errorf("engine handle is closed")
	}
	if h.enc == nil {
		return nil, nil, fmt.Errorf("engine not started")
	}

	if err := h.sendRequest(req); err != nil {
		return nil, nil, err
	}

	var (
		chunks  bytes.Buffer
		nextSeq int64 = 1
		last    bool
	)
	for {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		payload, err := h.dec.ReadFrame()
		if err != nil {
			return nil, nil, h.crash(err)
		}
		frame, err := ipc.DecodeFrame(payload)
		if err != nil {
			return nil, nil, h.crash(err)
		}

		switch f := frame.(type) {
		case *types.EngineLogFrame:
			h.forwardLog(f)

		case *types.EntryChunkFrame:
			if f.ReqID != req.ReqID {
				return nil, nil, h.crash(fmt.Errorf("chunk for unexpected request %q", f.ReqID))
			}
			// Chunk sequence is strictly 1, 2, 3... with no resync.
			if f.Seq != nextSeq {
				return nil, nil, h.crash(fmt.Errorf("expected chunk seq %d, got %d", nextSeq, f.Seq))
			}
			if last {
				return nil, nil, h.crash(fmt.Errorf("chunk %d received after final chunk", f.Seq))
			}
			if int64(chunks.Len())+int64(len(f.Data)) > MaxEntrySize {
				return nil, nil, h.crash(fmt.Errorf("entry payload exceeds %d bytes", MaxEntrySize))
			}
			chunks.Write(f.Data)
			nextSeq++
			last = f.IsLast

		case *types.ResultFrame:
			if f.ReqID != req.ReqID {
				return nil, nil, h.crash(fmt.Errorf("result for unexpected request %q", f.ReqID))
			}
			if chunks.Len() > 0 && !last {
				return nil, nil, h.crash(fmt.Errorf("result arrived before final chunk"))
			}
			return f, chunks.Bytes(), nil

		default:
			return nil, nil, h.crash(fmt.Errorf("unexpected frame %T", frame))
		}
	}
}

// sendRequest writes one request frame. An extract or create body too large
// for a single frame is encoded separately and streamed as sequence-numbered
// chunks, followed by a body-less request frame; the engine reassembles it.
// A rejection that never reached the wire leaves the engine untouched, so it
// surfaces as a plain error rather than a crash.
func (h *Handle) sendRequest(req *types.RequestFrame) error {
	err := h.enc.WriteFrame(req)
	if err == nil {
		return nil
	}
	var fe *ipc.FrameError
	if !errors.As(err, &fe) || fe.Kind != ipc.FrameErrorTooLarge {
		return h.crash(err)
	}

	var body []byte
	switch req.Type {
	case types.FrameTypeExtract:
		body, err = msgpack.Marshal(req.Extract)
	case types.FrameTypeCreate:
		body, err = msgpack.Marshal(req.Create)
	default:
		return fe
	}
	if err != nil {
		return fmt.Errorf("encode request body: %w", err)
	}
	if int64(len(body)) > MaxEntrySize {
		return fmt.Errorf("request body of %d bytes exceeds %d byte limit", len(body), int64(MaxEntrySize))
	}

	if err := h.writeBodyChunks(req.ReqID, body); err != nil {
		return h.crash(err)
	}
	bare := *req
	bare.Extract = nil
	bare.Create = nil
	if err := h.enc.WriteFrame(&bare); err != nil {
		return h.crash(err)
	}
	return nil
}

func (h *Handle) writeBodyChunks(reqID string, data []byte) error {
	seq := int64(1)
	for {
		n := len(data)
		if n > ipc.MaxChunkSize {
			n = ipc.MaxChunkSize
		}
		chunk := &types.EntryChunkFrame{
			Type:   types.FrameTypeEntryChunk,
			ReqID:  reqID,
			Seq:    seq,
			Data:   data[:n],
			IsLast: n == len(data),
		}
		if err := h.enc.WriteFrame(chunk); err != nil {
			return err
		}
		if chunk.IsLast {
			return nil
		}
		data = data[n:]
		seq++
	}
}

func (h *Handle) forwardLog(f *types.EngineLogFrame) {
	switch f.Level {
	case "debug":
		h.logger.Debug(f.Message, f.Fields)
	case "warn":
		h.logger.Warn(f.Message, f.Fields)
	case "error":
		h.logger.Error(f.Message, f.Fields)
	default:
		h.logger.Info(f.Message, f.Fields)
	}
}

// crash wraps a protocol or stream error with the engine's stderr tail and
// kills the process; the handle is not reusable afterwards.
func (h *Handle) crash(err error) error {
	if h.proc != nil {
		_ = h.proc.Kill()
	}
	h.closed = true
	return &CrashError{Err: err, Stderr: h.stderrTail()}
}

func (h *Handle) captureStderr(r io.Reader) {
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			h.stderrMu.Lock()
			h.stderrBuf.Write(buf[:n])
			if h.stderrBuf.Len() > stderrTailSize {
				tail := h.stderrBuf.Bytes()[h.stderrBuf.Len()-stderrTailSize:]
				trimmed := make([]byte, len(tail))
				copy(trimmed, tail)
				h.stderrBuf.Reset()
				h.stderrBuf.Write(trimmed)
			}
			h.stderrMu.Unlock()
		}
		if err != nil {
			return
		}
	}
}

func (h *Handle) stderrTail() string {
	h.stderrMu.Lock()
	defer h.stderrMu.Unlock()
	return h.stderrBuf.String()
}
