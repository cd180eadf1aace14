package engine

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math/rand"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/spf13/afero"

	"github.com/arca-io/arca/create"
	"github.com/arca-io/arca/extract"
	"github.com/arca-io/arca/ipc"
	"github.com/arca-io/arca/log"
	"github.com/arca-io/arca/types"
	"github.com/arca-io/arca/worker"
)

func testLogger() *log.Logger {
	return log.NewLogger("engine-test").WithOutput(io.Discard)
}

// pipeProc is an in-memory Proc running a serve function over io pipes, so
// handle tests exercise the real frame protocol without a child process.
type pipeProc struct {
	serve func(r io.Reader, w io.Writer)

	stdinR  *io.PipeReader
	stdinW  *io.PipeWriter
	stdoutR *io.PipeReader
	stdoutW *io.PipeWriter
	stderrR *io.PipeReader
	stderrW *io.PipeWriter

	killed atomic.Bool
}

func newPipeProc(serve func(r io.Reader, w io.Writer)) *pipeProc {
	return &pipeProc{serve: serve}
}

func (p *pipeProc) Start(ctx context.Context) error {
	p.stdinR, p.stdinW = io.Pipe()
	p.stdoutR, p.stdoutW = io.Pipe()
	p.stderrR, p.stderrW = io.Pipe()
	go func() {
		p.serve(p.stdinR, p.stdoutW)
		// Closing both ends makes pending handle reads and writes fail the
		// way a dead child process would.
		_ = p.stdoutW.Close()
		_ = p.stderrW.Close()
		_ = p.stdinR.Close()
	}()
	return nil
}

func (p *pipeProc) Stdin() io.Writer  { return p.stdinW }
func (p *pipeProc) Stdout() io.Reader { return p.stdoutR }
func (p *pipeProc) Stderr() io.Reader { return p.stderrR }

func (p *pipeProc) Kill() error {
	if p.killed.CompareAndSwap(false, true) {
		_ = p.stdinW.Close()
		_ = p.stdoutR.Close()
	}
	return nil
}

func (p *pipeProc) Wait() (int, error) { return 0, nil }

// workerFactory runs the real engine-side server behind a pipeProc.
func workerFactory(t *testing.T, starts *atomic.Int32) ProcFactory {
	t.Helper()
	return func() Proc {
		if starts != nil {
			starts.Add(1)
		}
		return newPipeProc(func(r io.Reader, w io.Writer) {
			logger := testLogger()
			srv := worker.NewServer(r, w,
				extract.NewService(logger),
				create.NewService(logger, create.Config{Fs: afero.NewMemMapFs()}),
				logger,
			)
			_ = srv.Run(context.Background())
		})
	}
}

func gzipBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	if _, err := gw.Write(data); err != nil {
		t.Fatalf("gzip write: %v", err)
	}
	if err := gw.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}
	return buf.Bytes()
}

func TestHandleExtractFetchRelease(t *testing.T) {
	h := NewHandle(testLogger(), workerFactory(t, nil))
	defer h.Close()
	ctx := context.Background()

	payload := []byte("over the wire")
	res, err := h.Extract(ctx, &types.ExtractRequest{
		FileName: "msg.txt.gz",
		Data:     gzipBytes(t, payload),
	})
	if err != nil {
		t.Fatalf("Extract() error: %v", err)
	}
	if len(res.Entries) != 1 || res.Entries[0].Path != "msg.txt" {
		t.Fatalf("unexpected entries: %+v", res.Entries)
	}
	if res.SessionID == "" {
		t.Fatal("missing session id")
	}

	got, err := h.FetchEntry(ctx, res.SessionID, "msg.txt")
	if err != nil {
		t.Fatalf("FetchEntry() error: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("fetched payload = %q, want %q", got, payload)
	}

	if err := h.Release(ctx, res.SessionID); err != nil {
		t.Fatalf("Release() error: %v", err)
	}
	// Releasing again is a no-op, not an error.
	if err := h.Release(ctx, res.SessionID); err != nil {
		t.Fatalf("second Release() error: %v", err)
	}
}

func TestHandleLargeArchiveRoundTrip(t *testing.T) {
	h := NewHandle(testLogger(), workerFactory(t, nil))
	defer h.Close()
	ctx := context.Background()

	// Incompressible data keeps the archive above the single-frame limit in
	// both directions.
	payload := make([]byte, 20*1024*1024)
	rand.New(rand.NewSource(7)).Read(payload)

	res, err := h.Extract(ctx, &types.ExtractRequest{
		FileName: "blob.bin.gz",
		Data:     gzipBytes(t, payload),
	})
	if err != nil {
		t.Fatalf("Extract() error: %v", err)
	}
	if len(res.Entries) != 1 || res.Entries[0].Path != "blob.bin" {
		t.Fatalf("unexpected entries: %+v", res.Entries)
	}
	got, err := h.FetchEntry(ctx, res.SessionID, "blob.bin")
	if err != nil {
		t.Fatalf("FetchEntry() error: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("fetched payload differs: got %d bytes, want %d", len(got), len(payload))
	}

	created, err := h.Create(ctx, &types.CreateRequest{
		Format: types.FormatZip,
		Files:  []types.CreateFile{{Path: "blob.bin", Data: payload}},
	})
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if len(created.Data) <= ipc.MaxPayloadSize {
		t.Fatalf("archive of %d bytes fits one frame, result stream untested", len(created.Data))
	}
}

func TestHandleOversizeRejectionKeepsEngineAlive(t *testing.T) {
	h := NewHandle(testLogger(), workerFactory(t, nil))
	defer h.Close()
	ctx := context.Background()
	if err := h.Warmup(ctx); err != nil {
		t.Fatalf("Warmup() error: %v", err)
	}

	// A frame too large to encode, of a type with no chunked fallback, is
	// rejected before anything reaches the wire.
	err := h.sendRequest(&types.RequestFrame{
		Type:      types.FrameTypeFetchEntry,
		ReqID:     h.nextReqID(),
		SessionID: "sess-1",
		EntryPath: strings.Repeat("a", ipc.MaxPayloadSize+1),
	})
	if err == nil {
		t.Fatal("sendRequest() accepted an oversized frame")
	}
	var crash *CrashError
	if errors.As(err, &crash) {
		t.Fatalf("sendRequest() error = %v, want local rejection", err)
	}

	// The engine is still usable afterwards.
	payload := []byte("still alive")
	res, err := h.Extract(ctx, &types.ExtractRequest{
		FileName: "msg.txt.gz",
		Data:     gzipBytes(t, payload),
	})
	if err != nil {
		t.Fatalf("Extract() after rejection: %v", err)
	}
	if len(res.Entries) != 1 {
		t.Fatalf("unexpected entries: %+v", res.Entries)
	}
}

func TestHandleCreate(t *testing.T) {
	h := NewHandle(testLogger(), workerFactory(t, nil))
	defer h.Close()

	res, err := h.Create(context.Background(), &types.CreateRequest{
		Format: types.FormatZip,
		Files:  []types.CreateFile{{Path: "a.txt", Data: []byte("hello")}},
	})
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if len(res.Data) == 0 {
		t.Error("empty archive data")
	}
	if res.Format != types.FormatZip {
		t.Errorf("format = %q, want %q", res.Format, types.FormatZip)
	}
}

func TestHandleFailurePassthrough(t *testing.T) {
	h := NewHandle(testLogger(), workerFactory(t, nil))
	defer h.Close()

	_, err := h.Extract(context.Background(), &types.ExtractRequest{
		FileName: "mystery.xyz",
		Data:     []byte("not an archive"),
	})
	failure, ok := types.AsFailure(err)
	if !ok {
		t.Fatalf("Extract() error = %v, want typed failure", err)
	}
	if failure.Code != types.FailureUnsupportedFormat {
		t.Errorf("code = %q, want %q", failure.Code, types.FailureUnsupportedFormat)
	}
}

func TestHandleWarmupCollapses(t *testing.T) {
	var starts atomic.Int32
	h := NewHandle(testLogger(), workerFactory(t, &starts))
	defer h.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := h.Warmup(context.Background()); err != nil {
				t.Errorf("Warmup() error: %v", err)
			}
		}()
	}
	wg.Wait()

	if n := starts.Load(); n != 1 {
		t.Errorf("engine started %d times, want 1", n)
	}
}

func TestHandleCrash(t *testing.T) {
	factory := func() Proc {
		var p *pipeProc
		// Dies without answering any frame.
		p = newPipeProc(func(r io.Reader, w io.Writer) {
			_, _ = p.stderrW.Write([]byte("engine panic: boom"))
		})
		return p
	}

	h := NewHandle(testLogger(), factory)
	defer h.Close()

	_, err := h.Extract(context.Background(), &types.ExtractRequest{
		FileName: "x.gz",
		Data:     []byte{0x1f, 0x8b},
	})
	var crash *CrashError
	if !errors.As(err, &crash) {
		t.Fatalf("Extract() error = %v, want CrashError", err)
	}

	// The handle is dead afterwards.
	if _, err := h.Extract(context.Background(), &types.ExtractRequest{FileName: "y.gz"}); err == nil {
		t.Error("Extract on crashed handle should fail")
	}
}

func TestHandleCloseIdempotent(t *testing.T) {
	h := NewHandle(testLogger(), workerFactory(t, nil))
	if err := h.Warmup(context.Background()); err != nil {
		t.Fatalf("Warmup() error: %v", err)
	}
	if err := h.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if err := h.Close(); err != nil {
		t.Fatalf("second Close() error: %v", err)
	}
}
