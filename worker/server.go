// Package worker implements the engine-process side of the frame protocol.
//
// The server reads request frames from the host, dispatches them to the
// extraction and creation services, and writes result frames back. Entry
// payloads go out as a chunk stream so no single frame exceeds the protocol
// limit; oversized request and result bodies travel the same way, in either
// direction. The loop exits on EOF (host closed stdin), on a shutdown request, or
// on a fatal frame error; invalid framing has no resync.
package worker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/arca-io/arca/create"
	"github.com/arca-io/arca/extract"
	"github.com/arca-io/arca/ipc"
	"github.com/arca-io/arca/log"
	"github.com/arca-io/arca/types"
)

// maxSpillBody bounds a reassembled chunked request body (1 GiB).
const maxSpillBody = 1 * 1024 * 1024 * 1024

// Server runs the engine-side dispatch loop over one frame stream pair.
type Server struct {
	dec       *ipc.FrameDecoder
	enc       *ipc.FrameEncoder
	extractor *extract.Service
	creator   *create.Service
	logger    *log.Logger

	// spill accumulates a request body the host streamed as chunks because
	// it did not fit in one frame. Requests are serialized, so at most one
	// stream is in flight.
	spill *bodySpill
}

// bodySpill is one in-flight chunked request body.
type bodySpill struct {
	reqID   string
	buf     bytes.Buffer
	nextSeq int64
	done    bool
}

// NewServer creates a server reading requests from r and writing frames to w.
func NewServer(r io.Reader, w io.Writer, extractor *extract.Service, creator *create.Service, logger *log.Logger) *Server {
	return &Server{
		dec:       ipc.NewFrameDecoder(r),
		enc:       ipc.NewFrameEncoder(w),
		extractor: extractor,
		creator:   creator,
		logger:    logger,
	}
}

// Run processes requests until EOF, shutdown, or a fatal stream error.
func (s *Server) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		payload, err := s.dec.ReadFrame()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read request frame: %w", err)
		}

		frame, err := ipc.DecodeFrame(payload)
		if err != nil {
			return fmt.Errorf("decode request frame: %w", err)
		}

		switch f := frame.(type) {
		case *types.EntryChunkFrame:
			if err := s.bufferBodyChunk(f); err != nil {
				return err
			}

		case *types.RequestFrame:
			if err := s.attachSpilledBody(f); err != nil {
				return err
			}
			done, err := s.dispatch(ctx, f)
			if err != nil {
				return err
			}
			if done {
				return nil
			}

		default:
			return fmt.Errorf("unexpected frame %T from host", frame)
		}
	}
}

// bufferBodyChunk appends one host-sent chunk to the in-flight request body.
// Sequencing follows the entry chunk rules: seq starts at 1, no resync.
func (s *Server) bufferBodyChunk(f *types.EntryChunkFrame) error {
	if s.spill == nil {
		if f.Seq != 1 {
			return fmt.Errorf("request body stream starts at seq %d", f.Seq)
		}
		s.spill = &bodySpill{reqID: f.ReqID, nextSeq: 1}
	}
	sp := s.spill
	if f.ReqID != sp.reqID {
		return fmt.Errorf("body chunk for request %q while %q is in flight", f.ReqID, sp.reqID)
	}
	if sp.done {
		return fmt.Errorf("body chunk %d received after final chunk", f.Seq)
	}
	if f.Seq != sp.nextSeq {
		return fmt.Errorf("expected body chunk seq %d, got %d", sp.nextSeq, f.Seq)
	}
	if int64(sp.buf.Len())+int64(len(f.Data)) > maxSpillBody {
		return fmt.Errorf("request body exceeds %d bytes", int64(maxSpillBody))
	}
	sp.buf.Write(f.Data)
	sp.nextSeq++
	sp.done = f.IsLast
	return nil
}

// attachSpilledBody decodes a completed chunk stream into the request it
// belongs to. A request with no pending stream passes through untouched.
func (s *Server) attachSpilledBody(req *types.RequestFrame) error {
	if s.spill == nil {
		return nil
	}
	sp := s.spill
	s.spill = nil
	if req.ReqID != sp.reqID {
		return fmt.Errorf("request %q arrived with body chunks pending for %q", req.ReqID, sp.reqID)
	}
	if !sp.done {
		return fmt.Errorf("request %q arrived before its final body chunk", req.ReqID)
	}

	switch req.Type {
	case types.FrameTypeExtract:
		if req.Extract != nil {
			return fmt.Errorf("extract request %q has both inline and chunked bodies", req.ReqID)
		}
		var body types.ExtractRequest
		if err := msgpack.Unmarshal(sp.buf.Bytes(), &body); err != nil {
			return fmt.Errorf("decode chunked extract body: %w", err)
		}
		req.Extract = &body
	case types.FrameTypeCreate:
		if req.Create != nil {
			return fmt.Errorf("create request %q has both inline and chunked bodies", req.ReqID)
		}
		var body types.CreateRequest
		if err := msgpack.Unmarshal(sp.buf.Bytes(), &body); err != nil {
			return fmt.Errorf("decode chunked create body: %w", err)
		}
		req.Create = &body
	default:
		return fmt.Errorf("unexpected body chunks for %s request %q", req.Type, req.ReqID)
	}
	return nil
}

// dispatch handles one request. The returned bool is true for shutdown.
func (s *Server) dispatch(ctx context.Context, req *types.RequestFrame) (bool, error) {
	switch req.Type {
	case types.FrameTypeWarmup:
		s.extractor.Warmup()
		if err := s.emitLog("info", "engine ready", nil); err != nil {
			return false, err
		}
		return false, s.writeResult(&types.ResultFrame{Type: types.FrameTypeResult, ReqID: req.ReqID})

	case types.FrameTypeExtract:
		res, err := s.extractor.Extract(ctx, req.Extract)
		if err != nil {
			return false, s.writeFailure(req.ReqID, err, types.FailureExtractionFailed)
		}
		return false, s.writeResult(&types.ResultFrame{Type: types.FrameTypeResult, ReqID: req.ReqID, Extract: res})

	case types.FrameTypeCreate:
		res, err := s.creator.Create(ctx, req.Create)
		if err != nil {
			return false, s.writeFailure(req.ReqID, err, types.FailureCreateFailed)
		}
		return false, s.writeResult(&types.ResultFrame{Type: types.FrameTypeResult, ReqID: req.ReqID, Create: res})

	case types.FrameTypeFetchEntry:
		data, err := s.extractor.FetchEntry(ctx, req.SessionID, req.EntryPath)
		if err != nil {
			return false, s.writeFailure(req.ReqID, err, types.FailureExtractionFailed)
		}
		if err := s.writeChunks(req.ReqID, data); err != nil {
			return false, err
		}
		return false, s.writeResult(&types.ResultFrame{Type: types.FrameTypeResult, ReqID: req.ReqID})

	case types.FrameTypeRelease:
		s.extractor.Release(req.SessionID)
		return false, s.writeResult(&types.ResultFrame{Type: types.FrameTypeResult, ReqID: req.ReqID})

	case types.FrameTypeShutdown:
		_ = s.writeResult(&types.ResultFrame{Type: types.FrameTypeResult, ReqID: req.ReqID})
		s.logger.Debug("shutdown requested", nil)
		return true, nil

	default:
		return false, fmt.Errorf("unknown request type %q", req.Type)
	}
}

// writeChunks streams an entry payload as sequence-numbered chunk frames.
// Zero-length payloads still produce one final chunk so the host sees an
// explicit end marker.
func (s *Server) writeChunks(reqID string, data []byte) error {
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
		if err := s.enc.WriteFrame(chunk); err != nil {
			return fmt.Errorf("write chunk frame: %w", err)
		}
		if chunk.IsLast {
			return nil
		}
		data = data[n:]
		seq++
	}
}

// writeFailure sends a typed failure result. Unexpected errors are wrapped
// with the given fallback code.
func (s *Server) writeFailure(reqID string, err error, fallback types.FailureCode) error {
	failure, ok := types.AsFailure(err)
	if !ok {
		failure = &types.Failure{
			Code:        fallback,
			Message:     err.Error(),
			Recoverable: false,
		}
	}
	return s.writeResult(&types.ResultFrame{Type: types.FrameTypeResult, ReqID: reqID, Failure: failure})
}

// writeResult sends one result frame. A payload too large for a single frame
// is streamed as chunks first, mirroring what the host does for oversized
// request bodies.
func (s *Server) writeResult(res *types.ResultFrame) error {
	err := s.enc.WriteFrame(res)
	if err == nil {
		return nil
	}
	var fe *ipc.FrameError
	if !errors.As(err, &fe) || fe.Kind != ipc.FrameErrorTooLarge {
		return fmt.Errorf("write result frame: %w", err)
	}

	var body []byte
	switch {
	case res.Create != nil:
		body, err = msgpack.Marshal(res.Create)
	case res.Extract != nil:
		body, err = msgpack.Marshal(res.Extract)
	default:
		return fmt.Errorf("write result frame: %w", fe)
	}
	if err != nil {
		return fmt.Errorf("encode result body: %w", err)
	}
	if err := s.writeChunks(res.ReqID, body); err != nil {
		return err
	}
	bare := &types.ResultFrame{Type: types.FrameTypeResult, ReqID: res.ReqID}
	if err := s.enc.WriteFrame(bare); err != nil {
		return fmt.Errorf("write result frame: %w", err)
	}
	return nil
}

func (s *Server) emitLog(level, message string, fields map[string]any) error {
	return s.enc.WriteFrame(&types.EngineLogFrame{
		Type:    types.FrameTypeEngineLog,
		Level:   level,
		Message: message,
		Fields:  fields,
	})
}
