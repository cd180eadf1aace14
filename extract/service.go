// Package extract implements the in-engine extraction service.
//
// Two decode engines cover the format surface: the archivist engine drives the
// generic archive library and handles the container formats friendly to it;
// the vise engine drives format-specific decoders and covers everything else,
// including RAR, encrypted ZIP/7z variants, and all single-stream compressors.
//
// A successful extraction opens a session holding the raw archive bytes so
// individual entry payloads can be decoded on demand instead of eagerly,
// bounding peak memory for archives with many large entries.
package extract

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/arca-io/arca/detect"
	"github.com/arca-io/arca/log"
	"github.com/arca-io/arca/types"
)

// EngineArchivist and EngineVise name the decode engines in results.
const (
	EngineArchivist = "archivist"
	EngineVise      = "vise"
)

// session holds one decoded archive's listing plus everything needed to
// decode entry payloads lazily.
type session struct {
	id       string
	fileName string
	data     []byte
	password string
	format   types.Format
	engine   string
	entries  []*types.ArchiveEntry
	// payloads caches decoded entry payloads by path. Single-stream payloads
	// are cached at extraction time since decoding them is the only way to
	// learn their size.
	payloads map[string][]byte
}

// Service is the extraction engine. One instance lives inside each engine
// process; calls are serialized by the host.
type Service struct {
	mu       sync.Mutex
	sessions map[string]*session
	logger   *log.Logger

	warmupOnce sync.Once
}

// NewService creates an extraction service.
func NewService(logger *log.Logger) *Service {
	return &Service{
		sessions: make(map[string]*session),
		logger:   logger,
	}
}

// Warmup initializes decoder state ahead of the first extraction.
// Idempotent; repeat calls are no-ops.
func (s *Service) Warmup() {
	s.warmupOnce.Do(func() {
		// Force-build the archivist format registry so the first real
		// extraction does not pay for it.
		primeArchivist()
		s.logger.Debug("extraction engines warmed up", nil)
	})
}

// Extract runs format detection, selects a decode engine, and extracts the
// entry listing. Expected failures (password required, unsupported format,
// corrupt archive) are returned as *types.Failure values.
func (s *Service) Extract(ctx context.Context, req *types.ExtractRequest) (*types.ExtractResult, error) {
	s.Warmup()

	det := detect.Detect(req.Data, req.FileName)
	s.logger.Info("extracting archive", map[string]any{
		"file":       req.FileName,
		"format":     string(det.Format),
		"confidence": det.Confidence,
		"size":       len(req.Data),
	})

	var (
		res      *extraction
		warnings []string
		err      error
	)

	useArchivist := detect.PreferArchivist(det.Format) || det.Format == types.FormatUnknown
	if det.Format == types.FormatZip && zipEncrypted(req.Data) {
		// The generic engine lists encrypted zip entries without surfacing the
		// encryption flag, so password negotiation must go through vise.
		useArchivist = false
	}

	if useArchivist {
		res, err = s.archivistExtract(ctx, req, det.Format)
		if err != nil {
			if f, ok := types.AsFailure(err); ok && !f.Recoverable {
				return nil, err
			}
			// Recoverable archivist failure: fall back to the specialized engine.
			warnings = append(warnings, fmt.Sprintf("generic engine failed (%v), using specialized engine", err))
			res, err = s.viseExtract(ctx, req, det.Format)
		}
	} else {
		res, err = s.viseExtract(ctx, req, det.Format)
	}
	if err != nil {
		return nil, err
	}

	sess := &session{
		id:       uuid.NewString(),
		fileName: req.FileName,
		data:     req.Data,
		password: req.Password,
		format:   res.format,
		engine:   res.engine,
		entries:  res.entries,
		payloads: res.payloads,
	}
	if sess.payloads == nil {
		sess.payloads = make(map[string][]byte)
	}

	s.mu.Lock()
	s.sessions[sess.id] = sess
	s.mu.Unlock()

	return &types.ExtractResult{
		Entries:   res.entries,
		Engine:    res.engine,
		Format:    res.format,
		Warnings:  append(warnings, res.warnings...),
		Encrypted: res.encrypted,
		SessionID: sess.id,
	}, nil
}

// extraction is an engine-internal extraction outcome.
type extraction struct {
	entries   []*types.ArchiveEntry
	engine    string
	format    types.Format
	warnings  []string
	encrypted bool
	// payloads carries eagerly decoded payloads (single-stream formats only).
	payloads map[string][]byte
}

// FetchEntry decodes and returns one entry payload from an open session.
func (s *Service) FetchEntry(ctx context.Context, sessionID, path string) ([]byte, error) {
	s.mu.Lock()
	sess, ok := s.sessions[sessionID]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("unknown session %q", sessionID)
	}

	if data, ok := sess.payloads[path]; ok {
		return data, nil
	}

	data, err := s.decodeEntry(ctx, sess, path)
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Release discards a session. Idempotent: releasing an unknown or already
// released session is a no-op.
func (s *Service) Release(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; ok {
		delete(s.sessions, sessionID)
		s.logger.Debug("session released", map[string]any{"session_id": sessionID})
	}
}

// SessionCount reports open sessions, for diagnostics.
func (s *Service) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// decodeEntry re-opens the session's archive and decodes a single entry.
func (s *Service) decodeEntry(ctx context.Context, sess *session, path string) ([]byte, error) {
	switch {
	case sess.engine == EngineArchivist:
		return s.archivistFetch(ctx, sess, path)
	default:
		return s.viseFetch(ctx, sess, path)
	}
}
