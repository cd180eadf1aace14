package types

// Frame type discriminants for the engine protocol. Every frame carries a
// "type" field probed before full decode.
const (
	// Host to engine.
	FrameTypeWarmup     = "warmup"
	FrameTypeExtract    = "extract"
	FrameTypeCreate     = "create"
	FrameTypeFetchEntry = "fetch_entry"
	FrameTypeRelease    = "release"
	FrameTypeShutdown   = "shutdown"

	// Engine to host.
	FrameTypeResult     = "result"
	FrameTypeEntryChunk = "entry_chunk"
	FrameTypeEngineLog  = "engine_log"
)

// RequestFrame is a host-to-engine request. Exactly one result frame answers
// each request; entry chunk frames for a fetch precede its result. An extract
// or create body too large for one frame is streamed as chunk frames followed
// by a body-less request.
type RequestFrame struct {
	// Type is the frame discriminant (warmup, extract, create, fetch_entry,
	// release, shutdown).
	Type string `msgpack:"type"`
	// ReqID correlates the request with its result frame.
	ReqID string `msgpack:"req_id"`
	// Extract is set for extract requests.
	Extract *ExtractRequest `msgpack:"extract,omitempty"`
	// Create is set for create requests.
	Create *CreateRequest `msgpack:"create,omitempty"`
	// SessionID is set for fetch_entry and release requests.
	SessionID string `msgpack:"session_id,omitempty"`
	// EntryPath is set for fetch_entry requests.
	EntryPath string `msgpack:"entry_path,omitempty"`
}

// ResultFrame is the engine-to-host answer to a request.
// Exactly one of the payload fields is set on success, unless the payload was
// streamed as chunk frames ahead of the result; Failure is set when the
// operation ended in an expected, typed failure.
type ResultFrame struct {
	// Type is always "result".
	Type string `msgpack:"type"`
	// ReqID matches the originating request.
	ReqID string `msgpack:"req_id"`
	// Extract is the extraction success payload.
	Extract *ExtractResult `msgpack:"extract,omitempty"`
	// Create is the creation success payload.
	Create *CreateResult `msgpack:"create,omitempty"`
	// Failure is the typed failure payload.
	Failure *Failure `msgpack:"failure,omitempty"`
}

// EntryChunkFrame carries one ordered slice of an entry payload, or of a
// request or result body that did not fit in a single frame.
// Seq starts at 1 and is strictly increasing per request; the final chunk sets
// IsLast. The sender drops its buffer reference once the chunk is written, so
// payload ownership transfers to the receiver.
type EntryChunkFrame struct {
	// Type is always "entry_chunk".
	Type string `msgpack:"type"`
	// ReqID matches the originating fetch_entry request.
	ReqID string `msgpack:"req_id"`
	// Seq is the chunk sequence number, starting at 1.
	Seq int64 `msgpack:"seq"`
	// Data is the chunk payload.
	Data []byte `msgpack:"data"`
	// IsLast marks the final chunk.
	IsLast bool `msgpack:"is_last"`
}

// EngineLogFrame forwards an engine-side log line to the host logger.
// Informational only; never answers a request.
type EngineLogFrame struct {
	// Type is always "engine_log".
	Type string `msgpack:"type"`
	// Level is the log level (debug, info, warn, error).
	Level string `msgpack:"level"`
	// Message is the log message.
	Message string `msgpack:"message"`
	// Fields carries structured context.
	Fields map[string]any `msgpack:"fields,omitempty"`
}
