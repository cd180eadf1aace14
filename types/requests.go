package types

import "time"

// ExtractRequest asks an engine to extract one archive.
// Immutable per attempt: a password retry is a new request carrying the same bytes.
type ExtractRequest struct {
	// FileName is the source file name, used for extension heuristics.
	FileName string `msgpack:"file_name" json:"file_name"`
	// Data is the raw archive bytes.
	Data []byte `msgpack:"data" json:"-"`
	// Password is the optional decryption password. Empty means none supplied.
	Password string `msgpack:"password,omitempty" json:"-"`
}

// ExtractResult is the success payload of an extraction.
// Expected failures travel as *Failure values instead.
type ExtractResult struct {
	// Entries is the flat entry listing, metadata only. Payloads are fetched
	// lazily per entry through the session.
	Entries []*ArchiveEntry `msgpack:"entries" json:"entries"`
	// Engine names the decode engine that produced the result.
	Engine string `msgpack:"engine" json:"engine"`
	// Format is the detected archive format.
	Format Format `msgpack:"format" json:"format"`
	// Warnings carries non-fatal diagnostics.
	Warnings []string `msgpack:"warnings,omitempty" json:"warnings,omitempty"`
	// Encrypted is true when the archive required a password.
	Encrypted bool `msgpack:"encrypted" json:"encrypted"`
	// SessionID identifies the engine-held session for lazy entry fetch.
	// Sessions must be released when the result set is discarded.
	SessionID string `msgpack:"session_id" json:"session_id"`
}

// CreateFile is a single input file for archive creation.
type CreateFile struct {
	// Path is the entry path within the archive, forward-slash separated.
	Path string `msgpack:"path" json:"path"`
	// Data is the file content.
	Data []byte `msgpack:"data" json:"-"`
	// ModTime is the optional modification time stamped on the entry.
	ModTime *time.Time `msgpack:"mod_time,omitempty" json:"mod_time,omitempty"`
}

// CreateRequest asks an engine to build a new archive from scratch.
type CreateRequest struct {
	// Format is the target container format. Only FormatZip and FormatSevenZip
	// are supported.
	Format Format `msgpack:"format" json:"format"`
	// Files are the input files. At least one is required.
	Files []CreateFile `msgpack:"files" json:"files"`
	// Password enables encryption when non-empty (AES-256 for zip).
	Password string `msgpack:"password,omitempty" json:"-"`
	// CompressionLevel is clamped to [0,9]; nil means the default (6).
	CompressionLevel *int `msgpack:"compression_level,omitempty" json:"compression_level,omitempty"`
	// EncryptHeaders also encrypts entry names (7z only).
	EncryptHeaders bool `msgpack:"encrypt_headers" json:"encrypt_headers"`
}

// CreateResult is the success payload of archive creation.
type CreateResult struct {
	// Data is the finished archive.
	Data []byte `msgpack:"data" json:"-"`
	// Format is the container format that was built.
	Format Format `msgpack:"format" json:"format"`
	// Engine names the creation engine used.
	Engine string `msgpack:"engine" json:"engine"`
	// Warnings carries non-fatal diagnostics (e.g. ignored options).
	Warnings []string `msgpack:"warnings,omitempty" json:"warnings,omitempty"`
	// PasswordProtected is true when the archive was encrypted.
	PasswordProtected bool `msgpack:"password_protected" json:"password_protected"`
}
