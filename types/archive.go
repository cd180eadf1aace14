package types

import "time"

// ArchiveEntry is a single entry as reported by a decode engine.
// Path uses forward-slash segments. Directory entries may or may not carry a
// trailing slash; tree building normalizes this.
type ArchiveEntry struct {
	// Path is the entry path within the archive, forward-slash separated.
	Path string `msgpack:"path" json:"path"`
	// Size is the uncompressed size in bytes.
	Size int64 `msgpack:"size" json:"size"`
	// IsDirectory marks directory entries.
	IsDirectory bool `msgpack:"is_directory" json:"is_directory"`
	// ModTime is the entry modification time, when the format records one.
	ModTime *time.Time `msgpack:"mod_time,omitempty" json:"mod_time,omitempty"`
	// CompressedSize is the stored (compressed) size, when the format records one.
	CompressedSize *int64 `msgpack:"compressed_size,omitempty" json:"compressed_size,omitempty"`
}

// ArchiveFileNode is a node in the reconstructed archive tree.
// The tree is produced fresh on each extraction and owned by the controller
// until replaced or cleared.
type ArchiveFileNode struct {
	// Name is the terminal path segment.
	Name string `json:"name"`
	// Path is the full forward-slash path; unique within a tree.
	Path string `json:"path"`
	// IsDirectory is true if any entry declared the node a directory, or if the
	// node exists only as a synthesized ancestor of a deeper entry.
	IsDirectory bool `json:"is_directory"`
	// Children holds child nodes, in sorted insertion order.
	Children []*ArchiveFileNode `json:"children,omitempty"`
	// Size is the uncompressed size in bytes (files only).
	Size int64 `json:"size"`
	// CompressedSize is the stored size, when known.
	CompressedSize *int64 `json:"compressed_size,omitempty"`
	// ModTime is the modification time, when known.
	ModTime *time.Time `json:"mod_time,omitempty"`
	// Data holds the entry payload once fetched from the engine session.
	// Nil until fetched; tree building never populates it.
	Data []byte `json:"-"`
}

// ArchiveStats are aggregate statistics derived on demand from a tree.
// Never persisted.
type ArchiveStats struct {
	// TotalFiles counts non-directory nodes.
	TotalFiles int `json:"total_files"`
	// TotalSize sums uncompressed sizes over files.
	TotalSize int64 `json:"total_size"`
	// TotalCompressed sums compressed sizes over files that carry one.
	// Nil when no entry carried a compressed size.
	TotalCompressed *int64 `json:"total_compressed,omitempty"`
	// CompressionRatio is TotalCompressed/TotalSize.
	// Nil when TotalCompressed is nil or TotalSize is zero.
	CompressionRatio *float64 `json:"compression_ratio,omitempty"`
}
