// Package types defines core domain types for the arca archive toolkit.
//
//nolint:revive // types is a common Go package naming convention
package types

// FormatKind distinguishes container archives from single-file stream compressors.
type FormatKind string

const (
	// KindSingle is a stream compressor wrapping exactly one unnamed payload.
	KindSingle FormatKind = "single"
	// KindArchive is a container format holding multiple named entries.
	KindArchive FormatKind = "archive"
)

// Format identifies an archive or compression format.
type Format string

// Single-file compression formats.
const (
	FormatGzip  Format = "gz"
	FormatBzip2 Format = "bz2"
	FormatXz    Format = "xz"
	FormatZstd  Format = "zst"
	FormatLz4   Format = "lz4"
)

// Container archive formats.
const (
	FormatZip      Format = "zip"
	FormatSevenZip Format = "7z"
	FormatRar      Format = "rar"
	FormatTar      Format = "tar"
	FormatTarGz    Format = "tar.gz"
	FormatTarBz2   Format = "tar.bz2"
	FormatTarXz    Format = "tar.xz"
	FormatIso      Format = "iso"
	FormatCab      Format = "cab"
	FormatAr       Format = "ar"
	FormatCpio     Format = "cpio"
	FormatXar      Format = "xar"
	FormatLha      Format = "lha"
	FormatUnknown  Format = "unknown"
)

// Kind returns whether the format is a single-stream compressor or a container.
// FormatUnknown is treated as a container: an unidentified file is still offered
// to the container engines before extraction gives up.
func (f Format) Kind() FormatKind {
	switch f {
	case FormatGzip, FormatBzip2, FormatXz, FormatZstd, FormatLz4:
		return KindSingle
	default:
		return KindArchive
	}
}

// TarVariant reports whether the format is tar or one of its compressed variants.
func (f Format) TarVariant() bool {
	switch f {
	case FormatTar, FormatTarGz, FormatTarBz2, FormatTarXz:
		return true
	default:
		return false
	}
}
