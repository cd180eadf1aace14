package detect

import "github.com/arca-io/arca/types"

// IsSingleStream reports whether the format is a single-file stream compressor
// wrapping exactly one unnamed payload.
func IsSingleStream(f types.Format) bool {
	return f.Kind() == types.KindSingle
}

// archivistFriendly is the fixed allow-list of container formats handed to the
// generic archive engine first. Everything else, including all single-stream
// formats and RAR, goes straight to the specialized engine.
var archivistFriendly = map[types.Format]bool{
	types.FormatZip:    true,
	types.FormatTar:    true,
	types.FormatTarGz:  true,
	types.FormatTarBz2: true,
	types.FormatTarXz:  true,
	types.FormatCab:    true,
	types.FormatCpio:   true,
	types.FormatXar:    true,
	types.FormatAr:     true,
}

// PreferArchivist reports whether extraction should attempt the generic
// archive engine before falling back to the specialized one.
func PreferArchivist(f types.Format) bool {
	return archivistFriendly[f]
}

// displayNames maps formats to user-facing names.
var displayNames = map[types.Format]string{
	types.FormatGzip:     "Gzip",
	types.FormatBzip2:    "Bzip2",
	types.FormatXz:       "XZ",
	types.FormatZstd:     "Zstandard",
	types.FormatLz4:      "LZ4",
	types.FormatZip:      "ZIP",
	types.FormatSevenZip: "7-Zip",
	types.FormatRar:      "RAR",
	types.FormatTar:      "TAR",
	types.FormatTarGz:    "TAR (gzip)",
	types.FormatTarBz2:   "TAR (bzip2)",
	types.FormatTarXz:    "TAR (xz)",
	types.FormatIso:      "ISO 9660",
	types.FormatCab:      "Cabinet",
	types.FormatAr:       "AR",
	types.FormatCpio:     "CPIO",
	types.FormatXar:      "XAR",
	types.FormatLha:      "LHA",
}

// DisplayName returns the human-readable format name.
func DisplayName(f types.Format) string {
	if name, ok := displayNames[f]; ok {
		return name
	}
	return "Unknown"
}
