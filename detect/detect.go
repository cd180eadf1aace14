// Package detect classifies archive bytes and filenames into formats.
//
// Detection combines two independent classifiers: a magic-byte signature table
// and a longest-match-first extension table. Detect never fails; absence of
// evidence yields FormatUnknown with zero confidence.
package detect

import (
	"bytes"
	"strings"

	"github.com/arca-io/arca/types"
)

// Detection is the detector output: a format plus a confidence score
// combining signature and extension evidence.
type Detection struct {
	Format     types.Format
	Confidence float64
}

// Confidence scores per evidence case. These are tuning knobs, not invariants:
// consumers must not branch on exact values.
var (
	// ConfidenceExact: signature and extension agree.
	ConfidenceExact = 1.0
	// ConfidenceSignature: signature matched, no extension evidence.
	ConfidenceSignature = 0.9
	// ConfidenceConflict: signature and extension disagree; signature wins.
	ConfidenceConflict = 0.8
	// ConfidenceExtension: extension only, no signature match.
	ConfidenceExtension = 0.6
)

// signature is a fixed magic-byte sequence at a fixed offset.
type signature struct {
	format types.Format
	offset int
	magic  []byte
}

// Signature table. Order matters where prefixes overlap: RAR5 before RAR4,
// since the v5 magic extends the v4 magic by one byte.
var signatures = []signature{
	{types.FormatRar, 0, []byte("Rar!\x1A\x07\x01\x00")}, // RAR v5
	{types.FormatRar, 0, []byte("Rar!\x1A\x07\x00")},     // RAR v4
	{types.FormatSevenZip, 0, []byte{0x37, 0x7A, 0xBC, 0xAF, 0x27, 0x1C}},
	{types.FormatZip, 0, []byte{0x50, 0x4B, 0x03, 0x04}},
	{types.FormatZip, 0, []byte{0x50, 0x4B, 0x07, 0x08}}, // spanned zip
	{types.FormatGzip, 0, []byte{0x1F, 0x8B}},
	{types.FormatBzip2, 0, []byte("BZh")},
	{types.FormatXz, 0, []byte{0xFD, 0x37, 0x7A, 0x58, 0x5A, 0x00}},
	{types.FormatZstd, 0, []byte{0x28, 0xB5, 0x2F, 0xFD}},
	{types.FormatLz4, 0, []byte{0x04, 0x22, 0x4D, 0x18}},
	{types.FormatCab, 0, []byte("MSCF")},
	{types.FormatXar, 0, []byte("xar!")},
	{types.FormatLha, 2, []byte("-lh")},
}

// isoOffsets are the three sector positions where the ISO9660 "CD001" marker
// can appear, depending on the leading system area variant.
var isoOffsets = []int{0x8001, 0x8801, 0x9001}

var isoMarker = []byte("CD001")

// extension maps a filename suffix to a format. The table is consulted
// longest-suffix-first so compound suffixes (.tar.gz) beat bare ones (.gz).
type extension struct {
	suffix string
	format types.Format
}

var extensions = []extension{
	{".tar.gz", types.FormatTarGz},
	{".tar.bz2", types.FormatTarBz2},
	{".tar.xz", types.FormatTarXz},
	{".tgz", types.FormatTarGz},
	{".tbz2", types.FormatTarBz2},
	{".tbz", types.FormatTarBz2},
	{".txz", types.FormatTarXz},
	{".tar", types.FormatTar},
	{".zip", types.FormatZip},
	{".7z", types.FormatSevenZip},
	{".rar", types.FormatRar},
	{".gz", types.FormatGzip},
	{".bz2", types.FormatBzip2},
	{".xz", types.FormatXz},
	{".zst", types.FormatZstd},
	{".lz4", types.FormatLz4},
	{".iso", types.FormatIso},
	{".cab", types.FormatCab},
	{".ar", types.FormatAr},
	{".deb", types.FormatAr},
	{".cpio", types.FormatCpio},
	{".xar", types.FormatXar},
	{".pkg", types.FormatXar},
	{".lha", types.FormatLha},
	{".lzh", types.FormatLha},
}

// Detect classifies data and fileName into a format with a confidence score.
//
// Resolution policy:
//   - signature and extension agree: that format, ConfidenceExact
//   - both match but differ: signature wins (after the tar-upgrade rule), ConfidenceConflict
//   - signature only: ConfidenceSignature
//   - extension only: ConfidenceExtension
//   - neither: FormatUnknown, 0.0
func Detect(data []byte, fileName string) Detection {
	sigFormat, sigOK := matchSignature(data)
	extFormat, extOK := matchExtension(fileName)

	switch {
	case sigOK && extOK:
		if sigFormat == extFormat {
			return Detection{Format: sigFormat, Confidence: ConfidenceExact}
		}
		// A bare single-stream signature inside a compound tar name is the
		// container, not the inner compressor.
		if upgraded, ok := tarUpgrade(sigFormat, extFormat); ok {
			return Detection{Format: upgraded, Confidence: ConfidenceConflict}
		}
		return Detection{Format: sigFormat, Confidence: ConfidenceConflict}
	case sigOK:
		return Detection{Format: sigFormat, Confidence: ConfidenceSignature}
	case extOK:
		return Detection{Format: extFormat, Confidence: ConfidenceExtension}
	default:
		return Detection{Format: types.FormatUnknown, Confidence: 0.0}
	}
}

// matchSignature scans the signature table, then probes the ISO9660 marker.
func matchSignature(data []byte) (types.Format, bool) {
	for _, sig := range signatures {
		end := sig.offset + len(sig.magic)
		if len(data) < end {
			continue
		}
		if bytes.Equal(data[sig.offset:end], sig.magic) {
			return sig.format, true
		}
	}

	for _, off := range isoOffsets {
		end := off + len(isoMarker)
		if len(data) >= end && bytes.Equal(data[off:end], isoMarker) {
			return types.FormatIso, true
		}
	}

	return types.FormatUnknown, false
}

// matchExtension returns the longest matching suffix's format.
func matchExtension(fileName string) (types.Format, bool) {
	name := strings.ToLower(fileName)

	best := -1
	var bestFormat types.Format
	for _, ext := range extensions {
		if strings.HasSuffix(name, ext.suffix) && len(ext.suffix) > best {
			best = len(ext.suffix)
			bestFormat = ext.format
		}
	}
	if best < 0 {
		return types.FormatUnknown, false
	}
	return bestFormat, true
}

// tarUpgrade promotes a bare single-stream signature to the tar container
// variant named by the extension. A gzip signature inside "x.tar.gz" must not
// be treated as just gzip.
func tarUpgrade(sigFormat, extFormat types.Format) (types.Format, bool) {
	if sigFormat.Kind() != types.KindSingle || !extFormat.TarVariant() {
		return sigFormat, false
	}
	switch sigFormat {
	case types.FormatGzip:
		if extFormat == types.FormatTarGz {
			return types.FormatTarGz, true
		}
	case types.FormatBzip2:
		if extFormat == types.FormatTarBz2 {
			return types.FormatTarBz2, true
		}
	case types.FormatXz:
		if extFormat == types.FormatTarXz {
			return types.FormatTarXz, true
		}
	}
	return sigFormat, false
}
