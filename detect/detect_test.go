package detect

import (
	"testing"

	"github.com/arca-io/arca/types"
)

// sample builds a buffer starting with the given magic bytes.
func sample(magic ...byte) []byte {
	buf := make([]byte, 64)
	copy(buf, magic)
	return buf
}

func TestDetect_SignatureAndExtensionAgree(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		fileName string
		want     types.Format
	}{
		{"zip", sample(0x50, 0x4B, 0x03, 0x04), "bundle.zip", types.FormatZip},
		{"spanned zip", sample(0x50, 0x4B, 0x07, 0x08), "bundle.zip", types.FormatZip},
		{"gzip", sample(0x1F, 0x8B), "notes.gz", types.FormatGzip},
		{"bzip2", []byte("BZh91AY&SY................"), "notes.bz2", types.FormatBzip2},
		{"xz", sample(0xFD, 0x37, 0x7A, 0x58, 0x5A, 0x00), "notes.xz", types.FormatXz},
		{"7z", sample(0x37, 0x7A, 0xBC, 0xAF, 0x27, 0x1C), "bundle.7z", types.FormatSevenZip},
		{"rar4", []byte("Rar!\x1A\x07\x00........"), "bundle.rar", types.FormatRar},
		{"rar5", []byte("Rar!\x1A\x07\x01\x00......."), "bundle.rar", types.FormatRar},
		{"cab", []byte("MSCF............"), "bundle.cab", types.FormatCab},
		{"xar", []byte("xar!............"), "bundle.xar", types.FormatXar},
		{"zstd", sample(0x28, 0xB5, 0x2F, 0xFD), "notes.zst", types.FormatZstd},
		{"lz4", sample(0x04, 0x22, 0x4D, 0x18), "notes.lz4", types.FormatLz4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			det := Detect(tt.data, tt.fileName)
			if det.Format != tt.want {
				t.Errorf("Detect format = %q, want %q", det.Format, tt.want)
			}
			if det.Confidence != ConfidenceExact {
				t.Errorf("Detect confidence = %v, want %v", det.Confidence, ConfidenceExact)
			}
		})
	}
}

func TestDetect_LhaOffsetSignature(t *testing.T) {
	buf := make([]byte, 32)
	copy(buf[2:], "-lh5-")

	det := Detect(buf, "bundle.lzh")
	if det.Format != types.FormatLha {
		t.Errorf("Detect format = %q, want %q", det.Format, types.FormatLha)
	}
}

func TestDetect_IsoMarkerAtAnyKnownOffset(t *testing.T) {
	for _, off := range []int{0x8001, 0x8801, 0x9001} {
		buf := make([]byte, 0x9001+16)
		copy(buf[off:], "CD001")

		det := Detect(buf, "disc.iso")
		if det.Format != types.FormatIso {
			t.Errorf("offset %#x: Detect format = %q, want %q", off, det.Format, types.FormatIso)
		}
		if det.Confidence != ConfidenceExact {
			t.Errorf("offset %#x: confidence = %v, want %v", off, det.Confidence, ConfidenceExact)
		}
	}
}

func TestDetect_TarUpgrade(t *testing.T) {
	// A buffer matching only the bare gzip signature, named archive.tar.gz,
	// must classify as the tar container, not the inner compressor.
	tests := []struct {
		fileName string
		magic    []byte
		want     types.Format
	}{
		{"archive.tar.gz", []byte{0x1F, 0x8B}, types.FormatTarGz},
		{"archive.tgz", []byte{0x1F, 0x8B}, types.FormatTarGz},
		{"archive.tar.bz2", []byte("BZh"), types.FormatTarBz2},
		{"archive.tbz2", []byte("BZh"), types.FormatTarBz2},
		{"archive.tar.xz", []byte{0xFD, 0x37, 0x7A, 0x58, 0x5A, 0x00}, types.FormatTarXz},
		{"archive.txz", []byte{0xFD, 0x37, 0x7A, 0x58, 0x5A, 0x00}, types.FormatTarXz},
	}

	for _, tt := range tests {
		t.Run(tt.fileName, func(t *testing.T) {
			det := Detect(sample(tt.magic...), tt.fileName)
			if det.Format != tt.want {
				t.Errorf("Detect format = %q, want %q", det.Format, tt.want)
			}
			if det.Format.Kind() != types.KindArchive {
				t.Error("tar-upgraded format must be a container, not single-stream")
			}
			if det.Confidence != ConfidenceConflict {
				t.Errorf("confidence = %v, want %v", det.Confidence, ConfidenceConflict)
			}
		})
	}
}

func TestDetect_SignatureWinsOnConflict(t *testing.T) {
	// 7z magic but .zip name: signature wins at conflict confidence.
	det := Detect(sample(0x37, 0x7A, 0xBC, 0xAF, 0x27, 0x1C), "mislabeled.zip")
	if det.Format != types.FormatSevenZip {
		t.Errorf("Detect format = %q, want %q", det.Format, types.FormatSevenZip)
	}
	if det.Confidence != ConfidenceConflict {
		t.Errorf("confidence = %v, want %v", det.Confidence, ConfidenceConflict)
	}
}

func TestDetect_SignatureOnly(t *testing.T) {
	det := Detect(sample(0x50, 0x4B, 0x03, 0x04), "no-extension")
	if det.Format != types.FormatZip {
		t.Errorf("Detect format = %q, want %q", det.Format, types.FormatZip)
	}
	if det.Confidence != ConfidenceSignature {
		t.Errorf("confidence = %v, want %v", det.Confidence, ConfidenceSignature)
	}
}

func TestDetect_ExtensionOnly(t *testing.T) {
	det := Detect([]byte("plain text, no magic"), "bundle.rar")
	if det.Format != types.FormatRar {
		t.Errorf("Detect format = %q, want %q", det.Format, types.FormatRar)
	}
	if det.Confidence != ConfidenceExtension {
		t.Errorf("confidence = %v, want %v", det.Confidence, ConfidenceExtension)
	}
}

func TestDetect_NoEvidence(t *testing.T) {
	det := Detect([]byte("plain text, no magic"), "README")
	if det.Format != types.FormatUnknown {
		t.Errorf("Detect format = %q, want %q", det.Format, types.FormatUnknown)
	}
	if det.Confidence != 0.0 {
		t.Errorf("confidence = %v, want 0.0", det.Confidence)
	}
}

func TestDetect_EmptyInput(t *testing.T) {
	det := Detect(nil, "")
	if det.Format != types.FormatUnknown || det.Confidence != 0.0 {
		t.Errorf("Detect(nil, \"\") = %+v, want unknown/0.0", det)
	}
}

func TestDetect_LongestSuffixWins(t *testing.T) {
	// .tar.gz must beat the bare .gz suffix even with no signature evidence.
	det := Detect([]byte("no magic here"), "backup.tar.gz")
	if det.Format != types.FormatTarGz {
		t.Errorf("Detect format = %q, want %q", det.Format, types.FormatTarGz)
	}
}

func TestPreferArchivist(t *testing.T) {
	preferred := []types.Format{
		types.FormatZip, types.FormatTar, types.FormatTarGz, types.FormatTarBz2,
		types.FormatTarXz, types.FormatCab, types.FormatCpio, types.FormatXar, types.FormatAr,
	}
	for _, f := range preferred {
		if !PreferArchivist(f) {
			t.Errorf("PreferArchivist(%q) = false, want true", f)
		}
	}

	deferred := []types.Format{
		types.FormatRar, types.FormatSevenZip, types.FormatIso, types.FormatLha,
		types.FormatGzip, types.FormatBzip2, types.FormatXz, types.FormatZstd,
		types.FormatLz4, types.FormatUnknown,
	}
	for _, f := range deferred {
		if PreferArchivist(f) {
			t.Errorf("PreferArchivist(%q) = true, want false", f)
		}
	}
}

func TestIsSingleStream(t *testing.T) {
	if !IsSingleStream(types.FormatGzip) {
		t.Error("IsSingleStream(gz) = false, want true")
	}
	if IsSingleStream(types.FormatTarGz) {
		t.Error("IsSingleStream(tar.gz) = true, want false")
	}
}

func TestDisplayName(t *testing.T) {
	if got := DisplayName(types.FormatSevenZip); got != "7-Zip" {
		t.Errorf("DisplayName(7z) = %q", got)
	}
	if got := DisplayName(types.FormatUnknown); got != "Unknown" {
		t.Errorf("DisplayName(unknown) = %q", got)
	}
	if got := DisplayName(types.Format("bogus")); got != "Unknown" {
		t.Errorf("DisplayName(bogus) = %q", got)
	}
}
