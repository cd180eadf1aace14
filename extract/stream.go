package extract

import (
	"archive/tar"
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/dsnet/compress/bzip2"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz"

	"github.com/arca-io/arca/types"
)

// decompressor wraps data in the stream decoder for a single-stream format.
func decompressor(format types.Format, r io.Reader) (io.Reader, error) {
	switch format {
	case types.FormatGzip:
		return gzip.NewReader(r)
	case types.FormatBzip2:
		return bzip2.NewReader(r, nil)
	case types.FormatXz:
		return xz.NewReader(r)
	case types.FormatZstd:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return zr.IOReadCloser(), nil
	case types.FormatLz4:
		return lz4.NewReader(r), nil
	default:
		return nil, fmt.Errorf("no stream decoder for format %q", format)
	}
}

// innerStream maps a tar variant to its wrapping compressor; FormatTar maps
// to no compression.
func innerStream(format types.Format, r io.Reader) (io.Reader, error) {
	switch format {
	case types.FormatTar:
		return r, nil
	case types.FormatTarGz:
		return decompressor(types.FormatGzip, r)
	case types.FormatTarBz2:
		return decompressor(types.FormatBzip2, r)
	case types.FormatTarXz:
		return decompressor(types.FormatXz, r)
	default:
		return nil, fmt.Errorf("format %q is not a tar variant", format)
	}
}

// viseTar lists a tar archive or compressed tar variant. Listing skips file
// payloads; the tar reader seeks past them internally.
func (s *Service) viseTar(ctx context.Context, req *types.ExtractRequest, format types.Format) (*extraction, error) {
	stream, err := innerStream(format, bytes.NewReader(req.Data))
	if err != nil {
		return nil, classifyExtractErr(format, req.Password, err)
	}

	tr := tar.NewReader(stream)
	var entries []*types.ArchiveEntry
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, classifyExtractErr(format, req.Password, err)
		}
		switch hdr.Typeflag {
		case tar.TypeReg, tar.TypeDir:
		default:
			continue
		}

		entry := &types.ArchiveEntry{
			Path:        hdr.Name,
			IsDirectory: hdr.Typeflag == tar.TypeDir,
		}
		if !entry.IsDirectory {
			entry.Size = hdr.Size
		}
		if !hdr.ModTime.IsZero() {
			mt := hdr.ModTime
			entry.ModTime = &mt
		}
		entries = append(entries, entry)
	}

	if len(entries) == 0 {
		return nil, &types.Failure{
			Code:        types.FailureCorruptArchive,
			Message:     "archive contains no entries",
			Recoverable: false,
			Format:      format,
		}
	}

	return &extraction{
		entries: entries,
		engine:  EngineVise,
		format:  format,
	}, nil
}

func tarFetch(ctx context.Context, sess *session, path string) ([]byte, error) {
	stream, err := innerStream(sess.format, bytes.NewReader(sess.data))
	if err != nil {
		return nil, fmt.Errorf("re-open tar: %w", err)
	}

	tr := tar.NewReader(stream)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("walk tar: %w", err)
		}
		if hdr.Name == path && hdr.Typeflag == tar.TypeReg {
			return io.ReadAll(tr)
		}
	}
	return nil, fmt.Errorf("entry %q not found in archive", path)
}

// viseSingleStream decodes a single-file compression format. The payload is
// decoded eagerly: its size is unknowable without decoding, and there is
// exactly one entry.
func (s *Service) viseSingleStream(req *types.ExtractRequest, format types.Format) (*extraction, error) {
	stream, err := decompressor(format, bytes.NewReader(req.Data))
	if err != nil {
		return nil, classifyExtractErr(format, req.Password, err)
	}

	payload, err := io.ReadAll(stream)
	if err != nil {
		return nil, classifyExtractErr(format, req.Password, err)
	}

	name := innerName(req.FileName, format)
	entry := &types.ArchiveEntry{
		Path: name,
		Size: int64(len(payload)),
	}
	cs := int64(len(req.Data))
	entry.CompressedSize = &cs

	return &extraction{
		entries:  []*types.ArchiveEntry{entry},
		engine:   EngineVise,
		format:   format,
		payloads: map[string][]byte{name: payload},
	}, nil
}

// innerName derives the decoded payload's name by stripping the compressor
// suffix; a bare or unrecognized name falls back to "data".
func innerName(fileName string, format types.Format) string {
	suffixes := map[types.Format]string{
		types.FormatGzip:  ".gz",
		types.FormatBzip2: ".bz2",
		types.FormatXz:    ".xz",
		types.FormatZstd:  ".zst",
		types.FormatLz4:   ".lz4",
	}
	suffix := suffixes[format]
	lower := strings.ToLower(fileName)
	if suffix != "" && strings.HasSuffix(lower, suffix) && len(fileName) > len(suffix) {
		return fileName[:len(fileName)-len(suffix)]
	}
	if fileName != "" {
		return fileName + ".out"
	}
	return "data"
}
