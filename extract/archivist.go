package extract

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/mholt/archives"

	"github.com/arca-io/arca/iox"
	"github.com/arca-io/arca/types"
)

// primeOnce guards archivist registry priming during warmup.
var primeOnce sync.Once

// primeArchivist touches the archive library's format registry so its lazy
// initialization happens during warmup rather than on the first extraction.
func primeArchivist() {
	primeOnce.Do(func() {
		_, _, _ = archives.Identify(context.Background(), "warmup.tar", bytes.NewReader(nil))
	})
}

// archivistExtract drives the generic archive library. It handles the
// archivist-friendly container formats (zip, tar and variants, cab, cpio,
// xar, ar); failures here are recoverable and fall back to the vise engine.
func (s *Service) archivistExtract(ctx context.Context, req *types.ExtractRequest, detected types.Format) (*extraction, error) {
	format, input, err := archives.Identify(ctx, req.FileName, bytes.NewReader(req.Data))
	if err != nil {
		return nil, &types.Failure{
			Code:        types.FailureExtractionFailed,
			Message:     fmt.Sprintf("generic engine could not identify archive: %v", err),
			Recoverable: true,
			Format:      detected,
		}
	}

	extractor, ok := format.(archives.Extraction)
	if !ok {
		return nil, &types.Failure{
			Code:        types.FailureExtractionFailed,
			Message:     fmt.Sprintf("generic engine cannot extract %s", format.Extension()),
			Recoverable: true,
			Format:      detected,
		}
	}

	var entries []*types.ArchiveEntry
	err = extractor.Extract(ctx, input, func(_ context.Context, info archives.FileInfo) error {
		entry := &types.ArchiveEntry{
			Path:        info.NameInArchive,
			IsDirectory: info.IsDir(),
		}
		if !info.IsDir() {
			entry.Size = info.Size()
		}
		if mt := info.ModTime(); !mt.IsZero() {
			t := mt
			entry.ModTime = &t
		}
		entries = append(entries, entry)
		return nil
	})
	if err != nil {
		return nil, classifyExtractErr(detected, req.Password, err)
	}

	if len(entries) == 0 {
		return nil, &types.Failure{
			Code:        types.FailureCorruptArchive,
			Message:     "archive contains no entries",
			Recoverable: false,
			Format:      detected,
		}
	}

	resolved := detected
	if resolved == types.FormatUnknown {
		resolved = formatFromExtension(format.Extension())
	}

	return &extraction{
		entries: entries,
		engine:  EngineArchivist,
		format:  resolved,
	}, nil
}

// archivistFetch decodes one entry payload by re-walking the archive.
func (s *Service) archivistFetch(ctx context.Context, sess *session, path string) ([]byte, error) {
	format, input, err := archives.Identify(ctx, sess.fileName, bytes.NewReader(sess.data))
	if err != nil {
		return nil, fmt.Errorf("re-open archive: %w", err)
	}
	extractor, ok := format.(archives.Extraction)
	if !ok {
		return nil, fmt.Errorf("format %s lost extraction capability", format.Extension())
	}

	var payload []byte
	found := false
	err = extractor.Extract(ctx, input, func(_ context.Context, info archives.FileInfo) error {
		if found || info.IsDir() || info.NameInArchive != path {
			return nil
		}
		f, err := info.Open()
		if err != nil {
			return err
		}
		payload, err = iox.ReadAll(f)
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("decode entry %q: %w", path, err)
	}
	if !found {
		return nil, fmt.Errorf("entry %q not found in archive", path)
	}
	return payload, nil
}

// formatFromExtension maps the archive library's extension back into our
// format space for archives our own tables did not identify.
func formatFromExtension(ext string) types.Format {
	switch ext {
	case ".zip":
		return types.FormatZip
	case ".tar":
		return types.FormatTar
	case ".tar.gz", ".tgz":
		return types.FormatTarGz
	case ".tar.bz2":
		return types.FormatTarBz2
	case ".tar.xz":
		return types.FormatTarXz
	case ".rar":
		return types.FormatRar
	case ".7z":
		return types.FormatSevenZip
	default:
		return types.FormatUnknown
	}
}
