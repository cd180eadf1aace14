package create

import (
	"bytes"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/klauspost/compress/flate"
	"github.com/yeka/zip"

	"github.com/arca-io/arca/types"
)

// The zip library only supports package-level compressor registration, so
// the deflate level travels through a package variable. deflateMu is held
// for the whole archive write; concurrent builtin writes serialize on it.
var (
	deflateMu    sync.Mutex
	deflateLevel = flate.DefaultCompression
)

func init() {
	// Reads deflateLevel without locking: the only writers run under
	// deflateMu, which is held across the whole archive write.
	zip.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, deflateLevel)
	})
}

// builtinZip writes a zip archive in process. It is the fallback when no
// external archiver is configured. Password-protected entries use AES-256.
func (s *Service) builtinZip(req *types.CreateRequest, sanitized []string, level int, warnings []string) (*types.CreateResult, error) {
	deflateMu.Lock()
	defer deflateMu.Unlock()
	deflateLevel = level

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)

	for i, f := range req.Files {
		entry, err := s.zipEntry(w, sanitized[i], req.Password, f.ModTime)
		if err != nil {
			_ = w.Close()
			return nil, &types.Failure{
				Code:        types.FailureCreateFailed,
				Message:     fmt.Sprintf("failed to add %q: %v", sanitized[i], err),
				Recoverable: true,
				Format:      req.Format,
			}
		}
		if _, err := entry.Write(f.Data); err != nil {
			_ = w.Close()
			return nil, &types.Failure{
				Code:        types.FailureCreateFailed,
				Message:     fmt.Sprintf("failed to write %q: %v", sanitized[i], err),
				Recoverable: true,
				Format:      req.Format,
			}
		}
	}
	if err := w.Close(); err != nil {
		return nil, &types.Failure{
			Code:        types.FailureCreateFailed,
			Message:     fmt.Sprintf("failed to finalize archive: %v", err),
			Recoverable: true,
			Format:      req.Format,
		}
	}

	s.logger.Info("archive created", map[string]any{
		"format": string(req.Format),
		"files":  len(req.Files),
		"bytes":  buf.Len(),
	})

	return &types.CreateResult{
		Data:              buf.Bytes(),
		Format:            req.Format,
		Engine:            EngineZipWriter,
		Warnings:          warnings,
		PasswordProtected: req.Password != "",
	}, nil
}

func (s *Service) zipEntry(w *zip.Writer, name, password string, modTime *time.Time) (io.Writer, error) {
	if password != "" {
		// The encrypting writer does not expose header fields, so entry
		// timestamps are not carried for protected archives.
		return w.Encrypt(name, password, zip.AES256Encryption)
	}
	hdr := &zip.FileHeader{
		Name:   name,
		Method: zip.Deflate,
	}
	if modTime != nil {
		hdr.SetModTime(*modTime)
	} else {
		hdr.SetModTime(time.Now())
	}
	return w.CreateHeader(hdr)
}
