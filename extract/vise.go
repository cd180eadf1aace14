package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/bodgit/sevenzip"
	"github.com/nwaples/rardecode/v2"
	"github.com/yeka/zip"

	"github.com/arca-io/arca/detect"
	"github.com/arca-io/arca/iox"
	"github.com/arca-io/arca/types"
)

// viseExtract dispatches to the format-specific decoders. This engine covers
// the broadest surface: RAR, encrypted ZIP/7z, every single-stream format,
// and the tar variants as a fallback path.
func (s *Service) viseExtract(ctx context.Context, req *types.ExtractRequest, format types.Format) (*extraction, error) {
	switch {
	case format == types.FormatZip:
		return s.viseZip(req)
	case format == types.FormatSevenZip:
		return s.viseSevenZip(req)
	case format == types.FormatRar:
		return s.viseRar(req)
	case format.TarVariant():
		return s.viseTar(ctx, req, format)
	case detect.IsSingleStream(format):
		return s.viseSingleStream(req, format)
	default:
		return nil, &types.Failure{
			Code:        types.FailureUnsupportedFormat,
			Message:     fmt.Sprintf("%s archives are not supported for extraction", detect.DisplayName(format)),
			Recoverable: false,
			Format:      format,
		}
	}
}

// zipEncrypted reports whether any entry in the archive carries the
// encryption flag. Unparseable data is left for the engines to reject.
func zipEncrypted(data []byte) bool {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return false
	}
	for _, f := range r.File {
		if f.IsEncrypted() {
			return true
		}
	}
	return false
}

// viseFetch decodes one entry payload within an open session.
func (s *Service) viseFetch(ctx context.Context, sess *session, path string) ([]byte, error) {
	switch {
	case sess.format == types.FormatZip:
		return zipFetch(sess, path)
	case sess.format == types.FormatSevenZip:
		return sevenZipFetch(sess, path)
	case sess.format == types.FormatRar:
		return rarFetch(sess, path)
	case sess.format.TarVariant():
		return tarFetch(ctx, sess, path)
	default:
		// Single-stream payloads are cached at extraction time.
		return nil, fmt.Errorf("entry %q not found in session", path)
	}
}

// viseZip lists a zip archive, enforcing password semantics: encrypted
// entries without a password yield PASSWORD_REQUIRED/missing before any
// decode; a supplied password is verified against the first encrypted entry.
func (s *Service) viseZip(req *types.ExtractRequest) (*extraction, error) {
	r, err := zip.NewReader(bytes.NewReader(req.Data), int64(len(req.Data)))
	if err != nil {
		return nil, classifyExtractErr(types.FormatZip, req.Password, err)
	}

	encrypted := false
	var verify *zip.File
	entries := make([]*types.ArchiveEntry, 0, len(r.File))
	for _, f := range r.File {
		if f.IsEncrypted() {
			encrypted = true
			if verify == nil && !f.FileInfo().IsDir() {
				verify = f
			}
		}
		entry := &types.ArchiveEntry{
			Path:        f.Name,
			IsDirectory: f.FileInfo().IsDir(),
		}
		if !entry.IsDirectory {
			entry.Size = int64(f.UncompressedSize64)
			cs := int64(f.CompressedSize64)
			entry.CompressedSize = &cs
		}
		if mt := f.ModTime(); !mt.IsZero() {
			entry.ModTime = &mt
		}
		entries = append(entries, entry)
	}

	if encrypted {
		if req.Password == "" {
			return nil, types.PasswordRequired(types.FormatZip, types.ReasonMissing)
		}
		// Reading one encrypted entry end to end is the only reliable
		// password check: AES rejects outright, ZipCrypto surfaces a
		// checksum mismatch. With no encrypted file to read (directory
		// entries carry no payload) the password stays unverified until
		// the first fetch.
		if verify != nil {
			verify.SetPassword(req.Password)
			rc, err := verify.Open()
			if err == nil {
				_, err = io.Copy(io.Discard, rc)
				iox.DiscardClose(rc)
			}
			if err != nil {
				return nil, types.PasswordRequired(types.FormatZip, types.ReasonIncorrect)
			}
		}
	}

	return &extraction{
		entries:   entries,
		engine:    EngineVise,
		format:    types.FormatZip,
		encrypted: encrypted,
	}, nil
}

func zipFetch(sess *session, path string) ([]byte, error) {
	r, err := zip.NewReader(bytes.NewReader(sess.data), int64(len(sess.data)))
	if err != nil {
		return nil, fmt.Errorf("re-open zip: %w", err)
	}
	for _, f := range r.File {
		if f.Name != path {
			continue
		}
		if f.IsEncrypted() {
			f.SetPassword(sess.password)
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open entry %q: %w", path, err)
		}
		return iox.ReadAll(rc)
	}
	return nil, fmt.Errorf("entry %q not found in archive", path)
}

// viseSevenZip lists a 7z archive. Header-encrypted archives fail to open at
// all without the right password; data-encrypted archives are verified by
// decoding the first file.
func (s *Service) viseSevenZip(req *types.ExtractRequest) (*extraction, error) {
	open := func(password string) (*sevenzip.Reader, error) {
		if password == "" {
			return sevenzip.NewReader(bytes.NewReader(req.Data), int64(len(req.Data)))
		}
		return sevenzip.NewReaderWithPassword(bytes.NewReader(req.Data), int64(len(req.Data)), password)
	}

	r, err := open(req.Password)
	if err != nil {
		if isPasswordErr(err) {
			reason := types.ReasonMissing
			if req.Password != "" {
				reason = types.ReasonIncorrect
			}
			return nil, types.PasswordRequired(types.FormatSevenZip, reason)
		}
		// Wrong password on header-encrypted archives decodes to garbage
		// headers rather than a clean password error.
		if req.Password != "" {
			return nil, types.PasswordRequired(types.FormatSevenZip, types.ReasonIncorrect)
		}
		return nil, classifyExtractErr(types.FormatSevenZip, req.Password, err)
	}

	encrypted := false
	var entries []*types.ArchiveEntry
	for _, f := range r.File {
		info := f.FileInfo()
		entry := &types.ArchiveEntry{
			Path:        f.Name,
			IsDirectory: info.IsDir(),
		}
		if !entry.IsDirectory {
			entry.Size = info.Size()
		}
		if !f.Modified.IsZero() {
			mt := f.Modified
			entry.ModTime = &mt
		}
		entries = append(entries, entry)
	}

	// Decode the first file to surface data-stream encryption: the AES
	// decoder reports a password error when none is set.
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		rc, err := f.Open()
		if err == nil {
			_, err = io.Copy(io.Discard, io.LimitReader(rc, 512))
			iox.DiscardClose(rc)
		}
		if err != nil {
			if isPasswordErr(err) {
				reason := types.ReasonMissing
				if req.Password != "" {
					reason = types.ReasonIncorrect
				}
				return nil, types.PasswordRequired(types.FormatSevenZip, reason)
			}
			if req.Password != "" {
				return nil, types.PasswordRequired(types.FormatSevenZip, types.ReasonIncorrect)
			}
			return nil, classifyExtractErr(types.FormatSevenZip, req.Password, err)
		}
		break
	}
	if req.Password != "" {
		encrypted = true
	}

	return &extraction{
		entries:   entries,
		engine:    EngineVise,
		format:    types.FormatSevenZip,
		encrypted: encrypted,
	}, nil
}

func sevenZipFetch(sess *session, path string) ([]byte, error) {
	var (
		r   *sevenzip.Reader
		err error
	)
	if sess.password == "" {
		r, err = sevenzip.NewReader(bytes.NewReader(sess.data), int64(len(sess.data)))
	} else {
		r, err = sevenzip.NewReaderWithPassword(bytes.NewReader(sess.data), int64(len(sess.data)), sess.password)
	}
	if err != nil {
		return nil, fmt.Errorf("re-open 7z: %w", err)
	}
	for _, f := range r.File {
		if f.Name != path {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open entry %q: %w", path, err)
		}
		return iox.ReadAll(rc)
	}
	return nil, fmt.Errorf("entry %q not found in archive", path)
}

// viseRar lists a RAR archive. RAR is sequential: the listing pass skips file
// payloads; passwords surface as decoder errors on the first encrypted header
// or stream.
func (s *Service) viseRar(req *types.ExtractRequest) (*extraction, error) {
	opts := []rardecode.Option{}
	if req.Password != "" {
		opts = append(opts, rardecode.Password(req.Password))
	}

	r, err := rardecode.NewReader(bytes.NewReader(req.Data), opts...)
	if err != nil {
		return nil, classifyExtractErr(types.FormatRar, req.Password, err)
	}

	encrypted := false
	var entries []*types.ArchiveEntry
	for {
		hdr, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			if isPasswordErr(err) {
				reason := types.ReasonMissing
				if req.Password != "" {
					reason = types.ReasonIncorrect
				}
				return nil, types.PasswordRequired(types.FormatRar, reason)
			}
			return nil, classifyExtractErr(types.FormatRar, req.Password, err)
		}

		entry := &types.ArchiveEntry{
			Path:        hdr.Name,
			IsDirectory: hdr.IsDir,
		}
		if !hdr.IsDir && !hdr.UnKnownSize {
			entry.Size = hdr.UnPackedSize
		}
		if !hdr.ModificationTime.IsZero() {
			mt := hdr.ModificationTime
			entry.ModTime = &mt
		}
		entries = append(entries, entry)
	}

	if req.Password != "" {
		encrypted = true
	}

	return &extraction{
		entries:   entries,
		engine:    EngineVise,
		format:    types.FormatRar,
		encrypted: encrypted,
	}, nil
}

func rarFetch(sess *session, path string) ([]byte, error) {
	opts := []rardecode.Option{}
	if sess.password != "" {
		opts = append(opts, rardecode.Password(sess.password))
	}
	r, err := rardecode.NewReader(bytes.NewReader(sess.data), opts...)
	if err != nil {
		return nil, fmt.Errorf("re-open rar: %w", err)
	}
	for {
		hdr, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("walk rar: %w", err)
		}
		if hdr.Name == path && !hdr.IsDir {
			return io.ReadAll(r)
		}
	}
	return nil, fmt.Errorf("entry %q not found in archive", path)
}
