// Package iox provides I/O helpers for resource cleanup and header probing.
package iox

import "io"

// DiscardClose closes c and discards the error.
// Use in defer statements where close errors are unactionable:
//
//	defer iox.DiscardClose(f)
func DiscardClose(c io.Closer) { _ = c.Close() }

// CloseFunc returns a cleanup function that closes c.
// Designed for t.Cleanup and b.Cleanup registration:
//
//	t.Cleanup(iox.CloseFunc(client))
func CloseFunc(c io.Closer) func() {
	return func() { _ = c.Close() }
}

// DiscardErr calls fn and discards the returned error.
// Use for non-Close cleanup calls (e.g. Flush) where errors are unactionable:
//
//	defer iox.DiscardErr(w.Flush)
func DiscardErr(fn func() error) { _ = fn() }

// ReadAll drains r fully, closing it afterwards regardless of outcome.
func ReadAll(r io.ReadCloser) ([]byte, error) {
	defer DiscardClose(r)
	return io.ReadAll(r)
}

// LimitedReadAll drains r up to limit bytes, closing it afterwards.
// Returns the bytes read and true when the limit was hit before EOF.
func LimitedReadAll(r io.ReadCloser, limit int64) ([]byte, bool, error) {
	defer DiscardClose(r)

	data, err := io.ReadAll(io.LimitReader(r, limit))
	if err != nil {
		return nil, false, err
	}
	if int64(len(data)) < limit {
		return data, false, nil
	}
	// Probe one more byte to distinguish exact-limit from truncation.
	var probe [1]byte
	n, err := r.Read(probe[:])
	if err != nil && err != io.EOF {
		return nil, false, err
	}
	return data, n > 0, nil
}
