package create

import (
	"errors"
	"strings"
)

var errTraversal = errors.New("path escapes the staging root")

// SanitizePath normalizes a requested archive entry path into a relative
// slash-separated path safe to stage. Backslashes are treated as separators,
// absolute prefixes and drive letters are stripped, and "." segments are
// dropped. Any ".." segment rejects the path outright rather than being
// resolved.
func SanitizePath(p string) (string, error) {
	p = strings.ReplaceAll(p, `\`, "/")
	if len(p) >= 2 && p[1] == ':' && isDriveLetter(p[0]) {
		p = p[2:]
	}
	p = strings.TrimLeft(p, "/")

	var segments []string
	for _, seg := range strings.Split(p, "/") {
		switch seg {
		case "", ".":
			continue
		case "..":
			return "", errTraversal
		}
		segments = append(segments, seg)
	}
	if len(segments) == 0 {
		return "", errors.New("path is empty after normalization")
	}
	return strings.Join(segments, "/"), nil
}

func isDriveLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
