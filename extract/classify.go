package extract

import (
	"strings"

	"github.com/arca-io/arca/types"
)

// Error text fragments used to classify decoder failures. Substring matching
// against engine-reported text is fragile across decoder versions; it is kept
// here, in one place, so a decoder upgrade has a single blast radius.
var (
	passwordFragments = []string{
		"password",
		"encrypt",
		"decrypt",
		"authentication",
	}
	corruptFragments = []string{
		"unexpected eof",
		"checksum",
		"crc",
		"corrupt",
		"invalid header",
		"not a valid",
		"bad magic",
		"malformed",
		"unexpected end",
	}
)

// isPasswordErr reports whether the decoder error text indicates a password
// problem.
func isPasswordErr(err error) bool {
	return matchesAny(err, passwordFragments)
}

// isCorruptErr reports whether the decoder error text indicates damaged input.
func isCorruptErr(err error) bool {
	return matchesAny(err, corruptFragments)
}

func matchesAny(err error, fragments []string) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, frag := range fragments {
		if strings.Contains(msg, frag) {
			return true
		}
	}
	return false
}

// classifyExtractErr converts a decoder error into a typed failure.
func classifyExtractErr(format types.Format, password string, err error) *types.Failure {
	if isPasswordErr(err) {
		reason := types.ReasonMissing
		if password != "" {
			reason = types.ReasonIncorrect
		}
		return types.PasswordRequired(format, reason)
	}
	if isCorruptErr(err) {
		return &types.Failure{
			Code:        types.FailureCorruptArchive,
			Message:     "archive appears to be damaged: " + err.Error(),
			Recoverable: false,
			Format:      format,
		}
	}
	return &types.Failure{
		Code:        types.FailureExtractionFailed,
		Message:     err.Error(),
		Recoverable: true,
		Format:      format,
	}
}
