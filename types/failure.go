package types

import "errors"

// FailureCode classifies expected archive operation failures.
type FailureCode string

const (
	// FailurePasswordRequired means the archive is encrypted and no usable
	// password was supplied. Recoverable: the caller retries with a password.
	FailurePasswordRequired FailureCode = "PASSWORD_REQUIRED"
	// FailureUnsupportedFormat means no engine can handle the format.
	// Terminal for that archive.
	FailureUnsupportedFormat FailureCode = "UNSUPPORTED_FORMAT"
	// FailureCorruptArchive means the bytes do not form a readable archive.
	// Terminal for that archive.
	FailureCorruptArchive FailureCode = "CORRUPT_ARCHIVE"
	// FailureExtractionFailed covers other extraction errors; possibly recoverable.
	FailureExtractionFailed FailureCode = "EXTRACTION_FAILED"
	// FailureCreateFailed covers archive creation errors.
	FailureCreateFailed FailureCode = "CREATE_FAILED"
)

// PasswordReason distinguishes why a password prompt is needed.
type PasswordReason string

const (
	// ReasonMissing: the archive is encrypted and no password was supplied.
	ReasonMissing PasswordReason = "missing"
	// ReasonIncorrect: a password was supplied but rejected.
	ReasonIncorrect PasswordReason = "incorrect"
)

// Failure is a typed, expected failure returned by the engines.
// It implements error so callers can use errors.As, but it is a result value,
// not an exceptional condition.
type Failure struct {
	// Code classifies the failure.
	Code FailureCode `msgpack:"code" json:"code"`
	// Message is human-readable prompt or diagnostic copy.
	Message string `msgpack:"message" json:"message"`
	// Recoverable is true when retrying the same archive can succeed.
	Recoverable bool `msgpack:"recoverable" json:"recoverable"`
	// Format is the detected format, when detection got that far.
	Format Format `msgpack:"format,omitempty" json:"format,omitempty"`
	// Reason is set for FailurePasswordRequired: missing vs incorrect.
	Reason PasswordReason `msgpack:"reason,omitempty" json:"reason,omitempty"`
}

func (f *Failure) Error() string {
	return string(f.Code) + ": " + f.Message
}

// AsFailure extracts a *Failure from an error chain.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

// PasswordRequired builds a PASSWORD_REQUIRED failure with prompt copy
// matching the reason.
func PasswordRequired(format Format, reason PasswordReason) *Failure {
	msg := "This archive is password protected. Enter the password to extract it."
	if reason == ReasonIncorrect {
		msg = "Incorrect password. Try again."
	}
	return &Failure{
		Code:        FailurePasswordRequired,
		Message:     msg,
		Recoverable: true,
		Format:      format,
		Reason:      reason,
	}
}
