package controller

import "github.com/arca-io/arca/types"

// Phase is the controller's extraction phase.
type Phase string

const (
	PhaseIdle             Phase = "idle"
	PhaseLoading          Phase = "loading"
	PhaseSuccess          Phase = "success"
	PhasePasswordRequired Phase = "password_required"
	PhaseError            Phase = "error"
)

// PathSet is an immutable set of entry paths. Mutating operations return a
// new set; the receiver is never modified, so a State snapshot stays valid
// after further transitions.
type PathSet map[string]struct{}

// NewPathSet builds a set from the given paths.
func NewPathSet(paths ...string) PathSet {
	s := make(PathSet, len(paths))
	for _, p := range paths {
		s[p] = struct{}{}
	}
	return s
}

// Has reports membership.
func (s PathSet) Has(path string) bool {
	_, ok := s[path]
	return ok
}

// Len reports the set size.
func (s PathSet) Len() int { return len(s) }

// Toggle returns a new set with path added or removed.
func (s PathSet) Toggle(path string) PathSet {
	next := make(PathSet, len(s)+1)
	for p := range s {
		next[p] = struct{}{}
	}
	if s.Has(path) {
		delete(next, path)
	} else {
		next[path] = struct{}{}
	}
	return next
}

// Paths returns the members in unspecified order.
func (s PathSet) Paths() []string {
	out := make([]string, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	return out
}

// PasswordPrompt describes an open password prompt.
type PasswordPrompt struct {
	// FileName is the archive awaiting a password.
	FileName string
	// Reason distinguishes the prompt copy: missing vs incorrect.
	Reason types.PasswordReason
	// Message is the user-facing prompt text.
	Message string
	// Attempts counts prompts shown for this archive, starting at 1.
	Attempts int
}

// State is a snapshot of the controller. Returned by value; the contained
// sets are immutable and the tree is rebuilt per extraction, so snapshots
// from different transitions never alias mutable data.
type State struct {
	// Phase is the extraction phase.
	Phase Phase
	// FileName is the selected archive's name, once one is selected.
	FileName string
	// Format and Engine describe a successful extraction.
	Format types.Format
	Engine string
	// Files is the reconstructed tree (success phase only).
	Files []*types.ArchiveFileNode
	// Stats are aggregate statistics over the tree.
	Stats *types.ArchiveStats
	// Expanded and Selected are the UI path sets, independent of phase.
	Expanded PathSet
	Selected PathSet
	// Pending is the open password prompt (password_required phase only).
	Pending *PasswordPrompt
	// ErrMsg is the dismissible error text (error phase only).
	ErrMsg string
	// Warnings carry non-fatal extraction notes.
	Warnings []string
	// SessionID identifies the open engine session (success phase only).
	SessionID string
	// Encrypted is true when the archive required a password.
	Encrypted bool
}
