package tui

import (
	"fmt"
	"strings"
)

// Run starts the appropriate static TUI based on the view type.
// Returns an error if the view type doesn't support TUI.
func Run(viewType string, data any) error {
	if !IsTUISupported(viewType) {
		return fmt.Errorf("TUI mode is not supported for %s", viewType)
	}

	return RunStaticTUI(viewType, data)
}

// IsTUISupported returns true if the view type supports static TUI mode.
// Only the read-only inspect and stats views do; the browse command runs
// its own interactive program.
func IsTUISupported(viewType string) bool {
	supportedPrefixes := []string{
		"inspect_",
		"stats_",
	}

	for _, prefix := range supportedPrefixes {
		if strings.HasPrefix(viewType, prefix) {
			return true
		}
	}

	return false
}

// SupportedTUIViews returns a list of view types that support static TUI.
func SupportedTUIViews() []string {
	return []string{
		"inspect_archive",
		"stats_archive",
	}
}
