package reel

import (
	"fmt"

	"github.com/reelworks/reel-agent/internal/platform"
)

// History is the client-side mirror of a reel's version log, newest
// first. The log is append-only: entries are never removed or reordered,
// and version numbers come verbatim from the platform. Rollback is
// forward-only history; it shows up here as a new head entry.
type History struct {
	entries []*platform.ReelVersion
}

func NewHistory() *History {
	return &History{}
}

// Replace swaps in a freshly fetched version list after checking that it
// is ordered newest first with strictly decreasing version numbers.
func (h *History) Replace(entries []*platform.ReelVersion) error {
	for i := 1; i < len(entries); i++ {
		if entries[i].VersionNumber >= entries[i-1].VersionNumber {
			return fmt.Errorf("version list not ordered: %d before %d",
				entries[i-1].VersionNumber, entries[i].VersionNumber)
		}
	}
	h.entries = entries
	return nil
}

// Prepend adds a newly committed version as the head entry. Its number
// must exceed the current head's, keeping the log strictly increasing.
func (h *History) Prepend(v *platform.ReelVersion) error {
	if len(h.entries) > 0 && v.VersionNumber <= h.entries[0].VersionNumber {
		return fmt.Errorf("version %d does not advance head version %d",
			v.VersionNumber, h.entries[0].VersionNumber)
	}
	h.entries = append([]*platform.ReelVersion{v}, h.entries...)
	return nil
}

// List returns the entries newest first. The returned slice is a copy;
// the log itself cannot be mutated through it.
func (h *History) List() []*platform.ReelVersion {
	out := make([]*platform.ReelVersion, len(h.entries))
	copy(out, h.entries)
	return out
}

// Find returns the entry with the given version id, or nil.
func (h *History) Find(versionID string) *platform.ReelVersion {
	for _, v := range h.entries {
		if v.ID == versionID {
			return v
		}
	}
	return nil
}

// Len returns the number of entries.
func (h *History) Len() int {
	return len(h.entries)
}
