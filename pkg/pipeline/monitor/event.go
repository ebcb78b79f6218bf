package monitor

import "time"

// EventKind classifies a coalesced change.
type EventKind string

const (
	EventAdded   EventKind = "added"
	EventChanged EventKind = "changed"
	EventRenamed EventKind = "renamed"
	EventDeleted EventKind = "deleted"
)

// Event is one coalesced change for a watched path. Events are immutable
// and carry only the net state change between the baseline and the latest
// observation, never intermediate writes.
type Event struct {
	Kind      EventKind `json:"kind"`
	Path      string    `json:"path"`
	Timestamp time.Time `json:"timestamp"`

	// PreviousDigest is the baseline content digest, empty when no
	// baseline existed or digesting is disabled.
	PreviousDigest string `json:"previous_digest,omitempty"`

	// CurrentDigest is the digest after the change, empty for deletions.
	CurrentDigest string `json:"current_digest,omitempty"`

	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modified_at"`
}

// WatchError reports a failure to begin or sustain observation of a path.
// Errors for one path never stop monitoring of the others.
type WatchError struct {
	Path string
	Err  error
}

func (e *WatchError) Error() string {
	return "watching " + e.Path + ": " + e.Err.Error()
}

func (e *WatchError) Unwrap() error {
	return e.Err
}
