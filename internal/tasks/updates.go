package tasks

import (
	"fmt"
)

// ProgressUpdate represents a change to a tracked upload.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Lifecycle phase of the entry
	Key     string // Tracking key
	Step    int    // Upload progress within the phase
	Total   int    // Always 100 for upload progress
	Message string // Human-readable message for display
	Data    any    // TrackedUpload copy, nil for PhaseRemoved
}

// Phase mirrors [State] plus the removal of an entry.
type Phase int

const (
	PhaseUploading Phase = iota
	PhaseProcessing
	PhaseCompleted
	PhaseFailed
	PhaseRemoved
)

func (p Phase) String() string {
	switch p {
	case PhaseUploading:
		return "uploading"
	case PhaseProcessing:
		return "processing"
	case PhaseCompleted:
		return "completed"
	case PhaseFailed:
		return "failed"
	case PhaseRemoved:
		return "removed"
	default:
		return ""
	}
}

func phaseOf(s State) Phase {
	switch s {
	case Processing:
		return PhaseProcessing
	case Completed:
		return PhaseCompleted
	case Failed:
		return PhaseFailed
	default:
		return PhaseUploading
	}
}

// Upload returns the entry carried by the update.
func (u ProgressUpdate) Upload() (TrackedUpload, bool) {
	t, ok := u.Data.(TrackedUpload)
	return t, ok
}

// sendProgress sends an update without blocking; updates are dropped when the channel is full.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

func uploadUpdate(u TrackedUpload) ProgressUpdate {
	return ProgressUpdate{
		Phase:   phaseOf(u.State),
		Key:     u.Key,
		Step:    u.Progress,
		Total:   100,
		Message: uploadMessage(u),
		Data:    u,
	}
}

func uploadMessage(u TrackedUpload) string {
	switch u.State {
	case Uploading:
		return fmt.Sprintf("Uploading %s (%d%%)", u.File.Name, u.Progress)
	case Processing:
		return fmt.Sprintf("Processing %s...", u.File.Name)
	case Completed:
		return fmt.Sprintf("✓ %s ready", u.File.Name)
	case Failed:
		return fmt.Sprintf("✗ %s: %s", u.File.Name, u.ErrorDetail())
	default:
		return u.File.Name
	}
}

func removedUpdate(key string) ProgressUpdate {
	return ProgressUpdate{Phase: PhaseRemoved, Key: key, Message: "removed " + key}
}
