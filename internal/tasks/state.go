package tasks

import (
	"fmt"
	"time"
)

// State is the lifecycle position of a tracked upload.
type State int

const (
	Uploading State = iota
	Processing
	Completed
	Failed
)

func (s State) String() string {
	switch s {
	case Uploading:
		return "uploading"
	case Processing:
		return "processing"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == Completed || s == Failed
}

// ParseState is the inverse of [State.String].
func ParseState(s string) (State, error) {
	for _, st := range []State{Uploading, Processing, Completed, Failed} {
		if st.String() == s {
			return st, nil
		}
	}
	return 0, fmt.Errorf("unknown upload state %q", s)
}

// EventKind enumerates the inputs of [Transition].
type EventKind int

const (
	EventProgress EventKind = iota
	EventRegistered
	EventCompleted
	EventFailed
)

func (k EventKind) String() string {
	switch k {
	case EventProgress:
		return "progress"
	case EventRegistered:
		return "registered"
	case EventCompleted:
		return "completed"
	case EventFailed:
		return "failed"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// Event drives a tracked upload through its lifecycle.
type Event struct {
	Kind     EventKind
	Progress int       // EventProgress
	RemoteID string    // EventRegistered
	Err      error     // EventFailed
	At       time.Time // zero leaves timestamps untouched
}

// TrackedUpload is the client-side view of one file pipeline.
type TrackedUpload struct {
	Key         string
	NotebookID  string
	File        File
	State       State
	Progress    int
	RemoteID    string
	Err         error
	StartedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt time.Time
}

// NewTrackedUpload returns an entry in [Uploading] with zero progress.
func NewTrackedUpload(key, notebookID string, f File, now time.Time) TrackedUpload {
	return TrackedUpload{
		Key:        key,
		NotebookID: notebookID,
		File:       f,
		State:      Uploading,
		StartedAt:  now,
		UpdatedAt:  now,
	}
}

// ErrorDetail is the user-facing failure message, or "" when not failed.
func (u TrackedUpload) ErrorDetail() string {
	if u.Err == nil {
		return ""
	}
	return u.Err.Error()
}

// Transition applies ev to u and returns the new value.
//
// Allowed chains are Uploading→Processing→Completed, Uploading→Failed and Uploading→Processing→Failed.
// Progress only moves forward while Uploading and is clamped to [0, 100]; registration saturates it.
// Any other event returns [ErrInvalidTransition] together with u unchanged.
func Transition(u TrackedUpload, ev Event) (TrackedUpload, error) {
	if u.State.Terminal() {
		return u, invalid(u, ev)
	}

	next := u
	switch ev.Kind {
	case EventProgress:
		if u.State != Uploading {
			return u, invalid(u, ev)
		}
		p := min(max(ev.Progress, 0), 100)
		if p <= u.Progress {
			return u, nil
		}
		next.Progress = p
	case EventRegistered:
		if u.State != Uploading || ev.RemoteID == "" || u.RemoteID != "" {
			return u, invalid(u, ev)
		}
		next.State = Processing
		next.RemoteID = ev.RemoteID
		next.Progress = 100
	case EventCompleted:
		if u.State != Processing {
			return u, invalid(u, ev)
		}
		next.State = Completed
		next.CompletedAt = ev.At
	case EventFailed:
		next.State = Failed
		next.Err = ev.Err
		if next.Err == nil {
			next.Err = ErrProcessingFailed
		}
		next.CompletedAt = ev.At
	default:
		return u, invalid(u, ev)
	}

	if !ev.At.IsZero() {
		next.UpdatedAt = ev.At
	}
	return next, nil
}

func invalid(u TrackedUpload, ev Event) error {
	return fmt.Errorf("%w: %s on %s upload %s", ErrInvalidTransition, ev.Kind, u.State, u.Key)
}
