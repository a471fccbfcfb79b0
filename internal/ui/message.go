package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/mtx/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgSubmitted MsgKind = iota
	MsgProgressUpdate
	MsgUploadError
	MsgUpdatesClosed
)

type submitted struct {
	keys []string
	err  error
}

// submittedMsg is the constructor for [MsgSubmitted]
func submittedMsg(keys []string, err error) Msg {
	return Msg{kind: MsgSubmitted, data: submitted{keys, err}}
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: update}
}

// UploadErrorMsg wraps an error reported by the coordinator so it can be sent with tea.Program.Send.
func UploadErrorMsg(err *tasks.UploadError) Msg {
	return Msg{kind: MsgUploadError, data: err}
}

func updatesClosedMsg() Msg {
	return Msg{kind: MsgUpdatesClosed}
}
