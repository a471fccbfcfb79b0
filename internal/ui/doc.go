// Package ui implements an interactive upload board using bubbletea's Elm architecture.
//
// The board submits a batch of files to a [Board] (normally a [tasks.Coordinator]) and renders one row
// per tracked upload: a progress bar while the bytes go up, a spinner while the backend processes the
// material, and the final state with its error detail.
//
// Progress updates flow through a channel from the coordinator and are read one at a time by a tea.Cmd,
// so the coordinator never blocks on the UI. Rejected files have no row; their errors are shown as notices
// above the board.
//
// Keyboard navigation uses vim-style bindings (j/k, x to dismiss a finished row, q) with contextual help
// displayed via charmbracelet/bubbles/help.
package ui
