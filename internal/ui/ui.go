package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/mtx/internal/tasks"
	"github.com/dustin/go-humanize"
)

const nameWidth = 28

// Board is the part of [tasks.Coordinator] the TUI drives.
type Board interface {
	Submit(ctx context.Context, notebookID string, files ...tasks.File) ([]string, error)
	Dismiss(key string) error
	Get(key string) (tasks.TrackedUpload, bool)
}

// Model represents the upload board state.
type Model struct {
	ctx        context.Context
	board      Board
	notebookID string
	files      []tasks.File
	updates    <-chan tasks.ProgressUpdate

	order     []string
	rows      map[string]tasks.TrackedUpload
	cursor    int
	notices   []string
	submitted bool
	accepted  int
	err       error

	width   int
	bar     progress.Model
	spinner spinner.Model
	help    help.Model
	keys    keyMap
}

// NewModel creates a board that submits files to notebookID once the program starts.
//
// updates must be the channel the coordinator was configured with.
func NewModel(ctx context.Context, board Board, notebookID string, files []tasks.File, updates <-chan tasks.ProgressUpdate) *Model {
	return &Model{
		ctx:        ctx,
		board:      board,
		notebookID: notebookID,
		files:      files,
		updates:    updates,
		rows:       make(map[string]tasks.TrackedUpload),
		bar:        progress.New(progress.WithDefaultGradient(), progress.WithWidth(30)),
		spinner:    spinner.New(spinner.WithSpinner(spinner.Dot)),
		help:       help.New(),
		keys:       newKeyMap(),
	}
}

// Init submits the batch and starts listening for progress.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.submit(), m.waitForProgress(), m.spinner.Tick)
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		m.bar.Width = max(10, min(40, msg.Width-nameWidth-12))
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		m.reconcile()
		return m, cmd
	case tea.KeyMsg:
		return m.handleKeys(msg)
	case Msg:
		return m.handleMsg(msg)
	}
	return m, nil
}

func (m *Model) handleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keys.down):
		if m.cursor < len(m.order)-1 {
			m.cursor++
		}
	case key.Matches(msg, m.keys.help):
		m.help.ShowAll = !m.help.ShowAll
	case key.Matches(msg, m.keys.dismiss):
		m.dismissSelected()
	}
	return m, nil
}

func (m *Model) dismissSelected() {
	u, ok := m.Selected()
	if !ok {
		return
	}
	if !u.State.Terminal() {
		m.notices = append(m.notices, styles.warn.Render(fmt.Sprintf("%s is still %s", u.File.Name, u.State)))
		return
	}
	if err := m.board.Dismiss(u.Key); errors.Is(err, tasks.ErrUnknownUpload) {
		m.remove(u.Key)
		return
	} else if err != nil {
		m.notices = append(m.notices, styles.err.Render(err.Error()))
		return
	}
	// The coordinator also sends a removal update, but it may be dropped when the channel is full.
	m.remove(u.Key)
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgSubmitted:
		data := msg.data.(submitted)
		m.submitted = true
		m.accepted = len(data.keys)
		m.err = data.err
		for _, k := range data.keys {
			if u, ok := m.board.Get(k); ok {
				m.set(u)
			}
		}
		return m, nil
	case MsgProgressUpdate:
		m.apply(msg.data.(tasks.ProgressUpdate))
		return m, m.waitForProgress()
	case MsgUploadError:
		uerr := msg.data.(*tasks.UploadError)
		if uerr.Key == "" {
			m.notices = append(m.notices, styles.err.Render("✗ "+uerr.Error()))
		}
		return m, nil
	case MsgUpdatesClosed:
		m.updates = nil
		return m, nil
	}
	return m, nil
}

// apply takes the coordinator's copy of the entry over the one carried by the update, since updates
// may arrive out of order or be dropped.
func (m *Model) apply(update tasks.ProgressUpdate) {
	if update.Phase == tasks.PhaseRemoved {
		m.remove(update.Key)
		return
	}
	u, ok := m.board.Get(update.Key)
	if !ok {
		if u, ok = update.Upload(); !ok {
			return
		}
	}
	m.set(u)
}

// reconcile refreshes rows still in flight, catching terminal states whose updates were dropped.
func (m *Model) reconcile() {
	for _, k := range m.order {
		if m.rows[k].State.Terminal() {
			continue
		}
		if u, ok := m.board.Get(k); ok {
			m.set(u)
		}
	}
}

func (m *Model) set(u tasks.TrackedUpload) {
	row, seen := m.rows[u.Key]
	if !seen {
		m.order = append(m.order, u.Key)
	} else if stale(row, u) {
		return
	}
	m.rows[u.Key] = u
}

// stale reports whether u is older than the row already shown.
func stale(row, u tasks.TrackedUpload) bool {
	if u.State != row.State {
		return u.State < row.State
	}
	if u.UpdatedAt.Before(row.UpdatedAt) {
		return true
	}
	return u.State == tasks.Uploading && u.Progress < row.Progress
}

func (m *Model) remove(key string) {
	if _, ok := m.rows[key]; !ok {
		return
	}
	delete(m.rows, key)
	for i, k := range m.order {
		if k == key {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	if m.cursor >= len(m.order) {
		m.cursor = max(0, len(m.order)-1)
	}
}

// Selected returns the row under the cursor.
func (m *Model) Selected() (tasks.TrackedUpload, bool) {
	if len(m.order) == 0 {
		return tasks.TrackedUpload{}, false
	}
	u, ok := m.rows[m.order[m.cursor]]
	return u, ok
}

// Finished reports whether the batch was submitted and no row is still in flight.
func (m *Model) Finished() bool {
	if !m.submitted {
		return false
	}
	for _, u := range m.rows {
		if !u.State.Terminal() {
			return false
		}
	}
	return true
}

func (m *Model) submit() tea.Cmd {
	return func() tea.Msg {
		keys, err := m.board.Submit(m.ctx, m.notebookID, m.files...)
		return submittedMsg(keys, err)
	}
}

func (m *Model) waitForProgress() tea.Cmd {
	updates := m.updates
	return func() tea.Msg {
		if updates == nil {
			return updatesClosedMsg()
		}

		update, ok := <-updates
		if !ok {
			return updatesClosedMsg()
		}
		return progressUpdateMsg(update)
	}
}

// View renders the board.
func (m *Model) View() string {
	var b strings.Builder

	b.WriteString(styles.title.Render(fmt.Sprintf("Uploading to notebook %s", m.notebookID)))
	b.WriteString("\n")

	if m.err != nil {
		b.WriteString(styles.err.Render(fmt.Sprintf("Upload failed: %v", m.err)))
		b.WriteString("\n\n")
	}

	for _, n := range m.notices {
		b.WriteString(n)
		b.WriteString("\n")
	}
	if len(m.notices) > 0 {
		b.WriteString("\n")
	}

	if len(m.order) == 0 && m.submitted {
		b.WriteString(styles.help.Render("Nothing to show."))
		b.WriteString("\n")
	}

	for i, k := range m.order {
		b.WriteString(m.renderRow(m.rows[k], i == m.cursor))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.renderSummary())
	b.WriteString("\n\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m *Model) renderRow(u tasks.TrackedUpload, selected bool) string {
	cursor := "  "
	name := fmt.Sprintf("%-*s", nameWidth, truncate(u.File.Name, nameWidth))
	if selected {
		cursor = styles.selected.Render("> ")
		name = styles.selected.Render(name)
	}

	var status string
	switch u.State {
	case tasks.Uploading:
		status = fmt.Sprintf("%s %3d%%", m.bar.ViewAs(float64(u.Progress)/100), u.Progress)
	case tasks.Processing:
		status = fmt.Sprintf("%s processing", m.spinner.View())
	case tasks.Completed:
		status = styles.ok.Render("✓ ready")
	case tasks.Failed:
		status = styles.err.Render("✗ " + u.ErrorDetail())
	}
	size := styles.help.Render(fmt.Sprintf("%9s", humanize.IBytes(uint64(max(u.File.Size, 0)))))
	return cursor + name + " " + size + "  " + status
}

func (m *Model) renderSummary() string {
	var counts [4]int
	for _, u := range m.rows {
		counts[u.State]++
	}
	line := fmt.Sprintf("%d uploading • %d processing • %d ready • %d failed",
		counts[tasks.Uploading], counts[tasks.Processing], counts[tasks.Completed], counts[tasks.Failed])
	if m.Finished() {
		line += "\n" + styles.ok.Render("All uploads finished.")
	}
	return styles.help.Render(line)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
