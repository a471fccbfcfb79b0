package ui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/mtx/internal/models"
	"github.com/desertthunder/mtx/internal/tasks"
	tu "github.com/desertthunder/mtx/internal/testing"
)

type fakeBoard struct {
	submitted  []tasks.File
	dismissed  []string
	keys       []string
	err        error
	dismissErr error
	uploads    map[string]tasks.TrackedUpload
}

func (b *fakeBoard) Get(key string) (tasks.TrackedUpload, bool) {
	u, ok := b.uploads[key]
	return u, ok
}

func (b *fakeBoard) Submit(_ context.Context, _ string, files ...tasks.File) ([]string, error) {
	b.submitted = append(b.submitted, files...)
	return b.keys, b.err
}

func (b *fakeBoard) Dismiss(key string) error {
	if b.dismissErr != nil {
		return b.dismissErr
	}
	b.dismissed = append(b.dismissed, key)
	return nil
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func update(key, name string, state tasks.State, progress int, err error) Msg {
	u := tasks.TrackedUpload{Key: key, File: tasks.File{Name: name}, State: state, Progress: progress, Err: err}
	phase := map[tasks.State]tasks.Phase{
		tasks.Uploading:  tasks.PhaseUploading,
		tasks.Processing: tasks.PhaseProcessing,
		tasks.Completed:  tasks.PhaseCompleted,
		tasks.Failed:     tasks.PhaseFailed,
	}[state]
	return progressUpdateMsg(tasks.ProgressUpdate{Phase: phase, Key: key, Step: progress, Total: 100, Data: u})
}

func TestModel(t *testing.T) {
	t.Run("submit command reports accepted keys", func(t *testing.T) {
		board := &fakeBoard{keys: []string{"a.pdf-1-1"}}
		files := []tasks.File{{Name: "a.pdf", Size: 10}}
		m := NewModel(context.Background(), board, "nb-1", files, nil)

		msg := m.submit()()
		m.Update(msg)

		if len(board.submitted) != 1 || board.submitted[0].Name != "a.pdf" {
			t.Fatalf("expected a.pdf to be submitted, got %+v", board.submitted)
		}
		if !m.submitted || m.accepted != 1 {
			t.Errorf("expected submitted with 1 accepted, got %v/%d", m.submitted, m.accepted)
		}
	})

	t.Run("submit error is rendered", func(t *testing.T) {
		board := &fakeBoard{err: errors.New("closed")}
		m := NewModel(context.Background(), board, "nb-1", nil, nil)
		m.Update(m.submit()())

		if !strings.Contains(m.View(), "Upload failed: closed") {
			t.Errorf("expected error in view, got:\n%s", m.View())
		}
	})

	t.Run("progress updates create and replace rows", func(t *testing.T) {
		m := NewModel(context.Background(), &fakeBoard{}, "nb-1", nil, nil)

		m.Update(update("k1", "notes.md", tasks.Uploading, 0, nil))
		m.Update(update("k2", "paper.pdf", tasks.Uploading, 0, nil))
		m.Update(update("k1", "notes.md", tasks.Uploading, 40, nil))

		if len(m.order) != 2 || m.order[0] != "k1" || m.order[1] != "k2" {
			t.Fatalf("expected rows in arrival order, got %v", m.order)
		}
		if m.rows["k1"].Progress != 40 {
			t.Errorf("expected progress 40, got %d", m.rows["k1"].Progress)
		}

		view := m.View()
		for _, want := range []string{"notes.md", "paper.pdf", " 40%", "2 uploading"} {
			if !strings.Contains(view, want) {
				t.Errorf("expected view to contain %q, got:\n%s", want, view)
			}
		}
	})

	t.Run("progress command reads from the channel", func(t *testing.T) {
		updates := make(chan tasks.ProgressUpdate, 1)
		m := NewModel(context.Background(), &fakeBoard{}, "nb-1", nil, updates)

		updates <- tasks.ProgressUpdate{Phase: tasks.PhaseRemoved, Key: "k1"}
		msg, ok := m.waitForProgress()().(Msg)
		if !ok || msg.kind != MsgProgressUpdate {
			t.Fatalf("expected progress message, got %#v", msg)
		}

		close(updates)
		msg, ok = m.waitForProgress()().(Msg)
		if !ok || msg.kind != MsgUpdatesClosed {
			t.Fatalf("expected closed message, got %#v", msg)
		}
	})

	t.Run("terminal rows render their outcome", func(t *testing.T) {
		m := NewModel(context.Background(), &fakeBoard{}, "nb-1", nil, nil)
		m.Update(update("k1", "a.pdf", tasks.Completed, 100, nil))
		m.Update(update("k2", "b.pdf", tasks.Failed, 100, errors.New("File processing failed")))
		m.Update(update("k3", "c.pdf", tasks.Processing, 100, nil))

		view := m.View()
		for _, want := range []string{"✓ ready", "✗ File processing failed", "processing"} {
			if !strings.Contains(view, want) {
				t.Errorf("expected view to contain %q, got:\n%s", want, view)
			}
		}
		if m.Finished() {
			t.Error("expected not finished before submission completes")
		}
	})

	t.Run("finished once every row is terminal", func(t *testing.T) {
		m := NewModel(context.Background(), &fakeBoard{}, "nb-1", nil, nil)
		m.Update(submittedMsg([]string{"k1"}, nil))
		m.Update(update("k1", "a.pdf", tasks.Processing, 100, nil))
		if m.Finished() {
			t.Fatal("expected in-flight row to keep board open")
		}

		m.Update(update("k1", "a.pdf", tasks.Completed, 100, nil))
		if !m.Finished() {
			t.Error("expected finished")
		}
		if !strings.Contains(m.View(), "All uploads finished.") {
			t.Errorf("expected finished banner, got:\n%s", m.View())
		}
	})

	t.Run("removal update drops the row and clamps the cursor", func(t *testing.T) {
		m := NewModel(context.Background(), &fakeBoard{}, "nb-1", nil, nil)
		m.Update(update("k1", "a.pdf", tasks.Completed, 100, nil))
		m.Update(update("k2", "b.pdf", tasks.Completed, 100, nil))
		m.Update(runes("j"))

		m.Update(progressUpdateMsg(tasks.ProgressUpdate{Phase: tasks.PhaseRemoved, Key: "k2"}))

		if len(m.order) != 1 || m.cursor != 0 {
			t.Errorf("expected one row with cursor 0, got %v cursor %d", m.order, m.cursor)
		}
		if strings.Contains(m.View(), "b.pdf") {
			t.Error("expected removed row to be gone from the view")
		}
	})

	t.Run("board copy wins over the update", func(t *testing.T) {
		board := &fakeBoard{uploads: map[string]tasks.TrackedUpload{
			"k1": {Key: "k1", File: tasks.File{Name: "a.pdf"}, State: tasks.Completed, Progress: 100},
		}}
		m := NewModel(context.Background(), board, "nb-1", nil, nil)
		m.Update(submittedMsg([]string{"k1"}, nil))
		m.Update(update("k1", "a.pdf", tasks.Uploading, 10, nil))

		if m.rows["k1"].State != tasks.Completed || !m.Finished() {
			t.Errorf("expected completed row from board, got %s", m.rows["k1"].State)
		}
	})

	t.Run("out of order updates are ignored", func(t *testing.T) {
		m := NewModel(context.Background(), &fakeBoard{}, "nb-1", nil, nil)
		m.Update(update("k1", "a.pdf", tasks.Processing, 100, nil))
		m.Update(update("k1", "a.pdf", tasks.Uploading, 60, nil))

		if m.rows["k1"].State != tasks.Processing {
			t.Errorf("expected processing to stick, got %s", m.rows["k1"].State)
		}

		m.Update(update("k2", "b.pdf", tasks.Uploading, 80, nil))
		m.Update(update("k2", "b.pdf", tasks.Uploading, 30, nil))
		if m.rows["k2"].Progress != 80 {
			t.Errorf("expected progress 80 to stick, got %d", m.rows["k2"].Progress)
		}

		older := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		m.rows["k2"] = tasks.TrackedUpload{Key: "k2", File: tasks.File{Name: "b.pdf"}, State: tasks.Uploading, Progress: 80, UpdatedAt: older.Add(time.Second)}
		m.Update(progressUpdateMsg(tasks.ProgressUpdate{Key: "k2", Data: tasks.TrackedUpload{
			Key: "k2", File: tasks.File{Name: "b.pdf"}, State: tasks.Uploading, Progress: 90, UpdatedAt: older,
		}}))
		if m.rows["k2"].Progress != 80 {
			t.Errorf("expected older update to be ignored, got %d", m.rows["k2"].Progress)
		}
	})

	t.Run("tick picks up states whose updates were dropped", func(t *testing.T) {
		board := &fakeBoard{uploads: map[string]tasks.TrackedUpload{}}
		m := NewModel(context.Background(), board, "nb-1", nil, nil)
		m.Update(submittedMsg([]string{"k1"}, nil))
		m.Update(update("k1", "a.pdf", tasks.Uploading, 20, nil))

		board.uploads["k1"] = tasks.TrackedUpload{Key: "k1", File: tasks.File{Name: "a.pdf"}, State: tasks.Completed, Progress: 100}
		m.Update(spinner.TickMsg{})

		if !m.Finished() {
			t.Errorf("expected finished after tick, row is %s", m.rows["k1"].State)
		}
	})

	t.Run("board finishes when the coordinator outruns a small channel", func(t *testing.T) {
		updates := make(chan tasks.ProgressUpdate, 4)
		coord := tasks.NewCoordinator(
			&tu.FakeStorage{Steps: 100},
			&tu.FakeMaterials{DefaultStatuses: []models.ProcessingStatus{models.StatusCompleted}},
			tasks.Options{OwnerID: "user-1", PollInterval: time.Millisecond, EvictionDelay: time.Hour, Updates: updates},
		)
		defer coord.Close()

		files := []tasks.File{tasks.FileFromBytes("a.pdf", "application/pdf", []byte("pdf"))}
		m := NewModel(context.Background(), coord, "nb-1", files, updates)
		m.Update(m.submit()())
		coord.Wait()

	drain:
		for {
			select {
			case up := <-updates:
				m.Update(progressUpdateMsg(up))
			default:
				break drain
			}
		}
		m.Update(spinner.TickMsg{})

		if !m.Finished() {
			t.Errorf("expected board to finish, got %v", m.rows)
		}
		if !strings.Contains(m.View(), "✓ ready") {
			t.Errorf("expected ready row, got:\n%s", m.View())
		}
	})

	t.Run("rejections without a key become notices", func(t *testing.T) {
		m := NewModel(context.Background(), &fakeBoard{}, "nb-1", nil, nil)
		m.Update(UploadErrorMsg(&tasks.UploadError{Filename: "big.pdf", Err: tasks.ErrFileTooLarge}))
		m.Update(UploadErrorMsg(&tasks.UploadError{Key: "k1", Filename: "a.pdf", Err: tasks.ErrProcessingFailed}))

		if len(m.notices) != 1 {
			t.Fatalf("expected 1 notice, got %d", len(m.notices))
		}
		if !strings.Contains(m.View(), "big.pdf") {
			t.Errorf("expected rejected filename in view, got:\n%s", m.View())
		}
	})
}

func TestModelKeys(t *testing.T) {
	tests := []struct {
		name      string
		state     tasks.State
		dismissed bool
	}{
		{name: "completed row is dismissed", state: tasks.Completed, dismissed: true},
		{name: "failed row is dismissed", state: tasks.Failed, dismissed: true},
		{name: "uploading row is kept", state: tasks.Uploading},
		{name: "processing row is kept", state: tasks.Processing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			board := &fakeBoard{}
			m := NewModel(context.Background(), board, "nb-1", nil, nil)
			m.Update(update("k1", "a.pdf", tt.state, 100, nil))

			m.Update(runes("x"))

			if got := len(board.dismissed) == 1; got != tt.dismissed {
				t.Errorf("dismissed = %v, want %v", got, tt.dismissed)
			}
			if _, ok := m.rows["k1"]; ok == tt.dismissed {
				t.Errorf("row present = %v after dismiss = %v", ok, tt.dismissed)
			}
			if !tt.dismissed && len(m.notices) != 1 {
				t.Errorf("expected a notice for in-flight row, got %v", m.notices)
			}
		})
	}

	t.Run("dismiss error becomes a notice", func(t *testing.T) {
		board := &fakeBoard{dismissErr: tasks.ErrNotTerminal}
		m := NewModel(context.Background(), board, "nb-1", nil, nil)
		m.Update(update("k1", "a.pdf", tasks.Completed, 100, nil))
		m.Update(runes("x"))

		if _, ok := m.rows["k1"]; !ok {
			t.Error("expected row to stay after failed dismiss")
		}
		if len(m.notices) != 1 {
			t.Errorf("expected 1 notice, got %d", len(m.notices))
		}
	})

	t.Run("row already gone from the board is dropped", func(t *testing.T) {
		board := &fakeBoard{dismissErr: tasks.ErrUnknownUpload}
		m := NewModel(context.Background(), board, "nb-1", nil, nil)
		m.Update(update("k1", "a.pdf", tasks.Completed, 100, nil))
		m.Update(runes("x"))

		if _, ok := m.rows["k1"]; ok || len(m.notices) != 0 {
			t.Errorf("expected row removed without notice, rows %v notices %v", m.rows, m.notices)
		}
	})

	t.Run("cursor stays in bounds", func(t *testing.T) {
		m := NewModel(context.Background(), &fakeBoard{}, "nb-1", nil, nil)
		m.Update(update("k1", "a.pdf", tasks.Uploading, 0, nil))
		m.Update(update("k2", "b.pdf", tasks.Uploading, 0, nil))

		m.Update(runes("k"))
		if m.cursor != 0 {
			t.Errorf("expected cursor 0, got %d", m.cursor)
		}
		m.Update(runes("j"))
		m.Update(runes("j"))
		if m.cursor != 1 {
			t.Errorf("expected cursor 1, got %d", m.cursor)
		}
		if u, _ := m.Selected(); u.Key != "k2" {
			t.Errorf("expected k2 selected, got %q", u.Key)
		}
	})

	t.Run("q quits", func(t *testing.T) {
		m := NewModel(context.Background(), &fakeBoard{}, "nb-1", nil, nil)
		_, cmd := m.Update(runes("q"))
		if cmd == nil {
			t.Fatal("expected quit command")
		}
		if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Error("expected tea.QuitMsg")
		}
	})
}
