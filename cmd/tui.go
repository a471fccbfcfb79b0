package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/mtx/internal/shared"
	"github.com/desertthunder/mtx/internal/tasks"
	"github.com/desertthunder/mtx/internal/ui"
	"github.com/urfave/cli/v3"
)

// TUI launches the interactive upload board.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	notebookID, files, err := uploadArgs(cmd)
	if err != nil {
		return err
	}

	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger("./tmp/mtx-tui.log")
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)

	owner, err := r.owner(ctx)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var p *tea.Program
	updates := make(chan tasks.ProgressUpdate, 256)

	opts := r.coordinatorOptions(owner, shared.WithLogger(r.logger, "notebook", notebookID))
	opts.Updates = updates
	// Submit only runs from the model's Init, after p is assigned.
	opts.OnUploadError = func(err *tasks.UploadError) { p.Send(ui.UploadErrorMsg(err)) }

	coord := tasks.NewCoordinator(r.storage, r.materials, opts)
	defer coord.Close()

	model := ui.NewModel(ctx, coord, notebookID, files, updates)
	p = tea.NewProgram(model, tea.WithContext(ctx))

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
