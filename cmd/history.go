package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/mtx/internal/formatter"
	"github.com/desertthunder/mtx/internal/tasks"
	"github.com/urfave/cli/v3"
)

// History prints or exports the local upload history.
func (r *Runner) History(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	criteria := map[string]any{
		"notebook_id": cmd.String("notebook"),
		"limit":       int(cmd.Int("limit")),
	}
	if s := cmd.String("state"); s != "" {
		state, err := tasks.ParseState(s)
		if err != nil {
			return err
		}
		criteria["state"] = state.String()
	}

	repo, err := r.uploadHistory()
	if err != nil {
		return err
	}

	if d := cmd.String("prune"); d != "" {
		cutoff, err := since(time.Now(), d)
		if err != nil {
			return err
		}
		n, err := repo.Prune(cutoff)
		if err != nil {
			return err
		}
		r.logger.Info("pruned upload history", "removed", n, "before", cutoff.Format(time.RFC3339))
	}

	records, err := repo.List(criteria)
	if err != nil {
		return err
	}

	if path := cmd.String("output"); path != "" {
		if err := formatter.WriteExport(records, format, path); err != nil {
			return err
		}
		r.logger.Info("history exported", "path", path, "records", len(records), "format", format)
		return r.writePlain("✓ Exported %d records to %s\n", len(records), path)
	}

	data, err := formatter.Export(records, format)
	if err != nil {
		return fmt.Errorf("failed to render history: %w", err)
	}
	return r.writeRaw(data)
}
