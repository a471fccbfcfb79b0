package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"

	"github.com/desertthunder/mtx/internal/shared"
	"github.com/desertthunder/mtx/internal/tasks"
	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"
)

// uploadResult is the per-file outcome printed by [Runner.Upload].
type uploadResult struct {
	Key        string `json:"key,omitempty"`
	Filename   string `json:"filename"`
	Size       int64  `json:"size"`
	MaterialID string `json:"material_id,omitempty"`
	State      string `json:"state"`
	Error      string `json:"error,omitempty"`
}

// outcomes collects the latest value of every entry plus the files rejected before tracking.
//
// It sits in front of the history recorder so results survive eviction from the coordinator.
type outcomes struct {
	mu       sync.Mutex
	order    []string
	latest   map[string]tasks.TrackedUpload
	rejected []*tasks.UploadError
	next     tasks.Recorder
}

func newOutcomes(next tasks.Recorder) *outcomes {
	return &outcomes{latest: make(map[string]tasks.TrackedUpload), next: next}
}

func (o *outcomes) RecordUpload(u tasks.TrackedUpload) error {
	o.mu.Lock()
	if _, ok := o.latest[u.Key]; !ok {
		o.order = append(o.order, u.Key)
	}
	o.latest[u.Key] = u
	o.mu.Unlock()

	if o.next == nil {
		return nil
	}
	return o.next.RecordUpload(u)
}

func (o *outcomes) reject(err *tasks.UploadError) {
	if err.Key != "" {
		return
	}
	o.mu.Lock()
	o.rejected = append(o.rejected, err)
	o.mu.Unlock()
}

func (o *outcomes) results() []uploadResult {
	o.mu.Lock()
	defer o.mu.Unlock()

	results := make([]uploadResult, 0, len(o.rejected)+len(o.order))
	for _, e := range o.rejected {
		results = append(results, uploadResult{Filename: e.Filename, State: tasks.Failed.String(), Error: e.Detail()})
	}
	for _, key := range o.order {
		u := o.latest[key]
		results = append(results, uploadResult{
			Key:        u.Key,
			Filename:   u.File.Name,
			Size:       u.File.Size,
			MaterialID: u.RemoteID,
			State:      u.State.String(),
			Error:      u.ErrorDetail(),
		})
	}
	return results
}

// uploadArgs splits "<notebook-id> <file>..." and stats every file.
func uploadArgs(cmd *cli.Command) (string, []tasks.File, error) {
	notebookID := cmd.Args().First()
	paths := cmd.Args().Tail()
	if notebookID == "" {
		return "", nil, fmt.Errorf("%w: notebook id", shared.ErrMissingArgument)
	}
	if len(paths) == 0 {
		return "", nil, fmt.Errorf("%w: at least one file", shared.ErrMissingArgument)
	}

	files := make([]tasks.File, 0, len(paths))
	for _, p := range paths {
		f, err := tasks.FileFromPath(p)
		if err != nil {
			return "", nil, fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
		}
		files = append(files, f)
	}
	return notebookID, files, nil
}

// Upload uploads files to a notebook and blocks until every accepted file reaches a terminal state.
func (r *Runner) Upload(ctx context.Context, cmd *cli.Command) error {
	notebookID, files, err := uploadArgs(cmd)
	if err != nil {
		return err
	}
	asJSON := cmd.Bool("json")
	quiet := cmd.Bool("quiet") || asJSON

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	owner, err := r.owner(ctx)
	if err != nil {
		return err
	}

	logger := shared.WithLogger(r.logger, "notebook", notebookID)
	opts := r.coordinatorOptions(owner, logger)
	results := newOutcomes(opts.Recorder)
	opts.Recorder = results
	opts.OnUploadError = results.reject

	updates := make(chan tasks.ProgressUpdate, 64)
	opts.Updates = updates
	printed := make(chan struct{})
	go func() {
		defer close(printed)
		r.printProgress(updates, quiet)
	}()

	coord := tasks.NewCoordinator(r.storage, r.materials, opts)
	keys, err := coord.Submit(ctx, notebookID, files...)
	if err != nil {
		coord.Close()
		close(updates)
		<-printed
		return err
	}
	logger.Debug("submitted", "accepted", len(keys), "total", len(files))

	coord.Wait()
	coord.Close()
	close(updates)
	<-printed

	if ctx.Err() != nil {
		return fmt.Errorf("upload interrupted: %w", ctx.Err())
	}
	return r.reportResults(results.results(), asJSON)
}

// printProgress prints one line per phase change. Percent updates are only logged.
func (r *Runner) printProgress(updates <-chan tasks.ProgressUpdate, quiet bool) {
	phases := make(map[string]tasks.Phase)
	for update := range updates {
		r.logger.Debug(update.Message, "key", update.Key, "phase", update.Phase)
		if quiet || update.Phase == tasks.PhaseRemoved {
			continue
		}
		if last, ok := phases[update.Key]; ok && last == update.Phase {
			continue
		}
		phases[update.Key] = update.Phase
		r.writePlain("%s\n", update.Message)
	}
}

func (r *Runner) reportResults(results []uploadResult, asJSON bool) error {
	failed := 0
	for _, res := range results {
		if res.State != tasks.Completed.String() {
			failed++
		}
	}

	if asJSON {
		if err := r.writeJSON(results, true); err != nil {
			return err
		}
	} else {
		r.writePlain("\n")
		for _, res := range results {
			switch {
			case res.State == tasks.Completed.String():
				r.writePlain("✓ %-32s %10s  material %s\n", res.Filename, humanize.IBytes(uint64(res.Size)), res.MaterialID)
			case res.Error != "":
				r.writePlain("✗ %-32s %s\n", res.Filename, res.Error)
			default:
				r.writePlain("• %-32s %s\n", res.Filename, res.State)
			}
		}
		r.writePlain("\n%d uploaded, %d failed\n", len(results)-failed, failed)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d uploads failed", failed, len(results))
	}
	return nil
}

// Status prints the processing status of a registered material.
func (r *Runner) Status(ctx context.Context, cmd *cli.Command) error {
	materialID := cmd.StringArg("material-id")
	if materialID == "" {
		return fmt.Errorf("%w: material id", shared.ErrMissingArgument)
	}

	status, err := r.materials.GetStatus(ctx, materialID)
	if err != nil {
		return fmt.Errorf("failed to get status: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(status, true)
	}
	return r.writePlain("%s  %s  %s\n", status.ID, status.Filename, status.ProcessingStatus)
}
