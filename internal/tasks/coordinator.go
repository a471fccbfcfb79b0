package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/mtx/internal/models"
	"github.com/desertthunder/mtx/internal/shared"
	"golang.org/x/sync/errgroup"
)

const DefaultEvictionDelay = 3 * time.Second

// ObjectStore writes file bytes to storage.
type ObjectStore interface {
	UploadObject(
		ctx context.Context, path string, body io.Reader, size int64, opts models.UploadOptions, onProgress models.ProgressFunc,
	) (*models.StoredObject, error)
}

// Backend registers uploaded objects and reports their processing status.
type Backend interface {
	StatusSource
	CreateMaterial(ctx context.Context, notebookID string, req models.CreateMaterialRequest) (*models.UploadResponse, error)
}

// Recorder persists upload outcomes. It is optional; errors are logged and otherwise ignored.
type Recorder interface {
	RecordUpload(u TrackedUpload) error
}

// Options configure a [Coordinator]. Zero values fall back to the package defaults.
type Options struct {
	OwnerID       string
	CacheControl  string
	PollInterval  time.Duration
	MaxAttempts   int
	EvictionDelay time.Duration
	Validator     *Validator

	OnUploadComplete func(materialID string)
	OnUploadError    func(err *UploadError)

	// Updates receives a [ProgressUpdate] for every change; sends never block.
	Updates  chan<- ProgressUpdate
	Recorder Recorder
	Logger   *log.Logger
}

// Coordinator runs one upload pipeline per submitted file and tracks them in a [Store].
type Coordinator struct {
	opts    Options
	store   *Store
	storage ObjectStore
	backend Backend
	poller  *Poller
	logger  *log.Logger
	now     func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	group  errgroup.Group
	seq    atomic.Uint64

	mu     sync.Mutex
	timers map[string]*time.Timer
	closed bool
}

// NewCoordinator creates a coordinator that uploads through storage and registers through backend.
func NewCoordinator(storage ObjectStore, backend Backend, opts Options) *Coordinator {
	if opts.Validator == nil {
		opts.Validator = DefaultValidator()
	}
	if opts.EvictionDelay <= 0 {
		opts.EvictionDelay = DefaultEvictionDelay
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}

	ctx, cancel := context.WithCancel(context.Background())
	store := NewStore()
	c := &Coordinator{
		opts:    opts,
		store:   store,
		storage: storage,
		backend: backend,
		logger:  opts.Logger,
		now:     time.Now,
		ctx:     ctx,
		cancel:  cancel,
		timers:  make(map[string]*time.Timer),
	}

	c.poller = NewPoller(store, backend, opts.PollInterval, opts.MaxAttempts, opts.Logger)
	c.poller.onChange = c.changed
	return c
}

// Submit validates files and starts a pipeline for each accepted one.
//
// It returns without waiting for uploads. Rejected files are reported through OnUploadError and get no
// entry. The returned keys identify the accepted files in submission order. Cancelling ctx stops the
// pipelines started by this call and fails their unfinished entries with [ErrCancelled].
func (c *Coordinator) Submit(ctx context.Context, notebookID string, files ...File) ([]string, error) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}
	if notebookID == "" {
		return nil, fmt.Errorf("%w: notebook id", shared.ErrMissingArgument)
	}

	keys := make([]string, 0, len(files))
	for _, f := range files {
		if err := c.opts.Validator.Validate(f); err != nil {
			c.logger.Warn("rejected", "file", f.Name, "size", f.Size, "error", err)
			c.reportError(&UploadError{Filename: f.Name, Err: err})
			continue
		}

		if f.ContentType != "" && !c.opts.Validator.ContentTypeTrusted(f) {
			c.logger.Debug("declared content type not in allow-list", "file", f.Name, "content_type", f.ContentType)
		}

		now := c.now()
		key := fmt.Sprintf("%s-%d-%d", f.Name, now.UnixMilli(), c.seq.Add(1))
		u := NewTrackedUpload(key, notebookID, f, now)
		if err := c.store.Add(u); err != nil {
			c.reportError(&UploadError{Key: key, Filename: f.Name, Err: err})
			continue
		}
		c.changed(TrackedUpload{}, u)
		keys = append(keys, key)

		c.group.Go(func() error {
			c.run(ctx, key)
			return nil
		})
	}
	return keys, nil
}

// run is the pipeline of one entry: upload, register, poll, then report.
func (c *Coordinator) run(parent context.Context, key string) {
	ctx, cancel := context.WithCancel(c.ctx)
	defer cancel()
	stop := context.AfterFunc(parent, cancel)
	defer stop()

	u, ok := c.store.Get(key)
	if !ok {
		return
	}
	f := u.File
	logger := shared.WithLogger(c.logger, "file", f.Name, "key", key)

	materialID := shared.GenerateID()
	objectPath := fmt.Sprintf("%s/%s.%s", c.opts.OwnerID, materialID, shared.FileExtension(f.Name))
	mimeType := c.opts.Validator.MimeType(f)

	logger.Info("uploading", "path", objectPath, "size", f.Size)

	obj, err := c.upload(ctx, key, f, objectPath, mimeType)
	if ctx.Err() != nil {
		logger.Debug("cancelled during upload")
		c.abandon(key, f.Name)
		return
	}
	if err != nil {
		c.failEntry(key, f.Name, transportError(err))
		return
	}

	filePath := objectPath
	if obj != nil && obj.Path != "" {
		filePath = obj.Path
	}

	resp, err := c.backend.CreateMaterial(ctx, u.NotebookID, models.CreateMaterialRequest{
		Filename:   f.Name,
		FilePath:   filePath,
		FileSize:   f.Size,
		MimeType:   mimeType,
		MaterialID: materialID,
	})
	if ctx.Err() != nil {
		logger.Debug("cancelled during registration")
		c.abandon(key, f.Name)
		return
	}
	if err != nil {
		c.failEntry(key, f.Name, registrationError(err))
		return
	}

	remoteID := resp.MaterialID
	if remoteID == "" {
		remoteID = materialID
	}
	if _, err := c.apply(key, Event{Kind: EventRegistered, RemoteID: remoteID}); err != nil {
		logger.Error("registration transition rejected", "error", err)
		return
	}
	logger.Info("registered", "material", remoteID)

	err = c.poller.PollUntilTerminal(ctx, key, remoteID)
	var uploadErr *UploadError
	switch {
	case err == nil:
		logger.Info("processing completed", "material", remoteID)
		if done, ok := c.store.Get(key); ok {
			c.scheduleEviction(key, done.CompletedAt)
		}
		if c.opts.OnUploadComplete != nil {
			c.opts.OnUploadComplete(remoteID)
		}
	case errors.As(err, &uploadErr):
		logger.Warn("processing did not complete", "error", uploadErr.Err)
		c.reportError(uploadErr)
	case ctx.Err() != nil:
		logger.Debug("cancelled during polling")
		c.abandon(key, f.Name)
	default:
		logger.Error("polling aborted", "error", err)
	}
}

func (c *Coordinator) upload(ctx context.Context, key string, f File, objectPath, mimeType string) (*models.StoredObject, error) {
	if f.Open == nil {
		return nil, fmt.Errorf("%s has no content", f.Name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	opts := models.UploadOptions{ContentType: mimeType, CacheControl: c.opts.CacheControl}
	return c.storage.UploadObject(ctx, objectPath, rc, f.Size, opts, func(pct int) {
		if _, err := c.apply(key, Event{Kind: EventProgress, Progress: pct}); err != nil {
			c.logger.Debug("progress dropped", "key", key, "error", err)
		}
	})
}

func (c *Coordinator) apply(key string, ev Event) (TrackedUpload, error) {
	ev.At = c.now()
	before, after, err := c.store.Apply(key, ev)
	if err != nil {
		return after, err
	}
	c.changed(before, after)
	return after, nil
}

func (c *Coordinator) failEntry(key, filename string, cause error) {
	if _, err := c.apply(key, Event{Kind: EventFailed, Err: cause}); err != nil {
		c.logger.Error("failure transition rejected", "key", key, "error", err)
		return
	}
	c.reportError(&UploadError{Key: key, Filename: filename, Err: cause})
}

func (c *Coordinator) reportError(err *UploadError) {
	if c.opts.OnUploadError != nil {
		c.opts.OnUploadError(err)
	}
}

// changed publishes after to the updates channel and, on state changes, to the recorder.
// A zero before marks a newly created entry.
func (c *Coordinator) changed(before, after TrackedUpload) {
	sendProgress(c.opts.Updates, uploadUpdate(after))

	if c.opts.Recorder == nil || (before.Key != "" && before.State == after.State) {
		return
	}
	if err := c.opts.Recorder.RecordUpload(after); err != nil {
		c.logger.Warn("failed to record upload", "key", after.Key, "error", err)
	}
}

// abandon fails an entry whose caller context was cancelled. On teardown the entry is left as it was.
func (c *Coordinator) abandon(key, filename string) {
	if c.ctx.Err() != nil {
		return
	}
	c.failEntry(key, filename, cancelledError())
}

// scheduleEviction removes a Completed entry once the eviction delay has elapsed since completedAt.
func (c *Coordinator) scheduleEviction(key string, completedAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	delay := c.opts.EvictionDelay
	if !completedAt.IsZero() {
		delay -= c.now().Sub(completedAt)
	}

	c.timers[key] = time.AfterFunc(delay, func() {
		// c.mu is held until the removal is published so Close cannot return in between.
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.closed {
			return
		}
		delete(c.timers, key)

		if c.store.RemoveIfState(key, Completed) {
			sendProgress(c.opts.Updates, removedUpdate(key))
		}
	})
}

// Dismiss removes a Completed or Failed entry. Entries still in flight return [ErrNotTerminal].
func (c *Coordinator) Dismiss(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}

	if _, err := c.store.RemoveTerminal(key); err != nil {
		return err
	}
	if t, ok := c.timers[key]; ok {
		t.Stop()
		delete(c.timers, key)
	}

	sendProgress(c.opts.Updates, removedUpdate(key))
	return nil
}

// Snapshot returns the tracked uploads in submission order.
func (c *Coordinator) Snapshot() []TrackedUpload {
	return c.store.Snapshot()
}

// Get returns the tracked upload for key.
func (c *Coordinator) Get(key string) (TrackedUpload, bool) {
	return c.store.Get(key)
}

// Wait blocks until every started pipeline has finished or been cancelled.
func (c *Coordinator) Wait() {
	_ = c.group.Wait()
}

// Close cancels in-flight pipelines, stops pending evictions and waits for the pipelines to return.
// No callback runs after Close returns.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	for key, t := range c.timers {
		t.Stop()
		delete(c.timers, key)
	}
	c.mu.Unlock()

	c.cancel()
	c.Wait()
}
