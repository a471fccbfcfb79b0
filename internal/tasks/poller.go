package tasks

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/mtx/internal/models"
)

const (
	DefaultPollInterval = 2 * time.Second
	DefaultMaxAttempts  = 60
)

// StatusSource reports the backend processing status of a material.
type StatusSource interface {
	GetStatus(ctx context.Context, materialID string) (*models.MaterialStatus, error)
}

// Poller drives Processing entries to a terminal state by polling a [StatusSource].
type Poller struct {
	store       *Store
	status      StatusSource
	interval    time.Duration
	maxAttempts int
	logger      *log.Logger
	now         func() time.Time

	// onChange observes every applied transition.
	onChange func(before, after TrackedUpload)
}

// NewPoller creates a poller over store. Non-positive interval or attempts use the defaults.
func NewPoller(store *Store, status StatusSource, interval time.Duration, maxAttempts int, logger *log.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Poller{
		store:       store,
		status:      status,
		interval:    interval,
		maxAttempts: maxAttempts,
		logger:      logger,
		now:         time.Now,
	}
}

// PollUntilTerminal observes remoteID until the backend reports a terminal status, the attempt budget
// runs out, or a status request fails.
//
// The first observation is immediate and later ones are spaced by the interval; at most maxAttempts
// requests are made. It returns nil once the entry is Completed and an [*UploadError] once it is
// Failed. Cancelling ctx returns ctx.Err() and leaves the entry as it was.
func (p *Poller) PollUntilTerminal(ctx context.Context, key, remoteID string) error {
	u, ok := p.store.Get(key)
	if !ok {
		return ErrUnknownUpload
	}
	if u.State != Processing || u.RemoteID != remoteID {
		return invalid(u, Event{Kind: EventCompleted})
	}

	if err := p.store.ClaimPoll(key); err != nil {
		return err
	}
	defer p.store.ReleasePoll(key)

	logger := p.logger.With("key", key, "material", remoteID)

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for attempt := 1; ; attempt++ {
		status, err := p.status.GetStatus(ctx, remoteID)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			logger.Warn("status check failed", "attempt", attempt, "error", err)
			return p.fail(key, u.File.Name, statusError(err))
		}

		logger.Debug("status", "attempt", attempt, "status", status.ProcessingStatus)

		switch status.ProcessingStatus {
		case models.StatusCompleted:
			if _, err := p.apply(key, Event{Kind: EventCompleted}); err != nil {
				return err
			}
			return nil
		case models.StatusFailed:
			return p.fail(key, u.File.Name, processingFailedError())
		}

		if attempt >= p.maxAttempts {
			logger.Warn("giving up", "attempts", attempt)
			return p.fail(key, u.File.Name, processingTimeoutError())
		}

		if timer == nil {
			timer = time.NewTimer(p.interval)
		} else {
			timer.Reset(p.interval)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (p *Poller) apply(key string, ev Event) (TrackedUpload, error) {
	ev.At = p.now()
	before, after, err := p.store.Apply(key, ev)
	if err != nil {
		return after, err
	}
	if p.onChange != nil {
		p.onChange(before, after)
	}
	return after, nil
}

func (p *Poller) fail(key, filename string, cause error) error {
	if _, err := p.apply(key, Event{Kind: EventFailed, Err: cause}); err != nil {
		return errors.Join(cause, err)
	}
	return &UploadError{Key: key, Filename: filename, Err: cause}
}
