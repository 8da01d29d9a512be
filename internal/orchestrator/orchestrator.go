// Package orchestrator runs one edit job per outfit against a shared base
// image, strictly one at a time, and publishes every state change.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"outfitswap/internal/domain"
	"outfitswap/internal/infra"
	"outfitswap/internal/providers/image"
	"outfitswap/internal/pubsub"
)

// UnknownErrorMessage replaces failures that carry no usable message.
const UnknownErrorMessage = "an unknown error occurred"

const batchErrorFormat = "Failed to process one or more images. Last error: %s"

// BatchState is an immutable copy of the orchestrator's observable state.
type BatchState struct {
	Jobs       []domain.Job
	Processing bool
	Error      string
}

// Options configures an Orchestrator.
type Options struct {
	Logger *infra.Logger
	Now    func() time.Time
	// FeedBuffer sizes each subscriber's channel; zero uses the broker default.
	FeedBuffer int
}

// Orchestrator owns the job list of the current batch.
type Orchestrator struct {
	editor image.Editor
	logger *infra.Logger
	now    func() time.Time
	feed   *pubsub.Broker[BatchState]

	mu       sync.Mutex
	jobs     []domain.Job
	running  bool
	batchErr string
	done     chan struct{}
}

// New builds an orchestrator that edits through editor.
func New(editor image.Editor, opts Options) *Orchestrator {
	o := &Orchestrator{
		editor: editor,
		logger: opts.Logger,
		now:    opts.Now,
	}
	if o.logger == nil {
		nop := zerolog.Nop()
		o.logger = &nop
	}
	if o.now == nil {
		o.now = time.Now
	}
	if opts.FeedBuffer > 0 {
		o.feed = pubsub.NewBrokerWithBuffer[BatchState](opts.FeedBuffer)
	} else {
		o.feed = pubsub.NewBroker[BatchState]()
	}
	return o
}

// Start begins a batch in the background and returns once the jobs are
// initialized. The batch runs to completion even if ctx is cancelled.
func (o *Orchestrator) Start(ctx context.Context, base *domain.Asset, outfits []*domain.Asset) error {
	jobs, err := o.begin(base, outfits)
	if err != nil {
		return err
	}
	go o.process(context.WithoutCancel(ctx), base, jobs)
	return nil
}

// Run processes a batch and returns when every job has settled. Job failures
// are reported through State, not the returned error.
func (o *Orchestrator) Run(ctx context.Context, base *domain.Asset, outfits []*domain.Asset) error {
	jobs, err := o.begin(base, outfits)
	if err != nil {
		return err
	}
	o.process(ctx, base, jobs)
	return nil
}

// Wait blocks until the running batch, if any, has finished.
func (o *Orchestrator) Wait(ctx context.Context) error {
	o.mu.Lock()
	done := o.done
	o.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// State returns a copy of the jobs, the in-flight flag and the batch error.
func (o *Orchestrator) State() BatchState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snapshotLocked()
}

// Jobs returns a copy of the current job list.
func (o *Orchestrator) Jobs() []domain.Job {
	return o.State().Jobs
}

// Processing reports whether a batch is in flight.
func (o *Orchestrator) Processing() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.running
}

// Subscribe streams state changes until ctx ends.
func (o *Orchestrator) Subscribe(ctx context.Context) <-chan pubsub.Event[BatchState] {
	return o.feed.Subscribe(ctx)
}

// Close ends every subscription. A running batch still completes.
func (o *Orchestrator) Close() {
	o.feed.Close()
}

func (o *Orchestrator) begin(base *domain.Asset, outfits []*domain.Asset) ([]domain.Job, error) {
	if base == nil {
		return nil, domain.ErrNoBaseAsset
	}
	if len(outfits) == 0 {
		return nil, domain.ErrNoOutfits
	}

	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return nil, domain.ErrBatchRunning
	}
	jobs := make([]domain.Job, len(outfits))
	for i, outfit := range outfits {
		jobs[i] = domain.Job{
			ID:     domain.JobIDFor(outfit.ID),
			Outfit: outfit,
			Status: domain.JobStatusPending,
		}
	}
	o.jobs = jobs
	o.batchErr = ""
	o.running = true
	o.done = make(chan struct{})
	state := o.publishLocked(pubsub.BatchStarted)
	o.mu.Unlock()

	o.logger.Info().
		Str("base_id", base.ID).
		Int("jobs", len(jobs)).
		Msg("orchestrator: batch started")
	return state.Jobs, nil
}

func (o *Orchestrator) process(ctx context.Context, base *domain.Asset, jobs []domain.Job) {
	baseSource := image.SourceFromAsset(base)
	failures := 0
	for i, job := range jobs {
		o.update(i, func(j *domain.Job) {
			j.Status = domain.JobStatusProcessing
			j.StartedAt = o.now()
		})

		result, err := o.edit(image.WithRequestID(ctx, job.ID), baseSource, job.Outfit)
		if err != nil {
			failures++
			msg := failureMessage(err)
			o.logger.Error().Err(err).
				Str("job_id", job.ID).
				Str("outfit", job.Outfit.Name).
				Msg("orchestrator: job failed")
			o.update(i, func(j *domain.Job) {
				j.Status = domain.JobStatusFailed
				j.ErrorMessage = msg
				j.FinishedAt = o.now()
				o.batchErr = fmt.Sprintf(batchErrorFormat, msg)
			})
			continue
		}

		o.logger.Info().Str("job_id", job.ID).Msg("orchestrator: job completed")
		o.update(i, func(j *domain.Job) {
			j.Status = domain.JobStatusCompleted
			j.ResultRef = result.Reference
			j.FinishedAt = o.now()
		})
	}

	o.mu.Lock()
	o.running = false
	done := o.done
	o.publishLocked(pubsub.BatchFinished)
	o.mu.Unlock()
	close(done)

	o.logger.Info().
		Int("jobs", len(jobs)).
		Int("failed", failures).
		Msg("orchestrator: batch finished")
}

// update mutates job i and publishes the resulting state.
func (o *Orchestrator) update(i int, mutate func(j *domain.Job)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	mutate(&o.jobs[i])
	o.publishLocked(pubsub.JobUpdated)
}

// publishLocked emits the current state while o.mu is held, so subscribers
// see events in mutation order. Broker.Publish never blocks.
func (o *Orchestrator) publishLocked(eventType pubsub.EventType) BatchState {
	state := o.snapshotLocked()
	o.feed.Publish(eventType, state)
	return state
}

func (o *Orchestrator) edit(ctx context.Context, base image.Source, outfit *domain.Asset) (result *image.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error().Interface("panic", r).Msg("orchestrator: editor panicked")
			result, err = nil, errors.New(UnknownErrorMessage)
		}
	}()
	result, err = o.editor.Edit(ctx, base, image.SourceFromAsset(outfit))
	if err != nil {
		return nil, err
	}
	if result == nil || result.Reference == "" {
		return nil, &domain.NoResultError{}
	}
	return result, nil
}

func (o *Orchestrator) snapshotLocked() BatchState {
	jobs := make([]domain.Job, len(o.jobs))
	copy(jobs, o.jobs)
	return BatchState{Jobs: jobs, Processing: o.running, Error: o.batchErr}
}

func failureMessage(err error) string {
	if err == nil {
		return UnknownErrorMessage
	}
	msg := strings.TrimSpace(err.Error())
	if msg == "" {
		return UnknownErrorMessage
	}
	return msg
}
