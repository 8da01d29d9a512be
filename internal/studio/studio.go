// Package studio ties the asset registry and the job orchestrator into the
// session the user interacts with.
package studio

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"outfitswap/internal/domain"
	"outfitswap/internal/infra"
	"outfitswap/internal/orchestrator"
	"outfitswap/internal/providers/image"
	"outfitswap/internal/pubsub"
	"outfitswap/internal/registry"
	"outfitswap/pkg/zip"
)

// ErrNoResult is returned for jobs that have not completed successfully.
var ErrNoResult = errors.New("job has no result")

// State is the full observable session.
type State struct {
	Base        *domain.Asset
	Outfits     []*domain.Asset
	Jobs        []domain.Job
	Processing  bool
	Error       string
	OutfitCount int
}

// Result is a decoded completed job output, ready for download.
type Result struct {
	JobID    string
	FileName string
	MIME     string
	Data     []byte
}

// Options configures a Studio.
type Options struct {
	MaxUploadBytes int64
	Logger         *infra.Logger
	// FeedBuffer sizes every internal and external subscription.
	FeedBuffer int
}

// Studio is the single session: one registry, one orchestrator, one feed.
type Studio struct {
	registry *registry.Registry
	orch     *orchestrator.Orchestrator
	assets   *pubsub.Broker[*domain.Asset]
	feed     *pubsub.Broker[State]
	logger   *infra.Logger

	stop context.CancelFunc
	wg   sync.WaitGroup
	once sync.Once
}

// New assembles a session editing through editor and issuing display
// references through display.
func New(editor image.Editor, display registry.DisplayIssuer, opts Options) *Studio {
	logger := opts.Logger
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	buffer := opts.FeedBuffer
	if buffer <= 0 {
		buffer = 64
	}

	s := &Studio{
		assets: pubsub.NewBrokerWithBuffer[*domain.Asset](buffer),
		feed:   pubsub.NewBrokerWithBuffer[State](buffer),
		logger: logger,
	}
	s.registry = registry.New(display, registry.Options{
		MaxUploadBytes: opts.MaxUploadBytes,
		Logger:         logger,
		Feed:           s.assets,
	})
	s.orch = orchestrator.New(editor, orchestrator.Options{
		Logger:     logger,
		FeedBuffer: buffer,
	})

	ctx, cancel := context.WithCancel(context.Background())
	s.stop = cancel
	assetEvents := s.assets.Subscribe(ctx)
	batchEvents := s.orch.Subscribe(ctx)
	s.wg.Add(1)
	go s.forward(ctx, assetEvents, batchEvents)
	return s
}

// AddBase registers or replaces the base image.
func (s *Studio) AddBase(up domain.Upload) (*domain.Asset, error) {
	return s.registry.AddBase(up)
}

// RemoveBase clears the base image.
func (s *Studio) RemoveBase() {
	s.registry.RemoveBase()
}

// AddOutfits appends outfit images in order.
func (s *Studio) AddOutfits(uploads []domain.Upload) ([]*domain.Asset, error) {
	return s.registry.AddOutfits(uploads)
}

// RemoveOutfit drops one outfit image.
func (s *Studio) RemoveOutfit(id string) error {
	if !s.registry.RemoveOutfit(id) {
		return domain.ErrNotFound
	}
	return nil
}

// Lookup finds a registered asset by id.
func (s *Studio) Lookup(id string) (*domain.Asset, bool) {
	return s.registry.Lookup(id)
}

// Generate snapshots the current base and outfits and starts a batch in the
// background. It returns the number of jobs queued.
func (s *Studio) Generate(ctx context.Context) (int, error) {
	outfits := s.registry.Outfits()
	if err := s.orch.Start(ctx, s.registry.Base(), outfits); err != nil {
		return 0, err
	}
	return len(outfits), nil
}

// Run is Generate followed by waiting for the batch to settle.
func (s *Studio) Run(ctx context.Context) error {
	return s.orch.Run(ctx, s.registry.Base(), s.registry.Outfits())
}

// Wait blocks until the running batch, if any, finishes.
func (s *Studio) Wait(ctx context.Context) error {
	return s.orch.Wait(ctx)
}

// State returns the current session snapshot.
func (s *Studio) State() State {
	return s.compose(s.orch.State())
}

// Subscribe streams a full State after every change until ctx ends. Every
// event carries the whole state, so the next delivered event repairs any gap.
// Events that arrive while the subscriber's buffer is full are dropped and
// never replayed; a reader that must not miss the final state of a batch
// should compare against State once it goes idle.
func (s *Studio) Subscribe(ctx context.Context) <-chan pubsub.Event[State] {
	return s.feed.Subscribe(ctx)
}

// Result decodes the output of a completed job.
func (s *Studio) Result(jobID string) (Result, error) {
	for _, job := range s.orch.Jobs() {
		if job.ID != jobID {
			continue
		}
		return decodeResult(job)
	}
	return Result{}, domain.ErrNotFound
}

// Results decodes every completed job in job order.
func (s *Studio) Results() ([]Result, error) {
	var out []Result
	for _, job := range s.orch.Jobs() {
		if job.Status != domain.JobStatusCompleted {
			continue
		}
		res, err := decodeResult(job)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, nil
}

// Archive zips every completed result.
func (s *Studio) Archive() ([]byte, error) {
	results, err := s.Results()
	if err != nil {
		return nil, err
	}
	jobs := make(map[string]domain.Job)
	for _, job := range s.orch.Jobs() {
		jobs[job.ID] = job
	}
	entries := make([]zip.Entry, 0, len(results))
	for _, res := range results {
		entries = append(entries, zip.Entry{
			Filename: res.FileName,
			Data:     res.Data,
			Modified: jobs[res.JobID].FinishedAt,
		})
	}
	return zip.Archive(entries)
}

// Close stops the feed and releases every display reference. A running batch
// is left to finish on its own.
func (s *Studio) Close() {
	s.once.Do(func() {
		s.stop()
		s.wg.Wait()
		s.orch.Close()
		s.assets.Close()
		s.feed.Close()
		s.registry.Close()
	})
}

// ResultFileName names a downloaded result after its outfit.
func ResultFileName(outfit *domain.Asset) string {
	if outfit == nil || outfit.Name == "" {
		return "result.png"
	}
	return "result_" + outfit.Name
}

func decodeResult(job domain.Job) (Result, error) {
	if job.Status != domain.JobStatusCompleted || job.ResultRef == "" {
		return Result{}, ErrNoResult
	}
	mime, data, err := image.ParseDataURI(job.ResultRef)
	if err != nil {
		return Result{}, fmt.Errorf("decode result %s: %w", job.ID, err)
	}
	return Result{
		JobID:    job.ID,
		FileName: ResultFileName(job.Outfit),
		MIME:     mime,
		Data:     data,
	}, nil
}

func (s *Studio) compose(batch orchestrator.BatchState) State {
	outfits := s.registry.Outfits()
	return State{
		Base:        s.registry.Base(),
		Outfits:     outfits,
		Jobs:        batch.Jobs,
		Processing:  batch.Processing,
		Error:       batch.Error,
		OutfitCount: len(outfits),
	}
}

func (s *Studio) forward(ctx context.Context, assets <-chan pubsub.Event[*domain.Asset], batches <-chan pubsub.Event[orchestrator.BatchState]) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-assets:
			if !ok {
				return
			}
			s.feed.Publish(ev.Type, s.State())
		case ev, ok := <-batches:
			if !ok {
				return
			}
			s.feed.Publish(ev.Type, s.compose(ev.Payload))
		}
	}
}
