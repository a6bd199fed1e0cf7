package worker

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"server/internal/domain"
	"server/internal/infra"
	"server/internal/lineart"
	"server/internal/storage"
)

// JobStore is the slice of the job repository the worker drives.
type JobStore interface {
	ClaimNext(ctx context.Context) (*domain.Job, error)
	Get(ctx context.Context, jobID, userID string) (*domain.Job, error)
	TransitionTo(ctx context.Context, jobID string, status domain.JobStatus, fields domain.TransitionFields) error
	FailStale(ctx context.Context, maxAge time.Duration, batchSize int) ([]domain.Job, error)
}

// AssetStore records generated artifacts and resolves source uploads.
type AssetStore interface {
	Create(ctx context.Context, asset *domain.Asset) error
	Get(ctx context.Context, assetID, userID string) (*domain.Asset, error)
}

// Ledger is the refund side of the credit ledger.
type Ledger interface {
	Refund(ctx context.Context, userID, jobID string) error
}

// Generator produces the line-art image for a resolved request.
type Generator interface {
	Generate(ctx context.Context, req lineart.Request) (*lineart.Result, error)
	CostPerImage() float64
}

// Options configures a Worker.
type Options struct {
	Jobs         JobStore
	Assets       AssetStore
	Ledger       Ledger
	Store        storage.Store
	Generator    Generator
	Logger       infra.Logger
	PollInterval time.Duration
	Concurrency  int
	StaleAfter   time.Duration
	ReapInterval time.Duration
	ReapBatch    int
}

// Worker drains queued jobs and drives each to a terminal state. A bounded
// pool processes jobs concurrently; a periodic reaper recovers jobs orphaned
// by a crash mid-processing.
type Worker struct {
	jobs         JobStore
	assets       AssetStore
	ledger       Ledger
	store        storage.Store
	generator    Generator
	logger       infra.Logger
	pollInterval time.Duration
	staleAfter   time.Duration
	reapInterval time.Duration
	reapBatch    int
	pool         *errgroup.Group
}

// New constructs a Worker, applying defaults for unset tuning knobs.
func New(opts Options) *Worker {
	pollInterval := opts.PollInterval
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = 2
	}
	staleAfter := opts.StaleAfter
	if staleAfter <= 0 {
		staleAfter = 10 * time.Minute
	}
	reapInterval := opts.ReapInterval
	if reapInterval <= 0 {
		reapInterval = time.Minute
	}
	reapBatch := opts.ReapBatch
	if reapBatch <= 0 {
		reapBatch = 20
	}

	pool := new(errgroup.Group)
	pool.SetLimit(concurrency)

	return &Worker{
		jobs:         opts.Jobs,
		assets:       opts.Assets,
		ledger:       opts.Ledger,
		store:        opts.Store,
		generator:    opts.Generator,
		logger:       opts.Logger,
		pollInterval: pollInterval,
		staleAfter:   staleAfter,
		reapInterval: reapInterval,
		reapBatch:    reapBatch,
		pool:         pool,
	}
}

// Run polls for queued jobs until the context is cancelled, then waits for
// in-flight jobs to finish.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info().Msg("worker: started")
	reapTicker := time.NewTicker(w.reapInterval)
	defer reapTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			err := w.pool.Wait()
			w.logger.Info().Msg("worker: drained")
			if err != nil {
				return err
			}
			return ctx.Err()
		case <-reapTicker.C:
			w.reap(ctx)
		default:
		}

		job, err := w.jobs.ClaimNext(ctx)
		if err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				w.logger.Error().Err(err).Msg("worker: failed to claim job")
			}
			w.idle(ctx)
			continue
		}

		// Go blocks when all pool slots are busy, which is the intended
		// backpressure on claiming.
		w.pool.Go(func() error {
			w.Process(ctx, job)
			return nil
		})
	}
}

func (w *Worker) idle(ctx context.Context) {
	timer := time.NewTimer(w.pollInterval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// Process drives one claimed job to a terminal state.
func (w *Worker) Process(ctx context.Context, job *domain.Job) {
	w.logger.Info().
		Str("job_id", job.ID).
		Bool("edit", job.IsEdit()).
		Msg("worker: picked job")

	req, err := w.resolveInputs(ctx, job)
	if err != nil {
		w.fail(ctx, job, err, nil)
		return
	}

	result, err := w.generator.Generate(ctx, req)
	if err != nil {
		w.fail(ctx, job, err, w.chargedCost(err))
		return
	}

	key := domain.EdgeImagePath(job.UserID, job.ID)
	if _, err := w.store.Write(ctx, key, result.Image); err != nil {
		// The image was generated, so the attempt was billed.
		w.fail(ctx, job, err, &result.Cost)
		return
	}
	if err := w.assets.Create(ctx, &domain.Asset{
		UserID:      job.UserID,
		JobID:       job.ID,
		Kind:        domain.AssetKindEdgeMap,
		StoragePath: key,
		ByteSize:    int64(len(result.Image)),
		Width:       result.Width,
		Height:      result.Height,
	}); err != nil {
		w.fail(ctx, job, err, &result.Cost)
		return
	}

	if err := w.jobs.TransitionTo(ctx, job.ID, domain.JobStatusSucceeded, domain.TransitionFields{
		Model: &result.Model,
		Cost:  &result.Cost,
	}); err != nil {
		w.logger.Error().Err(err).Str("job_id", job.ID).Msg("worker: succeed transition failed")
		return
	}
	w.logger.Info().
		Str("job_id", job.ID).
		Str("model", result.Model).
		Dur("latency", result.Latency).
		Msg("worker: job succeeded")
}

// resolveInputs loads the conditioning image and inherited context for a job.
func (w *Worker) resolveInputs(ctx context.Context, job *domain.Job) (lineart.Request, error) {
	req := lineart.Request{Params: job.Params}

	if job.IsEdit() {
		parent, err := w.jobs.Get(ctx, job.Params.EditParentID, job.UserID)
		if err != nil {
			return req, err
		}
		data, err := w.store.Read(ctx, domain.EdgeImagePath(parent.UserID, parent.ID))
		if err != nil {
			return req, err
		}
		req.ParentImage = data
		req.ParentInstruction = parent.Params.CustomPrompt
		if parent.Params.EditPrompt != "" {
			req.ParentInstruction = parent.Params.EditPrompt
		}
		return req, nil
	}

	if job.Params.SourceAssetID != "" {
		asset, err := w.assets.Get(ctx, job.Params.SourceAssetID, job.UserID)
		if err != nil {
			return req, err
		}
		data, err := w.store.Read(ctx, asset.StoragePath)
		if err != nil {
			return req, err
		}
		req.SourceImage = data
	}
	return req, nil
}

// chargedCost reports the provider cost carried by a failed generation. Quota
// and invalid-input rejections are refused before the model runs and cost
// nothing; anything the model actually ran was billed.
func (w *Worker) chargedCost(err error) *float64 {
	var genErr *lineart.GenerationError
	if errors.As(err, &genErr) && !genErr.Chargeable() {
		return nil
	}
	cost := w.generator.CostPerImage()
	return &cost
}

// fail marks the job failed and refunds its credit, recording the provider
// cost when the failed attempt was billed. The terminal-state write is
// attempted first; a refund failure is logged and never re-queues the job.
func (w *Worker) fail(ctx context.Context, job *domain.Job, cause error, cost *float64) {
	w.logger.Error().Err(cause).Str("job_id", job.ID).Msg("worker: job failed")

	msg := cause.Error()
	if err := w.jobs.TransitionTo(ctx, job.ID, domain.JobStatusFailed, domain.TransitionFields{
		ErrorMessage: &msg,
		Cost:         cost,
	}); err != nil {
		w.logger.Error().Err(err).Str("job_id", job.ID).Msg("worker: fail transition failed")
	}

	if err := w.ledger.Refund(ctx, job.UserID, job.ID); err != nil {
		w.logger.Error().Err(err).Str("job_id", job.ID).Msg("worker: refund failed")
	}
}

// reap force-fails running jobs older than the staleness cutoff and refunds
// each one through the normal refund path.
func (w *Worker) reap(ctx context.Context) {
	stale, err := w.jobs.FailStale(ctx, w.staleAfter, w.reapBatch)
	if err != nil {
		w.logger.Error().Err(err).Msg("worker: reap failed")
		return
	}
	for _, job := range stale {
		w.logger.Warn().Str("job_id", job.ID).Msg("worker: reaped stale job")
		if err := w.ledger.Refund(ctx, job.UserID, job.ID); err != nil {
			w.logger.Error().Err(err).Str("job_id", job.ID).Msg("worker: refund for reaped job failed")
		}
	}
}
