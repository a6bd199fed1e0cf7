package worker

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"server/internal/domain"
	"server/internal/lineart"
)

type fakeJobs struct {
	jobs        map[string]*domain.Job
	transitions []transition
	stale       []domain.Job
}

type transition struct {
	jobID  string
	status domain.JobStatus
	fields domain.TransitionFields
}

func (f *fakeJobs) ClaimNext(ctx context.Context) (*domain.Job, error) {
	return nil, domain.ErrNotFound
}

func (f *fakeJobs) Get(ctx context.Context, jobID, userID string) (*domain.Job, error) {
	job, ok := f.jobs[jobID]
	if !ok || job.UserID != userID {
		return nil, domain.ErrNotFound
	}
	return job, nil
}

func (f *fakeJobs) TransitionTo(ctx context.Context, jobID string, status domain.JobStatus, fields domain.TransitionFields) error {
	f.transitions = append(f.transitions, transition{jobID: jobID, status: status, fields: fields})
	return nil
}

func (f *fakeJobs) FailStale(ctx context.Context, maxAge time.Duration, batchSize int) ([]domain.Job, error) {
	return f.stale, nil
}

type fakeAssets struct {
	created []domain.Asset
	byID    map[string]*domain.Asset
}

func (f *fakeAssets) Create(ctx context.Context, asset *domain.Asset) error {
	f.created = append(f.created, *asset)
	return nil
}

func (f *fakeAssets) Get(ctx context.Context, assetID, userID string) (*domain.Asset, error) {
	asset, ok := f.byID[assetID]
	if !ok || asset.UserID != userID {
		return nil, domain.ErrNotFound
	}
	return asset, nil
}

type fakeLedger struct {
	refunds []string
}

func (f *fakeLedger) Refund(ctx context.Context, userID, jobID string) error {
	f.refunds = append(f.refunds, jobID)
	return nil
}

type fakeStore struct {
	files map[string][]byte
}

func (f *fakeStore) Write(ctx context.Context, key string, data []byte) (string, error) {
	if f.files == nil {
		f.files = map[string][]byte{}
	}
	f.files[key] = data
	return key, nil
}

func (f *fakeStore) Read(ctx context.Context, key string) ([]byte, error) {
	data, ok := f.files[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return data, nil
}

type fakeGenerator struct {
	result  *lineart.Result
	err     error
	lastReq lineart.Request
}

func (f *fakeGenerator) Generate(ctx context.Context, req lineart.Request) (*lineart.Result, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeGenerator) CostPerImage() float64 { return 0.039 }

type workerFixture struct {
	worker *Worker
	jobs   *fakeJobs
	assets *fakeAssets
	ledger *fakeLedger
	store  *fakeStore
	gen    *fakeGenerator
}

func newFixture(t *testing.T) *workerFixture {
	t.Helper()
	f := &workerFixture{
		jobs:   &fakeJobs{jobs: map[string]*domain.Job{}},
		assets: &fakeAssets{byID: map[string]*domain.Asset{}},
		ledger: &fakeLedger{},
		store:  &fakeStore{files: map[string][]byte{}},
		gen: &fakeGenerator{result: &lineart.Result{
			Image:  []byte("fake-png"),
			Width:  640,
			Height: 480,
			Model:  "gemini-test",
			Cost:   0.039,
		}},
	}
	f.worker = New(Options{
		Jobs:      f.jobs,
		Assets:    f.assets,
		Ledger:    f.ledger,
		Store:     f.store,
		Generator: f.gen,
		Logger:    zerolog.New(io.Discard),
	})
	return f
}

func queuedJob(id string) *domain.Job {
	return &domain.Job{
		ID:     id,
		UserID: "user-1",
		Status: domain.JobStatusRunning,
		Params: domain.JobParams{
			Complexity:    domain.ComplexityStandard,
			LineThickness: domain.LineMedium,
			CustomPrompt:  "a sailing boat",
		},
	}
}

func TestProcessSuccess(t *testing.T) {
	f := newFixture(t)
	job := queuedJob("job-1")

	f.worker.Process(context.Background(), job)

	require.Len(t, f.assets.created, 1)
	asset := f.assets.created[0]
	assert.Equal(t, domain.AssetKindEdgeMap, asset.Kind)
	assert.Equal(t, "user-1/job-1/edge.png", asset.StoragePath)
	assert.Equal(t, 640, asset.Width)
	assert.Equal(t, int64(len("fake-png")), asset.ByteSize)
	assert.Equal(t, []byte("fake-png"), f.store.files["user-1/job-1/edge.png"])

	require.Len(t, f.jobs.transitions, 1)
	tr := f.jobs.transitions[0]
	assert.Equal(t, domain.JobStatusSucceeded, tr.status)
	require.NotNil(t, tr.fields.Model)
	assert.Equal(t, "gemini-test", *tr.fields.Model)
	require.NotNil(t, tr.fields.Cost)
	assert.InDelta(t, 0.039, *tr.fields.Cost, 1e-9)

	assert.Empty(t, f.ledger.refunds, "a successful job must not be refunded")
}

func TestProcessFailureRefundsOnce(t *testing.T) {
	f := newFixture(t)
	f.gen.err = errors.New("provider exploded")
	job := queuedJob("job-1")

	f.worker.Process(context.Background(), job)

	require.Len(t, f.jobs.transitions, 1)
	tr := f.jobs.transitions[0]
	assert.Equal(t, domain.JobStatusFailed, tr.status)
	require.NotNil(t, tr.fields.ErrorMessage)
	assert.Equal(t, "provider exploded", *tr.fields.ErrorMessage)

	assert.Equal(t, []string{"job-1"}, f.ledger.refunds)
	assert.Empty(t, f.assets.created)
}

func TestProcessChargeableFailureRecordsCost(t *testing.T) {
	f := newFixture(t)
	f.gen.err = &lineart.GenerationError{Kind: lineart.KindTemporary, Err: errors.New("upstream 503")}
	job := queuedJob("job-1")

	f.worker.Process(context.Background(), job)

	require.Len(t, f.jobs.transitions, 1)
	tr := f.jobs.transitions[0]
	assert.Equal(t, domain.JobStatusFailed, tr.status)
	require.NotNil(t, tr.fields.Cost, "a billed failed attempt carries the provider cost")
	assert.InDelta(t, 0.039, *tr.fields.Cost, 1e-9)
}

func TestProcessQuotaFailureRecordsNoCost(t *testing.T) {
	f := newFixture(t)
	f.gen.err = &lineart.GenerationError{Kind: lineart.KindQuotaExceeded, Err: errors.New("quota exhausted")}
	job := queuedJob("job-1")

	f.worker.Process(context.Background(), job)

	require.Len(t, f.jobs.transitions, 1)
	tr := f.jobs.transitions[0]
	assert.Equal(t, domain.JobStatusFailed, tr.status)
	assert.Nil(t, tr.fields.Cost, "a rejected attempt was never billed")
	assert.Equal(t, []string{"job-1"}, f.ledger.refunds)
}

func TestProcessSourceAsset(t *testing.T) {
	f := newFixture(t)
	f.assets.byID["asset-1"] = &domain.Asset{
		ID:          "asset-1",
		UserID:      "user-1",
		Kind:        domain.AssetKindOriginal,
		StoragePath: "user-1/uploads/photo.png",
	}
	f.store.files["user-1/uploads/photo.png"] = []byte("photo-bytes")

	job := queuedJob("job-1")
	job.Params.SourceAssetID = "asset-1"
	f.worker.Process(context.Background(), job)

	assert.Equal(t, []byte("photo-bytes"), f.gen.lastReq.SourceImage)
	require.Len(t, f.jobs.transitions, 1)
	assert.Equal(t, domain.JobStatusSucceeded, f.jobs.transitions[0].status)
}

func TestProcessMissingSourceAssetFails(t *testing.T) {
	f := newFixture(t)
	job := queuedJob("job-1")
	job.Params.SourceAssetID = "gone"

	f.worker.Process(context.Background(), job)

	require.Len(t, f.jobs.transitions, 1)
	assert.Equal(t, domain.JobStatusFailed, f.jobs.transitions[0].status)
	assert.Nil(t, f.jobs.transitions[0].fields.Cost, "no provider call was made")
	assert.Equal(t, []string{"job-1"}, f.ledger.refunds)
}

func TestProcessEditResolvesParent(t *testing.T) {
	f := newFixture(t)
	f.jobs.jobs["parent-1"] = &domain.Job{
		ID:     "parent-1",
		UserID: "user-1",
		Status: domain.JobStatusSucceeded,
		Params: domain.JobParams{
			Complexity:    domain.ComplexityStandard,
			LineThickness: domain.LineMedium,
			CustomPrompt:  "a quiet meadow",
		},
	}
	f.store.files["user-1/parent-1/edge.png"] = []byte("parent-edge")

	job := queuedJob("job-2")
	job.Params.EditParentID = "parent-1"
	job.Params.EditPrompt = "add a sun"
	f.worker.Process(context.Background(), job)

	assert.Equal(t, []byte("parent-edge"), f.gen.lastReq.ParentImage)
	assert.Equal(t, "a quiet meadow", f.gen.lastReq.ParentInstruction)
	require.Len(t, f.jobs.transitions, 1)
	assert.Equal(t, domain.JobStatusSucceeded, f.jobs.transitions[0].status)
	assert.Equal(t, "user-1/job-2/edge.png", f.assets.created[0].StoragePath)
}

func TestProcessEditChainInheritsEditInstruction(t *testing.T) {
	f := newFixture(t)
	// The parent is itself an edit; its own edit instruction wins over the
	// inherited custom prompt.
	f.jobs.jobs["edit-1"] = &domain.Job{
		ID:     "edit-1",
		UserID: "user-1",
		Status: domain.JobStatusSucceeded,
		Params: domain.JobParams{
			Complexity:    domain.ComplexityStandard,
			LineThickness: domain.LineMedium,
			CustomPrompt:  "a quiet meadow",
			EditParentID:  "root-1",
			EditPrompt:    "add a sun",
		},
	}
	f.store.files["user-1/edit-1/edge.png"] = []byte("edit-edge")

	job := queuedJob("job-3")
	job.Params.EditParentID = "edit-1"
	job.Params.EditPrompt = "add clouds"
	f.worker.Process(context.Background(), job)

	assert.Equal(t, "add a sun", f.gen.lastReq.ParentInstruction)
}

func TestReapRefundsStaleJobs(t *testing.T) {
	f := newFixture(t)
	f.jobs.stale = []domain.Job{
		{ID: "stale-1", UserID: "user-1"},
		{ID: "stale-2", UserID: "user-2"},
	}

	f.worker.reap(context.Background())

	assert.Equal(t, []string{"stale-1", "stale-2"}, f.ledger.refunds)
}
