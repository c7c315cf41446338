package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autonexit/FaceShield/internal/apperr"
	"github.com/autonexit/FaceShield/internal/models"
	"github.com/autonexit/FaceShield/internal/services/metrics"
	"github.com/autonexit/FaceShield/internal/services/pipeline"
	"github.com/autonexit/FaceShield/internal/services/pipeline/pipelinetest"
	"github.com/autonexit/FaceShield/internal/services/progress"
)

// recorder captures everything delivered to an observer.
type recorder struct {
	mu        sync.Mutex
	snapshots []progress.Snapshot
	runIDs    []string
	outcomes  []Outcome
	states    []RunState
	ctrl      *Controller
	terminal  chan Outcome
}

func newRecorder() *recorder {
	return &recorder{terminal: make(chan Outcome, 4)}
}

func (r *recorder) OnProgress(runID string, s progress.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots = append(r.snapshots, s)
	r.runIDs = append(r.runIDs, runID)
	return nil
}

func (r *recorder) OnTerminal(o Outcome) error {
	r.mu.Lock()
	r.outcomes = append(r.outcomes, o)
	if r.ctrl != nil {
		r.states = append(r.states, r.ctrl.State())
	}
	r.mu.Unlock()
	r.terminal <- o
	return nil
}

func (r *recorder) await(t *testing.T) Outcome {
	t.Helper()
	select {
	case o := <-r.terminal:
		return o
	case <-time.After(5 * time.Second):
		t.Fatal("no terminal outcome delivered")
		return Outcome{}
	}
}

type fixture struct {
	source *pipelinetest.Source
	sink   *pipelinetest.Sink
	opened chan models.JobConfig
	total  int64
	err    error
	gate   chan struct{}
}

func (f *fixture) Open(ctx context.Context, runID string, job models.JobConfig) (*Resources, error) {
	if f.gate != nil {
		<-f.gate
	}
	if f.opened != nil {
		f.opened <- job
	}
	if f.err != nil {
		return nil, f.err
	}
	return &Resources{Source: f.source, Sink: f.sink, Total: f.total, Backend: "fake"}, nil
}

func newFixture(frames int) *fixture {
	return &fixture{
		source: &pipelinetest.Source{Count: frames},
		sink:   &pipelinetest.Sink{},
		total:  int64(frames),
	}
}

// validJob creates real input and model files so validation passes.
func validJob(t *testing.T) models.JobConfig {
	t.Helper()
	dir := t.TempDir()
	input := filepath.Join(dir, "in.mp4")
	model := filepath.Join(dir, "face.onnx")
	require.NoError(t, os.WriteFile(input, []byte("video"), 0o644))
	require.NoError(t, os.WriteFile(model, []byte("model"), 0o644))
	return models.JobConfig{
		InputPath:  input,
		ModelPath:  model,
		OutputPath: filepath.Join(dir, "out.mp4"),
		Confidence: 0.2,
		IoU:        0.45,
		ImageSize:  1280,
		BlurKernel: 75,
		Precision:  models.PrecisionHalf,
	}
}

func newTestController(t *testing.T, f *fixture, obs Observer, opts ...Option) *Controller {
	t.Helper()
	opts = append([]Option{WithObserver(obs), WithMetrics(metrics.NewCollector(prometheus.NewRegistry()))}, opts...)
	c := NewController(f, opts...)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = c.Shutdown(ctx)
	})
	return c
}

func waitIdle(t *testing.T, c *Controller) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, c.Wait(ctx))
	assert.Equal(t, StateIdle, c.State())
}

func TestRequestStopBeforeStartIsNoop(t *testing.T) {
	c := newTestController(t, newFixture(1), newRecorder())

	c.RequestStop()
	assert.Equal(t, StateIdle, c.State())
	assert.NoError(t, c.Wait(context.Background()))
}

func TestCompletedRun(t *testing.T) {
	f := newFixture(10)
	rec := newRecorder()
	c := newTestController(t, f, rec)
	rec.ctrl = c

	runID, err := c.Start(validJob(t))
	require.NoError(t, err)
	require.NotEmpty(t, runID)

	out := rec.await(t)
	waitIdle(t, c)

	assert.Equal(t, models.RunCompleted, out.Status)
	assert.Equal(t, runID, out.RunID)
	assert.NoError(t, out.Err)
	assert.NotEmpty(t, out.OutputPath)
	assert.Equal(t, int64(10), out.Stats.Frames)
	assert.Equal(t, 1.0, out.Final.Fraction)
	assert.Equal(t, "fake", out.Backend)
	assert.False(t, out.FinishedAt.Before(out.StartedAt))

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.snapshots, 10)
	for i, s := range rec.snapshots {
		assert.Equal(t, int64(i+1), s.Processed)
		assert.Equal(t, runID, rec.runIDs[i])
	}
	assert.Len(t, rec.outcomes, 1)
	assert.Equal(t, []RunState{StateCompleted}, rec.states, "state must not be idle before delivery")

	assert.True(t, f.sink.Closed())
	assert.True(t, f.source.Closed())
}

func TestInvalidConfigurationFailsFast(t *testing.T) {
	f := newFixture(1)
	f.opened = make(chan models.JobConfig, 1)
	c := newTestController(t, f, newRecorder())

	tests := []struct {
		field  string
		mutate func(*models.JobConfig)
	}{
		{"confidence", func(j *models.JobConfig) { j.Confidence = 0 }},
		{"confidence", func(j *models.JobConfig) { j.Confidence = 1 }},
		{"iou", func(j *models.JobConfig) { j.IoU = 1.5 }},
		{"image_size", func(j *models.JobConfig) { j.ImageSize = 0 }},
		{"blur_kernel", func(j *models.JobConfig) { j.BlurKernel = -3 }},
		{"precision", func(j *models.JobConfig) { j.Precision = "double" }},
		{"input_path", func(j *models.JobConfig) { j.InputPath = filepath.Join(t.TempDir(), "missing.mp4") }},
		{"model_path", func(j *models.JobConfig) { j.ModelPath = "" }},
		{"output_path", func(j *models.JobConfig) { j.OutputPath = filepath.Join(t.TempDir(), "no", "such", "dir", "out.mp4") }},
		{"output_path", func(j *models.JobConfig) { j.OutputPath = j.InputPath }},
	}
	for _, tt := range tests {
		job := validJob(t)
		tt.mutate(&job)

		_, err := c.Start(job)
		require.Error(t, err, tt.field)
		assert.ErrorIs(t, err, apperr.ErrInvalidConfiguration)
		assert.Equal(t, tt.field, apperr.FieldOf(err))
		assert.Contains(t, err.Error(), tt.field)
		assert.Equal(t, StateIdle, c.State())
	}
	assert.Empty(t, f.opened, "opener must not run for invalid jobs")
}

func TestEvenKernelIsCoerced(t *testing.T) {
	f := newFixture(2)
	f.opened = make(chan models.JobConfig, 1)
	rec := newRecorder()
	c := newTestController(t, f, rec)

	job := validJob(t)
	job.BlurKernel = 10
	job.ImageSize = 1000
	_, err := c.Start(job)
	require.NoError(t, err)

	got := <-f.opened
	assert.Equal(t, 11, got.BlurKernel)
	assert.Equal(t, 1024, got.ImageSize)
	assert.Equal(t, models.RunCompleted, rec.await(t).Status)
}

func TestSecondStartIsRejected(t *testing.T) {
	f := newFixture(3)
	f.gate = make(chan struct{})
	rec := newRecorder()
	c := newTestController(t, f, rec)

	_, err := c.Start(validJob(t))
	require.NoError(t, err)

	_, err = c.Start(validJob(t))
	assert.ErrorIs(t, err, apperr.ErrAlreadyRunning)
	assert.Equal(t, apperr.KindAlreadyRunning, apperr.KindOf(err))

	st := c.Status()
	assert.Equal(t, StateRunning, st.State)
	assert.NotEmpty(t, st.RunID)

	close(f.gate)
	assert.Equal(t, models.RunCompleted, rec.await(t).Status)
	waitIdle(t, c)

	f.source = &pipelinetest.Source{Count: 1}
	f.sink = &pipelinetest.Sink{}
	_, err = c.Start(validJob(t))
	require.NoError(t, err)
	assert.Equal(t, models.RunCompleted, rec.await(t).Status)
}

func TestWaitNeverSeesPreviousRun(t *testing.T) {
	f := newFixture(1)
	rec := newRecorder()
	c := newTestController(t, f, rec)

	_, err := c.Start(validJob(t))
	require.NoError(t, err)
	rec.await(t)
	waitIdle(t, c)

	f.source = &pipelinetest.Source{Count: 1}
	f.sink = &pipelinetest.Sink{}
	f.gate = make(chan struct{})

	waited := make(chan error, 1)
	go func() {
		for c.State() == StateIdle {
			runtime.Gosched()
		}
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		waited <- c.Wait(ctx)
	}()

	_, err = c.Start(validJob(t))
	require.NoError(t, err)
	assert.ErrorIs(t, <-waited, context.DeadlineExceeded)

	close(f.gate)
	assert.Equal(t, models.RunCompleted, rec.await(t).Status)
	waitIdle(t, c)
}

func TestStopDuringRun(t *testing.T) {
	f := newFixture(100)
	rec := newRecorder()
	c := newTestController(t, f, rec)
	f.sink.OnWrite = func(fr *pipeline.Frame) {
		if fr.Index == 2 {
			c.RequestStop()
			assert.Equal(t, StateCancelling, c.State())
		}
	}

	_, err := c.Start(validJob(t))
	require.NoError(t, err)

	out := rec.await(t)
	waitIdle(t, c)

	assert.Equal(t, models.RunStopped, out.Status)
	assert.NoError(t, out.Err)
	assert.Equal(t, []int64{0, 1, 2}, f.sink.Indices())
	assert.True(t, f.sink.Closed())
	assert.True(t, f.source.Closed())

	c.RequestStop()
	assert.Equal(t, StateIdle, c.State())
}

func TestBaseContextCancellationStops(t *testing.T) {
	f := newFixture(10)
	rec := newRecorder()
	ctx, cancel := context.WithCancel(context.Background())
	c := newTestController(t, f, rec, WithContext(ctx))
	f.sink.OnWrite = func(fr *pipeline.Frame) {
		if fr.Index == 4 {
			cancel()
		}
	}

	_, err := c.Start(validJob(t))
	require.NoError(t, err)
	out := rec.await(t)
	assert.Equal(t, models.RunStopped, out.Status)
	assert.Equal(t, int64(5), out.Stats.Frames)
}

func TestOpenerFailureReportsFailed(t *testing.T) {
	f := newFixture(1)
	f.err = errors.New("codec missing")
	rec := newRecorder()
	c := newTestController(t, f, rec)

	_, err := c.Start(validJob(t))
	require.NoError(t, err)

	out := rec.await(t)
	waitIdle(t, c)
	assert.Equal(t, models.RunFailed, out.Status)
	assert.ErrorIs(t, out.Err, apperr.ErrResourceUnavailable)
	assert.Empty(t, out.OutputPath)
	assert.Contains(t, out.Error(), "codec missing")
}

func TestEncoderFailureReportsFailed(t *testing.T) {
	f := newFixture(10)
	f.sink.FailAt = 4
	f.sink.WriteErr = errors.New("disk full")
	rec := newRecorder()
	c := newTestController(t, f, rec)

	_, err := c.Start(validJob(t))
	require.NoError(t, err)

	out := rec.await(t)
	waitIdle(t, c)
	assert.Equal(t, models.RunFailed, out.Status)
	assert.ErrorIs(t, out.Err, apperr.ErrProcessingFailure)
	assert.Equal(t, int64(3), out.Stats.Frames)
	assert.True(t, f.sink.Closed())
	assert.True(t, f.source.Closed())
}

func TestSinkPanicReportsFailed(t *testing.T) {
	f := newFixture(10)
	f.sink.OnWrite = func(fr *pipeline.Frame) {
		if fr.Index == 3 {
			panic("cgo fault")
		}
	}
	rec := newRecorder()
	c := newTestController(t, f, rec)

	_, err := c.Start(validJob(t))
	require.NoError(t, err)

	out := rec.await(t)
	waitIdle(t, c)
	assert.Equal(t, models.RunFailed, out.Status)
	assert.ErrorIs(t, out.Err, apperr.ErrProcessingFailure)
	assert.True(t, f.sink.Closed())
	assert.True(t, f.source.Closed())
}

func TestOpenerPanicReportsFailed(t *testing.T) {
	rec := newRecorder()
	opener := OpenerFunc(func(context.Context, string, models.JobConfig) (*Resources, error) {
		panic("driver fault")
	})
	c := NewController(opener, WithObserver(rec))

	_, err := c.Start(validJob(t))
	require.NoError(t, err)

	out := rec.await(t)
	waitIdle(t, c)
	assert.Equal(t, models.RunFailed, out.Status)
	assert.ErrorIs(t, out.Err, apperr.ErrProcessingFailure)
}

func TestObserverFailuresAreIgnored(t *testing.T) {
	f := newFixture(5)
	terminal := make(chan struct{})
	obs := ObserverFuncs{
		Progress: func(string, progress.Snapshot) error { return errors.New("ui closed") },
		Terminal: func(Outcome) error {
			close(terminal)
			panic("observer bug")
		},
	}
	c := newTestController(t, f, obs)

	_, err := c.Start(validJob(t))
	require.NoError(t, err)

	<-terminal
	waitIdle(t, c)
	assert.Equal(t, []int64{0, 1, 2, 3, 4}, f.sink.Indices())
	assert.Equal(t, models.RunCompleted, c.Status().LastOutcome.Status)
}

func TestUnknownTotalFrames(t *testing.T) {
	f := newFixture(6)
	f.total = 0
	rec := newRecorder()
	c := newTestController(t, f, rec)

	_, err := c.Start(validJob(t))
	require.NoError(t, err)
	out := rec.await(t)

	assert.Equal(t, models.RunCompleted, out.Status)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	for _, s := range rec.snapshots {
		assert.False(t, s.ETAKnown)
		assert.Zero(t, s.Fraction)
	}
}

func TestPreviewDismissRequestsStop(t *testing.T) {
	preview := &pipelinetest.Preview{DismissAt: 3}
	f := newFixture(20)
	rec := newRecorder()
	opener := OpenerFunc(func(ctx context.Context, runID string, job models.JobConfig) (*Resources, error) {
		return &Resources{Source: f.source, Sink: f.sink, Preview: preview, Total: 20}, nil
	})
	c := NewController(opener, WithObserver(rec))

	_, err := c.Start(validJob(t))
	require.NoError(t, err)
	out := rec.await(t)

	assert.Equal(t, models.RunStopped, out.Status)
	assert.Equal(t, int64(3), out.Stats.Frames)
	assert.True(t, preview.Closed())
}

type memRecorder struct {
	mu   sync.Mutex
	runs []*models.Run
	err  error
}

func (m *memRecorder) Insert(run *models.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.runs = append(m.runs, run)
	return nil
}

func TestHistoryObserverRecordsOneRowPerRun(t *testing.T) {
	repo := &memRecorder{}
	rec := newRecorder()
	f := newFixture(4)
	c := newTestController(t, f, MultiObserver{NewHistoryObserver(repo), rec})

	job := validJob(t)
	runID, err := c.Start(job)
	require.NoError(t, err)
	rec.await(t)
	waitIdle(t, c)

	repo.mu.Lock()
	defer repo.mu.Unlock()
	require.Len(t, repo.runs, 1)
	run := repo.runs[0]
	assert.Equal(t, runID, run.ID)
	assert.Equal(t, models.RunCompleted, run.Status)
	assert.Equal(t, int64(4), run.FramesProcessed)
	assert.Equal(t, int64(4), run.TotalFrames)
	assert.Equal(t, job.InputPath, run.InputPath)
	assert.Empty(t, run.Error)
}

func TestMultiObserverContinuesAfterFailure(t *testing.T) {
	rec := newRecorder()
	m := MultiObserver{
		ObserverFuncs{Terminal: func(Outcome) error { panic("first") }},
		NewHistoryObserver(&memRecorder{err: errors.New("db locked")}),
		rec,
	}

	err := m.OnTerminal(Outcome{RunID: "r1", Status: models.RunCompleted})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "first")
	assert.Contains(t, err.Error(), "db locked")
	assert.Equal(t, "r1", rec.await(t).RunID)
}
