// Package session owns the lifecycle of redaction runs: it validates jobs,
// runs at most one pipeline at a time on a background goroutine and reports
// progress and the terminal outcome to an observer.
package session

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/autonexit/FaceShield/internal/apperr"
	"github.com/autonexit/FaceShield/internal/logger"
	"github.com/autonexit/FaceShield/internal/models"
	"github.com/autonexit/FaceShield/internal/services/metrics"
	"github.com/autonexit/FaceShield/internal/services/pipeline"
	"github.com/autonexit/FaceShield/internal/services/progress"
	"github.com/autonexit/FaceShield/internal/services/redact"
)

const tracerName = "github.com/autonexit/FaceShield/internal/services/session"

// Resources are the per-run handles produced by an Opener. The pipeline
// takes ownership and closes all of them.
type Resources struct {
	Source  pipeline.DetectionSource
	Sink    pipeline.FrameSink
	Preview pipeline.PreviewSink
	Total   int64
	Backend string
}

// Opener acquires the decoder, detector, encoder and preview for a run. On
// error it must release whatever it already opened.
type Opener interface {
	Open(ctx context.Context, runID string, job models.JobConfig) (*Resources, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(ctx context.Context, runID string, job models.JobConfig) (*Resources, error)

func (f OpenerFunc) Open(ctx context.Context, runID string, job models.JobConfig) (*Resources, error) {
	return f(ctx, runID, job)
}

type event struct {
	snapshot progress.Snapshot
	outcome  *Outcome
}

// Controller runs one job at a time.
type Controller struct {
	opener   Opener
	observer Observer
	metrics  *metrics.Collector
	tracer   trace.Tracer
	logger   *logger.Logger
	baseCtx  context.Context
	buffer   int
	now      func() time.Time

	state atomic.Int32
	stop  atomic.Bool

	mu          sync.Mutex
	runID       string
	done        chan struct{}
	last        *progress.Snapshot
	lastOutcome *Outcome
}

// Option configures a Controller.
type Option func(*Controller)

// WithObserver sets the observer notified of progress and outcomes.
func WithObserver(o Observer) Option {
	return func(c *Controller) { c.observer = o }
}

// WithMetrics records run metrics on m.
func WithMetrics(m *metrics.Collector) Option {
	return func(c *Controller) { c.metrics = m }
}

// WithTracer replaces the global tracer.
func WithTracer(t trace.Tracer) Option {
	return func(c *Controller) { c.tracer = t }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithContext sets the context runs execute under. Cancelling it stops the
// active run.
func WithContext(ctx context.Context) Option {
	return func(c *Controller) { c.baseCtx = ctx }
}

// WithBuffer sets how many progress events may queue for the observer
// before the pipeline waits.
func WithBuffer(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.buffer = n
		}
	}
}

// WithClock replaces time.Now, used by tests.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// NewController returns an idle controller.
func NewController(opener Opener, opts ...Option) *Controller {
	c := &Controller{
		opener:   opener,
		observer: ObserverFuncs{},
		baseCtx:  context.Background(),
		buffer:   64,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.tracer == nil {
		c.tracer = otel.Tracer(tracerName)
	}
	c.logger = logger.OrNop(c.logger)
	return c
}

// State returns the current run state.
func (c *Controller) State() RunState {
	return RunState(c.state.Load())
}

// Start validates job and launches it on a background goroutine. It fails
// with an InvalidConfiguration error before touching any resource, or with
// AlreadyRunning while another run has not yet delivered its outcome.
func (c *Controller) Start(job models.JobConfig) (string, error) {
	valid, err := ValidateJob(job)
	if err != nil {
		return "", err
	}
	runID := uuid.NewString()
	done := make(chan struct{})
	events := make(chan event, c.buffer)

	// The new run's handles are published together with the state change so
	// Wait never observes Running with the previous run's done channel.
	c.mu.Lock()
	if !c.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		c.mu.Unlock()
		return "", apperr.ErrAlreadyRunning
	}
	c.stop.Store(false)
	c.runID = runID
	c.done = done
	c.last = nil
	c.mu.Unlock()

	c.metrics.RunStarted()
	c.logger.Info("run %s started: %s -> %s", runID, valid.InputPath, valid.OutputPath)

	go c.dispatch(runID, events, done)
	go c.run(runID, valid, events)
	return runID, nil
}

// RequestStop asks the active run to stop at the next frame boundary. It is
// a no-op unless a run is streaming and never blocks.
func (c *Controller) RequestStop() {
	if c.state.CompareAndSwap(int32(StateRunning), int32(StateCancelling)) {
		c.stop.Store(true)
		c.logger.Info("stop requested for run %s", c.currentRunID())
	}
}

// Wait blocks until the current run, if any, has delivered its outcome.
func (c *Controller) Wait(ctx context.Context) error {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()
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

// Shutdown stops the active run and waits for it to finish.
func (c *Controller) Shutdown(ctx context.Context) error {
	c.RequestStop()
	return c.Wait(ctx)
}

// Status reports the state, the latest snapshot of the active run and the
// outcome of the previous one.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := Status{State: c.State(), LastOutcome: c.lastOutcome}
	if st.State != StateIdle {
		st.RunID = c.runID
	}
	if c.last != nil && st.State != StateIdle {
		snap := *c.last
		st.Progress = &snap
		st.ETA = progress.FormatETA(snap.ETA, snap.ETAKnown)
	}
	return st
}

func (c *Controller) currentRunID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.runID
}

// run executes on the worker goroutine and always ends by queueing exactly
// one outcome and closing events.
func (c *Controller) run(runID string, job models.JobConfig, events chan<- event) {
	// HighGUI preview windows must stay on one OS thread.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	ctx, span := c.tracer.Start(c.baseCtx, "session.run", trace.WithAttributes(
		attribute.String("run.id", runID),
		attribute.String("job.input", job.InputPath),
		attribute.String("job.output", job.OutputPath),
		attribute.Int("job.image_size", job.ImageSize),
		attribute.Int("job.blur_kernel", job.BlurKernel),
		attribute.Float64("job.confidence", job.Confidence),
		attribute.Float64("job.iou", job.IoU),
		attribute.String("job.precision", string(job.Precision)),
	))

	out := Outcome{RunID: runID, Job: job, StartedAt: c.now()}

	res, backend, err := c.execute(ctx, runID, job, events)
	out.FinishedAt = c.now()
	out.Stats = res.Stats
	out.Final = res.Final
	out.Backend = backend

	switch {
	case err != nil:
		out.Status = models.RunFailed
		out.Err = err
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	case res.Cancelled || c.stop.Load():
		out.Status = models.RunStopped
		out.OutputPath = job.OutputPath
	default:
		out.Status = models.RunCompleted
		out.OutputPath = job.OutputPath
	}
	span.SetAttributes(
		attribute.String("run.status", string(out.Status)),
		attribute.Int64("run.frames", out.Stats.Frames),
		attribute.Int64("run.boxes_redacted", out.Stats.BoxesRedacted),
	)
	span.End()

	c.metrics.RunFinished(string(out.Status), out.FinishedAt.Sub(out.StartedAt))
	c.state.Store(int32(terminalState(out.Status)))

	events <- event{outcome: &out}
	close(events)
}

// execute opens the run's resources and drives the pipeline to completion.
func (c *Controller) execute(ctx context.Context, runID string, job models.JobConfig, events chan<- event) (result pipeline.Result, backend string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = apperr.Processing("run", fmt.Errorf("panic: %v", r))
		}
	}()

	res, err := c.opener.Open(ctx, runID, job)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindUnknown {
			err = apperr.Unavailable("open resources", err)
		}
		return pipeline.Result{}, "", err
	}

	filter, err := redact.NewFilter(job.BlurKernel)
	if err != nil {
		closeResources(res)
		return pipeline.Result{}, res.Backend, err
	}

	p, err := pipeline.New(pipeline.Config{
		Source:    res.Source,
		Sink:      res.Sink,
		Preview:   res.Preview,
		Filter:    filter,
		Estimator: progress.NewEstimator(res.Total, progress.WithClock(c.now)),
		Stopped:   c.stop.Load,
		OnProgress: func(s progress.Snapshot) error {
			c.mu.Lock()
			c.last = &s
			c.mu.Unlock()
			events <- event{snapshot: s}
			return nil
		},
		OnPreviewStop: c.RequestStop,
		Metrics:       c.metrics,
		Logger:        c.logger.Named("pipeline"),
	})
	if err != nil {
		closeResources(res)
		return pipeline.Result{}, res.Backend, apperr.Processing("build pipeline", err)
	}

	result, err = p.Run(ctx)
	return result, res.Backend, err
}

func closeResources(r *Resources) {
	if r.Sink != nil {
		r.Sink.Close()
	}
	if r.Source != nil {
		r.Source.Close()
	}
	if r.Preview != nil {
		r.Preview.Close()
	}
}

// dispatch delivers events to the observer on its own goroutine so the
// observer never runs concurrently with itself. The controller returns to
// Idle only after the outcome has been delivered.
func (c *Controller) dispatch(runID string, events <-chan event, done chan struct{}) {
	defer close(done)
	for ev := range events {
		if ev.outcome == nil {
			c.deliver("progress", func() error {
				return c.observer.OnProgress(runID, ev.snapshot)
			})
			continue
		}

		out := *ev.outcome
		c.deliver("terminal", func() error { return c.observer.OnTerminal(out) })

		c.mu.Lock()
		c.lastOutcome = &out
		c.last = nil
		c.mu.Unlock()
		c.stop.Store(false)
		c.state.Store(int32(StateIdle))
	}
}

// deliver calls fn, logging and discarding any error or panic.
func (c *Controller) deliver(kind string, fn func() error) {
	err := safeCall(fn)
	if err == nil {
		return
	}
	c.metrics.CallbackFailed()
	c.logger.Warning("%s callback failed: %v", kind, apperr.Callback(kind, err))
}
