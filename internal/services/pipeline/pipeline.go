package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/autonexit/FaceShield/internal/apperr"
	"github.com/autonexit/FaceShield/internal/logger"
	"github.com/autonexit/FaceShield/internal/services/metrics"
	"github.com/autonexit/FaceShield/internal/services/progress"
	"github.com/autonexit/FaceShield/internal/services/redact"
)

// Phase is the per-run state of the frame loop.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseStreaming
	PhaseDraining
	PhaseFinalizing
	PhaseTerminal
)

func (p Phase) String() string {
	switch p {
	case PhaseStreaming:
		return "streaming"
	case PhaseDraining:
		return "draining"
	case PhaseFinalizing:
		return "finalizing"
	case PhaseTerminal:
		return "terminal"
	default:
		return "idle"
	}
}

// Stats counts the work done by a run.
type Stats struct {
	Frames        int64 `json:"frames"`
	BoxesRedacted int64 `json:"boxes_redacted"`
	BoxesRejected int64 `json:"boxes_rejected"`
}

// Result is what Run reports once every resource has been released.
type Result struct {
	Cancelled bool
	Stats     Stats
	Final     progress.Snapshot
}

// Config wires a Pipeline. Source, Sink, Filter and Estimator are required.
type Config struct {
	Source    DetectionSource
	Sink      FrameSink
	Preview   PreviewSink
	Filter    *redact.Filter
	Estimator *progress.Estimator

	// Stopped reports whether a stop was requested. It is polled once per
	// frame, before the next frame is pulled.
	Stopped func() bool
	// OnProgress receives a snapshot after every written frame. Errors and
	// panics are logged and otherwise ignored.
	OnProgress func(progress.Snapshot) error
	// OnPreviewStop is called when the preview asks to stop the run.
	OnPreviewStop func()

	Metrics *metrics.Collector
	Logger  *logger.Logger
}

// Pipeline pulls frames from a detection source, blurs every valid box and
// forwards the result to an encoder.
type Pipeline struct {
	cfg         Config
	log         *logger.Logger
	phase       Phase
	previewStop bool
}

// New validates cfg and returns a pipeline ready to Run once.
func New(cfg Config) (*Pipeline, error) {
	switch {
	case cfg.Source == nil:
		return nil, errors.New("pipeline: source is required")
	case cfg.Sink == nil:
		return nil, errors.New("pipeline: sink is required")
	case cfg.Filter == nil:
		return nil, errors.New("pipeline: filter is required")
	case cfg.Estimator == nil:
		return nil, errors.New("pipeline: estimator is required")
	}
	return &Pipeline{cfg: cfg, log: logger.OrNop(cfg.Logger)}, nil
}

// Phase returns the current loop phase. It must only be read from the
// goroutine running Run or after Run returns.
func (p *Pipeline) Phase() Phase {
	return p.phase
}

// Run streams the whole source. It returns once the sink, source and preview
// are closed. A stop request or context cancellation ends the run without an
// error and sets Result.Cancelled. A panic in a collaborator becomes a
// processing failure. A frame whose detections were already
// produced is always written; cancellation is honoured at the next frame
// boundary.
func (p *Pipeline) Run(ctx context.Context) (res Result, err error) {
	if p.phase != PhaseIdle {
		return res, errors.New("pipeline: already run")
	}
	p.phase = PhaseStreaming

	defer func() {
		if r := recover(); r != nil {
			err = apperr.Processing("frame loop", fmt.Errorf("panic: %v", r))
			p.log.Error("frame loop panicked: %v", r)
		}
		p.phase = PhaseFinalizing
		if cerr := p.finalize(); cerr != nil && err == nil {
			err = cerr
		}
		res.Final = p.cfg.Estimator.Snapshot()
		res.Cancelled = res.Cancelled && err == nil
		p.phase = PhaseTerminal
	}()

	lastIndex := int64(-1)
	for {
		if p.cancelled(ctx) {
			p.phase = PhaseDraining
			res.Cancelled = true
			p.log.Info("stop requested after %d frames, draining", res.Stats.Frames)
			return res, nil
		}

		frame, nerr := p.cfg.Source.Next(ctx)
		if errors.Is(nerr, io.EOF) {
			return res, nil
		}
		if nerr != nil {
			if errors.Is(nerr, context.Canceled) && ctx.Err() != nil {
				p.phase = PhaseDraining
				res.Cancelled = true
				return res, nil
			}
			return res, classify("read frame", nerr)
		}

		if frame.Index <= lastIndex {
			return res, apperr.Processing("order", fmt.Errorf("frame %d after frame %d", frame.Index, lastIndex))
		}
		lastIndex = frame.Index

		if err := p.process(frame, &res.Stats); err != nil {
			return res, err
		}
	}
}

// process redacts and writes a single frame, then reports progress.
func (p *Pipeline) process(frame *Frame, stats *Stats) error {
	started := time.Now()

	applied, err := p.cfg.Filter.Apply(&frame.Image, frame.Boxes)
	if err != nil {
		return apperr.Processing("redact", err)
	}
	frame.Regions = applied.Regions

	if err := p.cfg.Sink.Write(frame); err != nil {
		return apperr.Processing("write frame", err)
	}

	p.cfg.Estimator.Record()
	stats.Frames++
	stats.BoxesRedacted += int64(applied.Redacted)
	stats.BoxesRejected += int64(applied.Rejected)
	p.cfg.Metrics.ObserveFrame(time.Since(started), applied.Redacted, applied.Rejected)

	p.report(p.cfg.Estimator.Snapshot())

	if p.cfg.Preview != nil && p.cfg.Preview.Show(frame) {
		p.log.Info("preview dismissed at frame %d", frame.Index)
		p.previewStop = true
		if p.cfg.OnPreviewStop != nil {
			p.cfg.OnPreviewStop()
		}
	}
	return nil
}

// report hands a snapshot to the observer, swallowing failures.
func (p *Pipeline) report(s progress.Snapshot) {
	if p.cfg.OnProgress == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			p.cfg.Metrics.CallbackFailed()
			p.log.Warning("progress callback panicked: %v", r)
		}
	}()
	if err := p.cfg.OnProgress(s); err != nil {
		p.cfg.Metrics.CallbackFailed()
		p.log.Warning("progress callback failed: %v", apperr.Callback("progress", err))
	}
}

func (p *Pipeline) cancelled(ctx context.Context) bool {
	if p.previewStop || ctx.Err() != nil {
		return true
	}
	return p.cfg.Stopped != nil && p.cfg.Stopped()
}

// finalize closes the encoder first so the container is flushed, then the
// source and the preview. Every resource is closed even if an earlier one
// fails.
func (p *Pipeline) finalize() error {
	var err error
	if cerr := p.cfg.Sink.Close(); cerr != nil {
		err = apperr.Processing("close encoder", cerr)
	}
	if cerr := p.cfg.Source.Close(); cerr != nil {
		p.log.Warning("closing detection source: %v", cerr)
	}
	if p.cfg.Preview != nil {
		if cerr := p.cfg.Preview.Close(); cerr != nil {
			p.log.Warning("closing preview: %v", cerr)
		}
	}
	return err
}

// classify keeps already classified errors and marks the rest as
// processing failures.
func classify(op string, err error) error {
	if apperr.KindOf(err) != apperr.KindUnknown {
		return err
	}
	return apperr.Processing(op, err)
}
