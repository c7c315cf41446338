package pipeline

import (
	"context"
	"errors"
	"image"
	"time"

	"gocv.io/x/gocv"

	"github.com/autonexit/FaceShield/internal/models"
)

// Frame is one decoded frame together with its detections.
//
// Image is owned by the source and is only valid until the next call to
// Next. Sinks that keep pixels beyond Write or Show must copy them.
type Frame struct {
	Index     int64
	Timestamp time.Duration
	Image     gocv.Mat
	Boxes     []models.Box

	// Regions is filled by the pipeline with the rectangles it blurred.
	Regions []image.Rectangle
}

// DetectionSource yields frames in source order. Next returns io.EOF once
// the stream is exhausted. Close may be called before EOF.
type DetectionSource interface {
	Next(ctx context.Context) (*Frame, error)
	Close() error
}

// FrameSink receives redacted frames in strictly increasing index order.
// Close flushes the output.
type FrameSink interface {
	Write(f *Frame) error
	Close() error
}

// PreviewSink displays processed frames. Show returns true when the viewer
// asked to stop the run.
type PreviewSink interface {
	Show(f *Frame) bool
	Close() error
}

// Previews fans frames out to several preview sinks. Any of them may ask to
// stop the run.
type Previews []PreviewSink

// Show displays f on every sink.
func (ps Previews) Show(f *Frame) bool {
	stop := false
	for _, p := range ps {
		if p.Show(f) {
			stop = true
		}
	}
	return stop
}

// Close closes every sink.
func (ps Previews) Close() error {
	var errs []error
	for _, p := range ps {
		errs = append(errs, p.Close())
	}
	return errors.Join(errs...)
}
