// Package pipelinetest provides in-memory sources and sinks for exercising
// the frame pipeline without video files.
package pipelinetest

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/autonexit/FaceShield/internal/models"
	"github.com/autonexit/FaceShield/internal/services/pipeline"
)

// Source yields Count frames of Width x Height solid grey pixels.
type Source struct {
	Count         int
	Width, Height int
	FPS           float64

	// Boxes returns the detections for frame i, nil for none.
	Boxes func(i int) []models.Box
	// Indices overrides the frame index sequence when set.
	Indices []int64
	// FailAt makes Next return Err at frame FailAt when Err is set.
	FailAt int
	Err    error
	// Block makes Next wait for the context before returning frame Block.
	Block int

	mu      sync.Mutex
	next    int
	mat     gocv.Mat
	matInit bool
	closed  bool
	pulled  int
}

// Next returns the next frame or io.EOF.
func (s *Source) Next(ctx context.Context) (*pipeline.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, errors.New("source closed")
	}
	if s.Err != nil && s.next == s.FailAt {
		return nil, s.Err
	}
	if s.Block > 0 && s.next == s.Block {
		s.mu.Unlock()
		<-ctx.Done()
		s.mu.Lock()
		return nil, ctx.Err()
	}
	if s.next >= s.Count {
		return nil, io.EOF
	}
	if !s.matInit {
		w, h := s.Width, s.Height
		if w == 0 {
			w = 16
		}
		if h == 0 {
			h = 16
		}
		s.mat = gocv.NewMatWithSizeFromScalar(gocv.NewScalar(90, 90, 90, 0), h, w, gocv.MatTypeCV8UC3)
		s.matInit = true
	}

	i := s.next
	s.next++
	s.pulled++

	idx := int64(i)
	if i < len(s.Indices) {
		idx = s.Indices[i]
	}
	fps := s.FPS
	if fps <= 0 {
		fps = 25
	}

	f := &pipeline.Frame{
		Index:     idx,
		Timestamp: time.Duration(float64(i) / fps * float64(time.Second)),
		Image:     s.mat,
	}
	if s.Boxes != nil {
		f.Boxes = s.Boxes(i)
	}
	return f, nil
}

// Close releases the frame buffer.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.matInit {
		return s.mat.Close()
	}
	return nil
}

// Closed reports whether Close was called.
func (s *Source) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Pulled is the number of frames handed out.
func (s *Source) Pulled() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pulled
}

// Sink records written frame indices and pixels.
type Sink struct {
	// FailAt makes Write fail on the FailAt-th write (1-based) when WriteErr is set.
	FailAt   int
	WriteErr error
	CloseErr error

	// OnWrite runs after each successful write.
	OnWrite func(f *pipeline.Frame)

	mu      sync.Mutex
	indices []int64
	pixels  [][]byte
	closed  bool
}

// Write records the frame.
func (s *Sink) Write(f *pipeline.Frame) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errors.New("sink closed")
	}
	if s.WriteErr != nil && len(s.indices)+1 == s.FailAt {
		s.mu.Unlock()
		return s.WriteErr
	}
	s.indices = append(s.indices, f.Index)
	s.pixels = append(s.pixels, f.Image.ToBytes())
	s.mu.Unlock()

	if s.OnWrite != nil {
		s.OnWrite(f)
	}
	return nil
}

// Close marks the sink closed.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return s.CloseErr
}

// Indices returns the written frame indices in order.
func (s *Sink) Indices() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64(nil), s.indices...)
}

// Pixels returns a copy of the bytes written for the i-th frame.
func (s *Sink) Pixels(i int) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.pixels[i]...)
}

// Closed reports whether Close was called.
func (s *Sink) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Preview counts shown frames and asks to stop after DismissAt frames.
type Preview struct {
	DismissAt int

	mu     sync.Mutex
	shown  int
	closed bool
}

// Show returns true once DismissAt frames have been shown.
func (p *Preview) Show(*pipeline.Frame) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.shown++
	return p.DismissAt > 0 && p.shown >= p.DismissAt
}

// Close marks the preview closed.
func (p *Preview) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// Shown is the number of frames displayed.
func (p *Preview) Shown() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.shown
}

// Closed reports whether Close was called.
func (p *Preview) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}
