package ai

import (
	"context"
	"errors"
	"fmt"
	"io"

	"gocv.io/x/gocv"

	"github.com/autonexit/FaceShield/internal/apperr"
	"github.com/autonexit/FaceShield/internal/services/pipeline"
	"github.com/autonexit/FaceShield/internal/services/video"
)

// FrameReader decodes frames in order into a reused buffer.
type FrameReader interface {
	Read() (gocv.Mat, int64, bool)
	Metadata() video.Metadata
	Close() error
}

// Source pairs every decoded frame with the detector's boxes. It owns both
// the reader and the detector and closes them together.
type Source struct {
	reader   FrameReader
	detector Detector
	meta     video.Metadata
	closed   bool
}

// NewSource builds a detection source over an open reader.
func NewSource(reader FrameReader, detector Detector) *Source {
	return &Source{reader: reader, detector: detector, meta: reader.Metadata()}
}

// Next decodes and runs detection on the next frame. It returns io.EOF
// when the stream ends.
func (s *Source) Next(ctx context.Context) (*pipeline.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.closed {
		return nil, io.EOF
	}

	mat, index, ok := s.reader.Read()
	if !ok {
		return nil, io.EOF
	}

	boxes, err := s.detector.Detect(mat)
	if err != nil {
		return nil, apperr.Processing("detect", fmt.Errorf("frame %d: %w", index, err))
	}

	return &pipeline.Frame{
		Index:     index,
		Timestamp: s.meta.Timestamp(index),
		Image:     mat,
		Boxes:     boxes,
	}, nil
}

// Close releases the detector and the reader. Calling it early abandons
// the rest of the stream.
func (s *Source) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return errors.Join(s.detector.Close(), s.reader.Close())
}
