package storage

import (
	"github.com/autonexit/FaceShield/internal/logger"
	"github.com/autonexit/FaceShield/internal/services/pipeline"
	"github.com/autonexit/FaceShield/internal/services/video"
)

// SampleSink offers redacted frames of one run to the buffer. A frame is
// kept when something was blurred in it, the buffer has room and at least
// every frames passed since the previous kept sample. It never asks the run
// to stop.
type SampleSink struct {
	buffer *BufferService
	runID  string
	every  int64
	last   int64
	kept   bool
	logger *logger.Logger
}

// NewSampleSink creates the sample feed of one run.
func NewSampleSink(buffer *BufferService, runID string, every int, log *logger.Logger) *SampleSink {
	return &SampleSink{
		buffer: buffer,
		runID:  runID,
		every:  int64(max(every, 1)),
		logger: logger.OrNop(log),
	}
}

func (s *SampleSink) Show(f *pipeline.Frame) bool {
	if len(f.Regions) == 0 || !s.buffer.HasRoom() {
		return false
	}
	if s.kept && f.Index-s.last < s.every {
		return false
	}

	data, err := video.EncodeJPEG(f.Image)
	if err != nil {
		s.logger.Warning("Sample of frame %d skipped: %v", f.Index, err)
		return false
	}
	if s.buffer.AddImage(s.runID, f.Index, data, f.Regions) {
		s.last, s.kept = f.Index, true
	}
	return false
}

func (s *SampleSink) Close() error {
	return nil
}
