package websocket

import (
	"encoding/base64"
	"encoding/json"

	"github.com/autonexit/FaceShield/internal/dto"
	"github.com/autonexit/FaceShield/internal/logger"
	"github.com/autonexit/FaceShield/internal/services/pipeline"
	"github.com/autonexit/FaceShield/internal/services/video"
)

// PreviewSink sends every Nth redacted frame to viewers as a JPEG. It never
// asks the run to stop.
type PreviewSink struct {
	hub    Broadcaster
	runID  string
	every  int64
	shown  int64
	logger *logger.Logger
}

// NewPreviewSink creates the remote preview of one run.
func NewPreviewSink(hub Broadcaster, runID string, every int, log *logger.Logger) *PreviewSink {
	if every < 1 {
		every = 1
	}
	return &PreviewSink{
		hub:    hub,
		runID:  runID,
		every:  int64(every),
		logger: logger.OrNop(log),
	}
}

func (p *PreviewSink) Show(f *pipeline.Frame) bool {
	n := p.shown
	p.shown++
	if n%p.every != 0 {
		return false
	}

	if p.hub == nil || p.hub.ClientCount() == 0 {
		return false
	}

	data, err := video.EncodeJPEG(f.Image)
	if err != nil {
		p.logger.Warning("Preview of frame %d skipped: %v", f.Index, err)
		return false
	}

	msg, err := json.Marshal(dto.PreviewMessage{
		Type:       dto.TypePreview,
		RunID:      p.runID,
		FrameIndex: f.Index,
		Image:      base64.StdEncoding.EncodeToString(data),
	})
	if err == nil {
		p.hub.TryBroadcast(msg)
	}
	return false
}

func (p *PreviewSink) Close() error {
	return nil
}
