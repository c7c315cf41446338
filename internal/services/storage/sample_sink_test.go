package storage

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"github.com/autonexit/FaceShield/internal/services/pipeline"
)

func redactedFrame(t *testing.T, index int64, regions ...image.Rectangle) *pipeline.Frame {
	t.Helper()
	mat := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(40, 80, 120, 0), 24, 32, gocv.MatTypeCV8UC3)
	t.Cleanup(func() { mat.Close() })
	return &pipeline.Frame{Index: index, Image: mat, Regions: regions}
}

func TestSampleSinkKeepsSpacedRedactedFrames(t *testing.T) {
	buffer := NewBufferService(t.TempDir(), 10, nil, nil)
	sink := NewSampleSink(buffer, "run-1", 5, nil)
	face := image.Rect(2, 2, 12, 12)

	assert.False(t, sink.Show(redactedFrame(t, 0)))
	for i := int64(1); i <= 12; i++ {
		assert.False(t, sink.Show(redactedFrame(t, i, face)))
	}
	require.NoError(t, sink.Close())

	buffer.mu.Lock()
	defer buffer.mu.Unlock()
	var frames []int64
	for _, img := range buffer.images {
		frames = append(frames, img.FrameIndex)
		assert.Equal(t, "run-1", img.RunID)
		assert.Equal(t, []image.Rectangle{face}, img.Regions)
		assert.Equal(t, []byte{0xFF, 0xD8}, img.Data[:2])
	}
	assert.Equal(t, []int64{1, 6, 11}, frames)
}

func TestSampleSinkStopsWhenBufferFull(t *testing.T) {
	buffer := NewBufferService(t.TempDir(), 1, nil, nil)
	sink := NewSampleSink(buffer, "run-1", 1, nil)
	face := image.Rect(0, 0, 8, 8)

	sink.Show(redactedFrame(t, 0, face))
	sink.Show(redactedFrame(t, 1, face))

	assert.Equal(t, 1, buffer.Len())
	assert.False(t, buffer.HasRoom())
}
