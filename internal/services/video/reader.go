// Package video wraps gocv capture and writer handles for file based runs.
package video

import (
	"fmt"
	"time"

	"gocv.io/x/gocv"

	"github.com/autonexit/FaceShield/internal/apperr"
)

// DefaultFPS is used when a container does not report a usable frame rate.
const DefaultFPS = 25.0

// Metadata describes a video stream before decoding starts.
type Metadata struct {
	FPS        float64 `json:"fps"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	FrameCount int64   `json:"frame_count"` // 0 when unknown
}

// Timestamp returns the presentation time of frame index.
func (m Metadata) Timestamp(index int64) time.Duration {
	fps := m.FPS
	if fps <= 0 {
		fps = DefaultFPS
	}
	return time.Duration(float64(index) / fps * float64(time.Second))
}

func metadataOf(vc *gocv.VideoCapture) Metadata {
	m := Metadata{
		FPS:        vc.Get(gocv.VideoCaptureFPS),
		Width:      int(vc.Get(gocv.VideoCaptureFrameWidth)),
		Height:     int(vc.Get(gocv.VideoCaptureFrameHeight)),
		FrameCount: int64(vc.Get(gocv.VideoCaptureFrameCount)),
	}
	if m.FPS <= 0 {
		m.FPS = DefaultFPS
	}
	if m.FrameCount < 0 {
		m.FrameCount = 0
	}
	return m
}

// closeCapture releases a handle returned alongside an open error.
func closeCapture(vc *gocv.VideoCapture) {
	if vc != nil {
		vc.Close()
	}
}

// Reader decodes frames sequentially into a single reused buffer.
type Reader struct {
	vc    *gocv.VideoCapture
	meta  Metadata
	buf   gocv.Mat
	index int64
}

// Open starts decoding path. Streams without a frame size are rejected.
func Open(path string) (*Reader, error) {
	vc, err := gocv.VideoCaptureFile(path)
	if err != nil {
		closeCapture(vc)
		return nil, apperr.Unavailable("open input", err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, apperr.Unavailable("open input", fmt.Errorf("cannot decode %s", path))
	}
	meta := metadataOf(vc)
	if meta.Width <= 0 || meta.Height <= 0 {
		vc.Close()
		return nil, apperr.Unavailable("open input", fmt.Errorf("%s reports no frame size", path))
	}
	return &Reader{vc: vc, meta: meta, buf: gocv.NewMat(), index: -1}, nil
}

// Metadata returns the stream metadata read at Open.
func (r *Reader) Metadata() Metadata {
	return r.meta
}

// Read decodes the next frame. The returned Mat is overwritten by the next
// call. ok is false at end of stream.
func (r *Reader) Read() (mat gocv.Mat, index int64, ok bool) {
	if !r.vc.Read(&r.buf) || r.buf.Empty() {
		return gocv.Mat{}, 0, false
	}
	r.index++
	return r.buf, r.index, true
}

// Close releases the capture handle and the frame buffer.
func (r *Reader) Close() error {
	berr := r.buf.Close()
	if err := r.vc.Close(); err != nil {
		return err
	}
	return berr
}
