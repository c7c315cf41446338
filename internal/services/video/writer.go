package video

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"gocv.io/x/gocv"

	"github.com/autonexit/FaceShield/internal/apperr"
	"github.com/autonexit/FaceShield/internal/services/pipeline"
)

// CodecFor picks a FourCC from the output extension: XVID for .avi,
// mp4v for anything else.
func CodecFor(path string) string {
	if strings.EqualFold(filepath.Ext(path), ".avi") {
		return "XVID"
	}
	return "mp4v"
}

// Writer encodes redacted frames to a container file.
type Writer struct {
	mu     sync.Mutex
	vw     *gocv.VideoWriter
	width  int
	height int
	closed bool
}

// NewWriter opens path for frames of the given size and rate.
func NewWriter(path string, meta Metadata) (*Writer, error) {
	fps := meta.FPS
	if fps <= 0 {
		fps = DefaultFPS
	}
	vw, err := gocv.VideoWriterFile(path, CodecFor(path), fps, meta.Width, meta.Height, true)
	if err != nil {
		return nil, apperr.Unavailable("open encoder", err)
	}
	if !vw.IsOpened() {
		vw.Close()
		return nil, apperr.Unavailable("open encoder", fmt.Errorf("cannot encode %s with %s", path, CodecFor(path)))
	}
	return &Writer{vw: vw, width: meta.Width, height: meta.Height}, nil
}

// Write appends one frame. Frames whose size differs from the stream are
// rejected, most encoders silently drop them otherwise.
func (w *Writer) Write(f *pipeline.Frame) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return errors.New("encoder closed")
	}
	if f.Image.Cols() != w.width || f.Image.Rows() != w.height {
		return fmt.Errorf("frame %d is %dx%d, encoder expects %dx%d",
			f.Index, f.Image.Cols(), f.Image.Rows(), w.width, w.height)
	}
	if err := w.vw.Write(f.Image); err != nil {
		return fmt.Errorf("encode frame %d: %w", f.Index, err)
	}
	return nil
}

// Close flushes and closes the container. It is safe to call twice.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	return w.vw.Close()
}
