package video

import (
	"gocv.io/x/gocv"

	"github.com/autonexit/FaceShield/internal/services/pipeline"
)

// Window shows processed frames in a native HighGUI window. Pressing q or
// closing the window asks the run to stop.
//
// The window is created on the first Show, so it lives on the goroutine
// that drives the pipeline.
type Window struct {
	title string
	win   *gocv.Window
}

// NewWindow returns a preview window with the given title.
func NewWindow(title string) *Window {
	return &Window{title: title}
}

// Show displays the frame and polls the keyboard once.
func (w *Window) Show(f *pipeline.Frame) bool {
	if w.win == nil {
		w.win = gocv.NewWindow(w.title)
	}
	w.win.IMShow(f.Image)
	key := w.win.WaitKey(1)
	if key == 'q' || key == 'Q' {
		return true
	}
	return !w.win.IsOpen()
}

// Close destroys the window if it was ever shown.
func (w *Window) Close() error {
	if w.win == nil {
		return nil
	}
	err := w.win.Close()
	w.win = nil
	return err
}
