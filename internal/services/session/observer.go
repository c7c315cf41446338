package session

import (
	"errors"
	"fmt"

	"github.com/autonexit/FaceShield/internal/logger"
	"github.com/autonexit/FaceShield/internal/services/progress"
)

// Observer receives progress and the terminal outcome of every run. Calls
// for one run come from a single goroutine, in order, and never overlap.
// Returned errors are logged and ignored.
type Observer interface {
	OnProgress(runID string, s progress.Snapshot) error
	OnTerminal(o Outcome) error
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	Progress func(runID string, s progress.Snapshot) error
	Terminal func(o Outcome) error
}

func (f ObserverFuncs) OnProgress(runID string, s progress.Snapshot) error {
	if f.Progress == nil {
		return nil
	}
	return f.Progress(runID, s)
}

func (f ObserverFuncs) OnTerminal(o Outcome) error {
	if f.Terminal == nil {
		return nil
	}
	return f.Terminal(o)
}

// MultiObserver forwards to every observer even if an earlier one fails.
type MultiObserver []Observer

func (m MultiObserver) OnProgress(runID string, s progress.Snapshot) error {
	var errs []error
	for _, o := range m {
		errs = append(errs, safeCall(func() error { return o.OnProgress(runID, s) }))
	}
	return errors.Join(errs...)
}

func (m MultiObserver) OnTerminal(out Outcome) error {
	var errs []error
	for _, o := range m {
		errs = append(errs, safeCall(func() error { return o.OnTerminal(out) }))
	}
	return errors.Join(errs...)
}

// safeCall turns a panic into an error.
func safeCall(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("observer panicked: %v", r)
		}
	}()
	return fn()
}

// LogObserver writes progress every Every frames and the outcome of every run.
type LogObserver struct {
	Logger *logger.Logger
	Every  int64
}

func (l LogObserver) OnProgress(runID string, s progress.Snapshot) error {
	every := l.Every
	if every <= 0 {
		every = 100
	}
	if s.Processed%every == 0 {
		logger.OrNop(l.Logger).Info("run %s: %d/%d frames, %s (%.1f fps)", runID, s.Processed, s.Total, s, s.Throughput)
	}
	return nil
}

func (l LogObserver) OnTerminal(o Outcome) error {
	log := logger.OrNop(l.Logger)
	switch o.Err {
	case nil:
		log.Info("run %s %s: %d frames, %d boxes redacted, %d rejected, output %s",
			o.RunID, o.Status, o.Stats.Frames, o.Stats.BoxesRedacted, o.Stats.BoxesRejected, o.OutputPath)
	default:
		log.Error("run %s failed after %d frames: %v", o.RunID, o.Stats.Frames, o.Err)
	}
	return nil
}
