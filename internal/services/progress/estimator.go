// Package progress tracks frames written during a run and derives the
// completion fraction and remaining time from observed throughput.
package progress

import (
	"fmt"
	"sync"
	"time"
)

// Snapshot is an immutable view of run progress.
type Snapshot struct {
	Processed  int64         `json:"processed"`
	Total      int64         `json:"total"`
	Elapsed    time.Duration `json:"elapsed"`
	Throughput float64       `json:"throughput"` // frames per second
	Fraction   float64       `json:"fraction"`
	ETA        time.Duration `json:"eta"`
	ETAKnown   bool          `json:"eta_known"`
}

// Percent is the completion fraction as a whole percentage, rounded down.
func (s Snapshot) Percent() int {
	return int(s.Fraction * 100)
}

// String renders the snapshot as "42%  |  ETA: 01:13".
func (s Snapshot) String() string {
	return fmt.Sprintf("%d%%  |  ETA: %s", s.Percent(), FormatETA(s.ETA, s.ETAKnown))
}

// Estimator accumulates processed frames for a single run. It is safe for
// concurrent use, although the pipeline drives it from one goroutine.
type Estimator struct {
	mu        sync.Mutex
	total     int64
	processed int64
	start     time.Time
	now       func() time.Time
}

// Option configures an Estimator.
type Option func(*Estimator)

// WithClock replaces time.Now, used by tests.
func WithClock(now func() time.Time) Option {
	return func(e *Estimator) {
		e.now = now
	}
}

// NewEstimator starts the clock for a run of total frames. A total of 0
// means the frame count is unknown.
func NewEstimator(total int64, opts ...Option) *Estimator {
	e := &Estimator{now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	if total < 0 {
		total = 0
	}
	e.total = total
	e.start = e.now()
	return e
}

// Record counts one frame that reached the encoder.
func (e *Estimator) Record() {
	e.mu.Lock()
	e.processed++
	e.mu.Unlock()
}

// Snapshot computes progress as of now.
func (e *Estimator) Snapshot() Snapshot {
	e.mu.Lock()
	processed, total := e.processed, e.total
	e.mu.Unlock()

	elapsed := e.now().Sub(e.start)
	if elapsed < 0 {
		elapsed = 0
	}

	s := Snapshot{Processed: processed, Total: total, Elapsed: elapsed}
	if secs := elapsed.Seconds(); secs > 0 {
		s.Throughput = float64(processed) / secs
	}
	if total > 0 {
		s.Fraction = clamp01(float64(processed) / float64(total))
	}
	if total > 0 && s.Throughput > 0 {
		remaining := total - processed
		if remaining < 0 {
			remaining = 0
		}
		s.ETA = time.Duration(float64(remaining) / s.Throughput * float64(time.Second))
		s.ETAKnown = true
	}
	return s
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// FormatETA renders d as MM:SS, or HH:MM:SS from one hour up. Unknown
// durations render as "--:--".
func FormatETA(d time.Duration, known bool) string {
	if !known || d < 0 {
		return "--:--"
	}
	secs := int64(d / time.Second)
	h, m, s := secs/3600, (secs%3600)/60, secs%60
	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
