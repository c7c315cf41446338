package websocket

import (
	"encoding/json"
	"errors"

	"golang.org/x/time/rate"

	"github.com/autonexit/FaceShield/internal/dto"
	"github.com/autonexit/FaceShield/internal/services/progress"
	"github.com/autonexit/FaceShield/internal/services/session"
)

// Broadcaster delivers encoded messages to viewers.
type Broadcaster interface {
	Broadcast(message []byte) bool
	TryBroadcast(message []byte) bool
	ClientCount() int
}

var errHubStopped = errors.New("websocket hub stopped")

// ProgressObserver forwards run progress to viewers. Intermediate snapshots
// are rate limited; the last snapshot and the outcome are always sent.
type ProgressObserver struct {
	hub     Broadcaster
	limiter *rate.Limiter
}

// NewProgressObserver sends at most perSecond progress messages per second.
// A non-positive rate disables throttling.
func NewProgressObserver(hub Broadcaster, perSecond float64) *ProgressObserver {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	return &ProgressObserver{hub: hub, limiter: rate.NewLimiter(limit, 1)}
}

func (o *ProgressObserver) OnProgress(runID string, s progress.Snapshot) error {
	final := s.Total > 0 && s.Processed >= s.Total
	if !final && !o.limiter.Allow() {
		return nil
	}
	return o.publish(progressMessage(dto.TypeProgress, runID, s))
}

func (o *ProgressObserver) OnTerminal(out session.Outcome) error {
	msg := progressMessage(dto.TypeTerminal, out.RunID, out.Final)
	msg.Status = string(out.Status)
	msg.OutputPath = out.OutputPath
	msg.Error = out.Error()
	msg.Redacted = out.Stats.BoxesRedacted
	return o.publish(msg)
}

func (o *ProgressObserver) publish(msg dto.ProgressMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if !o.hub.Broadcast(data) {
		return errHubStopped
	}
	return nil
}

func progressMessage(kind, runID string, s progress.Snapshot) dto.ProgressMessage {
	return dto.ProgressMessage{
		Type:       kind,
		RunID:      runID,
		Processed:  s.Processed,
		Total:      s.Total,
		Percent:    s.Percent(),
		ETA:        progress.FormatETA(s.ETA, s.ETAKnown),
		Throughput: s.Throughput,
		Label:      s.String(),
	}
}
