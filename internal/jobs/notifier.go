package jobs

import (
	"context"

	"github.com/noveltoon/backend/internal/events"
	"github.com/noveltoon/backend/internal/logger"
	"github.com/noveltoon/backend/internal/pipeline"
	"github.com/noveltoon/backend/internal/types"
)

// Notifier turns job state changes into hub events, mirrored to redis
// when a relay is configured.
type Notifier struct {
	hub   *events.Hub
	relay *events.RedisRelay
	log   *logger.Logger
}

func NewNotifier(hub *events.Hub, relay *events.RedisRelay, log *logger.Logger) *Notifier {
	return &Notifier{hub: hub, relay: relay, log: log.With("service", "job_notifier")}
}

func (n *Notifier) Progress(ctx context.Context, jobID, stage string, pct int, msg string) {
	n.emit(ctx, jobID, events.Event{
		Type:     events.TypeProgress,
		Stage:    stage,
		Progress: pct,
		Message:  msg,
	})
}

func (n *Notifier) Completed(ctx context.Context, jobID string, video *types.FinalVideo) {
	n.emit(ctx, jobID, events.Event{
		Type:     events.TypeCompleted,
		Stage:    pipeline.StageDone,
		Progress: 100,
		Result: &events.CompletedResult{
			VideoPath:   video.Path,
			Duration:    video.DurationSeconds,
			FileSize:    video.ByteSize,
			ScenesCount: video.SceneCount,
		},
	})
}

// Failed stamps the job's last reported pct so the terminal event never
// rewinds the number a subscriber already saw.
func (n *Notifier) Failed(ctx context.Context, jobID string, kind pipeline.Kind, detail string, pct int) {
	n.emit(ctx, jobID, events.Event{
		Type:     events.TypeFailed,
		Kind:     string(kind),
		Detail:   detail,
		Progress: pct,
	})
}

func (n *Notifier) emit(ctx context.Context, jobID string, ev events.Event) {
	stamped := n.hub.Publish(jobID, ev)
	if n.relay != nil {
		n.relay.Publish(ctx, stamped)
	}
}
