package realtime

import (
	"context"

	"go.uber.org/zap"

	"campus-queue/internal/apperror"
	"campus-queue/internal/logging"
	"campus-queue/internal/models"
)

// SnapshotSource reads the display view of a queue.
type SnapshotSource interface {
	Snapshot(ctx context.Context, queueID string) (models.QueueSnapshot, error)
}

// ErrorEnvelope is the payload a display receives instead of a snapshot.
func ErrorEnvelope(err error) map[string]any {
	return map[string]any{
		"success": false,
		"error": map[string]any{
			"status":  apperror.KindOf(err),
			"message": apperror.Message(err),
		},
	}
}

// Notifier pushes fresh snapshots to a queue's displays after it changes.
type Notifier struct {
	hub    *Hub
	source SnapshotSource
	logger *zap.Logger
}

func NewNotifier(hub *Hub, source SnapshotSource, logger *zap.Logger) *Notifier {
	return &Notifier{hub: hub, source: source, logger: logging.OrNop(logger)}
}

// QueueChanged publishes the queue's snapshot. A queue that no longer
// exists gets the NOT_FOUND envelope and its displays are disconnected.
func (n *Notifier) QueueChanged(ctx context.Context, queueID string) {
	if n == nil || n.hub == nil {
		return
	}
	snap, err := n.source.Snapshot(ctx, queueID)
	switch {
	case err == nil:
		n.hub.Publish(queueID, snap)
	case apperror.KindOf(err) == apperror.KindNotFound:
		n.hub.CloseQueue(queueID, ErrorEnvelope(err))
	default:
		n.logger.Debug("snapshot for display failed", zap.String("queue_id", queueID), zap.Error(err))
	}
}
