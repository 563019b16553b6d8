package handler

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"campus-queue/internal/realtime"
)

const hubRegisterTimeout = 5 * time.Second

// QueueWebSocket streams snapshots of one queue to a display. The first
// snapshot is written before the connection joins the hub so that all
// later writes come from the hub goroutine alone.
func (h *Handler) QueueWebSocket(c *websocket.Conn) {
	queueID := c.Params("id")
	log := h.logger.With(zap.String("queue_id", queueID), zap.String("remote", c.RemoteAddr().String()))

	snap, err := h.scheduler.Snapshot(context.Background(), queueID)
	if err != nil {
		payload, _ := json.Marshal(realtime.ErrorEnvelope(err))
		_ = c.WriteMessage(websocket.TextMessage, payload)
		_ = c.Close()
		return
	}

	payload, err := json.Marshal(snap)
	if err != nil {
		log.Error("marshal snapshot", zap.Error(err))
		_ = c.Close()
		return
	}
	if err := c.WriteMessage(websocket.TextMessage, payload); err != nil {
		_ = c.Close()
		return
	}

	regCtx, cancel := context.WithTimeout(context.Background(), hubRegisterTimeout)
	h.hub.Register(regCtx, queueID, c)
	cancel()
	log.Debug("display connected")

	defer func() {
		unregCtx, cancel := context.WithTimeout(context.Background(), hubRegisterTimeout)
		h.hub.Unregister(unregCtx, queueID, c)
		cancel()
		log.Debug("display disconnected")
	}()

	for {
		if _, _, err := c.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure,
			) {
				log.Info("display closed unexpectedly", zap.Error(err))
			}
			return
		}
	}
}
