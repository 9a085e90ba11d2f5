// Package live bridges one client's duplex websocket connection to a hub's
// room: inbound frames fan out to peers and, when they parse as completed
// whiteboard strokes, get merged into the hub record.
package live

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ephemeral-project/backend/internal/cctx"
	"github.com/ephemeral-project/backend/internal/models"
	"github.com/ephemeral-project/backend/internal/room"
)

const (
	// Time allowed to write a frame or ping to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Ping period; must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum frame size accepted from the peer.
	maxFrameSize = 64 * 1024
)

// Records is the slice of the record store a session needs.
type Records interface {
	Mutate(ctx context.Context, id string, fn func(*models.HubRecord) error) error
}

// Session is the per-connection state machine: Connecting -> Active ->
// Closed. One instance per websocket connection.
type Session struct {
	hubID       string
	conn        *websocket.Conn
	broadcaster *room.Broadcaster
	records     Records
}

func NewSession(hubID string, conn *websocket.Conn, broadcaster *room.Broadcaster, records Records) *Session {
	return &Session{
		hubID:       hubID,
		conn:        conn,
		broadcaster: broadcaster,
		records:     records,
	}
}

// Run drives the session until the peer disconnects or ctx is cancelled.
// The inbound and outbound relays run concurrently; the first one to stop
// cancels the other, and Run returns only after both have exited, so no
// half-open pump outlives the connection.
func (s *Session) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	connID, _ := ctx.Value(cctx.ConnectionID).(string)
	log := zap.L().With(
		zap.String("hub", s.hubID),
		zap.String("conn", connID),
	)

	sub := s.broadcaster.Join(s.hubID)
	defer sub.Close()

	log.Info("session active")

	// Closing the conn is the only way to unblock a pending ReadMessage.
	go func() {
		<-ctx.Done()
		_ = s.conn.Close()
	}()

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		defer cancel()
		s.outbound(ctx, sub, log)
	}()

	go func() {
		defer wg.Done()
		defer cancel()
		s.inbound(ctx, log)
	}()

	wg.Wait()
	log.Info("session closed")
}

// outbound relays frames from the room to the client and keeps the
// connection alive with periodic pings.
func (s *Session) outbound(ctx context.Context, sub *room.Subscription, log *zap.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case frame, ok := <-sub.Frames():
			if !ok {
				return
			}

			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
				log.Debug("write to peer failed", zap.Error(err))
				return
			}

		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// inbound relays frames from the client to the room and merges completed
// strokes into the hub record. Persistence is best-effort relative to the
// live broadcast: a parse or mutate failure is logged and never closes the
// connection.
func (s *Session) inbound(ctx context.Context, log *zap.Logger) {
	s.conn.SetReadLimit(maxFrameSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		kind, frame, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn("read from peer failed", zap.Error(err))
			}
			return
		}

		if kind != websocket.TextMessage {
			continue
		}

		s.broadcaster.Publish(s.hubID, string(frame))

		stroke, ok := models.ParsePathCompleted(frame)
		if !ok {
			continue
		}

		err = s.records.Mutate(ctx, s.hubID, func(rec *models.HubRecord) error {
			rec.Whiteboard = append(rec.Whiteboard, stroke)
			return nil
		})
		if err != nil {
			log.Warn("failed to persist stroke",
				zap.String("stroke", stroke.ID),
				zap.Error(err),
			)
		}
	}
}
