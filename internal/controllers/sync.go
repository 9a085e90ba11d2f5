package controllers

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ephemeral-project/backend/internal/cctx"
	"github.com/ephemeral-project/backend/internal/live"
	"github.com/ephemeral-project/backend/internal/room"
	"github.com/ephemeral-project/backend/internal/router"
	"github.com/ephemeral-project/backend/internal/store"
)

var _ router.Controller = (*SyncController)(nil)

var (
	wsPool = new(sync.Pool)
)

// SyncController upgrades live connections and hands them to a Session.
type SyncController struct {
	Broadcaster *room.Broadcaster
	Records     *store.RecordStore

	upgrader *websocket.Upgrader
}

func (c *SyncController) handleSync(w http.ResponseWriter, r *http.Request) {
	hubID := mux.Vars(r)["id"]

	conn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		zap.L().Error("failed to upgrade connection", zap.Error(err))
		return
	}

	connID := strings.ReplaceAll(uuid.New().String(), "-", "")
	ctx := cctx.WithValues(
		r.Context(),
		cctx.HubID, hubID,
		cctx.ConnectionID, connID,
	)

	live.NewSession(hubID, conn, c.Broadcaster, c.Records).Run(ctx)
}

func (c *SyncController) Register(router *mux.Router) {
	c.upgrader = &websocket.Upgrader{
		HandshakeTimeout: 10 * time.Second,
		ReadBufferSize:   4096,
		WriteBufferSize:  4096,
		WriteBufferPool:  wsPool,
		CheckOrigin: func(r *http.Request) bool {
			// Hubs are anonymous and shareable by link; any origin may
			// connect.
			return true
		},
	}

	router.HandleFunc("/ws/hubs/{id}", c.handleSync).Methods(http.MethodGet)
}
