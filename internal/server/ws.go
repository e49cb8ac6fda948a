package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/ayusman/hypnosonore/internal/app"
	"github.com/ayusman/hypnosonore/internal/log"
)

// SnapshotSource publishes per-frame snapshots. *app.App satisfies it.
type SnapshotSource interface {
	Subscribe(fn func(app.Snapshot)) func()
	Latest() app.Snapshot
}

// event is the websocket envelope.
type event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// SnapshotHandler streams every snapshot to websocket clients.
type SnapshotHandler struct {
	source SnapshotSource
	hub    *Hub
}

// NewSnapshotHandler creates a SnapshotHandler. Run must be called for
// snapshots to reach clients.
func NewSnapshotHandler(source SnapshotSource) *SnapshotHandler {
	return &SnapshotHandler{source: source, hub: NewHub("snapshots")}
}

// Run relays snapshots until ctx ends.
func (h *SnapshotHandler) Run(ctx context.Context) {
	unsubscribe := h.source.Subscribe(func(s app.Snapshot) {
		if h.hub.ClientCount() == 0 {
			return
		}
		if err := h.hub.BroadcastJSON(event{Type: "snapshot", Data: s}); err != nil {
			log.Component("ws").Warn("encoding snapshot", log.Err(err))
		}
	})
	defer unsubscribe()
	h.hub.Run(ctx)
}

// Clients returns the number of connected clients.
func (h *SnapshotHandler) Clients() int {
	return h.hub.ClientCount()
}

// ServeHTTP upgrades the connection and sends the latest snapshot first.
func (h *SnapshotHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	hello, err := json.Marshal(event{Type: "snapshot", Data: h.source.Latest()})
	if err != nil {
		hello = nil
	}
	h.hub.Serve(w, r, hello)
}
