package session

import (
	"net/http"

	"github.com/gokatarajesh/live-quiz/internal/server"
)

// HandleWebSocket upgrades the request and serves the connection.
// Hosts and participants are anonymous; identity is the connection itself.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := server.WSUpgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	h.HandleConnection(conn)
}
