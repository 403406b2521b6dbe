package gateway

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/soyeahso/chatpool/internal/pool"
)

// snapshotInterval is how often the event stream pushes pool state.
const snapshotInterval = 5 * time.Second

// poolEvent is one frame on the operator event stream.
type poolEvent struct {
	Type     string     `json:"type"`
	Stats    pool.Stats `json:"stats"`
	Bindings int        `json:"bindings"`
	Time     time.Time  `json:"ts"`
}

// wsAuthorized checks the admin key for the event stream. Browser clients
// cannot set headers on a WebSocket dial, so the key query parameter is
// accepted too.
func (s *Server) wsAuthorized(r *http.Request) bool {
	if s.cfg.Gateway.AdminKey == "" {
		return false
	}
	if auth := r.Header.Get("Authorization"); auth != "" {
		return safeEqual(bearerToken(auth), s.cfg.Gateway.AdminKey)
	}
	if key := r.URL.Query().Get("key"); key != "" {
		return safeEqual(key, s.cfg.Gateway.AdminKey)
	}
	return false
}

// handleWebSocket upgrades the connection and streams pool snapshots until
// the client disconnects.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if !s.wsAuthorized(r) {
		writeError(w, http.StatusUnauthorized, "invalid admin key")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	s.log.Debug().Str("remote", r.RemoteAddr).Msg("event stream connected")

	// Drain incoming frames so pings and close frames are processed.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(snapshotInterval)
	defer ticker.Stop()

	for {
		event := poolEvent{
			Type:     "pool.snapshot",
			Stats:    s.mgr.Current().Snapshot(),
			Bindings: s.router.Len(),
			Time:     time.Now(),
		}
		if err := conn.WriteJSON(event); err != nil {
			return
		}

		select {
		case <-done:
			return
		case <-r.Context().Done():
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
			return
		case <-ticker.C:
		}
	}
}
