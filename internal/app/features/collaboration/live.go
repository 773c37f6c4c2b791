// internal/app/features/collaboration/live.go
package collaboration

import (
	"net/http"
	"time"

	"github.com/dalemusser/sharedcart/internal/app/system/live"
	"github.com/dalemusser/sharedcart/internal/app/system/timeouts"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	liveWriteWait  = 10 * time.Second
	livePongWait   = 60 * time.Second
	livePingPeriod = (livePongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

// ServeLive handles GET /{sessionId}/live. It upgrades to a websocket, sends
// the current snapshot, then pushes every newer snapshot until the client
// goes away. Clients only listen; anything they send is discarded.
func (h *Handler) ServeLive(w http.ResponseWriter, r *http.Request) {
	if h.Hub == nil {
		writeError(w, http.StatusNotFound, "Live updates are disabled")
		return
	}
	sessionID := chi.URLParam(r, "sessionId")
	user := identity(r)

	// Subscribe before reading so no write between the read and the
	// subscription is missed.
	sub := h.Hub.Subscribe(sessionID)
	defer sub.Close()

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Read(), h.Log, "collab live snapshot")
	sess, err := h.Svc.GetSession(ctx, user, sessionID)
	cancel()
	if err != nil {
		h.writeServiceError(w, r, "live", err)
		return
	}
	first, err := live.Encode(sess)
	if err != nil {
		h.writeServiceError(w, r, "live", err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an HTTP error.
		h.Log.Debug("live upgrade failed", zap.String("session_id", sessionID), zap.Error(err))
		return
	}
	defer conn.Close()

	h.Log.Debug("live subscriber connected",
		zap.String("session_id", sessionID),
		zap.String("user_id", user.UserID))

	// Reader: handles pongs and notices disconnects.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(livePongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(livePongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	write := func(msgType int, data []byte) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
		return conn.WriteMessage(msgType, data) == nil
	}

	lastRev := sess.Revision
	if !write(websocket.TextMessage, first) {
		return
	}

	ping := time.NewTicker(livePingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-gone:
			return
		case <-r.Context().Done():
			return
		case data, ok := <-sub.C:
			if !ok {
				return
			}
			if rev, ok := live.PeekRevision(data); ok && rev <= lastRev {
				continue
			} else if ok {
				lastRev = rev
			}
			if !write(websocket.TextMessage, data) {
				return
			}
		case <-ping.C:
			if !write(websocket.PingMessage, nil) {
				return
			}
		}
	}
}
