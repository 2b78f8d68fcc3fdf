package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/hackgods/practitioner-booking/internal/notify"
	"github.com/hackgods/practitioner-booking/internal/session"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512

	// CloseSessionExpired is sent when the session behind a subscription
	// reaches its expiry.
	CloseSessionExpired = 4001
	// CloseSessionRevoked is sent once the session has been logged out.
	CloseSessionRevoked = 4003
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// notificationHandler streams bus events for the authenticated user. The
// subscription lives exactly as long as the connection and never past the
// session's expiry or revocation.
type notificationHandler struct {
	bus     notify.Bus
	revoked session.RevocationStore
	now     func() time.Time
	log     zerolog.Logger

	mu   sync.Mutex
	live map[string]map[chan struct{}]struct{} // session id -> open connections
}

func newNotificationHandler(bus notify.Bus, revoked session.RevocationStore, now func() time.Time, log zerolog.Logger) *notificationHandler {
	return &notificationHandler{
		bus:     bus,
		revoked: revoked,
		now:     now,
		log:     log,
		live:    make(map[string]map[chan struct{}]struct{}),
	}
}

func (h *notificationHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sess, ok := session.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing session")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	kicked := h.track(sess.ID)
	defer h.untrack(sess.ID, kicked)

	sub := h.bus.Subscribe(sess.UserID)
	h.log.Debug().
		Str("user_id", sess.UserID.String()).
		Str("subscription_id", sub.ID.String()).
		Msg("notification subscription opened")

	go h.readPump(conn, sub)
	h.writePump(conn, sub, sess, kicked)
}

func (h *notificationHandler) track(sessionID string) chan struct{} {
	h.mu.Lock()
	defer h.mu.Unlock()

	kicked := make(chan struct{})
	if h.live[sessionID] == nil {
		h.live[sessionID] = make(map[chan struct{}]struct{})
	}
	h.live[sessionID][kicked] = struct{}{}
	return kicked
}

func (h *notificationHandler) untrack(sessionID string, kicked chan struct{}) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conns := h.live[sessionID]
	delete(conns, kicked)
	if len(conns) == 0 {
		delete(h.live, sessionID)
	}
}

// closeSession ends every connection opened with sessionID on this
// instance. Connections on other instances notice the revocation on their
// next event or ping.
func (h *notificationHandler) closeSession(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for kicked := range h.live[sessionID] {
		close(kicked)
	}
	delete(h.live, sessionID)
}

func (h *notificationHandler) isRevoked(sess session.Session) bool {
	if h.revoked == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), writeWait)
	defer cancel()

	revoked, err := h.revoked.IsRevoked(ctx, sess.ID)
	if err != nil {
		h.log.Warn().Err(err).Str("user_id", sess.UserID.String()).Msg("revocation lookup failed")
		return false
	}
	return revoked
}

// readPump only watches for the client going away; clients have nothing to
// send.
func (h *notificationHandler) readPump(conn *websocket.Conn, sub *notify.Subscription) {
	defer h.bus.Unsubscribe(sub)

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *notificationHandler) writePump(conn *websocket.Conn, sub *notify.Subscription, sess session.Session, kicked <-chan struct{}) {
	expiry := time.NewTimer(sess.ExpiresAt.Sub(h.now()))
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		expiry.Stop()
		ticker.Stop()
		h.bus.Unsubscribe(sub)
		_ = conn.Close()
	}()

	for {
		select {
		case ev, ok := <-sub.C:
			if !ok {
				closeWith(conn, websocket.CloseNormalClosure, "")
				return
			}
			if h.isRevoked(sess) {
				closeWith(conn, CloseSessionRevoked, "session revoked")
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-kicked:
			closeWith(conn, CloseSessionRevoked, "session revoked")
			return
		case <-expiry.C:
			closeWith(conn, CloseSessionExpired, "session expired")
			return
		case <-ticker.C:
			if h.isRevoked(sess) {
				closeWith(conn, CloseSessionRevoked, "session revoked")
				return
			}
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func closeWith(conn *websocket.Conn, code int, text string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(writeWait))
}
