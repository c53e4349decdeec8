package http

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/rafimuhammad01/dispatch-app/dispatch"
)

// Connection parameters.
const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second
	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Maximum message size allowed from peer.
	maxMessageSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Mobile and dashboard clients connect from arbitrary origins; joins are authorized per room.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Authenticator turns a bearer token into the principal it was issued to.
type Authenticator interface {
	Authenticate(token string) (dispatch.Principal, error)
}

// SocketHandler upgrades requests to WebSocket connections attached to the hub.
type SocketHandler struct {
	hub        *dispatch.Hub
	auth       Authenticator
	sendBuffer int
}

type SocketOption func(*SocketHandler)

// WithAuthenticator requires a valid token before the upgrade.
// Without it every connection is anonymous.
func WithAuthenticator(a Authenticator) SocketOption {
	return func(s *SocketHandler) {
		s.auth = a
	}
}

// WithSendBuffer sets how many outgoing messages a slow connection may have queued.
func WithSendBuffer(n int) SocketOption {
	return func(s *SocketHandler) {
		s.sendBuffer = n
	}
}

func NewSocketHandler(hub *dispatch.Hub, opts ...SocketOption) *SocketHandler {
	s := &SocketHandler{
		hub:        hub,
		sendBuffer: 64,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *SocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	principal := dispatch.Principal{}
	if s.auth != nil {
		p, err := s.auth.Authenticate(bearerToken(r))
		if err != nil {
			log.Debug().Err(err).Msg("websocket authentication failed")
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		principal = p
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("error when upgrade header")
		return
	}

	c := dispatch.NewConn(uuid.NewString(), principal, s.sendBuffer)
	s.hub.Connect(c)
	log.Info().Str("conn", c.ID).Str("subject", principal.Subject).Msg("client connected")

	go write(ws, c)
	s.read(ws, c)
}

// read applies client frames one at a time until the connection fails,
// then releases the connection from the hub.
func (s *SocketHandler) read(ws *websocket.Conn, c *dispatch.Conn) {
	defer func() {
		s.hub.Disconnect(c)
		ws.Close()
	}()

	ws.SetReadLimit(maxMessageSize)
	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				log.Info().Str("conn", c.ID).Msg("connection closed by client")
			} else {
				log.Debug().Err(err).Str("conn", c.ID).Msg("websocket connection error")
			}
			return
		}

		var env dispatch.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			// A frame that is not JSON does not end the session.
			s.hub.Router().Send(c, dispatch.EventError, dispatch.ErrorReply{Message: "malformed frame"})
			continue
		}
		s.hub.HandleEvent(c, env)
	}
}

// write drains the connection's send queue to the socket. gorilla/websocket
// supports a single concurrent writer, so every write goes through here.
func write(ws *websocket.Conn, c *dispatch.Conn) {
	pingTicker := time.NewTicker(pingPeriod)
	defer func() {
		pingTicker.Stop()
		ws.Close()
	}()

	for {
		select {
		case msg, ok := <-c.Messages():
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := ws.WriteJSON(msg); err != nil {
				log.Error().Err(err).Str("conn", c.ID).Msg("websocket write json error")
				return
			}

		case <-pingTicker.C:
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// bearerToken reads the token from the Authorization header, falling back to
// the token query parameter since browsers cannot set headers on WebSocket requests.
func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) == 2 && parts[0] == "Bearer" {
			return parts[1]
		}
	}
	return r.URL.Query().Get("token")
}
