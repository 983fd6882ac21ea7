package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/Wyydra/callcore/internal/adapter/driven/gateway/ws"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const writeWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// TODO: restrict to the configured UI origin once one exists
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WSClient is only written to by the hub.
type WSClient struct {
	id   string
	conn *websocket.Conn
}

var _ ws.Client = (*WSClient)(nil)

func (c *WSClient) ID() string {
	return c.id
}

func (c *WSClient) SendCall(event ws.CallEvent) error {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(event)
}

func (c *WSClient) Close() error {
	return c.conn.Close()
}

type incomingDTO struct {
	Type   string          `json:"type"`
	Action json.RawMessage `json:"action,omitempty"`
}

func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Error while upgrading ws")
		return
	}

	client := &WSClient{
		id:   uuid.NewString(),
		conn: conn,
	}

	l := log.With().Str("client_id", client.id).Logger()
	l.Info().Msg("New client connected")

	h.Hub.Register(client)

	defer func() {
		l.Info().Msg("Client disconnected")
		h.Hub.Unregister(client)
		conn.Close()
	}()

	for {
		var req incomingDTO
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				l.Error().Err(err).Msg("Unexpected close error")
			}
			break
		}

		switch req.Type {
		case "call_action":
			var dto actionDTO
			if err := json.Unmarshal(req.Action, &dto); err != nil {
				l.Warn().Err(err).Msg("Malformed call action")
				continue
			}
			action, err := dto.parse()
			if err != nil {
				l.Warn().Err(err).Msg("Invalid call action")
				continue
			}
			if err := h.dispatch(action); err != nil {
				l.Debug().Err(err).Str("action", string(action.Kind())).Msg("Call action dropped")
			}
		case "refresh":
			h.Monitor.Refresh()
		default:
			l.Warn().Str("type", req.Type).Msg("Unknown message type")
		}
	}
}
