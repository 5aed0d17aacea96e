package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/FlomaWen/party-game/internal/game"
)

// WSHandler wires websocket connections into the session coordinator.
type WSHandler struct {
	coordinator *game.Coordinator
	upgrader    websocket.Upgrader
}

func NewWSHandler(coordinator *game.Coordinator) *WSHandler {
	return &WSHandler{
		coordinator: coordinator,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type setNamePayload struct {
	Name string `json:"name"`
}

type answerPayload struct {
	Answer   string `json:"answer"`
	TimeLeft int    `json:"timeLeft"`
}

// ServeWS upgrades the request and runs the connection until the client
// goes away. The coordinator owns the outbox channel passed to Connect: it
// is the only sender and closes it on disconnect, which stops the writer.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	playerID := r.URL.Query().Get("playerId")
	if playerID == "" {
		playerID = uuid.NewString()
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("ws upgrade failed")
		return
	}

	outbox := make(chan game.Event, 32)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		defer conn.Close()
		for ev := range outbox {
			if err := conn.WriteJSON(ev); err != nil {
				log.Debug().Err(err).Str("player_id", playerID).Msg("ws write error")
				// Keep draining so the coordinator never blocks; the read
				// loop notices the dead socket and disconnects us.
				for range outbox {
				}
				return
			}
		}
	}()

	h.coordinator.Connect(playerID, outbox)
	log.Info().Str("player_id", playerID).Msg("player connected")

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		h.dispatch(r.Context(), playerID, inbound)
	}

	// Pass our own outbox so a reconnect that already took over this id
	// is not torn down by this connection's cleanup.
	h.coordinator.Disconnect(playerID, outbox)
	<-writerDone
	log.Info().Str("player_id", playerID).Msg("player disconnected")
}

// dispatch maps one inbound wire message onto a coordinator operation.
// Malformed payloads are dropped; caller errors never take the session down.
func (h *WSHandler) dispatch(ctx context.Context, playerID string, msg inboundMessage) {
	switch msg.Type {
	case "set_name":
		var payload setNamePayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil || payload.Name == "" {
			log.Debug().Str("player_id", playerID).Msg("invalid set_name payload")
			return
		}
		h.coordinator.SetDisplayName(playerID, payload.Name)
	case "ready":
		h.coordinator.MarkReady(ctx, playerID)
	case "answer":
		var payload answerPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			log.Debug().Str("player_id", playerID).Msg("invalid answer payload")
			return
		}
		h.coordinator.SubmitAnswer(playerID, payload.Answer, payload.TimeLeft)
	default:
		log.Debug().Str("player_id", playerID).Str("type", msg.Type).Msg("unsupported message type")
	}
}
