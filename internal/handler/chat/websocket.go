package chat

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/auralabs/aura/backend/internal/service/orchestrator"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// handleWebSocket runs the message pipeline over a persistent connection.
// Each inbound frame carries one message; the reply streams back as JSON
// frames mirroring the SSE event shapes.
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		userID = r.URL.Query().Get("userId")
	}
	if userID == "" {
		http.Error(w, "user identification required", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[chat] websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	log.Printf("[chat] websocket connected user=%s", userID)

	for {
		var payload messageRequest
		if err := conn.ReadJSON(&payload); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[chat] websocket read failed: %v", err)
			}
			return
		}

		if h.pipeline == nil {
			h.writeWSError(conn, "chat model not configured")
			continue
		}

		emitter := &wsEmitter{conn: conn}
		err := h.pipeline.Submit(r.Context(), orchestrator.Request{
			UserID:         userID,
			Topic:          payload.Mode,
			ConversationID: payload.ConversationID,
			Text:           payload.Message,
			Voice:          payload.IsVoice,
		}, emitter)
		if err != nil {
			log.Printf("[chat] websocket pipeline failed: %v", err)
			h.writeWSError(conn, "failed to process message")
		}
	}
}

func (h *Handler) writeWSError(conn *websocket.Conn, message string) {
	if err := conn.WriteJSON(map[string]any{"type": "error", "message": message}); err != nil {
		log.Printf("[chat] failed to deliver websocket error: %v", err)
	}
}

// wsEmitter delivers pipeline events as websocket JSON frames.
type wsEmitter struct {
	conn *websocket.Conn
}

func (e *wsEmitter) Header(payload orchestrator.HeaderPayload) error {
	return e.conn.WriteJSON(map[string]any{
		"type":    "metadata",
		"payload": payload,
	})
}

func (e *wsEmitter) Text(fragment string) error {
	return e.conn.WriteJSON(map[string]any{
		"type":    "text",
		"content": fragment,
	})
}

func (e *wsEmitter) Done() error {
	return e.conn.WriteJSON(map[string]any{"type": "done"})
}
