// Package chat exposes the message pipeline and conversation management over
// HTTP. Replies stream back as Server-Sent Events.
package chat

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/auralabs/aura/backend/internal/service/orchestrator"
	"github.com/auralabs/aura/backend/internal/service/session"
	"github.com/auralabs/aura/backend/internal/store"
	"github.com/auralabs/aura/backend/pkg/utils"
)

// Handler serves the chat endpoints.
type Handler struct {
	pipeline      *orchestrator.Pipeline
	sessions      *session.Manager
	conversations store.ConversationStore
	messages      store.MessageStore
}

// New creates the chat handler. pipeline may be nil when no model is
// configured; message submission then answers 503 while conversation
// management keeps working.
func New(pipeline *orchestrator.Pipeline, sessions *session.Manager, conversations store.ConversationStore, messages store.MessageStore) *Handler {
	return &Handler{
		pipeline:      pipeline,
		sessions:      sessions,
		conversations: conversations,
		messages:      messages,
	}
}

// RegisterRoutes registers the chat routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chat/message", h.handleMessage)
	r.Get("/chat/ws", h.handleWebSocket)
	r.Get("/chat/conversations", h.handleListConversations)
	r.Post("/chat/conversations", h.handleCreateConversation)
	r.Get("/chat/messages/{conversationID}", h.handleListMessages)
	r.Delete("/chat/conversations/{conversationID}", h.handleDeleteConversation)
}

// messageRequest is the inbound message body.
type messageRequest struct {
	Message        string `json:"message"`
	Mode           string `json:"mode"`
	ConversationID string `json:"conversationId"`
	IsVoice        bool   `json:"isVoice"`
}

// handleMessage runs one message through the pipeline and streams the reply.
// Failures before the first event produce a plain JSON error; once the stream
// has started, errors terminate it with an error frame.
func (h *Handler) handleMessage(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		utils.RespondError(w, http.StatusBadRequest, "X-User-ID header is required")
		return
	}

	if h.pipeline == nil {
		utils.RespondError(w, http.StatusServiceUnavailable, "chat model not configured")
		return
	}

	var payload messageRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	emitter := &sseEmitter{w: w, flusher: flusher}
	err := h.pipeline.Submit(r.Context(), orchestrator.Request{
		UserID:         userID,
		Topic:          payload.Mode,
		ConversationID: payload.ConversationID,
		Text:           payload.Message,
		Voice:          payload.IsVoice,
	}, emitter)
	if err == nil {
		return
	}

	if emitter.started {
		// The response is already committed as an event stream.
		log.Printf("[chat] stream failed mid-reply: %v", err)
		emitter.fail("stream interrupted")
		return
	}

	switch {
	case errors.Is(err, orchestrator.ErrEmptyMessage):
		utils.RespondError(w, http.StatusBadRequest, "message is required")
	default:
		log.Printf("[chat] message pipeline failed: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to process message")
	}
}

// sseEmitter delivers pipeline events as SSE data frames. Headers are written
// lazily so pre-stream errors can still answer with a JSON status.
type sseEmitter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	started bool
}

func (e *sseEmitter) start() {
	if !e.started {
		utils.SetupSSEHeaders(e.w)
		e.started = true
	}
}

func (e *sseEmitter) Header(payload orchestrator.HeaderPayload) error {
	e.start()
	return utils.WriteSSEChunk(e.w, e.flusher, map[string]any{
		"type":    "metadata",
		"payload": payload,
	})
}

func (e *sseEmitter) Text(fragment string) error {
	e.start()
	return utils.WriteSSEChunk(e.w, e.flusher, map[string]any{
		"type":    "text",
		"content": fragment,
	})
}

func (e *sseEmitter) Done() error {
	e.start()
	return utils.WriteSSERaw(e.w, e.flusher, "[DONE]")
}

func (e *sseEmitter) fail(message string) {
	if err := utils.WriteSSEChunk(e.w, e.flusher, map[string]any{
		"type":    "error",
		"message": message,
	}); err != nil {
		log.Printf("[chat] failed to deliver error frame: %v", err)
	}
}

// handleListConversations lists the user's conversations, optionally filtered
// by mode, newest first.
func (h *Handler) handleListConversations(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		utils.RespondError(w, http.StatusBadRequest, "X-User-ID header is required")
		return
	}

	conversations, err := h.conversations.ListByUser(r.Context(), userID, r.URL.Query().Get("mode"))
	if err != nil {
		log.Printf("[chat] failed to list conversations: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to list conversations")
		return
	}
	utils.RespondJSON(w, http.StatusOK, conversations)
}

// handleCreateConversation opens an empty thread ahead of the first message.
func (h *Handler) handleCreateConversation(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		utils.RespondError(w, http.StatusBadRequest, "X-User-ID header is required")
		return
	}

	var payload struct {
		Mode  string `json:"mode"`
		Title string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	conv, err := h.sessions.Resolve(r.Context(), "", userID, payload.Mode, payload.Title)
	if err != nil {
		log.Printf("[chat] failed to create conversation: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to create conversation")
		return
	}
	utils.RespondJSON(w, http.StatusCreated, conv)
}

// handleListMessages returns the full transcript of a conversation.
func (h *Handler) handleListMessages(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")

	if _, err := h.conversations.Get(r.Context(), conversationID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.RespondError(w, http.StatusNotFound, "conversation not found")
			return
		}
		log.Printf("[chat] failed to load conversation: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to load conversation")
		return
	}

	messages, err := h.messages.ListByConversation(r.Context(), conversationID, 0)
	if err != nil {
		log.Printf("[chat] failed to list messages: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to list messages")
		return
	}
	utils.RespondJSON(w, http.StatusOK, messages)
}

// handleDeleteConversation removes a conversation and its transcript.
func (h *Handler) handleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		utils.RespondError(w, http.StatusBadRequest, "X-User-ID header is required")
		return
	}
	conversationID := chi.URLParam(r, "conversationID")

	conv, err := h.conversations.Get(r.Context(), conversationID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.RespondError(w, http.StatusNotFound, "conversation not found")
			return
		}
		log.Printf("[chat] failed to load conversation: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to load conversation")
		return
	}
	if !conv.HasParticipant(userID) {
		utils.RespondError(w, http.StatusForbidden, "conversation belongs to another user")
		return
	}

	if err := h.messages.DeleteByConversation(r.Context(), conversationID); err != nil {
		log.Printf("[chat] failed to delete messages: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to delete conversation")
		return
	}
	if err := h.conversations.Delete(r.Context(), conversationID); err != nil {
		log.Printf("[chat] failed to delete conversation: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to delete conversation")
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
