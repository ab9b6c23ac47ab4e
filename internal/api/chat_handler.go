package api

import (
	"errors"
	"log/slog"
	"net/http"

	app_errors "gemchat/internal/errors"
	"gemchat/internal/interfaces"
)

type ChatHandler struct {
	chat interfaces.ChatService
}

func NewChatHandler(chat interfaces.ChatService) *ChatHandler {
	return &ChatHandler{chat: chat}
}

// GetChats godoc
// @Summary      Get the chat state
// @Tags         Chats
// @Produce      json
// @Success      200  {object}  model.ChatUiState
// @Router       /v1/chats [get]
func (h *ChatHandler) GetChats(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, h.chat.State())
}

// ChatEvents godoc
// @Summary      Stream chat states
// @Description  Sends the current chat state, then every change, as server-sent events.
// @Tags         Chats
// @Produce      text/event-stream
// @Success      200  {object}  model.ChatUiState
// @Failure      500  {object}  ErrorResponse
// @Router       /v1/chats/events [get]
func (h *ChatHandler) ChatEvents(w http.ResponseWriter, r *http.Request) {
	if _, ok := w.(http.Flusher); !ok {
		sendStreamError(w, "Streaming is not supported.")
		return
	}
	setStreamHeaders(w)

	for state := range h.chat.Watch(r.Context()) {
		if err := writeStreamEvent(w, state); err != nil {
			slog.Info("Chat stream closed by client", "error", err)
			return
		}
	}
}

// StartConversation godoc
// @Summary      Start a conversation
// @Description  Nothing is stored until the first message.
// @Tags         Chats
// @Produce      json
// @Success      201  {object}  model.ChatUiState
// @Router       /v1/chats [post]
func (h *ChatHandler) StartConversation(w http.ResponseWriter, r *http.Request) {
	id := h.chat.StartNewConversation()
	slog.Debug("Started conversation", "conversation_id", id)
	respondWithJSON(w, http.StatusCreated, h.chat.State())
}

// SwitchConversation godoc
// @Summary      Open an existing conversation
// @Tags         Chats
// @Accept       json
// @Produce      json
// @Param        request  body  SwitchConversationRequest  true  "Conversation to open"
// @Success      200      {object}  model.ChatUiState
// @Failure      400      {object}  ErrorResponse
// @Router       /v1/chats/active [put]
func (h *ChatHandler) SwitchConversation(w http.ResponseWriter, r *http.Request) {
	var req SwitchConversationRequest
	if err := decodeRequest(r, &req); err != nil {
		respondWithError(w, err)
		return
	}
	if err := h.chat.SwitchToConversation(req.ConversationID); err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, h.chat.State())
}

// SendMessage godoc
// @Summary      Send a message
// @Description  Stores the message and the assistant reply. A failed send answers 502 with the state, whose error field carries the reason.
// @Tags         Chats
// @Accept       json
// @Produce      json
// @Param        request  body  SendMessageRequest  true  "Message text"
// @Success      200      {object}  model.ChatUiState
// @Failure      400      {object}  ErrorResponse
// @Failure      401      {object}  ErrorResponse
// @Failure      502      {object}  model.ChatUiState
// @Router       /v1/chats/messages [post]
func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req SendMessageRequest
	if err := decodeRequest(r, &req); err != nil {
		respondWithError(w, err)
		return
	}

	err := h.chat.SendMessage(commandContext(r), req.Content)
	switch {
	case err == nil:
		respondWithJSON(w, http.StatusOK, h.chat.State())
	case errors.Is(err, app_errors.ErrUnauthenticated):
		respondWithError(w, err)
	default:
		respondWithJSON(w, http.StatusBadGateway, h.chat.State())
	}
}
