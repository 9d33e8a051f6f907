package handlers

import (
	"net/http"

	"github.com/vedran77/campuschat/internal/domain"
	"github.com/vedran77/campuschat/internal/service"
	"go.uber.org/zap"
)

type ConversationHandler struct {
	conversationService *service.ConversationService
	log                 *zap.Logger
}

func NewConversationHandler(conversationService *service.ConversationService, log *zap.Logger) *ConversationHandler {
	return &ConversationHandler{conversationService: conversationService, log: log}
}

func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "userId")
	if !ok {
		return
	}
	if !checkCaller(w, r, userID) {
		return
	}

	conversations, err := h.conversationService.GetConversations(r.Context(), userID)
	if err != nil {
		writeServiceError(w, h.log, "list conversations", err)
		return
	}
	if conversations == nil {
		conversations = []domain.Conversation{}
	}

	writeJSON(w, http.StatusOK, conversations)
}
