package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/vedran77/campuschat/internal/domain"
	"github.com/vedran77/campuschat/internal/service"
	"go.uber.org/zap"
)

type MessageHandler struct {
	messageService *service.MessageService
	notifier       service.Notifier
	log            *zap.Logger
}

func NewMessageHandler(messageService *service.MessageService, notifier service.Notifier, log *zap.Logger) *MessageHandler {
	return &MessageHandler{messageService: messageService, notifier: notifier, log: log}
}

type sendMessageResponse struct {
	MessageID uuid.UUID       `json:"messageId"`
	Message   *domain.Message `json:"message"`
}

func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	var input service.SendMessageInput
	if !decodeJSON(w, r, &input) {
		return
	}
	if !requireIDs(w, map[string]uuid.UUID{"senderId": input.SenderID}) || !checkCaller(w, r, input.SenderID) {
		return
	}

	msg, err := h.messageService.Send(r.Context(), input)
	if err != nil {
		writeServiceError(w, h.log, "send message", err)
		return
	}

	h.notifier.NotifyNewMessage(msg)
	writeJSON(w, http.StatusCreated, sendMessageResponse{MessageID: msg.ID, Message: msg})
}

func (h *MessageHandler) Edit(w http.ResponseWriter, r *http.Request) {
	messageID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var input service.EditMessageInput
	if !decodeJSON(w, r, &input) {
		return
	}
	if !requireIDs(w, map[string]uuid.UUID{"requesterId": input.RequesterID}) || !checkCaller(w, r, input.RequesterID) {
		return
	}

	msg, err := h.messageService.Edit(r.Context(), messageID, input)
	if err != nil {
		writeServiceError(w, h.log, "edit message", err)
		return
	}

	h.notifier.NotifyMessageEdited(msg)
	writeJSON(w, http.StatusOK, msg)
}

type requesterInput struct {
	RequesterID uuid.UUID `json:"requesterId"`
}

// Delete hides the message from its sender only.
func (h *MessageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	messageID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var input requesterInput
	if !decodeJSON(w, r, &input) {
		return
	}
	if !requireIDs(w, map[string]uuid.UUID{"requesterId": input.RequesterID}) || !checkCaller(w, r, input.RequesterID) {
		return
	}

	if err := h.messageService.SoftDeleteForSender(r.Context(), messageID, input.RequesterID); err != nil {
		writeServiceError(w, h.log, "delete message", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"messageId": messageID, "deleted": true})
}

func (h *MessageHandler) ListPrivate(w http.ResponseWriter, r *http.Request) {
	userA, ok := pathID(w, r, "userA")
	if !ok {
		return
	}
	userB, ok := pathID(w, r, "userB")
	if !ok {
		return
	}
	if !checkCaller(w, r, userA) {
		return
	}

	limit, offset := pageParams(r)
	resp, err := h.messageService.ListPrivate(r.Context(), userA, userB, limit, offset)
	if err != nil {
		writeServiceError(w, h.log, "list private messages", err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *MessageHandler) ListGroup(w http.ResponseWriter, r *http.Request) {
	groupID, ok := pathID(w, r, "groupId")
	if !ok {
		return
	}
	requesterID, ok := pathID(w, r, "requesterId")
	if !ok {
		return
	}
	if !checkCaller(w, r, requesterID) {
		return
	}

	limit, offset := pageParams(r)
	resp, err := h.messageService.ListGroup(r.Context(), groupID, requesterID, limit, offset)
	if err != nil {
		writeServiceError(w, h.log, "list group messages", err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

type markPrivateReadInput struct {
	UserID   uuid.UUID `json:"userId"`
	SenderID uuid.UUID `json:"senderId"`
}

type markGroupReadInput struct {
	UserID  uuid.UUID `json:"userId"`
	GroupID uuid.UUID `json:"groupId"`
}

type markedResponse struct {
	MarkedCount int64 `json:"markedCount"`
}

func (h *MessageHandler) MarkPrivateRead(w http.ResponseWriter, r *http.Request) {
	var input markPrivateReadInput
	if !decodeJSON(w, r, &input) {
		return
	}
	if !requireIDs(w, map[string]uuid.UUID{"userId": input.UserID, "senderId": input.SenderID}) || !checkCaller(w, r, input.UserID) {
		return
	}

	receipt, err := h.messageService.MarkPrivateRead(r.Context(), input.UserID, input.SenderID)
	if err != nil {
		writeServiceError(w, h.log, "mark private read", err)
		return
	}

	h.notifier.NotifyMessagesRead([]domain.ReadReceipt{*receipt})
	writeJSON(w, http.StatusOK, markedResponse{MarkedCount: receipt.MarkedCount})
}

func (h *MessageHandler) MarkGroupRead(w http.ResponseWriter, r *http.Request) {
	var input markGroupReadInput
	if !decodeJSON(w, r, &input) {
		return
	}
	if !requireIDs(w, map[string]uuid.UUID{"userId": input.UserID, "groupId": input.GroupID}) || !checkCaller(w, r, input.UserID) {
		return
	}

	receipts, err := h.messageService.MarkGroupRead(r.Context(), input.UserID, input.GroupID)
	if err != nil {
		writeServiceError(w, h.log, "mark group read", err)
		return
	}

	h.notifier.NotifyMessagesRead(receipts)
	writeJSON(w, http.StatusOK, markedResponse{MarkedCount: service.TotalMarked(receipts)})
}

func (h *MessageHandler) Unread(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "userId")
	if !ok {
		return
	}
	if !checkCaller(w, r, userID) {
		return
	}

	counts, err := h.messageService.CountUnread(r.Context(), userID)
	if err != nil {
		writeServiceError(w, h.log, "count unread", err)
		return
	}

	writeJSON(w, http.StatusOK, counts)
}
