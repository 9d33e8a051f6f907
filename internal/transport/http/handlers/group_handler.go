package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/vedran77/campuschat/internal/domain"
	"github.com/vedran77/campuschat/internal/service"
	"go.uber.org/zap"
)

type GroupHandler struct {
	groupService *service.GroupService
	notifier     service.Notifier
	log          *zap.Logger
}

func NewGroupHandler(groupService *service.GroupService, notifier service.Notifier, log *zap.Logger) *GroupHandler {
	return &GroupHandler{groupService: groupService, notifier: notifier, log: log}
}

type createGroupResponse struct {
	GroupID uuid.UUID     `json:"groupId"`
	Group   *domain.Group `json:"group"`
}

func (h *GroupHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input service.CreateGroupInput
	if !decodeJSON(w, r, &input) {
		return
	}
	if !requireIDs(w, map[string]uuid.UUID{"creatorId": input.CreatorID}) || !checkCaller(w, r, input.CreatorID) {
		return
	}

	group, err := h.groupService.CreateGroup(r.Context(), input)
	if err != nil {
		writeServiceError(w, h.log, "create group", err)
		return
	}

	writeJSON(w, http.StatusCreated, createGroupResponse{GroupID: group.ID, Group: group})
}

func (h *GroupHandler) Get(w http.ResponseWriter, r *http.Request) {
	groupID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	group, err := h.groupService.GetGroup(r.Context(), groupID)
	if err != nil {
		writeServiceError(w, h.log, "get group", err)
		return
	}

	writeJSON(w, http.StatusOK, group)
}

type updateGroupInput struct {
	RequesterID uuid.UUID `json:"requesterId"`
	service.GroupUpdate
}

func (h *GroupHandler) Update(w http.ResponseWriter, r *http.Request) {
	groupID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var input updateGroupInput
	if !decodeJSON(w, r, &input) {
		return
	}
	if !requireIDs(w, map[string]uuid.UUID{"requesterId": input.RequesterID}) || !checkCaller(w, r, input.RequesterID) {
		return
	}

	group, err := h.groupService.UpdateGroup(r.Context(), groupID, input.RequesterID, input.GroupUpdate)
	if err != nil {
		writeServiceError(w, h.log, "update group", err)
		return
	}

	writeJSON(w, http.StatusOK, group)
}

func (h *GroupHandler) Delete(w http.ResponseWriter, r *http.Request) {
	groupID, ok := pathID(w, r, "id")
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

	if err := h.groupService.DeleteGroup(r.Context(), groupID, input.RequesterID); err != nil {
		writeServiceError(w, h.log, "delete group", err)
		return
	}
	h.notifier.NotifyGroupDeleted(groupID)

	writeJSON(w, http.StatusOK, map[string]any{"groupId": groupID, "deleted": true})
}

func (h *GroupHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	groupID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	members, err := h.groupService.ListMembers(r.Context(), groupID)
	if err != nil {
		writeServiceError(w, h.log, "list members", err)
		return
	}
	if members == nil {
		members = []domain.GroupMember{}
	}

	writeJSON(w, http.StatusOK, members)
}

type addMemberInput struct {
	AddedBy uuid.UUID `json:"addedBy"`
}

func (h *GroupHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	groupID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	userID, ok := pathID(w, r, "userId")
	if !ok {
		return
	}

	var input addMemberInput
	if !decodeJSON(w, r, &input) {
		return
	}
	if !requireIDs(w, map[string]uuid.UUID{"addedBy": input.AddedBy}) || !checkCaller(w, r, input.AddedBy) {
		return
	}

	member, err := h.groupService.AddMember(r.Context(), groupID, userID, input.AddedBy)
	if err != nil {
		writeServiceError(w, h.log, "add member", err)
		return
	}

	writeJSON(w, http.StatusCreated, member)
}

type removeMemberInput struct {
	RemovedBy uuid.UUID `json:"removedBy"`
}

// RemoveMember handles both kicks and leaving (removedBy == userId).
func (h *GroupHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	groupID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	userID, ok := pathID(w, r, "userId")
	if !ok {
		return
	}

	var input removeMemberInput
	if !decodeJSON(w, r, &input) {
		return
	}
	if !requireIDs(w, map[string]uuid.UUID{"removedBy": input.RemovedBy}) || !checkCaller(w, r, input.RemovedBy) {
		return
	}

	if err := h.groupService.RemoveMember(r.Context(), groupID, userID, input.RemovedBy); err != nil {
		writeServiceError(w, h.log, "remove member", err)
		return
	}
	h.notifier.NotifyMemberRemoved(groupID, userID)

	writeJSON(w, http.StatusOK, map[string]any{"groupId": groupID, "userId": userID, "removed": true})
}

type updateRoleInput struct {
	NewRole   domain.Role `json:"newRole"`
	UpdatedBy uuid.UUID   `json:"updatedBy"`
}

func (h *GroupHandler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	groupID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	userID, ok := pathID(w, r, "userId")
	if !ok {
		return
	}

	var input updateRoleInput
	if !decodeJSON(w, r, &input) {
		return
	}
	if !requireIDs(w, map[string]uuid.UUID{"updatedBy": input.UpdatedBy}) || !checkCaller(w, r, input.UpdatedBy) {
		return
	}

	member, err := h.groupService.UpdateRole(r.Context(), groupID, userID, input.NewRole, input.UpdatedBy)
	if err != nil {
		writeServiceError(w, h.log, "update role", err)
		return
	}

	writeJSON(w, http.StatusOK, member)
}

type transferAdminInput struct {
	GroupID        uuid.UUID `json:"groupId"`
	CurrentAdminID uuid.UUID `json:"currentAdminId"`
	NewAdminID     uuid.UUID `json:"newAdminId"`
}

func (h *GroupHandler) TransferAdmin(w http.ResponseWriter, r *http.Request) {
	var input transferAdminInput
	if !decodeJSON(w, r, &input) {
		return
	}
	if !requireIDs(w, map[string]uuid.UUID{
		"groupId":        input.GroupID,
		"currentAdminId": input.CurrentAdminID,
		"newAdminId":     input.NewAdminID,
	}) || !checkCaller(w, r, input.CurrentAdminID) {
		return
	}

	if err := h.groupService.TransferAdmin(r.Context(), input.GroupID, input.CurrentAdminID, input.NewAdminID); err != nil {
		writeServiceError(w, h.log, "transfer admin", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"groupId": input.GroupID, "newAdminId": input.NewAdminID})
}

func (h *GroupHandler) Stats(w http.ResponseWriter, r *http.Request) {
	groupID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	userID, err := uuid.Parse(r.URL.Query().Get("userId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid userId")
		return
	}
	if !checkCaller(w, r, userID) {
		return
	}

	stats, err := h.groupService.GetStats(r.Context(), groupID, userID)
	if err != nil {
		writeServiceError(w, h.log, "group stats", err)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

func (h *GroupHandler) ListUserGroups(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "userId")
	if !ok {
		return
	}
	if !checkCaller(w, r, userID) {
		return
	}

	groups, err := h.groupService.ListUserGroups(r.Context(), userID)
	if err != nil {
		writeServiceError(w, h.log, "list user groups", err)
		return
	}
	if groups == nil {
		groups = []domain.Group{}
	}

	writeJSON(w, http.StatusOK, groups)
}
