package handlers

import (
	"net/http"

	"github.com/vedran77/campuschat/internal/metrics"
	"github.com/vedran77/campuschat/internal/transport/http/middleware"
	"go.uber.org/zap"
)

// Router bundles everything the HTTP surface needs.
type Router struct {
	Messages      *MessageHandler
	Groups        *GroupHandler
	Conversations *ConversationHandler
	WS            http.Handler

	Auth    func(http.Handler) http.Handler
	Limiter *middleware.IPRateLimiter
	Log     *zap.Logger
}

// Handler builds the mux. Writes go through the rate limiter; every
// /api/v1 route goes through Auth.
func (rt Router) Handler() http.Handler {
	read := func(h http.HandlerFunc) http.Handler {
		return rt.Auth(h)
	}
	write := func(h http.HandlerFunc) http.Handler {
		if rt.Limiter == nil {
			return rt.Auth(h)
		}
		return rt.Limiter.Handler(rt.Auth(h))
	}

	mux := http.NewServeMux()

	// Public
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status": "ok"}`))
	})
	mux.Handle("GET /metrics", metrics.Handler())
	if rt.WS != nil {
		mux.Handle("GET /ws", rt.WS)
	}

	// Messages
	mux.Handle("POST /api/v1/messages", write(rt.Messages.Send))
	mux.Handle("PUT /api/v1/messages/{id}", write(rt.Messages.Edit))
	mux.Handle("DELETE /api/v1/messages/{id}", write(rt.Messages.Delete))
	mux.Handle("GET /api/v1/messages/private/{userA}/{userB}", read(rt.Messages.ListPrivate))
	mux.Handle("GET /api/v1/messages/group/{groupId}/{requesterId}", read(rt.Messages.ListGroup))
	mux.Handle("PUT /api/v1/messages/read/private", write(rt.Messages.MarkPrivateRead))
	mux.Handle("PUT /api/v1/messages/read/group", write(rt.Messages.MarkGroupRead))
	mux.Handle("GET /api/v1/messages/unread/{userId}", read(rt.Messages.Unread))

	// Conversations
	mux.Handle("GET /api/v1/conversations/{userId}", read(rt.Conversations.List))

	// Groups
	mux.Handle("POST /api/v1/groups", write(rt.Groups.Create))
	mux.Handle("POST /api/v1/groups/transfer-admin", write(rt.Groups.TransferAdmin))
	mux.Handle("GET /api/v1/groups/{id}", read(rt.Groups.Get))
	mux.Handle("PUT /api/v1/groups/{id}", write(rt.Groups.Update))
	mux.Handle("DELETE /api/v1/groups/{id}", write(rt.Groups.Delete))
	mux.Handle("GET /api/v1/groups/{id}/stats", read(rt.Groups.Stats))

	// Group members
	mux.Handle("GET /api/v1/groups/{id}/members", read(rt.Groups.ListMembers))
	mux.Handle("POST /api/v1/groups/{id}/members/{userId}", write(rt.Groups.AddMember))
	mux.Handle("DELETE /api/v1/groups/{id}/members/{userId}", write(rt.Groups.RemoveMember))
	mux.Handle("PUT /api/v1/groups/{id}/members/{userId}/role", write(rt.Groups.UpdateRole))
	mux.Handle("GET /api/v1/users/{userId}/groups", read(rt.Groups.ListUserGroups))

	var h http.Handler = mux
	h = middleware.Recover(rt.Log)(h)
	h = middleware.Logging(rt.Log)(h)
	return middleware.CORS(h)
}
