package domain

import (
	"time"

	"github.com/google/uuid"
)

type GroupStatus string

const (
	GroupActive  GroupStatus = "ACTIVE"
	GroupDeleted GroupStatus = "DELETED"
)

type Role string

const (
	RoleAdmin  Role = "ADMIN"
	RoleMember Role = "MEMBER"
)

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleMember
}

type MemberStatus string

const (
	MemberActive MemberStatus = "ACTIVE"
	MemberLeft   MemberStatus = "LEFT"
)

type Group struct {
	ID          uuid.UUID   `json:"id"`
	Name        string      `json:"name"`
	Description *string     `json:"description,omitempty"`
	Avatar      *string     `json:"avatar,omitempty"`
	MemberCount int         `json:"memberCount"`
	Status      GroupStatus `json:"status"`
	CreatedBy   uuid.UUID   `json:"createdBy"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

func (g *Group) IsActive() bool {
	return g.Status == GroupActive
}

type GroupMember struct {
	GroupID  uuid.UUID    `json:"groupId"`
	UserID   uuid.UUID    `json:"userId"`
	Role     Role         `json:"role"`
	Status   MemberStatus `json:"status"`
	JoinedAt time.Time    `json:"joinedAt"`
	LeftAt   *time.Time   `json:"leftAt,omitempty"`
	// Joined fields
	Username    string  `json:"username,omitempty"`
	DisplayName string  `json:"displayName,omitempty"`
	AvatarURL   *string `json:"avatarUrl,omitempty"`
}

func (m *GroupMember) IsActive() bool {
	return m != nil && m.Status == MemberActive
}

func (m *GroupMember) IsAdmin() bool {
	return m.IsActive() && m.Role == RoleAdmin
}

type GroupStats struct {
	GroupID       uuid.UUID `json:"groupId"`
	TotalMessages int64     `json:"totalMessages"`
	Last7Days     int64     `json:"last7Days"`
	Last24Hours   int64     `json:"last24Hours"`
	MemberCount   int       `json:"memberCount"`
}
