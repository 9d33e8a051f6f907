package domain

import (
	"time"

	"github.com/google/uuid"
)

// User mirrors the account owned by the identity service. Read only here.
type User struct {
	ID          uuid.UUID `json:"id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"displayName"`
	AvatarURL   *string   `json:"avatarUrl,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}
