package models

import "time"

// User is an account document in the identity collection. Role is either
// "user" or "agent"; agents are the listing owners buyers message.
// The hash round-trips through the document store, so handlers must
// project users through ChatProfile instead of returning them raw.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"passwordHash,omitempty"`
	Role         string    `json:"role"`
	Avatar       string    `json:"avatar,omitempty"`
	PushToken    string    `json:"pushToken,omitempty"`
	LastActive   time.Time `json:"lastActive"`
	CreatedAt    time.Time `json:"createdAt"`
}

// ChatProfile projects the account into what the messaging UI needs.
func (u *User) ChatProfile() *ChatUser {
	return &ChatUser{
		ID:         u.ID,
		Name:       u.Name,
		Avatar:     u.Avatar,
		LastActive: u.LastActive,
	}
}
