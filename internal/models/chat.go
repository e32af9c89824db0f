package models

import "time"

// Conversation is the denormalized summary document for a two-party chat.
// Its id is the deterministic conversation key, so exactly one document
// exists per unordered pair of participants.
type Conversation struct {
	ID           string         `json:"id"`
	Participants []string       `json:"participantIds"`
	LastMessage  string         `json:"lastMessage"`
	LastUpdated  time.Time      `json:"lastUpdated"`
	UnreadCounts map[string]int `json:"unreadCounts"`
	CreatedAt    time.Time      `json:"createdAt"`
}

// UnreadFor returns the unread count as seen by one participant.
func (c *Conversation) UnreadFor(userID string) int {
	if c.UnreadCounts == nil {
		return 0
	}
	return c.UnreadCounts[userID]
}

// HasParticipant reports whether userID belongs to the conversation.
func (c *Conversation) HasParticipant(userID string) bool {
	for _, id := range c.Participants {
		if id == userID {
			return true
		}
	}
	return false
}

// Message is immutable once written, except for the read flag.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	SenderID       string    `json:"senderId"`
	ReceiverID     string    `json:"receiverId"`
	Text           string    `json:"text"`
	ImageURL       string    `json:"imageUrl,omitempty"`
	Read           bool      `json:"read"`
	CreatedAt      time.Time `json:"createdAt"`
}

// ConversationSummary is a conversation projected for one viewer: the
// shared unread map collapses into the viewer's own count.
type ConversationSummary struct {
	ID           string    `json:"id"`
	Participants []string  `json:"participantIds"`
	LastMessage  string    `json:"lastMessage"`
	LastUpdated  time.Time `json:"lastUpdated"`
	UnreadCount  int       `json:"unreadCount"`
	Partner      *ChatUser `json:"partner,omitempty"`
}

// ChatUser is the lightweight user projection shown inside the messaging
// UI. Messaging treats it as read-only.
type ChatUser struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Avatar     string    `json:"avatar,omitempty"`
	LastActive time.Time `json:"lastActive"`
}

type PaginationMeta struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}
