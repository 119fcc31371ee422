package models

import "time"

// ChatMember identifies one participant of a room.
type ChatMember struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
}

// LastMessage is the denormalized preview a room carries for listing.
type LastMessage struct {
	Text       string    `json:"text"`
	SenderName string    `json:"sender_name"`
	Timestamp  time.Time `json:"timestamp"`
}

// ChatRoom represents a conversation container between two or more parties.
type ChatRoom struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Members     []ChatMember `json:"members"`
	CreatedAt   time.Time    `json:"created_at"`
	LastMessage *LastMessage `json:"last_message,omitempty"`
}

// HasMember reports whether userID belongs to the room.
func (r ChatRoom) HasMember(userID string) bool {
	for _, m := range r.Members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}

// Manager is the counterpart user assigned to the current agency account.
type Manager struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
