package models

import (
	"strings"
	"time"
)

// ChatMessage represents a chat message held in the in-memory store.
// ID is server-assigned once persisted; ClientID is the locally generated
// identifier an optimistic message carries until its ack arrives.
type ChatMessage struct {
	ID         string    `json:"id"`
	ClientID   string    `json:"client_id,omitempty"`
	RoomID     string    `json:"room_id"`
	SenderID   string    `json:"sender_id"`
	SenderName string    `json:"sender_name,omitempty"`
	Text       string    `json:"text,omitempty"`
	ImageURLs  []string  `json:"image_urls,omitempty"`
	FileURL    string    `json:"file_url,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	Read       bool      `json:"read"`
	Pending    bool      `json:"pending,omitempty"`
	Failed     bool      `json:"failed,omitempty"`
}

// Signature is the content-shape key used to correlate an optimistic
// message with a server echo when no client id is echoed back.
func (m ChatMessage) Signature() string {
	return m.Text + "\x1f" + strings.Join(m.ImageURLs, ",") + "\x1f" + m.FileURL
}

// UploadResult is one uploaded file as reported by the upload endpoint.
type UploadResult struct {
	ImageURL string `json:"imageUrl"`
	PublicID string `json:"publicId"`
}
