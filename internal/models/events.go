package models

import "time"

// Event types exchanged over the hub websocket.
const (
	EventMessage = "message"
	EventAck     = "ack"
)

// Command types sent by the client.
const (
	CommandJoin  = "join"
	CommandLeave = "leave"
	CommandSend  = "send"
)

// MessagePayload is the push payload delivered by the hub. Older hub
// versions have shipped the attachment list under images, imageUrls or a
// single fileUrl; all three are decoded and merged by ImageList.
type MessagePayload struct {
	ID         string    `json:"id"`
	ClientID   string    `json:"client_id,omitempty"`
	RoomID     string    `json:"room_id"`
	SenderID   string    `json:"sender_id"`
	SenderName string    `json:"sender_name"`
	Text       string    `json:"text"`
	Images     []string  `json:"images,omitempty"`
	ImageURLs  []string  `json:"imageUrls,omitempty"`
	FileURL    string    `json:"fileUrl,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// ImageList resolves the attachment list from whichever field the hub used.
func (p MessagePayload) ImageList() []string {
	if len(p.Images) > 0 {
		return p.Images
	}
	return p.ImageURLs
}

// Message converts the payload into the store's message shape.
func (p MessagePayload) Message() ChatMessage {
	return ChatMessage{
		ID:         p.ID,
		ClientID:   p.ClientID,
		RoomID:     p.RoomID,
		SenderID:   p.SenderID,
		SenderName: p.SenderName,
		Text:       p.Text,
		ImageURLs:  p.ImageList(),
		FileURL:    p.FileURL,
		CreatedAt:  p.CreatedAt,
	}
}

// Ack confirms a client-submitted message, echoing the client id so the
// optimistic copy can be correlated exactly.
type Ack struct {
	RoomID    string `json:"room_id"`
	ClientID  string `json:"client_id"`
	MessageID string `json:"message_id"`
}

// ChatEvent is the envelope pushed by the hub.
type ChatEvent struct {
	Type    string          `json:"type"`
	Message *MessagePayload `json:"message,omitempty"`
	Ack     *Ack            `json:"ack,omitempty"`
}

// ClientCommand is the envelope the client writes to the hub.
type ClientCommand struct {
	Type      string   `json:"type"`
	RoomID    string   `json:"room_id"`
	ClientID  string   `json:"client_id,omitempty"`
	SenderID  string   `json:"sender_id,omitempty"`
	Text      string   `json:"text,omitempty"`
	FileURLs  []string `json:"file_urls,omitempty"`
	PublicIDs []string `json:"public_ids,omitempty"`
}
