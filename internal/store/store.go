package store

import (
	"sort"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"agency-chat-client/internal/models"
	"agency-chat-client/internal/observability"
)

// Preview placeholders for attachment-only messages.
const (
	previewImage = "[Hình ảnh]"
	previewFile  = "[Tập tin]"
)

type pendingEntry struct {
	roomID    string
	signature string
	deadline  time.Time
}

// Store holds the in-memory room directory and per-room ordered message
// lists. Optimistic sends are tracked in a pending set keyed by client id;
// an entry is removed when its ack or echo arrives, or evicted once its
// deadline passes so the set stays bounded.
type Store struct {
	mu      sync.RWMutex
	selfID  string
	ttl     time.Duration
	log     *zap.Logger
	rooms   map[string]models.ChatRoom
	msgs    map[string][]models.ChatMessage
	pending map[string]pendingEntry
}

// New builds a Store for the given local user.
func New(selfID string, ttl time.Duration, log *zap.Logger) *Store {
	return &Store{
		selfID:  selfID,
		ttl:     ttl,
		log:     log,
		rooms:   make(map[string]models.ChatRoom),
		msgs:    make(map[string][]models.ChatMessage),
		pending: make(map[string]pendingEntry),
	}
}

// SetRooms replaces the room directory.
func (s *Store) SetRooms(rooms []models.ChatRoom) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms = make(map[string]models.ChatRoom, len(rooms))
	for _, room := range rooms {
		s.rooms[room.ID] = room
	}
}

// UpsertRoom adds or replaces one room.
func (s *Store) UpsertRoom(room models.ChatRoom) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[room.ID] = room
}

// Rooms returns the directory ordered by most recent activity.
func (s *Store) Rooms() []models.ChatRoom {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rooms := make([]models.ChatRoom, 0, len(s.rooms))
	for _, room := range s.rooms {
		rooms = append(rooms, room)
	}
	sort.Slice(rooms, func(i, j int) bool {
		return lastActivity(rooms[i]).After(lastActivity(rooms[j]))
	})
	return rooms
}

func lastActivity(room models.ChatRoom) time.Time {
	if room.LastMessage != nil {
		return room.LastMessage.Timestamp
	}
	return room.CreatedAt
}

// ReplaceHistory replaces a room's message list wholesale with a fetched
// history page. Pending entries for the room are dropped along with the
// optimistic copies they tracked.
func (s *Store) ReplaceHistory(roomID string, msgs []models.ChatMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.msgs[roomID] = append([]models.ChatMessage(nil), msgs...)
	for clientID, entry := range s.pending {
		if entry.roomID == roomID {
			delete(s.pending, clientID)
		}
	}
}

// AppendLocal appends an optimistic message and registers its pending
// entry. A client id is assigned when the message carries none.
func (s *Store) AppendLocal(msg models.ChatMessage) models.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	if msg.ClientID == "" {
		msg.ClientID = strconv.FormatInt(time.Now().UnixNano(), 10)
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	msg.SenderID = s.selfID
	msg.Pending = true

	s.msgs[msg.RoomID] = append(s.msgs[msg.RoomID], msg)
	s.pending[msg.ClientID] = pendingEntry{
		roomID:    msg.RoomID,
		signature: msg.Signature(),
		deadline:  msg.CreatedAt.Add(s.ttl),
	}
	s.updatePreview(msg)
	return msg
}

// Confirm resolves an optimistic message with its server-assigned id.
func (s *Store) Confirm(ack models.Ack) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.confirmLocked(ack.RoomID, ack.ClientID, ack.MessageID)
}

func (s *Store) confirmLocked(roomID, clientID, serverID string) bool {
	list := s.msgs[roomID]
	for i := range list {
		if list[i].ClientID == clientID {
			list[i].ID = serverID
			list[i].Pending = false
			delete(s.pending, clientID)
			return true
		}
	}
	delete(s.pending, clientID)
	return false
}

// ApplyPush folds a hub push event into the store. Messages from other
// users are appended. A self echo never renders a second copy: it confirms
// the optimistic message via its echoed client id, falls back to the
// content-signature match for hubs that do not echo it, and is dropped
// otherwise. Returns true when a new message became visible.
func (s *Store) ApplyPush(p models.MessagePayload) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg := p.Message()
	if p.SenderID == s.selfID {
		if p.ClientID != "" {
			s.confirmLocked(p.RoomID, p.ClientID, p.ID)
			return false
		}
		s.confirmBySignatureLocked(p.RoomID, msg.Signature(), p.ID)
		return false
	}

	s.msgs[p.RoomID] = append(s.msgs[p.RoomID], msg)
	s.updatePreview(msg)
	return true
}

func (s *Store) confirmBySignatureLocked(roomID, signature, serverID string) bool {
	for clientID, entry := range s.pending {
		if entry.roomID == roomID && entry.signature == signature {
			return s.confirmLocked(roomID, clientID, serverID)
		}
	}
	return false
}

// MarkFailed flags an optimistic message whose send never reached the
// wire and clears its pending entry.
func (s *Store) MarkFailed(roomID, clientID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.pending, clientID)
	list := s.msgs[roomID]
	for i := range list {
		if list[i].ClientID == clientID {
			list[i].Pending = false
			list[i].Failed = true
			return
		}
	}
}

// Sweep evicts pending entries whose deadline has passed, marking their
// optimistic messages failed. Returns the number of evictions.
func (s *Store) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for clientID, entry := range s.pending {
		if now.Before(entry.deadline) {
			continue
		}
		delete(s.pending, clientID)
		evicted++
		observability.IncPendingEviction()

		list := s.msgs[entry.roomID]
		for i := range list {
			if list[i].ClientID == clientID {
				list[i].Pending = false
				list[i].Failed = true
				break
			}
		}
		s.log.Warn("optimistic message evicted without echo",
			zap.String("room_id", entry.roomID),
			zap.String("client_id", clientID))
	}
	return evicted
}

// Messages returns a copy of the room's ordered message list.
func (s *Store) Messages(roomID string) []models.ChatMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.ChatMessage(nil), s.msgs[roomID]...)
}

// PendingCount reports the size of the pending set.
func (s *Store) PendingCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pending)
}

func (s *Store) updatePreview(msg models.ChatMessage) {
	room, ok := s.rooms[msg.RoomID]
	if !ok {
		return
	}

	text := msg.Text
	if text == "" {
		switch {
		case len(msg.ImageURLs) > 0:
			text = previewImage
		case msg.FileURL != "":
			text = previewFile
		}
	}

	room.LastMessage = &models.LastMessage{
		Text:       text,
		SenderName: msg.SenderName,
		Timestamp:  msg.CreatedAt,
	}
	s.rooms[msg.RoomID] = room
}
