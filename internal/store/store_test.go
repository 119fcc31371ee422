package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"agency-chat-client/internal/models"
)

const (
	selfID  = "8a9f6f9e-8f2a-4d4b-9a3e-111111111111"
	otherID = "2b7c5d4e-1a2b-4c3d-8e9f-222222222222"
)

func newTestStore() *Store {
	return New(selfID, 30*time.Second, zap.NewNop())
}

func TestReplaceHistoryIdempotent(t *testing.T) {
	s := newTestStore()
	history := []models.ChatMessage{
		{ID: "1", RoomID: "r1", SenderID: otherID, Text: "hi"},
		{ID: "2", RoomID: "r1", SenderID: selfID, Text: "hello"},
	}

	s.ReplaceHistory("r1", history)
	first := s.Messages("r1")
	s.ReplaceHistory("r1", history)
	second := s.Messages("r1")

	assert.Equal(t, first, second)
	assert.Len(t, second, 2)
}

func TestSelfEchoWithClientIDConfirmsOptimisticCopy(t *testing.T) {
	s := newTestStore()
	msg := s.AppendLocal(models.ChatMessage{RoomID: "r1", Text: "Hello"})
	require.True(t, msg.Pending)
	require.Equal(t, 1, s.PendingCount())

	visible := s.ApplyPush(models.MessagePayload{
		ID:       "srv-1",
		ClientID: msg.ClientID,
		RoomID:   "r1",
		SenderID: selfID,
		Text:     "Hello",
	})

	assert.False(t, visible)
	msgs := s.Messages("r1")
	require.Len(t, msgs, 1)
	assert.Equal(t, "srv-1", msgs[0].ID)
	assert.False(t, msgs[0].Pending)
	assert.Equal(t, 0, s.PendingCount())
}

func TestSelfEchoWithoutClientIDMatchesBySignature(t *testing.T) {
	s := newTestStore()
	s.AppendLocal(models.ChatMessage{RoomID: "r1", Text: "Hello"})

	visible := s.ApplyPush(models.MessagePayload{
		ID:       "srv-2",
		RoomID:   "r1",
		SenderID: selfID,
		Text:     "Hello",
	})

	assert.False(t, visible)
	msgs := s.Messages("r1")
	require.Len(t, msgs, 1, "exactly one visible instance of Hello")
	assert.Equal(t, "srv-2", msgs[0].ID)
	assert.Equal(t, 0, s.PendingCount())
}

func TestUnmatchedSelfEchoNeverAppends(t *testing.T) {
	s := newTestStore()

	visible := s.ApplyPush(models.MessagePayload{
		ID:       "srv-3",
		RoomID:   "r1",
		SenderID: selfID,
		Text:     "stray echo",
	})

	assert.False(t, visible)
	assert.Empty(t, s.Messages("r1"))
}

func TestPushFromOtherUserAppends(t *testing.T) {
	s := newTestStore()
	s.SetRooms([]models.ChatRoom{{ID: "r1", Members: []models.ChatMember{
		{UserID: selfID}, {UserID: otherID, Name: "Quản lý"},
	}}})

	visible := s.ApplyPush(models.MessagePayload{
		ID:         "srv-4",
		RoomID:     "r1",
		SenderID:   otherID,
		SenderName: "Quản lý",
		Text:       "chào bạn",
		CreatedAt:  time.Now(),
	})

	assert.True(t, visible)
	require.Len(t, s.Messages("r1"), 1)

	rooms := s.Rooms()
	require.Len(t, rooms, 1)
	require.NotNil(t, rooms[0].LastMessage)
	assert.Equal(t, "chào bạn", rooms[0].LastMessage.Text)
	assert.Equal(t, "Quản lý", rooms[0].LastMessage.SenderName)
}

func TestImageOnlyPreviewUsesPlaceholder(t *testing.T) {
	s := newTestStore()
	s.SetRooms([]models.ChatRoom{{ID: "r1"}})

	s.ApplyPush(models.MessagePayload{
		ID:       "srv-5",
		RoomID:   "r1",
		SenderID: otherID,
		Images:   []string{"https://cdn/img.png"},
	})

	rooms := s.Rooms()
	require.NotNil(t, rooms[0].LastMessage)
	assert.Equal(t, previewImage, rooms[0].LastMessage.Text)
}

func TestSweepEvictsStalePendingEntries(t *testing.T) {
	s := newTestStore()
	msg := s.AppendLocal(models.ChatMessage{RoomID: "r1", Text: "lost"})
	require.Equal(t, 1, s.PendingCount())

	evicted := s.Sweep(time.Now().Add(time.Minute))

	assert.Equal(t, 1, evicted)
	assert.Equal(t, 0, s.PendingCount())
	msgs := s.Messages("r1")
	require.Len(t, msgs, 1)
	assert.True(t, msgs[0].Failed)
	assert.False(t, msgs[0].Pending)

	// The evicted entry must not be confirmable afterwards.
	assert.False(t, s.Confirm(models.Ack{RoomID: "r1", ClientID: msg.ClientID, MessageID: "late"}))
}

func TestSweepKeepsFreshEntries(t *testing.T) {
	s := newTestStore()
	s.AppendLocal(models.ChatMessage{RoomID: "r1", Text: "fresh"})

	assert.Equal(t, 0, s.Sweep(time.Now()))
	assert.Equal(t, 1, s.PendingCount())
}

func TestMarkFailedClearsPending(t *testing.T) {
	s := newTestStore()
	msg := s.AppendLocal(models.ChatMessage{RoomID: "r1", Text: "oops"})

	s.MarkFailed("r1", msg.ClientID)

	assert.Equal(t, 0, s.PendingCount())
	msgs := s.Messages("r1")
	require.Len(t, msgs, 1)
	assert.True(t, msgs[0].Failed)
}

func TestRoomsOrderedByActivity(t *testing.T) {
	s := newTestStore()
	now := time.Now()
	s.SetRooms([]models.ChatRoom{
		{ID: "old", CreatedAt: now.Add(-2 * time.Hour)},
		{ID: "busy", CreatedAt: now.Add(-3 * time.Hour), LastMessage: &models.LastMessage{Timestamp: now}},
	})

	rooms := s.Rooms()
	require.Len(t, rooms, 2)
	assert.Equal(t, "busy", rooms[0].ID)
}
