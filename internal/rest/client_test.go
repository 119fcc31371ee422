package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"agency-chat-client/internal/models"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, func() string { return "test-token" }, zap.NewNop())
}

func TestResolveManagerSendsBearerToken(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/agency/manager-by", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(models.Manager{ID: "m-1", Name: "Quản lý"})
	})

	manager, err := client.ResolveManager(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "m-1", manager.ID)
}

func TestGetMessagesBuildsQuery(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat/rooms/room-1/messages", r.URL.Path)
		assert.Equal(t, "0", r.URL.Query().Get("skip"))
		assert.Equal(t, "50", r.URL.Query().Get("take"))
		json.NewEncoder(w).Encode([]models.ChatMessage{{ID: "1", RoomID: "room-1"}})
	})

	msgs, err := client.GetMessages(context.Background(), "room-1", 0, 50)

	require.NoError(t, err)
	require.Len(t, msgs, 1)
}

func TestCreateRoomPostsMemberIDs(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		var req map[string][]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"u1", "u2"}, req["member_ids"])
		json.NewEncoder(w).Encode(models.ChatRoom{ID: "room-9"})
	})

	room, err := client.CreateRoom(context.Background(), []string{"u1", "u2"})

	require.NoError(t, err)
	assert.Equal(t, "room-9", room.ID)
}

func TestNon2xxYieldsAPIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	_, err := client.ListRooms(context.Background())

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
}

func TestUploadFileAcceptsArrayResponse(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		_, fh, err := r.FormFile("file")
		require.NoError(t, err)
		assert.Equal(t, "photo.jpg", fh.Filename)
		json.NewEncoder(w).Encode([]models.UploadResult{{ImageURL: "https://cdn/1", PublicID: "p1"}})
	})

	result, err := client.UploadFile(context.Background(), "photo.jpg", "image/jpeg", strings.NewReader("data"))

	require.NoError(t, err)
	assert.Equal(t, "https://cdn/1", result.ImageURL)
	assert.Equal(t, "p1", result.PublicID)
}

func TestUploadFileAcceptsSingleObjectWithURLField(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"url":"https://cdn/2","publicId":"p2"}`))
	})

	result, err := client.UploadFile(context.Background(), "a.png", "image/png", strings.NewReader("x"))

	require.NoError(t, err)
	assert.Equal(t, "https://cdn/2", result.ImageURL)
}

func TestUploadFileAcceptsSingleObjectWithImageURLField(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"imageUrl":"https://cdn/3","publicId":"p3"}`))
	})

	result, err := client.UploadFile(context.Background(), "a.png", "image/png", strings.NewReader("x"))

	require.NoError(t, err)
	assert.Equal(t, "https://cdn/3", result.ImageURL)
}

func TestUploadFileRejectsShapelessResponse(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"publicId":"p4"}`))
	})

	_, err := client.UploadFile(context.Background(), "a.png", "image/png", strings.NewReader("x"))

	assert.Error(t, err)
}
