package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"agency-chat-client/internal/models"
)

type hubServer struct {
	srv   *httptest.Server
	conns chan *websocket.Conn
	cmds  chan models.ClientCommand
}

func newHubServer(t *testing.T) *hubServer {
	t.Helper()

	hs := &hubServer{
		conns: make(chan *websocket.Conn, 4),
		cmds:  make(chan models.ClientCommand, 16),
	}
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

	hs.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hs.conns <- conn
		for {
			var cmd models.ClientCommand
			if err := conn.ReadJSON(&cmd); err != nil {
				return
			}
			hs.cmds <- cmd
		}
	}))
	t.Cleanup(hs.srv.Close)
	return hs
}

func (hs *hubServer) url() string {
	return "ws" + strings.TrimPrefix(hs.srv.URL, "http")
}

func (hs *hubServer) waitConn(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case conn := <-hs.conns:
		return conn
	case <-time.After(3 * time.Second):
		t.Fatal("no hub connection established")
		return nil
	}
}

func (hs *hubServer) waitCmd(t *testing.T) models.ClientCommand {
	t.Helper()
	select {
	case cmd := <-hs.cmds:
		return cmd
	case <-time.After(3 * time.Second):
		t.Fatal("no command received")
		return models.ClientCommand{}
	}
}

func newTestClient(t *testing.T, url string) *Client {
	t.Helper()
	return NewClient(url, "user-1", func() string { return "test-token" }, zap.NewNop())
}

func TestSendBeforeJoinIsPreconditionViolation(t *testing.T) {
	client := newTestClient(t, "ws://unused")

	err := client.Send("room-1", "c1", "hello", nil, nil)

	assert.ErrorIs(t, err, ErrNotJoined)
}

func TestSendWhileDisconnected(t *testing.T) {
	client := newTestClient(t, "ws://unused")
	require.NoError(t, client.Join("room-1"))

	err := client.Send("room-1", "c1", "hello", nil, nil)

	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestConnectJoinsSubscribedRooms(t *testing.T) {
	hs := newHubServer(t)
	client := newTestClient(t, hs.url())
	require.NoError(t, client.Join("room-1"))

	go client.Run()
	t.Cleanup(client.Close)

	hs.waitConn(t)
	cmd := hs.waitCmd(t)
	assert.Equal(t, models.CommandJoin, cmd.Type)
	assert.Equal(t, "room-1", cmd.RoomID)

	require.Eventually(t, client.Connected, 3*time.Second, 10*time.Millisecond)

	require.NoError(t, client.Send("room-1", "c1", "hello", nil, nil))
	sent := hs.waitCmd(t)
	assert.Equal(t, models.CommandSend, sent.Type)
	assert.Equal(t, "c1", sent.ClientID)
	assert.Equal(t, "user-1", sent.SenderID)
	assert.Equal(t, "hello", sent.Text)
}

func TestPushEventsDispatchToCallbacks(t *testing.T) {
	hs := newHubServer(t)
	client := newTestClient(t, hs.url())

	messages := make(chan models.MessagePayload, 1)
	acks := make(chan models.Ack, 1)
	client.OnMessage(func(p models.MessagePayload) { messages <- p })
	client.OnAck(func(a models.Ack) { acks <- a })

	go client.Run()
	t.Cleanup(client.Close)
	conn := hs.waitConn(t)

	require.NoError(t, conn.WriteJSON(models.ChatEvent{
		Type:    models.EventMessage,
		Message: &models.MessagePayload{ID: "m1", RoomID: "room-1", SenderID: "user-2", Text: "hi"},
	}))
	select {
	case p := <-messages:
		assert.Equal(t, "m1", p.ID)
	case <-time.After(3 * time.Second):
		t.Fatal("message callback not invoked")
	}

	require.NoError(t, conn.WriteJSON(models.ChatEvent{
		Type: models.EventAck,
		Ack:  &models.Ack{RoomID: "room-1", ClientID: "c1", MessageID: "m2"},
	}))
	select {
	case a := <-acks:
		assert.Equal(t, "c1", a.ClientID)
		assert.Equal(t, "m2", a.MessageID)
	case <-time.After(3 * time.Second):
		t.Fatal("ack callback not invoked")
	}
}

func TestReconnectRejoinsRooms(t *testing.T) {
	hs := newHubServer(t)
	client := newTestClient(t, hs.url())
	require.NoError(t, client.Join("room-1"))

	statuses := make(chan bool, 8)
	client.OnStatusChange(func(up bool) { statuses <- up })

	go client.Run()
	t.Cleanup(client.Close)

	first := hs.waitConn(t)
	cmd := hs.waitCmd(t)
	require.Equal(t, models.CommandJoin, cmd.Type)

	// Drop the connection; the client must reconnect and re-invoke join,
	// since room membership does not survive a reconnect.
	first.Close()

	hs.waitConn(t)
	rejoin := hs.waitCmd(t)
	assert.Equal(t, models.CommandJoin, rejoin.Type)
	assert.Equal(t, "room-1", rejoin.RoomID)

	var seen []bool
	deadline := time.After(3 * time.Second)
	for len(seen) < 3 {
		select {
		case up := <-statuses:
			seen = append(seen, up)
		case <-deadline:
			t.Fatalf("status sequence incomplete: %v", seen)
		}
	}
	assert.Equal(t, []bool{true, false, true}, seen)
}

func TestLeaveRemovesSubscription(t *testing.T) {
	hs := newHubServer(t)
	client := newTestClient(t, hs.url())
	require.NoError(t, client.Join("room-1"))

	go client.Run()
	t.Cleanup(client.Close)
	hs.waitConn(t)
	hs.waitCmd(t)

	require.Eventually(t, client.Connected, 3*time.Second, 10*time.Millisecond)
	require.NoError(t, client.Leave("room-1"))

	cmd := hs.waitCmd(t)
	assert.Equal(t, models.CommandLeave, cmd.Type)
	assert.False(t, client.Joined("room-1"))

	err := client.Send("room-1", "c1", "hello", nil, nil)
	assert.ErrorIs(t, err, ErrNotJoined)
}
