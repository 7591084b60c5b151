package ws

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"

	"meowchat/auth"
	"meowchat/domain"
	"meowchat/repositories"
	"meowchat/runtime"
	"meowchat/services"
)

var testSecret = []byte("ws-server-test-secret")

func newTestServer(t *testing.T) (*httptest.Server, *runtime.Registry) {
	t.Helper()

	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).
		WithLoggingLevel(badger.ERROR).
		WithValueLogFileSize(16 << 20))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	registry := runtime.NewRegistry()
	messageRepository := repositories.NewMessageRepository(db, log)
	chatService := services.NewChatService(log, registry, messageRepository)
	gate := auth.NewGate(log, testSecret)

	server := NewServer(log, gate, chatService, nil, 16, time.Second)
	ts := httptest.NewServer(http.HandlerFunc(server.Handle))
	t.Cleanup(ts.Close)
	return ts, registry
}

func token(t *testing.T, identity domain.Identity, duration time.Duration) string {
	t.Helper()
	tok, err := auth.GenerateToken(identity, testSecret, duration)
	require.NoError(t, err)
	return tok
}

func dial(t *testing.T, ts *httptest.Server, rawCredential string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	header := http.Header{}
	if rawCredential != "" {
		header.Set("Authorization", rawCredential)
	}
	return websocket.DefaultDialer.Dial(url, header)
}

func mustDial(t *testing.T, ts *httptest.Server, identity domain.Identity) *websocket.Conn {
	t.Helper()
	conn, _, err := dial(t, ts, "Bearer "+token(t, identity, time.Hour))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, eventName string, payload any) {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(Envelope{Event: eventName, Data: data}))
}

func readEnvelope(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var env Envelope
	require.NoError(t, conn.ReadJSON(&env))
	return env
}

func readDelivery(t *testing.T, conn *websocket.Conn, wantEvent string) []domain.Message {
	t.Helper()
	env := readEnvelope(t, conn)
	require.Equal(t, wantEvent, env.Event)
	var payload DeliveryPayload
	require.NoError(t, json.Unmarshal(env.Data, &payload))
	return payload.Message
}

func Test_Scenario_Send_Disconnect_Reload(t *testing.T) {
	req := require.New(t)
	ts, registry := newTestServer(t)

	alice := domain.Identity{ID: 1, Username: "alice"}
	bob := domain.Identity{ID: 2, Username: "bob"}

	aliceConn := mustDial(t, ts, alice)
	bobConn := mustDial(t, ts, bob)

	// alice -> bob while both are online: one delivery each.
	send(t, aliceConn, EventPost, PostPayload{ReceiverUsername: "bob", Text: "hi"})

	aliceGot := readDelivery(t, aliceConn, EventGet)
	req.Len(aliceGot, 1)
	req.Equal("hi", aliceGot[0].Text)
	req.Equal("alice", aliceGot[0].Sender)

	bobGot := readDelivery(t, bobConn, EventGet)
	req.Len(bobGot, 1)
	req.Equal("hi", bobGot[0].Text)

	// bob goes offline; the message is still durable and alice still
	// gets the echo.
	req.NoError(bobConn.Close())
	req.Eventually(func() bool {
		_, online := registry.Find("bob")
		return !online
	}, 2*time.Second, 10*time.Millisecond)

	send(t, aliceConn, EventPost, PostPayload{ReceiverUsername: "bob", Text: "bye"})
	aliceGot = readDelivery(t, aliceConn, EventGet)
	req.Equal("bye", aliceGot[0].Text)

	// bob reconnects and loads the conversation: both messages, in send order.
	bobConn = mustDial(t, ts, bob)
	send(t, bobConn, EventLoad, LoadPayload{ReceiverUsername: "alice"})

	history := readDelivery(t, bobConn, EventLoad)
	req.Equal([]string{"hi", "bye"},
		lo.Map(history, func(m domain.Message, _ int) string { return m.Text }))
}

func Test_Echo_Precedes_Load_On_Same_Connection(t *testing.T) {
	req := require.New(t)
	ts, _ := newTestServer(t)

	alice := domain.Identity{ID: 1, Username: "alice"}
	aliceConn := mustDial(t, ts, alice)

	// A send followed by a load on one connection yields the echo
	// first, then the conversation.
	send(t, aliceConn, EventPost, PostPayload{ReceiverUsername: "bob", Text: "hi"})
	send(t, aliceConn, EventLoad, LoadPayload{ReceiverUsername: "bob"})

	echo := readDelivery(t, aliceConn, EventGet)
	req.Equal("hi", echo[0].Text)

	history := readDelivery(t, aliceConn, EventLoad)
	req.Len(history, 1)
	req.Equal("hi", history[0].Text)
}

func Test_Load_Accepts_Bare_String_Payload(t *testing.T) {
	req := require.New(t)
	ts, _ := newTestServer(t)

	alice := domain.Identity{ID: 1, Username: "alice"}
	aliceConn := mustDial(t, ts, alice)

	// The original frontend emits the counterpart as a bare string.
	send(t, aliceConn, EventLoad, "bob")

	history := readDelivery(t, aliceConn, EventLoad)
	req.Empty(history)
}

func Test_Admission_Rejections(t *testing.T) {
	ts, _ := newTestServer(t)
	alice := domain.Identity{ID: 1, Username: "alice"}

	tests := []struct {
		name       string
		credential string
	}{
		{"missing credential", ""},
		{"missing scheme marker", token(t, alice, time.Hour)},
		{"garbage token", "Bearer not.a.jwt"},
		{"expired token", "Bearer " + token(t, alice, -time.Hour)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			conn, resp, err := dial(t, ts, tt.credential)
			req.ErrorIs(err, websocket.ErrBadHandshake)
			req.Nil(conn)
			req.Equal(http.StatusUnauthorized, resp.StatusCode)
		})
	}
}

func Test_Rejected_Connection_Never_Receives_Deliveries(t *testing.T) {
	req := require.New(t)
	ts, _ := newTestServer(t)

	alice := domain.Identity{ID: 1, Username: "alice"}
	bob := domain.Identity{ID: 2, Username: "bob"}

	// bob's connection attempt fails the gate, so he never reaches the
	// registry and a later send can only persist.
	_, _, err := dial(t, ts, "Bearer "+token(t, bob, -time.Hour))
	req.ErrorIs(err, websocket.ErrBadHandshake)

	aliceConn := mustDial(t, ts, alice)
	send(t, aliceConn, EventPost, PostPayload{ReceiverUsername: "bob", Text: "hi"})

	// Only the sender echo comes back.
	echo := readDelivery(t, aliceConn, EventGet)
	req.Equal("hi", echo[0].Text)
}

func Test_Unknown_Event_Reports_Error_To_Sender_Only(t *testing.T) {
	req := require.New(t)
	ts, _ := newTestServer(t)

	alice := domain.Identity{ID: 1, Username: "alice"}
	aliceConn := mustDial(t, ts, alice)

	send(t, aliceConn, "msg:bogus", struct{}{})

	env := readEnvelope(t, aliceConn)
	req.Equal(EventError, env.Event)
	var payload ErrorPayload
	req.NoError(json.Unmarshal(env.Data, &payload))
	req.Contains(payload.Message, "unknown event")
}
