package ws

import (
	"chat-relay/domain"
	"chat-relay/logs"
	"chat-relay/repositories"
	"chat-relay/runtime"
	"chat-relay/services"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

type relayStack struct {
	url      string
	users    *repositories.UserRepository
	messages repositories.MessageRepository
}

func startRelay(t *testing.T) relayStack {
	t.Helper()
	req := require.New(t)
	log := logs.GetLoggerFromString("error")

	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	t.Cleanup(func() { _ = db.Close() })

	users, err := repositories.NewUserRepository(db)
	req.NoError(err)
	t.Cleanup(func() { _ = users.Close() })
	messages := repositories.NewMessageRepository(db, log, nil)

	registry := runtime.NewRegistry()
	presence := runtime.NewPresence(log, registry)
	router := runtime.NewRouter(log, registry, messages)
	relay := services.NewRelayService(log, registry, presence, router, users, false)

	handler := NewChatHandler(log, relay, Config{
		SendBufferSize: 16,
		MaxMessageSize: 4096,
		WriteTimeout:   time.Second,
		PongTimeout:    5 * time.Second,
		PingInterval:   4 * time.Second,
	})

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return relayStack{
		url:      "ws" + strings.TrimPrefix(server.URL, "http"),
		users:    users,
		messages: messages,
	}
}

func dial(t *testing.T, url string, userID string) *websocket.Conn {
	t.Helper()
	header := http.Header{}
	if userID != "" {
		header.Set("userId", userID)
	}
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)
	return string(payload)
}

func TestChat_Connect_Roster_And_Presence(t *testing.T) {
	req := require.New(t)
	stack := startRelay(t)

	_, err := stack.users.CreateUser("alice")
	req.NoError(err)
	_, err = stack.users.CreateUser("bob")
	req.NoError(err)

	// Given bob connects first and sees alice offline
	bob := dial(t, stack.url, "2")
	req.JSONEq(`[{"user":{"id":1,"name":"alice"},"online":false}]`, readFrame(t, bob))

	// When alice connects
	alice := dial(t, stack.url, "1")

	// Then alice's roster shows bob online
	req.JSONEq(`[{"user":{"id":2,"name":"bob"},"online":true}]`, readFrame(t, alice))

	// And bob is told alice came online
	req.JSONEq(`{"identity":1,"online":true}`, readFrame(t, bob))
}

func TestChat_Message_Delivered_And_Recorded(t *testing.T) {
	req := require.New(t)
	stack := startRelay(t)

	_, err := stack.users.CreateUser("alice")
	req.NoError(err)
	_, err = stack.users.CreateUser("bob")
	req.NoError(err)

	bob := dial(t, stack.url, "2")
	readFrame(t, bob) // roster
	alice := dial(t, stack.url, "1")
	readFrame(t, alice) // roster
	readFrame(t, bob)   // presence: alice online

	// When alice sends a message to bob
	req.NoError(alice.WriteMessage(websocket.TextMessage, []byte(`{"to":2,"message":"hi"}`)))

	// Then bob receives the payload verbatim
	req.Equal(`{"to":2,"message":"hi"}`, readFrame(t, bob))

	// And the store gains exactly one matching record
	req.Eventually(func() bool {
		records, _, err := stack.messages.ListForUser(domain.UserID(2), nil)
		return err == nil && len(records) == 1 &&
			records[0].Body == "hi" &&
			records[0].Sender == domain.UserID(1) &&
			records[0].Recipient == domain.UserID(2)
	}, 2*time.Second, 20*time.Millisecond)
}

func TestChat_Offline_Recipient_Recorded_Only(t *testing.T) {
	req := require.New(t)
	stack := startRelay(t)

	_, err := stack.users.CreateUser("alice")
	req.NoError(err)

	alice := dial(t, stack.url, "1")
	readFrame(t, alice) // roster

	// When alice messages an id nobody holds
	req.NoError(alice.WriteMessage(websocket.TextMessage, []byte(`{"to":999,"message":"anyone?"}`)))

	// Then the record is persisted for the absent recipient
	req.Eventually(func() bool {
		records, _, err := stack.messages.ListForUser(domain.UserID(999), nil)
		return err == nil && len(records) == 1 && records[0].Recipient == domain.UserID(999)
	}, 2*time.Second, 20*time.Millisecond)
}

func TestChat_Disconnect_Broadcasts_Offline(t *testing.T) {
	req := require.New(t)
	stack := startRelay(t)

	_, err := stack.users.CreateUser("alice")
	req.NoError(err)
	_, err = stack.users.CreateUser("bob")
	req.NoError(err)

	bob := dial(t, stack.url, "2")
	readFrame(t, bob) // roster
	alice := dial(t, stack.url, "1")
	readFrame(t, alice) // roster
	readFrame(t, bob)   // presence: alice online

	// When alice goes away
	req.NoError(alice.Close())

	// Then bob is told she went offline
	req.JSONEq(`{"identity":1,"online":false}`, readFrame(t, bob))
}

func TestChat_Anonymous_Connection_Gets_Greeting(t *testing.T) {
	req := require.New(t)
	stack := startRelay(t)

	conn := dial(t, stack.url, "")

	req.JSONEq(`{"message":"Hello"}`, readFrame(t, conn))
}

func TestChat_Unknown_User_Is_Refused(t *testing.T) {
	req := require.New(t)
	stack := startRelay(t)

	conn := dial(t, stack.url, "777")

	// The client sees the error frame, then the server closes
	req.JSONEq(`{"error":"user not found"}`, readFrame(t, conn))

	req.NoError(conn.SetReadDeadline(time.Now().Add(2 * time.Second)))
	_, _, err := conn.ReadMessage()
	req.Error(err)
}

func TestChat_Duplicate_Login_Evicts_Prior_Connection(t *testing.T) {
	req := require.New(t)
	stack := startRelay(t)

	_, err := stack.users.CreateUser("alice")
	req.NoError(err)

	first := dial(t, stack.url, "1")
	readFrame(t, first) // roster

	// When the same identity connects again
	second := dial(t, stack.url, "1")
	readFrame(t, second) // roster

	// Then the first connection is closed by the server
	req.NoError(first.SetReadDeadline(time.Now().Add(2 * time.Second)))
	_, _, err = first.ReadMessage()
	req.Error(err)
}
