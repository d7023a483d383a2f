package services

import (
	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/mocks"
	"chat-relay/runtime"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type fakeConn struct {
	mu     sync.Mutex
	sent   [][]byte
	closed bool
}

func (f *fakeConn) Send(payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, payload)
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeConn) payloads() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.sent))
	for _, p := range f.sent {
		out = append(out, string(p))
	}
	return out
}

func (f *fakeConn) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

type relayFixture struct {
	registry *runtime.Registry
	users    *mocks.MockIUserRepository
	messages *mocks.MockIMessageRepository
	relay    *RelayService
}

func newRelayFixture(t *testing.T, allowUnknownUsers bool) relayFixture {
	ctrl := gomock.NewController(t)
	log := slog.Default()
	registry := runtime.NewRegistry()
	users := mocks.NewMockIUserRepository(ctrl)
	messages := mocks.NewMockIMessageRepository(ctrl)
	presence := runtime.NewPresence(log, registry)
	router := runtime.NewRouter(log, registry, messages)
	relay := NewRelayService(log, registry, presence, router, users, allowUnknownUsers)
	return relayFixture{registry: registry, users: users, messages: messages, relay: relay}
}

func TestRelayService_Connect_Sends_Roster_And_Announces(t *testing.T) {
	req := require.New(t)
	f := newRelayFixture(t, false)
	alice := domain.UserID(1)
	bob := domain.UserID(2)

	// Given bob is already connected
	bobConn := &fakeConn{}
	f.registry.Register(bob, bobConn)

	f.users.EXPECT().FindUser(alice).Return(domain.User{ID: alice, Name: "alice"}, nil)
	f.users.EXPECT().ListUsers(alice).Return([]domain.User{{ID: bob, Name: "bob"}}, nil)

	// When alice connects
	aliceConn := &fakeConn{}
	err := f.relay.Connect(aliceConn, &alice)
	req.NoError(err)

	// Then alice receives the roster exactly once, with bob online
	payloads := aliceConn.payloads()
	req.Len(payloads, 1)
	req.JSONEq(`[{"user":{"id":2,"name":"bob"},"online":true}]`, payloads[0])

	// And bob is told alice came online
	req.Equal([]string{`{"identity":1,"online":true}`}, bobConn.payloads())

	// And the session is registered
	found, ok := f.registry.Lookup(alice)
	req.True(ok)
	req.Same(aliceConn, found.(*fakeConn))
}

func TestRelayService_Connect_Roster_Shows_Offline_Users(t *testing.T) {
	req := require.New(t)
	f := newRelayFixture(t, false)
	alice := domain.UserID(1)

	f.users.EXPECT().FindUser(alice).Return(domain.User{ID: alice, Name: "alice"}, nil)
	f.users.EXPECT().ListUsers(alice).Return([]domain.User{{ID: 2, Name: "bob"}}, nil)

	// When alice connects while bob is offline
	aliceConn := &fakeConn{}
	err := f.relay.Connect(aliceConn, &alice)
	req.NoError(err)

	payloads := aliceConn.payloads()
	req.Len(payloads, 1)
	req.JSONEq(`[{"user":{"id":2,"name":"bob"},"online":false}]`, payloads[0])
}

func TestRelayService_Connect_Unknown_User_Rejected(t *testing.T) {
	req := require.New(t)
	f := newRelayFixture(t, false)
	ghost := domain.UserID(42)

	f.users.EXPECT().FindUser(ghost).Return(domain.User{}, errors.ErrUserNotFound)

	conn := &fakeConn{}
	err := f.relay.Connect(conn, &ghost)

	// Then the connect is refused with an error frame for the client
	req.ErrorIs(err, errors.ErrUserNotFound)
	req.Equal([]string{`{"error":"user not found"}`}, conn.payloads())
	_, ok := f.registry.Lookup(ghost)
	req.False(ok)
}

func TestRelayService_Connect_Unknown_User_Allowed_By_Policy(t *testing.T) {
	req := require.New(t)
	f := newRelayFixture(t, true)
	ghost := domain.UserID(42)

	f.users.EXPECT().FindUser(ghost).Return(domain.User{}, errors.ErrUserNotFound)
	f.users.EXPECT().ListUsers(ghost).Return(nil, nil)

	conn := &fakeConn{}
	err := f.relay.Connect(conn, &ghost)

	// Then the session is registered despite the missing directory entry
	req.NoError(err)
	_, ok := f.registry.Lookup(ghost)
	req.True(ok)
}

func TestRelayService_Connect_Anonymous_Gets_Greeting(t *testing.T) {
	req := require.New(t)
	f := newRelayFixture(t, false)

	// When a connection has no identity attribute
	conn := &fakeConn{}
	err := f.relay.Connect(conn, nil)

	// Then it stays usable in degraded mode: greeting, no registration
	req.NoError(err)
	req.Equal([]string{`{"message":"Hello"}`}, conn.payloads())
	req.Empty(f.registry.Conns())
}

func TestRelayService_Connect_Duplicate_Identity_Evicts_Prior(t *testing.T) {
	req := require.New(t)
	f := newRelayFixture(t, false)
	alice := domain.UserID(1)

	f.users.EXPECT().FindUser(alice).Return(domain.User{ID: alice, Name: "alice"}, nil).Times(2)
	f.users.EXPECT().ListUsers(alice).Return(nil, nil).Times(2)

	first := &fakeConn{}
	second := &fakeConn{}

	req.NoError(f.relay.Connect(first, &alice))

	// When the same identity connects again
	req.NoError(f.relay.Connect(second, &alice))

	// Then the prior connection is closed and the new one is bound
	req.True(first.isClosed())
	found, ok := f.registry.Lookup(alice)
	req.True(ok)
	req.Same(second, found.(*fakeConn))
}

func TestRelayService_Disconnect_Cleans_Up_And_Announces(t *testing.T) {
	req := require.New(t)
	f := newRelayFixture(t, false)
	alice := domain.UserID(1)
	bob := domain.UserID(2)

	aliceConn := &fakeConn{}
	bobConn := &fakeConn{}
	f.registry.Register(alice, aliceConn)
	f.registry.Register(bob, bobConn)

	// When alice disconnects
	f.relay.Disconnect(aliceConn)

	// Then the session is gone and bob is told she went offline
	_, ok := f.registry.Lookup(alice)
	req.False(ok)
	req.Equal([]string{`{"identity":1,"online":false}`}, bobConn.payloads())
}

func TestRelayService_Disconnect_Anonymous_Is_NoOp(t *testing.T) {
	req := require.New(t)
	f := newRelayFixture(t, false)

	// Disconnecting a never-registered connection does nothing
	f.relay.Disconnect(&fakeConn{})
	req.Empty(f.registry.Conns())
}

func TestRelayService_HandleFrame_Echoes_Decode_Error_To_Sender_Only(t *testing.T) {
	req := require.New(t)
	f := newRelayFixture(t, false)
	alice := domain.UserID(1)
	bob := domain.UserID(2)

	aliceConn := &fakeConn{}
	bobConn := &fakeConn{}
	f.registry.Register(alice, aliceConn)
	f.registry.Register(bob, bobConn)

	// When alice sends a malformed frame
	f.relay.HandleFrame(aliceConn, []byte(`{broken`))

	// Then only alice sees an error and the connection stays registered
	payloads := aliceConn.payloads()
	req.Len(payloads, 1)
	req.Contains(payloads[0], "error")
	req.Empty(bobConn.payloads())
	_, ok := f.registry.Lookup(alice)
	req.True(ok)
}
