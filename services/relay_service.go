package services

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/repositories"
	"chat-relay/runtime"
	"encoding/json"
	stderrors "errors"
	"log/slog"

	"github.com/samber/lo"
)

type IRelayService interface {
	Connect(conn contract.Conn, identity *domain.UserID) error
	HandleFrame(conn contract.Conn, payload []byte)
	Disconnect(conn contract.Conn)
}

type errorFrame struct {
	Error string `json:"error"`
}

type greetingFrame struct {
	Message string `json:"message"`
}

// RelayService drives each connection through its lifecycle: bind on open,
// route on frame, clean up on close. A connection whose handshake carried no
// identity stays unbound; it receives a greeting and keeps its connection,
// but its frames are rejected and it never appears in the registry.
type RelayService struct {
	log               *slog.Logger
	registry          contract.IRegistry
	presence          *runtime.Presence
	router            *runtime.Router
	users             repositories.IUserRepository
	allowUnknownUsers bool
}

func NewRelayService(log *slog.Logger, registry contract.IRegistry,
	presence *runtime.Presence, router *runtime.Router,
	users repositories.IUserRepository, allowUnknownUsers bool) *RelayService {
	return &RelayService{
		log:               log,
		registry:          registry,
		presence:          presence,
		router:            router,
		users:             users,
		allowUnknownUsers: allowUnknownUsers,
	}
}

// Connect binds a new connection. For an identified connection it validates
// the user against the directory, sends the roster, registers the session
// (evicting a prior connection for the same identity), and announces the
// arrival to all other peers. A non-nil error means the caller must close
// the connection.
func (s *RelayService) Connect(conn contract.Conn, identity *domain.UserID) error {
	if identity == nil {
		s.sendJSON(conn, greetingFrame{Message: "Hello"})
		return nil
	}

	if _, err := s.users.FindUser(*identity); err != nil {
		if !stderrors.Is(err, errors.ErrUserNotFound) {
			s.log.Error("directory lookup failed", "identity", *identity, "error", err)
			return err
		}
		if !s.allowUnknownUsers {
			s.sendJSON(conn, errorFrame{Error: errors.ErrUserNotFound.Error()})
			return errors.ErrUserNotFound
		}
	}

	roster, err := s.buildRoster(*identity)
	if err != nil {
		s.log.Error("failed to build roster", "identity", *identity, "error", err)
		return err
	}
	s.sendJSON(conn, roster)

	if prior := s.registry.Register(*identity, conn); prior != nil {
		s.log.Info("evicting prior session", "identity", *identity)
		_ = prior.Close()
	}
	s.presence.OnConnect(*identity)
	return nil
}

// HandleFrame routes one inbound frame. Routing errors are local: they are
// echoed to the sender only and the connection stays open.
func (s *RelayService) HandleFrame(conn contract.Conn, payload []byte) {
	if err := s.router.Route(conn, payload); err != nil {
		s.log.Debug("frame rejected", "error", err)
		s.sendJSON(conn, errorFrame{Error: err.Error()})
	}
}

// Disconnect cleans up after a closed connection. Transport errors and
// orderly closes are treated identically. The deregistration is conn-matched
// so a stale close never tears down a newer session for the same identity,
// and the offline broadcast only fires when this conn really owned one.
func (s *RelayService) Disconnect(conn contract.Conn) {
	identity, ok := s.registry.IdentityOf(conn)
	if !ok {
		return
	}
	if s.registry.Deregister(identity, conn) {
		s.presence.OnDisconnect(identity)
	}
}

// buildRoster lists every other known user with its current online status.
func (s *RelayService) buildRoster(identity domain.UserID) ([]domain.RosterEntry, error) {
	users, err := s.users.ListUsers(identity)
	if err != nil {
		return nil, err
	}

	online := make(map[domain.UserID]struct{})
	for _, id := range s.registry.SnapshotOthers(identity) {
		online[id] = struct{}{}
	}

	return lo.Map(users, func(user domain.User, _ int) domain.RosterEntry {
		_, isOnline := online[user.ID]
		return domain.RosterEntry{User: user, Online: isOnline}
	}), nil
}

func (s *RelayService) sendJSON(conn contract.Conn, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		s.log.Error("failed to encode frame", "error", err)
		return
	}
	if err := conn.Send(payload); err != nil {
		s.log.Warn("send failed", "error", err)
	}
}
