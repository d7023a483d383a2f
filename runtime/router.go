package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/repositories"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Router implements the deliver-then-always-record path. Delivery is
// at-most-once: a message to an offline recipient is persisted but never
// delivered later (there is no mailbox), and a failed send to an online
// recipient is not retried.
type Router struct {
	log      *slog.Logger
	registry contract.IRegistry
	messages repositories.IMessageRepository
}

func NewRouter(log *slog.Logger, registry contract.IRegistry, messages repositories.IMessageRepository) *Router {
	return &Router{log: log, registry: registry, messages: messages}
}

// Route handles one inbound frame from sender's connection.
//
// A malformed frame is rejected with no delivery and no persistence; the
// returned error is for the sender only and the connection stays open.
// A frame from an unregistered connection fails closed the same way.
// Once decoded and attributed, the record is appended unconditionally,
// whether or not delivery happened or succeeded.
func (r *Router) Route(sender contract.Conn, payload []byte) error {
	var frame domain.ChatFrame
	if err := json.Unmarshal(payload, &frame); err != nil {
		return fmt.Errorf("malformed chat frame: %w", err)
	}

	identity, ok := r.registry.IdentityOf(sender)
	if !ok {
		return errors.ErrNotRegistered
	}

	if conn, online := r.registry.Lookup(frame.To); online {
		// Forward the original payload verbatim.
		if err := conn.Send(payload); err != nil {
			r.log.Warn("delivery failed",
				"sender", identity,
				"recipient", frame.To,
				"error", err)
		}
	} else {
		r.log.Debug("recipient offline, message recorded only",
			"sender", identity,
			"recipient", frame.To)
	}

	record := domain.MessageRecord{
		ID:        uuid.New(),
		Body:      frame.Message,
		Sender:    identity,
		Recipient: frame.To,
		At:        time.Now().UTC(),
	}
	if err := r.messages.Append(record); err != nil {
		// The send path already completed; losing the record is reported,
		// not propagated to the connection.
		r.log.Error("failed to persist message",
			"sender", identity,
			"recipient", frame.To,
			"error", err)
	}
	return nil
}
