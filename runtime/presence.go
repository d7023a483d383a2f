package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"encoding/json"
	"log/slog"
)

// Presence broadcasts online/offline transitions to connected peers.
//
// It provides best-effort fan-out with no guarantees regarding delivery,
// ordering, or retries. A failing peer never prevents notifying the rest.
//
// Presence is safe for concurrent use by multiple goroutines.
type Presence struct {
	log      *slog.Logger
	registry contract.IRegistry
}

func NewPresence(log *slog.Logger, registry contract.IRegistry) *Presence {
	return &Presence{log: log, registry: registry}
}

// OnConnect announces the newly connected identity to every other session.
// The new session is excluded: it already received the roster and must not
// be told that it is "newly online" itself.
func (p *Presence) OnConnect(identity domain.UserID) {
	own, _ := p.registry.Lookup(identity)
	p.fanout(domain.PresenceEvent{Identity: identity, Online: true}, own)
}

// OnDisconnect announces that an identity went offline to every remaining
// session. The session itself is expected to be deregistered already.
func (p *Presence) OnDisconnect(identity domain.UserID) {
	p.fanout(domain.PresenceEvent{Identity: identity, Online: false}, nil)
}

func (p *Presence) fanout(event domain.PresenceEvent, except contract.Conn) {
	payload, err := json.Marshal(event)
	if err != nil {
		p.log.Error("failed to encode presence event", "identity", event.Identity, "error", err)
		return
	}
	for _, conn := range p.registry.Conns() {
		if except != nil && conn == except {
			continue
		}
		if err := conn.Send(payload); err != nil {
			p.log.Warn("presence notification lost",
				"identity", event.Identity,
				"online", event.Online,
				"error", err)
		}
	}
}
