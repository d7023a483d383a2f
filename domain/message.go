// Package domain contains core concepts of the chat relay.
// This file defines chat frames and their durable form.
// Records are immutable once appended.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// ChatFrame is the inbound wire shape. The sender is never part of the
// payload; it is resolved from the session registry.
type ChatFrame struct {
	To      UserID `json:"to"`
	Message string `json:"message"`
}

// MessageRecord is the durable form of a routed chat frame.
type MessageRecord struct {
	ID        uuid.UUID `json:"id"`
	Body      string    `json:"body"`
	Sender    UserID    `json:"sender"`
	Recipient UserID    `json:"recipient"`
	At        time.Time `json:"at"`
}
