//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"chat-relay/domain"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
)

type IMessageRepository interface {
	Append(record domain.MessageRecord) error
	ListForUser(user domain.UserID, cursor *string) ([]domain.MessageRecord, *string, error)
}

// MessageRepository is the append-only message store. Records are never
// mutated or deleted by the relay.
type MessageRepository struct {
	db            *badger.DB
	log           *slog.Logger
	limitMessages *int
}

func NewMessageRepository(db *badger.DB, log *slog.Logger, limitMessages *int) MessageRepository {
	return MessageRepository{db: db, log: log, limitMessages: limitMessages}
}

// Append persists a routed message in BadgerDB.
// Keys are formatted as "msg:{user_id}:{timestamp_padded}:{uuid}" to:
//  1. Ensure chronological sorting using 19-digit zero padding
//     (lexicographical order).
//  2. Prevent data loss by using the record UUID as a collision
//     disconnector if two messages arrive at the same nanosecond.
//
// The record is written once under the sender prefix and once under the
// recipient prefix, so either participant's history is a single prefix scan.
func (m MessageRepository) Append(record domain.MessageRecord) error {
	bytes, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal failed: %w", err)
	}
	return m.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(messageKey(record.Sender, record), bytes); err != nil {
			return err
		}
		if record.Recipient == record.Sender {
			return nil
		}
		return txn.Set(messageKey(record.Recipient, record), bytes)
	})
}

func messageKey(user domain.UserID, record domain.MessageRecord) []byte {
	return fmt.Appendf(nil, "msg:%d:%019d:%s", user, record.At.UnixNano(), record.ID)
}

// ListForUser retrieves the messages a user sent or received using a prefix
// scan, newest first. Thanks to the padded timestamp in the key, records are
// naturally sorted by time. It stops collecting once the configured
// limitMessages is reached and returns a cursor for the next page.
func (m MessageRepository) ListForUser(user domain.UserID, cursor *string) ([]domain.MessageRecord, *string, error) {
	var records []domain.MessageRecord
	var lastKey string
	err := m.db.View(func(txn *badger.Txn) error {
		prefixStr := fmt.Sprintf("msg:%d:", user)
		prefix := []byte(prefixStr)
		prefixLen := len(prefixStr)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		var seekKey []byte
		switch cursor {
		case nil:
			// Seek past the newest possible timestamp, then walk backwards.
			seekKey = append(prefix, []byte("9999999999999999999")...)
		default:
			seekKey = append(prefix, []byte(*cursor)...)
		}

		it.Seek(seekKey)

		if cursor != nil && it.ValidForPrefix(prefix) {
			it.Next()
		}

		for ; it.ValidForPrefix(prefix); it.Next() {
			if m.limitMessages != nil && len(records) == *m.limitMessages {
				m.log.Debug(fmt.Sprintf("Maximum of %d messages reached", *m.limitMessages))
				break
			}
			item := it.Item()
			// Memorize cursor part of the actual key
			lastKey = string(item.Key()[prefixLen:])
			err := item.Value(func(value []byte) error {
				var record domain.MessageRecord
				if err := json.Unmarshal(value, &record); err != nil {
					return err
				}
				records = append(records, record)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	if len(records) == 0 {
		// Empty page: no cursor, the caller reached end-of-history.
		return records, nil, nil
	}
	return records, &lastKey, nil
}
