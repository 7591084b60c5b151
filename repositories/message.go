//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

type IMessageRepository interface {
	StoreMessage(message DiskMessage) (DiskMessage, error)
	GetConversation(userA, userB string) ([]DiskMessage, error)
}

type MessageRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewMessageRepository(db *badger.DB, log *slog.Logger) *MessageRepository {
	return &MessageRepository{db: db, log: log}
}

// DiskMessage is the persisted form of a chat message.
type DiskMessage struct {
	ID       uuid.UUID `json:"id"`
	Sender   string    `json:"sender"`
	SenderID int64     `json:"sender_id"`
	Receiver string    `json:"receiver"`
	Content  string    `json:"content"`
	At       time.Time `json:"at"`
}

// conversationPrefix keys both directions of a chat under one prefix by
// sorting the two usernames, so "alice"->"bob" and "bob"->"alice" land
// in the same history.
func conversationPrefix(userA, userB string) string {
	if userB < userA {
		userA, userB = userB, userA
	}
	return fmt.Sprintf("msg:%s|%s:", userA, userB)
}

// StoreMessage persists a message in BadgerDB and returns the stored
// record with its generated id.
// The key is formatted as "msg:{pair}:{timestamp_padded}:{uuid}" to:
//  1. Ensure chronological sorting using 19-digit zero padding
//     (lexicographical order equals send order).
//  2. Prevent data loss by using the UUID as a collision disambiguator
//     if two messages arrive at the same nanosecond.
func (m *MessageRepository) StoreMessage(message DiskMessage) (DiskMessage, error) {
	message.ID = uuid.New()
	key := fmt.Sprintf("%s%019d:%s",
		conversationPrefix(message.Sender, message.Receiver),
		message.At.UnixNano(),
		message.ID,
	)
	data, err := json.Marshal(message)
	if err != nil {
		return DiskMessage{}, err
	}
	err = m.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
	if err != nil {
		return DiskMessage{}, err
	}
	return message, nil
}

// GetConversation retrieves the full ordered history between two users
// using a prefix scan. Thanks to the padded timestamp in the key,
// messages come back naturally sorted by time. No pagination: callers
// always want the whole conversation.
func (m *MessageRepository) GetConversation(userA, userB string) ([]DiskMessage, error) {
	var messages []DiskMessage
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := []byte(conversationPrefix(userA, userB))
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(value []byte) error {
				var message DiskMessage
				if err := json.Unmarshal(value, &message); err != nil {
					return err
				}
				messages = append(messages, message)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	m.log.Debug("Conversation loaded", "pair", conversationPrefix(userA, userB), "count", len(messages))
	return messages, nil
}
