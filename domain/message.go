// Package domain contains core concepts of the chat system.
// This file defines Message events and related rules.
// Messages are immutable once persisted.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Message represents an immutable chat event between two users.
// The id and timestamp are assigned server-side; clients never supply them.
type Message struct {
	ID        uuid.UUID `json:"id"`
	Sender    string    `json:"sender"`
	SenderID  int64     `json:"senderId"`
	Receiver  string    `json:"receiverUsername"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}
