package event

import (
	"meowchat/domain"
)

// DomainEvent is anything the core emits to a connected user.
type DomainEvent interface {
	Receiver() string
}

// MessageDelivered carries one persisted message to a live connection.
// The same event is sent to the message's receiver (when online) and
// echoed back to its sender.
type MessageDelivered struct {
	To      string
	Message domain.Message
}

func (e MessageDelivered) Receiver() string { return e.To }

// ConversationLoaded carries a full conversation back to its requester
// and nobody else.
type ConversationLoaded struct {
	To       string
	With     string
	Messages []domain.Message
}

func (e ConversationLoaded) Receiver() string { return e.To }

// HandlerError reports an in-event failure to the originating
// connection only. It is never broadcast.
type HandlerError struct {
	To     string
	Reason string
}

func (e HandlerError) Receiver() string { return e.To }
