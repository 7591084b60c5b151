package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/samber/lo"

	"meowchat/contract"
	"meowchat/domain"
	"meowchat/domain/event"
	"meowchat/errors"
	"meowchat/repositories"
)

type IChatService interface {
	Connect(identity domain.Identity, sink contract.EventSink)
	Disconnect(identity domain.Identity, sink contract.EventSink)
	SendMessage(ctx context.Context, sender domain.Identity, receiverUsername, text string) (domain.Message, error)
	LoadConversation(ctx context.Context, requester domain.Identity, counterpartUsername string) ([]domain.Message, error)
}

// ChatService routes point-to-point messages between live connections
// and materializes conversation history on demand.
type ChatService struct {
	log      *slog.Logger
	registry contract.IRegistry
	messages repositories.IMessageRepository
}

func NewChatService(log *slog.Logger, registry contract.IRegistry,
	messages repositories.IMessageRepository) *ChatService {
	return &ChatService{log: log, registry: registry, messages: messages}
}

// Connect binds an admitted identity to its connection sink. A second
// session for the same user replaces the first (last writer wins).
func (s *ChatService) Connect(identity domain.Identity, sink contract.EventSink) {
	s.registry.Register(identity.Username, sink)
	s.log.Info("User connected", "username", identity.Username)
}

// Disconnect removes the binding. Safe to call more than once.
func (s *ChatService) Disconnect(identity domain.Identity, sink contract.EventSink) {
	s.registry.Unregister(identity.Username, sink)
	s.log.Info("User disconnected", "username", identity.Username)
}

// SendMessage persists a message, then fans it out to the receiver's
// live connection (when online) and echoes it back to the sender. The
// write completes before any delivery, so a delivered message is always
// a durable one; on a failed write nothing is delivered to either party.
//
// Text is passed through untouched, whitespace and all. An offline
// receiver is a normal outcome: the message stays durable and surfaces
// through LoadConversation on their next connection.
func (s *ChatService) SendMessage(ctx context.Context, sender domain.Identity,
	receiverUsername, text string) (domain.Message, error) {
	stored, err := s.messages.StoreMessage(repositories.DiskMessage{
		Sender:   sender.Username,
		SenderID: sender.ID,
		Receiver: receiverUsername,
		Content:  text,
		At:       time.Now().UTC(),
	})
	if err != nil {
		return domain.Message{}, fmt.Errorf("%w: %v", errors.ErrPersistence, err)
	}

	message := toMessage(stored)

	// At most two deliveries per send: the receiver and the sender echo.
	if receiverSink, online := s.registry.Find(receiverUsername); online {
		s.deliver(ctx, receiverSink, event.MessageDelivered{To: receiverUsername, Message: message})
	}
	if senderSink, online := s.registry.Find(sender.Username); online {
		s.deliver(ctx, senderSink, event.MessageDelivered{To: sender.Username, Message: message})
	}

	return message, nil
}

// deliver pushes one event into one sink. A failure here means the
// connection vanished mid-flight, which degrades to "receiver offline";
// it never bubbles up to the sender.
func (s *ChatService) deliver(ctx context.Context, sink contract.EventSink, e event.DomainEvent) {
	if err := sink.Consume(ctx, e); err != nil {
		s.log.Warn("Delivery skipped, connection gone", "receiver", e.Receiver(), "error", err)
	}
}

// LoadConversation returns the full ordered history between the
// requester and the counterpart. On a store failure the caller gets an
// error and no partial conversation.
func (s *ChatService) LoadConversation(ctx context.Context, requester domain.Identity,
	counterpartUsername string) ([]domain.Message, error) {
	stored, err := s.messages.GetConversation(requester.Username, counterpartUsername)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrPersistence, err)
	}

	return lo.Map(stored, func(item repositories.DiskMessage, _ int) domain.Message {
		return toMessage(item)
	}), nil
}

func toMessage(dm repositories.DiskMessage) domain.Message {
	return domain.Message{
		ID:        dm.ID,
		Sender:    dm.Sender,
		SenderID:  dm.SenderID,
		Receiver:  dm.Receiver,
		Text:      dm.Content,
		CreatedAt: dm.At,
	}
}
