//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"

	"meowchat/domain/event"
)

// EventSink is the outbound side of one live connection. The router and
// the history loader only ever talk to a connection through this.
type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

// IRegistry maps an online username to its active connection sink.
type IRegistry interface {
	Register(username string, sink EventSink)
	Unregister(username string, sink EventSink)
	Find(username string) (EventSink, bool)
}
