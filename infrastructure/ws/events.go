package ws

import (
	"encoding/json"

	"meowchat/domain"
)

// Event names mirror the frontend protocol.
const (
	EventPost  = "msg:post"
	EventLoad  = "msg:load"
	EventGet   = "msg:get"
	EventError = "error"
)

// Envelope is the wire frame for every websocket event, in both
// directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// PostPayload is the body of an inbound msg:post event.
type PostPayload struct {
	ReceiverUsername string `json:"receiverUsername"`
	Text             string `json:"text"`
}

// LoadPayload names the counterpart whose conversation to load.
type LoadPayload struct {
	ReceiverUsername string `json:"receiverUsername"`
}

// DeliveryPayload wraps delivered messages. A single send is still a
// one-element array, matching what the frontend handler expects.
type DeliveryPayload struct {
	Message []domain.Message `json:"message"`
}

// ErrorPayload reports a handler failure to the originating connection.
type ErrorPayload struct {
	Message string `json:"message"`
}
