package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"meowchat/auth"
	"meowchat/contract"
	"meowchat/domain"
	"meowchat/domain/event"
	"meowchat/services"
	"meowchat/sink"
)

// Server upgrades admitted clients to websocket connections and runs
// one read loop plus one write pump per connection. Each connection's
// events are handled in its own goroutine; the registry inside the chat
// service is the only state shared between them.
type Server struct {
	log             *slog.Logger
	gate            *auth.Gate
	chat            services.IChatService
	upgrader        websocket.Upgrader
	bufferSize      int
	deliveryTimeout time.Duration
}

func NewServer(log *slog.Logger, gate *auth.Gate, chat services.IChatService,
	allowedOrigins []string, bufferSize int, deliveryTimeout time.Duration) *Server {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[origin] = true
	}

	return &Server{
		log:             log,
		gate:            gate,
		chat:            chat,
		bufferSize:      bufferSize,
		deliveryTimeout: deliveryTimeout,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// No Origin header means a non-browser client.
				origin := r.Header.Get("Origin")
				return origin == "" || allowed[origin]
			},
		},
	}
}

// Handle serves GET /ws. The session gate runs once, before the
// upgrade: a connection that fails admission is refused with a reason
// string and never reaches the registry.
func (s *Server) Handle(w http.ResponseWriter, r *http.Request) {
	identity, err := s.gate.Admit(credentialFrom(r))
	if err != nil {
		s.log.Warn("Connection refused", "remote", r.RemoteAddr, "reason", err)
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("Websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	connSink := sink.NewWebsocketSink(s.log, s.bufferSize, s.deliveryTimeout)
	s.chat.Connect(identity, connSink)

	go s.writePump(conn, connSink, identity.Username)

	// Detached from the request context: closing the socket must not
	// cancel a persistence call already in flight.
	s.readLoop(context.Background(), conn, identity, connSink)

	s.chat.Disconnect(identity, connSink)
	connSink.Close()
	_ = conn.Close()
}

// credentialFrom reads the bearer credential from the Authorization
// header, falling back to the token query parameter for browser clients
// that cannot set handshake headers.
func credentialFrom(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		return h
	}
	return r.URL.Query().Get("token")
}

type handlerFunc func(ctx context.Context, identity domain.Identity, data json.RawMessage, connSink contract.EventSink)

// readLoop dispatches inbound events until the client goes away. A
// panic inside a handler is contained here so one misbehaving
// connection can never take down another's.
func (s *Server) readLoop(ctx context.Context, conn *websocket.Conn,
	identity domain.Identity, connSink contract.EventSink) {
	defer func() {
		if rec := recover(); rec != nil {
			s.log.Error("Connection handler panicked", "username", identity.Username, "panic", rec)
		}
	}()

	handlers := map[string]handlerFunc{
		EventPost: s.handlePost,
		EventLoad: s.handleLoad,
	}

	for {
		var env Envelope
		if err := conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Warn("Read failed", "username", identity.Username, "error", err)
			}
			return
		}

		handler, ok := handlers[env.Event]
		if !ok {
			s.fail(ctx, identity, connSink, fmt.Sprintf("unknown event %q", env.Event))
			continue
		}
		handler(ctx, identity, env.Data, connSink)
	}
}

// handlePost routes one msg:post event. The delivery events, including
// the sender echo, flow back through the sinks; nothing is written to
// the socket directly from here.
func (s *Server) handlePost(ctx context.Context, identity domain.Identity,
	data json.RawMessage, connSink contract.EventSink) {
	var payload PostPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		s.fail(ctx, identity, connSink, "malformed msg:post payload")
		return
	}

	if _, err := s.chat.SendMessage(ctx, identity, payload.ReceiverUsername, payload.Text); err != nil {
		s.fail(ctx, identity, connSink, err.Error())
	}
}

// handleLoad answers one msg:load event. The response goes through the
// connection's own sink so that a send echo issued just before keeps
// its place in the delivery order.
func (s *Server) handleLoad(ctx context.Context, identity domain.Identity,
	data json.RawMessage, connSink contract.EventSink) {
	var payload LoadPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		// The original frontend sends the counterpart as a bare string.
		var username string
		if err := json.Unmarshal(data, &username); err != nil {
			s.fail(ctx, identity, connSink, "malformed msg:load payload")
			return
		}
		payload.ReceiverUsername = username
	}

	messages, err := s.chat.LoadConversation(ctx, identity, payload.ReceiverUsername)
	if err != nil {
		s.fail(ctx, identity, connSink, err.Error())
		return
	}

	_ = connSink.Consume(ctx, event.ConversationLoaded{
		To:       identity.Username,
		With:     payload.ReceiverUsername,
		Messages: messages,
	})
}

// fail reports an in-event error back to the originating connection
// only. Errors are never broadcast.
func (s *Server) fail(ctx context.Context, identity domain.Identity,
	connSink contract.EventSink, reason string) {
	_ = connSink.Consume(ctx, event.HandlerError{To: identity.Username, Reason: reason})
}

// writePump drains the connection's sink and writes envelopes to the
// socket. It exits when the sink is closed after disconnect.
func (s *Server) writePump(conn *websocket.Conn, connSink *sink.WebsocketSink, username string) {
	for evt := range connSink.Events {
		env, err := toEnvelope(evt)
		if err != nil {
			s.log.Error("Unmapped event dropped", "username", username, "error", err)
			continue
		}
		if err := conn.WriteJSON(env); err != nil {
			s.log.Warn("Write failed, closing connection", "username", username, "error", err)
			_ = conn.Close()
			// Keep draining so no producer ever blocks on a dead socket.
		}
	}
}

func toEnvelope(evt event.DomainEvent) (Envelope, error) {
	switch e := evt.(type) {
	case event.MessageDelivered:
		data, err := json.Marshal(DeliveryPayload{Message: []domain.Message{e.Message}})
		return Envelope{Event: EventGet, Data: data}, err
	case event.ConversationLoaded:
		messages := e.Messages
		if messages == nil {
			messages = []domain.Message{}
		}
		data, err := json.Marshal(DeliveryPayload{Message: messages})
		return Envelope{Event: EventLoad, Data: data}, err
	case event.HandlerError:
		data, err := json.Marshal(ErrorPayload{Message: e.Reason})
		return Envelope{Event: EventError, Data: data}, err
	default:
		return Envelope{}, fmt.Errorf("no envelope for event type %T", evt)
	}
}
