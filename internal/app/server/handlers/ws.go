package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/shanialy/HRM/internal/app/registry"
	"github.com/shanialy/HRM/internal/app/server/ws"
	"github.com/shanialy/HRM/internal/core/contracts"
	"github.com/shanialy/HRM/internal/core/domain"
	"github.com/shanialy/HRM/internal/core/services"
	"github.com/shanialy/HRM/pkg/logging"
	"github.com/shanialy/HRM/pkg/middleware"
)

// WSHandler is the realtime gateway entry point: it upgrades authenticated
// connections, joins them to their rooms, and dispatches protocol events.
type WSHandler struct {
	hub     *registry.Registry
	chat    *services.ChatService
	origins []string
}

// NewWSHandler builds the gateway handler. An empty origins list admits every
// Origin header.
func NewWSHandler(hub *registry.Registry, chat *services.ChatService, origins []string) *WSHandler {
	return &WSHandler{
		hub:     hub,
		chat:    chat,
		origins: origins,
	}
}

// originAllowed admits non-browser clients (no Origin header) always; browser
// origins are matched against the configured list, every origin passing when
// the list is empty.
func originAllowed(allowed []string, origin string) bool {
	if origin == "" || len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		if strings.EqualFold(a, origin) {
			return true
		}
	}
	return false
}

func (s *WSHandler) Handler(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())
	span := trace.SpanFromContext(r.Context())
	principal, ok := r.Context().Value(middleware.PrincipalKey).(*domain.Principal)
	if !ok {
		log.ErrorContext(r.Context(), "ws handler - unauthorised missing principal")
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	span.SetAttributes(attribute.String("user.id", principal.ID.String()))

	// The session outlives the HTTP request: a disconnect mid-operation must
	// not cancel a store write that was already issued.
	sessionCtx := context.WithoutCancel(r.Context())
	ctx, cancel := context.WithCancel(sessionCtx)
	// Stops the presence heartbeat and the write loop however the read
	// loop ends.
	defer cancel()

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return originAllowed(s.origins, r.Header.Get("Origin"))
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.ErrorContext(r.Context(), "ws handler - upgrade failed", "err", err)
		return
	}
	conn.SetCloseHandler(func(code int, text string) error {
		log.Info("ws handler - ws closed", logging.User(principal.ID.String()))
		cancel()
		return nil
	})
	sock := ws.NewWebSocket(ctx, conn)
	client := ws.NewClient(ctx, sock, uuid.NewString(), principal.ID.String())

	// Private room first, then one room per live conversation so the user
	// transparently receives events for everything they are already part of.
	s.hub.Register(client)
	defer s.hub.Unregister(client)
	convIDs, err := s.chat.ConversationIDsFor(ctx, principal.ID)
	if err != nil {
		log.ErrorContext(ctx, "ws handler - conversation auto-join failed", logging.User(principal.ID.String()), logging.Err(err))
	}
	for _, id := range convIDs {
		s.hub.Join(id.String(), client)
	}
	log.InfoContext(ctx, "ws handler - connection established", logging.User(principal.ID.String()), "conversations", len(convIDs))

	go s.chat.TrackPresence(ctx, principal.ID.String())

	sock.ReadLoop(func(data []byte) {
		go s.dispatch(ctx, log, client, *principal, data)
	})
}

// dispatch decodes one inbound frame and routes it by event name. Protocol
// failures become an error event to this connection only; the connection
// stays open either way.
func (s *WSHandler) dispatch(
	ctx context.Context,
	log *slog.Logger,
	client contracts.Client,
	principal domain.Principal,
	data []byte,
) {
	// Detached from the connection cancel: a disconnect must not abort an
	// operation already in flight. OpTimeout still bounds each one.
	ctx = context.WithoutCancel(ctx)

	var env domain.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		s.emitError(ctx, client, "malformed event")
		return
	}
	log.DebugContext(ctx, "ws handler - event received", logging.Event(env.Event), logging.User(principal.ID.String()))

	switch env.Event {
	case domain.EventCreateConversation:
		var req domain.CreateConversationRequest
		if err := json.Unmarshal(env.Data, &req); err != nil {
			s.emitError(ctx, client, "malformed payload")
			return
		}
		receiverID, err := req.Validate()
		if err != nil {
			s.emitError(ctx, client, domain.ProtocolMessage(err))
			return
		}
		view, err := s.chat.CreateConversation(ctx, principal, receiverID)
		if err != nil {
			s.emitError(ctx, client, domain.ProtocolMessage(err))
			return
		}
		// Room membership for both parties' devices is handled inside
		// CreateConversation.
		s.hub.ToClient(ctx, client, domain.EventConversationCreated, view)

	case domain.EventConversations:
		var req domain.ListConversationsRequest
		if len(env.Data) > 0 {
			if err := json.Unmarshal(env.Data, &req); err != nil {
				s.emitError(ctx, client, "malformed payload")
				return
			}
		}
		req.Normalize()
		views, err := s.chat.ListConversations(ctx, principal, req.Page, req.Limit)
		if err != nil {
			s.emitError(ctx, client, domain.ProtocolMessage(err))
			return
		}
		s.hub.ToClient(ctx, client, domain.EventConversations, views)

	case domain.EventMessage:
		var req domain.SendMessageRequest
		if err := json.Unmarshal(env.Data, &req); err != nil {
			s.emitError(ctx, client, "malformed payload")
			return
		}
		// Sender receives the message through the room broadcast like
		// everyone else; nothing extra is emitted here.
		if _, err := s.chat.SendMessage(ctx, principal, req); err != nil {
			s.emitError(ctx, client, domain.ProtocolMessage(err))
			return
		}

	case domain.EventGetMessages:
		var req domain.GetMessagesRequest
		if err := json.Unmarshal(env.Data, &req); err != nil {
			s.emitError(ctx, client, "malformed payload")
			return
		}
		convID, err := req.Validate()
		if err != nil {
			s.emitError(ctx, client, domain.ProtocolMessage(err))
			return
		}
		views, err := s.chat.GetMessages(ctx, principal, convID, req.Page, req.Limit)
		if err != nil {
			s.emitError(ctx, client, domain.ProtocolMessage(err))
			return
		}
		s.hub.ToClient(ctx, client, domain.EventGetMessages, views)

	case domain.EventMarkAsRead:
		var req domain.MarkAsReadRequest
		if err := json.Unmarshal(env.Data, &req); err != nil {
			return // silent by contract
		}
		convID, err := uuid.Parse(req.ConversationID)
		if err != nil {
			return
		}
		if err := s.chat.MarkAsRead(ctx, principal, convID); err != nil {
			log.ErrorContext(ctx, "ws handler - mark as read failed",
				logging.Conversation(convID.String()), logging.User(principal.ID.String()), logging.Err(err))
		}

	default:
		s.emitError(ctx, client, "unknown event: "+env.Event)
	}
}

func (s *WSHandler) emitError(ctx context.Context, client contracts.Client, msg string) {
	s.hub.ToClient(ctx, client, domain.EventError, domain.ErrorPayload{Message: msg})
}
