package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/shanialy/HRM/internal/config"
	"github.com/shanialy/HRM/internal/core/contracts"
	"github.com/shanialy/HRM/internal/core/domain"
)

var tracer = otel.Tracer("chat-service")

// TxRunner is the transaction boundary; satisfied by TxManager.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// ChatService implements the realtime messaging operations behind the
// gateway: idempotent conversation creation, paginated listings with unread
// counts, validated sends with room broadcast, history, and read
// acknowledgement. Every operation runs under a bounded deadline so a slow
// store surfaces as an error event instead of stalling the connection.
type ChatService struct {
	log       *slog.Logger
	users     domain.UserRepository
	convs     domain.ConversationRepository
	msgs      domain.MessageRepository
	presence  contracts.PresenceStore
	registry  contracts.Registry
	txManager TxRunner
	cfg       config.GatewayConfig
}

func NewChatService(
	log *slog.Logger,
	users domain.UserRepository,
	convs domain.ConversationRepository,
	msgs domain.MessageRepository,
	presence contracts.PresenceStore,
	registry contracts.Registry,
	txManager TxRunner,
	cfg config.GatewayConfig,
) *ChatService {
	return &ChatService{
		log:       log,
		users:     users,
		convs:     convs,
		msgs:      msgs,
		presence:  presence,
		registry:  registry,
		txManager: txManager,
		cfg:       cfg,
	}
}

func (s *ChatService) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.OpTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.cfg.OpTimeout)
}

// storeErr maps a deadline expiry or a driver failure into the protocol
// taxonomy; domain errors pass through untouched.
func storeErr(err error) error {
	var appErr *domain.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return domain.Store(err)
}

// CreateConversation locates or creates the single live conversation for the
// caller/receiver pair, notifies the receiver's private room, and returns
// the view for the caller. Repeated calls return the same conversation.
func (s *ChatService) CreateConversation(
	ctx context.Context,
	caller domain.Principal,
	receiverID uuid.UUID,
) (*domain.ConversationView, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()
	ctx, span := tracer.Start(ctx, "ChatService.CreateConversation", trace.WithAttributes(
		attribute.String("user.id", caller.ID.String()),
		attribute.String("chat.receiver_id", receiverID.String()),
	))
	defer span.End()

	receiver, err := s.users.GetByID(ctx, receiverID)
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.Validation("receiver not found")
		}
		s.log.ErrorContext(ctx, "chat - create conversation - receiver lookup failed", "receiver_id", receiverID, "err", err)
		return nil, storeErr(err)
	}

	conv, err := s.convs.FindByPair(ctx, caller.ID, receiverID)
	switch {
	case err == nil:
		// Idempotent create: reuse the live conversation.
	case errors.Is(err, domain.ErrConversationNotFound):
		conv = &domain.Conversation{
			ID:              uuid.New(),
			UserA:           caller.ID,
			UserB:           receiverID,
			LastMessage:     "",
			LastMessageType: domain.MessageTypeText,
			LastMessageAt:   time.Now(),
		}
		txErr := s.txManager.WithTx(ctx, func(txCtx context.Context) error {
			return s.convs.Create(txCtx, conv)
		})
		switch {
		case txErr == nil:
			s.log.InfoContext(ctx, "chat - create conversation - created", "conversation_id", conv.ID, "user_id", caller.ID, "receiver_id", receiverID)
		case errors.Is(txErr, domain.ErrConversationExists):
			// Lost the insert race against a concurrent create for the
			// same pair; the winner's row is the conversation.
			conv, err = s.convs.FindByPair(ctx, caller.ID, receiverID)
			if err != nil {
				span.RecordError(err)
				s.log.ErrorContext(ctx, "chat - create conversation - winner lookup failed", "user_id", caller.ID, "receiver_id", receiverID, "err", err)
				return nil, storeErr(err)
			}
		default:
			span.RecordError(txErr)
			span.SetStatus(codes.Error, "create failed")
			s.log.ErrorContext(ctx, "chat - create conversation - create failed", "user_id", caller.ID, "receiver_id", receiverID, "err", txErr)
			return nil, storeErr(txErr)
		}
	default:
		span.RecordError(err)
		s.log.ErrorContext(ctx, "chat - create conversation - pair lookup failed", "user_id", caller.ID, "receiver_id", receiverID, "err", err)
		return nil, storeErr(err)
	}

	// Pull every live device of both parties into the room right away, so
	// an already-connected receiver gets the broadcasts without a
	// reconnect.
	s.registry.JoinUser(conv.ID.String(), caller.ID.String())
	s.registry.JoinUser(conv.ID.String(), receiverID.String())

	view := s.view(ctx, conv, caller.ID, receiver)
	s.registry.ToUser(ctx, receiverID.String(), domain.EventNewConversation, view)
	span.SetStatus(codes.Ok, "created")
	return view, nil
}

// ListConversations returns the caller's live conversations ordered by most
// recent activity, the peer resolved and the unread count computed per row.
func (s *ChatService) ListConversations(
	ctx context.Context,
	caller domain.Principal,
	page, limit int,
) ([]domain.ConversationView, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()
	ctx, span := tracer.Start(ctx, "ChatService.ListConversations", trace.WithAttributes(
		attribute.String("user.id", caller.ID.String()),
		attribute.Int("page", page),
	))
	defer span.End()

	offset := (page - 1) * limit
	convs, err := s.convs.ListByParticipant(ctx, caller.ID, offset, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list failed")
		s.log.ErrorContext(ctx, "chat - list conversations - list failed", "user_id", caller.ID, "err", err)
		return nil, storeErr(err)
	}

	views := make([]domain.ConversationView, 0, len(convs))
	for i := range convs {
		conv := &convs[i]
		peer, err := s.users.GetByID(ctx, conv.OtherParticipant(caller.ID))
		if err != nil {
			span.RecordError(err)
			s.log.ErrorContext(ctx, "chat - list conversations - peer lookup failed", "conversation_id", conv.ID, "err", err)
			return nil, storeErr(err)
		}
		views = append(views, *s.view(ctx, conv, caller.ID, peer))
	}
	span.SetAttributes(attribute.Int("chat.conversation_count", len(views)))
	return views, nil
}

// SendMessage appends a message and updates the conversation preview, then
// broadcasts the materialized message to the conversation room. Sender and
// receiver get it through the same room fan-out, so there is no duplicate
// delivery path. Preconditions are checked in order: existence, membership,
// payload shape.
func (s *ChatService) SendMessage(
	ctx context.Context,
	caller domain.Principal,
	req domain.SendMessageRequest,
) (*domain.MessageView, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()
	ctx, span := tracer.Start(ctx, "ChatService.SendMessage", trace.WithAttributes(
		attribute.String("user.id", caller.ID.String()),
		attribute.String("chat.conversation_id", req.ConversationID),
		attribute.String("chat.message_type", req.MessageType),
	))
	defer span.End()

	convID, err := uuid.Parse(req.ConversationID)
	if err != nil {
		return nil, domain.ConversationNotFound()
	}
	conv, err := s.convs.GetByID(ctx, convID)
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, domain.ErrConversationNotFound) {
			return nil, domain.ConversationNotFound()
		}
		s.log.ErrorContext(ctx, "chat - send message - conversation lookup failed", "conversation_id", convID, "err", err)
		return nil, storeErr(err)
	}
	if !conv.HasParticipant(caller.ID) {
		span.SetStatus(codes.Error, "not a participant")
		s.log.InfoContext(ctx, "chat - send message - caller not a participant", "conversation_id", convID, "user_id", caller.ID)
		return nil, domain.Unauthorized("not a participant of this conversation")
	}
	if _, err := req.Validate(); err != nil {
		return nil, err
	}

	msg := &domain.Message{
		ID:             uuid.New(),
		ConversationID: convID,
		SenderID:       caller.ID,
		Type:           domain.MessageType(req.MessageType),
		CreatedAt:      time.Now(),
	}
	if msg.Type == domain.MessageTypeText {
		content := req.Content
		msg.Content = &content
	} else {
		mediaURL := req.MediaURL
		msg.MediaURL = &mediaURL
	}

	// Append and preview update commit together; the caller either gets the
	// broadcast or an error event, never a half-applied send.
	if err := s.txManager.WithTx(ctx, func(txCtx context.Context) error {
		if err := s.msgs.Create(txCtx, msg); err != nil {
			return err
		}
		return s.convs.UpdatePreview(txCtx, convID, msg.Preview(), msg.Type, msg.CreatedAt)
	}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist failed")
		s.log.ErrorContext(ctx, "chat - send message - persist failed", "conversation_id", convID, "user_id", caller.ID, "err", err)
		return nil, storeErr(err)
	}

	sender, err := s.users.GetByID(ctx, caller.ID)
	if err != nil {
		span.RecordError(err)
		s.log.ErrorContext(ctx, "chat - send message - sender lookup failed", "user_id", caller.ID, "err", err)
		return nil, storeErr(err)
	}
	view := &domain.MessageView{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		Sender:         sender.Summary(),
		MessageType:    msg.Type,
		Content:        msg.Content,
		MediaURL:       msg.MediaURL,
		CreatedAt:      msg.CreatedAt,
	}
	// Devices that connected before the room existed join late; harmless
	// for members already in the room.
	s.registry.JoinUser(convID.String(), conv.UserA.String())
	s.registry.JoinUser(convID.String(), conv.UserB.String())
	s.registry.ToRoom(ctx, convID.String(), domain.EventMessage, view)
	// Sidebar refresh nudge for every device of both parties.
	s.registry.ToUser(ctx, conv.UserA.String(), domain.EventConversationUpdated, nil)
	s.registry.ToUser(ctx, conv.UserB.String(), domain.EventConversationUpdated, nil)
	s.log.InfoContext(ctx, "chat - send message - broadcast", "conversation_id", convID, "message_id", msg.ID, "user_id", caller.ID)
	span.SetStatus(codes.Ok, "sent")
	return view, nil
}

// GetMessages returns a page of the conversation's log, newest first, sender
// identities resolved. Membership is enforced the same way as for sends.
func (s *ChatService) GetMessages(
	ctx context.Context,
	caller domain.Principal,
	convID uuid.UUID,
	page, limit int,
) ([]domain.MessageView, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()
	ctx, span := tracer.Start(ctx, "ChatService.GetMessages", trace.WithAttributes(
		attribute.String("user.id", caller.ID.String()),
		attribute.String("chat.conversation_id", convID.String()),
	))
	defer span.End()

	conv, err := s.convs.GetByID(ctx, convID)
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, domain.ErrConversationNotFound) {
			return nil, domain.ConversationNotFound()
		}
		return nil, storeErr(err)
	}
	if !conv.HasParticipant(caller.ID) {
		span.SetStatus(codes.Error, "not a participant")
		return nil, domain.Unauthorized("not a participant of this conversation")
	}

	offset := (page - 1) * limit
	msgs, err := s.msgs.ListByConversation(ctx, convID, offset, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list failed")
		s.log.ErrorContext(ctx, "chat - get messages - list failed", "conversation_id", convID, "err", err)
		return nil, storeErr(err)
	}

	// Senders repeat heavily inside one page; resolve each once.
	senders := make(map[uuid.UUID]domain.UserSummary, 2)
	views := make([]domain.MessageView, 0, len(msgs))
	for i := range msgs {
		m := &msgs[i]
		summary, ok := senders[m.SenderID]
		if !ok {
			sender, err := s.users.GetByID(ctx, m.SenderID)
			if err != nil {
				span.RecordError(err)
				return nil, storeErr(err)
			}
			summary = sender.Summary()
			senders[m.SenderID] = summary
		}
		views = append(views, domain.MessageView{
			ID:             m.ID,
			ConversationID: m.ConversationID,
			Sender:         summary,
			MessageType:    m.Type,
			Content:        m.Content,
			MediaURL:       m.MediaURL,
			CreatedAt:      m.CreatedAt,
		})
	}
	span.SetAttributes(attribute.Int("chat.message_count", len(views)))
	return views, nil
}

// MarkAsRead acknowledges every unseen foreign message in the conversation
// for the caller. Local bookkeeping only; nothing is broadcast.
func (s *ChatService) MarkAsRead(
	ctx context.Context,
	caller domain.Principal,
	convID uuid.UUID,
) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()
	ctx, span := tracer.Start(ctx, "ChatService.MarkAsRead", trace.WithAttributes(
		attribute.String("user.id", caller.ID.String()),
		attribute.String("chat.conversation_id", convID.String()),
	))
	defer span.End()

	conv, err := s.convs.GetByID(ctx, convID)
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, domain.ErrConversationNotFound) {
			return domain.ConversationNotFound()
		}
		return storeErr(err)
	}
	if !conv.HasParticipant(caller.ID) {
		return domain.Unauthorized("not a participant of this conversation")
	}
	if err := s.txManager.WithTx(ctx, func(txCtx context.Context) error {
		return s.msgs.MarkRead(txCtx, convID, caller.ID)
	}); err != nil {
		span.RecordError(err)
		s.log.ErrorContext(ctx, "chat - mark as read - failed", "conversation_id", convID, "user_id", caller.ID, "err", err)
		return storeErr(err)
	}
	return nil
}

// ConversationIDsFor feeds the room auto-join on connect: every live
// conversation the user participates in.
func (s *ChatService) ConversationIDsFor(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()
	return s.convs.ListIDsByParticipant(ctx, userID)
}

// TrackPresence refreshes the user's presence key until the connection
// context ends. One goroutine per connection; concurrent devices refresh the
// same key harmlessly.
func (s *ChatService) TrackPresence(ctx context.Context, userID string) {
	if err := s.presence.UpdateOnlineStatus(ctx, userID, s.cfg.PresenceTTL); err != nil {
		s.log.ErrorContext(ctx, "chat - track presence - initial update failed", "user_id", userID, "err", err)
	}
	ticker := time.NewTicker(s.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.presence.UpdateOnlineStatus(ctx, userID, s.cfg.PresenceTTL); err != nil {
				s.log.ErrorContext(ctx, "chat - track presence - update failed", "user_id", userID, "err", err)
			}
		}
	}
}

// view assembles a listing row for viewerID with peer identity, unread
// count, and online flag. Presence failures degrade to offline rather than
// failing the listing.
func (s *ChatService) view(
	ctx context.Context,
	conv *domain.Conversation,
	viewerID uuid.UUID,
	peer *domain.User,
) *domain.ConversationView {
	unread, err := s.msgs.CountUnread(ctx, conv.ID, viewerID)
	if err != nil {
		s.log.ErrorContext(ctx, "chat - view - unread count failed", "conversation_id", conv.ID, "user_id", viewerID, "err", err)
	}
	online, err := s.presence.IsOnline(ctx, peer.ID.String())
	if err != nil {
		s.log.ErrorContext(ctx, "chat - view - presence check failed", "user_id", peer.ID, "err", err)
		online = false
	}
	return &domain.ConversationView{
		ID:              conv.ID,
		User:            peer.Summary(),
		LastMessage:     conv.LastMessage,
		LastMessageType: conv.LastMessageType,
		LastMessageAt:   conv.LastMessageAt,
		UnreadCount:     unread,
		Online:          online,
	}
}
