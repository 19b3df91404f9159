package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shanialy/HRM/internal/app/registry"
	"github.com/shanialy/HRM/internal/config"
	"github.com/shanialy/HRM/internal/core/domain"
	"github.com/shanialy/HRM/internal/core/services"
)

type memConn struct {
	id     string
	userID string

	mu     sync.Mutex
	frames [][]byte
}

func (c *memConn) ID() string     { return c.id }
func (c *memConn) UserID() string { return c.userID }
func (c *memConn) Close()         {}

func (c *memConn) Send(_ context.Context, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, data)
	return nil
}

func (c *memConn) events(t *testing.T) []string {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.frames))
	for _, raw := range c.frames {
		var env domain.OutEnvelope
		require.NoError(t, json.Unmarshal(raw, &env))
		out = append(out, env.Event)
	}
	return out
}

type stubUsers struct {
	byID map[uuid.UUID]*domain.User
}

func (s *stubUsers) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	if u, ok := s.byID[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, domain.ErrUserNotFound
}

func (s *stubUsers) GetByEmail(context.Context, string) (*domain.User, error) {
	return nil, domain.ErrUserNotFound
}

type stubConvs struct {
	conv *domain.Conversation
}

func (s *stubConvs) GetByID(_ context.Context, id uuid.UUID) (*domain.Conversation, error) {
	if s.conv != nil && s.conv.ID == id {
		cp := *s.conv
		return &cp, nil
	}
	return nil, domain.ErrConversationNotFound
}

func (s *stubConvs) FindByPair(context.Context, uuid.UUID, uuid.UUID) (*domain.Conversation, error) {
	return nil, domain.ErrConversationNotFound
}

func (s *stubConvs) Create(context.Context, *domain.Conversation) error { return nil }

func (s *stubConvs) UpdatePreview(context.Context, uuid.UUID, string, domain.MessageType, time.Time) error {
	return nil
}

func (s *stubConvs) ListByParticipant(context.Context, uuid.UUID, int, int) ([]domain.Conversation, error) {
	return nil, nil
}

func (s *stubConvs) ListIDsByParticipant(context.Context, uuid.UUID) ([]uuid.UUID, error) {
	return nil, nil
}

// gatedMsgs parks Create until the gate opens, like a store mid-write, and
// honors context cancellation while parked.
type gatedMsgs struct {
	entered chan struct{}
	gate    chan struct{}

	mu      sync.Mutex
	created []domain.Message
}

func (g *gatedMsgs) Create(ctx context.Context, m *domain.Message) error {
	g.entered <- struct{}{}
	select {
	case <-g.gate:
	case <-ctx.Done():
		return ctx.Err()
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.created = append(g.created, *m)
	return nil
}

func (g *gatedMsgs) ListByConversation(context.Context, uuid.UUID, int, int) ([]domain.Message, error) {
	return nil, nil
}

func (g *gatedMsgs) CountUnread(context.Context, uuid.UUID, uuid.UUID) (int, error) {
	return 0, nil
}

func (g *gatedMsgs) MarkRead(context.Context, uuid.UUID, uuid.UUID) error { return nil }

type stubPresence struct{}

func (stubPresence) UpdateOnlineStatus(context.Context, string, time.Duration) error {
	return nil
}

func (stubPresence) IsOnline(context.Context, string) (bool, error) { return false, nil }

type passTx struct{}

func (passTx) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// A send already handed to the store must persist and broadcast even when
// the connection drops while it is in flight.
func TestDispatchOutlivesConnection(t *testing.T) {
	a := &domain.User{ID: uuid.New(), Role: domain.RoleEmployee, Status: "ACTIVE"}
	b := &domain.User{ID: uuid.New(), Role: domain.RoleEmployee, Status: "ACTIVE"}
	conv := &domain.Conversation{ID: uuid.New(), UserA: a.ID, UserB: b.ID}
	msgs := &gatedMsgs{entered: make(chan struct{}, 1), gate: make(chan struct{})}

	hub := registry.NewRegistry()
	chat := services.NewChatService(
		slog.Default(),
		&stubUsers{byID: map[uuid.UUID]*domain.User{a.ID: a, b.ID: b}},
		&stubConvs{conv: conv},
		msgs,
		stubPresence{},
		hub,
		passTx{},
		config.GatewayConfig{HeartbeatInterval: time.Minute, PresenceTTL: time.Minute},
	)
	h := NewWSHandler(hub, chat, nil)

	aConn := &memConn{id: "conn-a", userID: a.ID.String()}
	bConn := &memConn{id: "conn-b", userID: b.ID.String()}
	hub.Register(aConn)
	hub.Register(bConn)

	frame := []byte(`{"event":"message","data":{"conversationId":"` + conv.ID.String() +
		`","messageType":"TEXT","content":"hi"}}`)

	connCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.dispatch(connCtx, slog.Default(), aConn, domain.Principal{ID: a.ID, Role: a.Role}, frame)
		close(done)
	}()

	<-msgs.entered // the insert is in flight
	cancel()       // the connection drops
	close(msgs.gate)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatch did not finish")
	}

	msgs.mu.Lock()
	created := len(msgs.created)
	msgs.mu.Unlock()
	require.Equal(t, 1, created)
	assert.Contains(t, bConn.events(t), domain.EventMessage)
}

func TestOriginAllowed(t *testing.T) {
	allowed := []string{"https://hrm.example.com"}

	assert.True(t, originAllowed(nil, "https://anywhere.example.com"))
	assert.True(t, originAllowed(allowed, ""), "non-browser clients carry no Origin")
	assert.True(t, originAllowed(allowed, "https://hrm.example.com"))
	assert.True(t, originAllowed(allowed, "HTTPS://HRM.EXAMPLE.COM"))
	assert.False(t, originAllowed(allowed, "https://evil.example.com"))
}
