package services

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/shanialy/HRM/internal/core/contracts"
	"github.com/shanialy/HRM/internal/core/domain"
)

// In-memory fakes backing the service tests. They implement the same
// interfaces as the postgres/redis adapters, minus the I/O.

type fakeTx struct{}

func (fakeTx) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]*domain.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[uuid.UUID]*domain.User)}
}

func (r *fakeUserRepo) add(u *domain.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[u.ID] = u
}

func (r *fakeUserRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

type fakeConvRepo struct {
	mu    sync.Mutex
	convs map[uuid.UUID]*domain.Conversation
	// missNextFind makes the next FindByPair miss, as a concurrent racer's
	// lookup would before the other create commits.
	missNextFind int
}

func newFakeConvRepo() *fakeConvRepo {
	return &fakeConvRepo{convs: make(map[uuid.UUID]*domain.Conversation)}
}

func (r *fakeConvRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.convs[id]
	if !ok || c.IsDisabled {
		return nil, domain.ErrConversationNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *fakeConvRepo) FindByPair(_ context.Context, a, b uuid.UUID) (*domain.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.missNextFind > 0 {
		r.missNextFind--
		return nil, domain.ErrConversationNotFound
	}
	for _, c := range r.convs {
		if c.IsDisabled {
			continue
		}
		if (c.UserA == a && c.UserB == b) || (c.UserA == b && c.UserB == a) {
			cp := *c
			return &cp, nil
		}
	}
	return nil, domain.ErrConversationNotFound
}

func (r *fakeConvRepo) Create(_ context.Context, c *domain.Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	// The pair index admits one live conversation per unordered pair.
	for _, existing := range r.convs {
		if existing.IsDisabled {
			continue
		}
		if (existing.UserA == c.UserA && existing.UserB == c.UserB) ||
			(existing.UserA == c.UserB && existing.UserB == c.UserA) {
			return domain.ErrConversationExists
		}
	}
	cp := *c
	cp.CreatedAt = time.Now()
	r.convs[c.ID] = &cp
	return nil
}

func (r *fakeConvRepo) UpdatePreview(_ context.Context, id uuid.UUID, preview string, t domain.MessageType, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.convs[id]
	if !ok {
		return domain.ErrConversationNotFound
	}
	c.LastMessage = preview
	c.LastMessageType = t
	c.LastMessageAt = at
	return nil
}

func (r *fakeConvRepo) ListByParticipant(_ context.Context, userID uuid.UUID, offset, limit int) ([]domain.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Conversation
	for _, c := range r.convs {
		if !c.IsDisabled && c.HasParticipant(userID) {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].LastMessageAt.Equal(out[j].LastMessageAt) {
			return out[i].LastMessageAt.After(out[j].LastMessageAt)
		}
		return out[i].ID.String() > out[j].ID.String()
	})
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeConvRepo) ListIDsByParticipant(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	convs, err := r.ListByParticipant(ctx, userID, 0, 1<<30)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(convs))
	for _, c := range convs {
		ids = append(ids, c.ID)
	}
	return ids, nil
}

type fakeMsgRepo struct {
	mu    sync.Mutex
	msgs  []domain.Message
	reads map[uuid.UUID]map[uuid.UUID]bool // message id → user ids
}

func newFakeMsgRepo() *fakeMsgRepo {
	return &fakeMsgRepo{reads: make(map[uuid.UUID]map[uuid.UUID]bool)}
}

func (r *fakeMsgRepo) Create(_ context.Context, m *domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, *m)
	r.reads[m.ID] = map[uuid.UUID]bool{m.SenderID: true}
	return nil
}

func (r *fakeMsgRepo) ListByConversation(_ context.Context, convID uuid.UUID, offset, limit int) ([]domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Message
	for _, m := range r.msgs {
		if m.ConversationID == convID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.String() > out[j].ID.String()
	})
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeMsgRepo) CountUnread(_ context.Context, convID, userID uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, m := range r.msgs {
		if m.ConversationID == convID && m.SenderID != userID && !r.reads[m.ID][userID] {
			count++
		}
	}
	return count, nil
}

func (r *fakeMsgRepo) MarkRead(_ context.Context, convID, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.msgs {
		if m.ConversationID == convID && m.SenderID != userID {
			r.reads[m.ID][userID] = true
		}
	}
	return nil
}

type fakePresence struct {
	mu     sync.Mutex
	online map[string]bool
}

func newFakePresence() *fakePresence {
	return &fakePresence{online: make(map[string]bool)}
}

func (p *fakePresence) UpdateOnlineStatus(_ context.Context, userID string, _ time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.online[userID] = true
	return nil
}

func (p *fakePresence) IsOnline(_ context.Context, userID string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.online[userID], nil
}

type emission struct {
	room  string
	event string
	data  any
}

// fakeRegistry records every fan-out instead of delivering it.
type fakeRegistry struct {
	mu        sync.Mutex
	emissions []emission
	userJoins map[string][]string // room id → user ids
}

func (r *fakeRegistry) Register(contracts.Client)      {}
func (r *fakeRegistry) Unregister(contracts.Client)    {}
func (r *fakeRegistry) Join(string, contracts.Client)  {}
func (r *fakeRegistry) Leave(string, contracts.Client) {}

func (r *fakeRegistry) JoinUser(roomID, userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.userJoins == nil {
		r.userJoins = make(map[string][]string)
	}
	r.userJoins[roomID] = append(r.userJoins[roomID], userID)
}

func (r *fakeRegistry) joinedUsers(roomID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.userJoins[roomID]...)
}

func (r *fakeRegistry) ToRoom(_ context.Context, roomID string, event string, data any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.emissions = append(r.emissions, emission{room: roomID, event: event, data: data})
}

func (r *fakeRegistry) ToUser(ctx context.Context, userID string, event string, data any) {
	r.ToRoom(ctx, "user:"+userID, event, data)
}

func (r *fakeRegistry) ToClient(_ context.Context, c contracts.Client, event string, data any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.emissions = append(r.emissions, emission{room: "client:" + c.ID(), event: event, data: data})
}

// liveClient is a full contracts.Client for tests that run the real room
// registry end to end; it records the raw frames it would have written.
type liveClient struct {
	id     string
	userID string

	mu     sync.Mutex
	frames [][]byte
}

func (c *liveClient) ID() string     { return c.id }
func (c *liveClient) UserID() string { return c.userID }
func (c *liveClient) Close()         {}

func (c *liveClient) Send(_ context.Context, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, data)
	return nil
}

func (c *liveClient) events(t *testing.T) []string {
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

func (r *fakeRegistry) byEvent(event string) []emission {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []emission
	for _, e := range r.emissions {
		if e.event == event {
			out = append(out, e)
		}
	}
	return out
}
