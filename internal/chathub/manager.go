package chathub

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"roomchat/backend/internal/metrics"
	"roomchat/backend/internal/models"
	"roomchat/backend/internal/storage"

	"golang.org/x/time/rate"
)

// connState is the manager's view of one live connection.
type connState struct {
	client  Client
	roomID  string // "" when not in a room
	limiter *rate.Limiter
}

// ManagerService tracks live connections and their room membership, and
// routes inbound client events to the owning room's broadcast group.
//
// mu guards clients, groups and every group's queue. It is never held across
// a store call or a delivery to a client.
type ManagerService struct {
	Registry *RegistryService
	Storage  storage.Storage

	log *slog.Logger
	now func() time.Time

	rateLimit rate.Limit
	rateBurst int

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	clients map[string]*connState
	groups  map[string]*roomGroup
}

type ManagerOption func(*ManagerService)

// WithRateLimit caps how many messages one connection may send per second.
// perSecond <= 0 disables limiting.
func WithRateLimit(perSecond float64, burst int) ManagerOption {
	return func(m *ManagerService) {
		if perSecond <= 0 {
			m.rateLimit = rate.Inf
			return
		}
		m.rateLimit = rate.Limit(perSecond)
		m.rateBurst = max(burst, 1)
	}
}

// WithMessageClock overrides the clock used to timestamp messages.
func WithMessageClock(now func() time.Time) ManagerOption {
	return func(m *ManagerService) { m.now = now }
}

func NewManagerService(registry *RegistryService, log *slog.Logger, opts ...ManagerOption) *ManagerService {
	ctx, cancel := context.WithCancel(context.Background())
	m := &ManagerService{
		Registry:  registry,
		Storage:   registry.Storage,
		log:       log,
		now:       time.Now,
		rateLimit: rate.Inf,
		ctx:       ctx,
		cancel:    cancel,
		clients:   make(map[string]*connState),
		groups:    make(map[string]*roomGroup),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Register starts tracking client and tells it its connection id.
func (m *ManagerService) Register(client Client) {
	id := client.GetConnectionID()

	m.mu.Lock()
	m.clients[id] = &connState{
		client:  client,
		limiter: rate.NewLimiter(m.rateLimit, m.rateBurst),
	}
	total := len(m.clients)
	m.mu.Unlock()

	metrics.ActiveConnections.Inc()
	m.log.Debug("client.registered", "conn", id, "total", total)
	client.Deliver(models.Connected(id))
}

// HandleEvent dispatches one inbound client frame.
func (m *ManagerService) HandleEvent(connID string, ev models.ClientEvent) {
	switch ev.Type {
	case models.EventJoinRoom:
		m.Join(connID, SanitizeRoomID(ev.RoomID))
	case models.EventSendMessage:
		m.Send(connID, ev.RoomID, ev.Message)
	case models.EventLeaveRoom:
		m.Leave(connID)
	default:
		m.log.Debug("client.event.unknown", "conn", connID, "type", ev.Type)
	}
}

// Join makes connID a member of roomID, leaving any room it was in before.
// roomID must already be sanitized.
func (m *ManagerService) Join(connID, roomID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.clients[connID]
	if !ok {
		return
	}
	if st.roomID != "" && st.roomID != roomID {
		m.enqueueLocked(st.roomID, groupOp{kind: opLeave, connID: connID})
	}
	st.roomID = roomID
	m.enqueueLocked(roomID, groupOp{kind: opJoin, connID: connID, client: st.client})
}

// Leave removes connID from its current room. No-op when it is not in one,
// so a transport reporting both a leave and a disconnect yields one notice.
func (m *ManagerService) Leave(connID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.clients[connID]
	if !ok || st.roomID == "" {
		return
	}
	m.enqueueLocked(st.roomID, groupOp{kind: opLeave, connID: connID})
	st.roomID = ""
}

// Disconnect leaves the current room, forgets the connection and closes it.
func (m *ManagerService) Disconnect(connID string) {
	m.mu.Lock()
	st, ok := m.clients[connID]
	if !ok {
		m.mu.Unlock()
		return
	}
	delete(m.clients, connID)
	if st.roomID != "" {
		m.enqueueLocked(st.roomID, groupOp{kind: opLeave, connID: connID})
		st.roomID = ""
	}
	total := len(m.clients)
	m.mu.Unlock()

	metrics.ActiveConnections.Dec()
	st.client.Close()
	m.log.Debug("client.disconnected", "conn", connID, "total", total)
}

// Send persists content as a new message in roomID and broadcasts it to every
// member. Empty content, unknown connections and rate-limited connections are
// dropped silently. An empty roomID means the sender's current room.
func (m *ManagerService) Send(connID, roomID, content string) {
	content = strings.TrimSpace(content)
	if content == "" {
		metrics.MessagesDropped.WithLabelValues("empty").Inc()
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.clients[connID]
	if !ok {
		metrics.MessagesDropped.WithLabelValues("not_connected").Inc()
		return
	}
	roomID = strings.TrimSpace(roomID)
	if roomID == "" {
		roomID = st.roomID
	} else {
		roomID = SanitizeRoomID(roomID)
	}
	if roomID == "" {
		metrics.MessagesDropped.WithLabelValues("no_room").Inc()
		return
	}
	if !st.limiter.Allow() {
		metrics.MessagesDropped.WithLabelValues("rate_limited").Inc()
		m.log.Debug("message.rate_limited", "conn", connID, "room", roomID)
		return
	}
	m.enqueueLocked(roomID, groupOp{kind: opSend, connID: connID, client: st.client, content: content})
}

// RoomOf reports the room connID is currently in.
func (m *ManagerService) RoomOf(connID string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.clients[connID]
	if !ok || st.roomID == "" {
		return "", false
	}
	return st.roomID, true
}

// ConnectionCount returns the number of registered connections.
func (m *ManagerService) ConnectionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.clients)
}

// Shutdown stops every room worker and closes every connection.
func (m *ManagerService) Shutdown(ctx context.Context) error {
	m.cancel()

	m.mu.Lock()
	clients := make([]Client, 0, len(m.clients))
	for id, st := range m.clients {
		clients = append(clients, st.client)
		delete(m.clients, id)
	}
	m.mu.Unlock()

	for _, c := range clients {
		c.Close()
		metrics.ActiveConnections.Dec()
	}
	m.log.Info("hub.shutdown", "closed", len(clients))
	return ctx.Err()
}

// rollbackJoin clears connID's membership if it still points at roomID.
func (m *ManagerService) rollbackJoin(connID, roomID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if st, ok := m.clients[connID]; ok && st.roomID == roomID {
		st.roomID = ""
	}
}
