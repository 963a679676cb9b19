package chathub

import (
	"context"
	"errors"

	"roomchat/backend/internal/metrics"
	"roomchat/backend/internal/models"
	"roomchat/backend/internal/storage"
)

type opKind int

const (
	opJoin opKind = iota
	opLeave
	opSend
)

type groupOp struct {
	kind    opKind
	connID  string
	client  Client
	content string
}

// roomGroup is the broadcast group of one room. A single worker goroutine
// applies its queued ops in order, which is what keeps every member's view of
// the room's message order identical.
type roomGroup struct {
	id    string
	queue []groupOp     // guarded by ManagerService.mu
	wake  chan struct{} // capacity 1

	members map[string]Client // owned by the worker goroutine
}

// enqueueLocked appends op to roomID's group, starting a worker if the room
// has none. Caller must hold m.mu.
func (m *ManagerService) enqueueLocked(roomID string, op groupOp) {
	g, ok := m.groups[roomID]
	if !ok {
		g = &roomGroup{
			id:      roomID,
			wake:    make(chan struct{}, 1),
			members: make(map[string]Client),
		}
		m.groups[roomID] = g
		metrics.ActiveRoomGroups.Inc()
		go m.runGroup(g)
	}
	g.queue = append(g.queue, op)
	select {
	case g.wake <- struct{}{}:
	default:
	}
}

// runGroup drains g's queue. It exits once the queue is empty and the group
// has no members; the exit decision and the removal from m.groups happen under
// m.mu so a concurrent enqueue either lands before the check or starts a new worker.
func (m *ManagerService) runGroup(g *roomGroup) {
	defer metrics.ActiveRoomGroups.Dec()

	for {
		m.mu.Lock()
		for len(g.queue) == 0 {
			if len(g.members) == 0 {
				delete(m.groups, g.id)
				m.mu.Unlock()
				return
			}
			m.mu.Unlock()
			select {
			case <-g.wake:
			case <-m.ctx.Done():
				m.mu.Lock()
				delete(m.groups, g.id)
				m.mu.Unlock()
				return
			}
			m.mu.Lock()
		}
		op := g.queue[0]
		g.queue[0] = groupOp{}
		g.queue = g.queue[1:]
		m.mu.Unlock()

		switch op.kind {
		case opJoin:
			m.applyJoin(g, op)
		case opLeave:
			m.applyLeave(g, op)
		case opSend:
			m.applySend(g, op)
		}
	}
}

func (m *ManagerService) applyJoin(g *roomGroup, op groupOp) {
	ctx := m.ctx
	var room *models.Room
	err := m.withRoom(ctx, g.id, func() error {
		var err error
		if room, err = m.Registry.ResolveOrCreate(ctx, g.id); err != nil {
			return err
		}
		return m.Storage.AddParticipant(ctx, g.id, op.connID)
	})
	if err != nil {
		metrics.StoreErrors.WithLabelValues("join").Inc()
		m.log.Error("room.join.failed", "room", g.id, "conn", op.connID, "err", err)
		m.rollbackJoin(op.connID, g.id)
		op.client.Deliver(models.ErrorEvent(g.id, "failed to join room"))
		if _, ok := g.members[op.connID]; ok {
			m.applyLeave(g, groupOp{kind: opLeave, connID: op.connID})
		}
		return
	}

	_, rejoin := g.members[op.connID]
	g.members[op.connID] = op.client
	if !op.client.Deliver(models.RoomSnapshot(g.id, room.Messages)) {
		if rejoin {
			m.dropMembers(g, []string{op.connID})
			return
		}
		// Never announced, so nobody needs a user-left either.
		delete(g.members, op.connID)
		go m.Disconnect(op.connID)
		return
	}
	if !rejoin {
		m.log.Info("room.joined", "room", g.id, "conn", op.connID, "members", len(g.members))
		m.broadcast(g, models.UserJoined(g.id, op.connID), op.connID)
	}
}

func (m *ManagerService) applyLeave(g *roomGroup, op groupOp) {
	if _, ok := g.members[op.connID]; !ok {
		return
	}
	delete(g.members, op.connID)
	m.log.Info("room.left", "room", g.id, "conn", op.connID, "members", len(g.members))
	m.broadcast(g, models.UserLeft(g.id, op.connID), "")
}

func (m *ManagerService) applySend(g *roomGroup, op groupOp) {
	ctx := m.ctx
	msg := models.Message{
		ID:        newMessageID(),
		Content:   op.content,
		Timestamp: m.now(),
		SenderID:  op.connID,
	}
	err := m.withRoom(ctx, g.id, func() error {
		return m.Storage.AppendMessage(ctx, g.id, msg)
	})
	if err != nil {
		metrics.StoreErrors.WithLabelValues("send").Inc()
		m.log.Error("message.persist.failed", "room", g.id, "conn", op.connID, "err", err)
		op.client.Deliver(models.ErrorEvent(g.id, "failed to send message"))
		return
	}

	metrics.MessagesSent.Inc()
	m.broadcast(g, models.NewMessageEvent(g.id, msg), "")
}

// withRoom runs fn and, if the room vanished underneath it (swept), re-creates
// the room through the registry and runs fn once more.
func (m *ManagerService) withRoom(ctx context.Context, roomID string, fn func() error) error {
	err := fn()
	if !errors.Is(err, storage.ErrRoomNotFound) {
		return err
	}
	m.log.Warn("room.recreated", "room", roomID)
	if _, err := m.Registry.ResolveOrCreate(ctx, roomID); err != nil {
		return err
	}
	return fn()
}

// broadcast delivers ev to every member except the one with id except.
// Members whose buffer is full are dropped and announced as having left.
func (m *ManagerService) broadcast(g *roomGroup, ev models.ServerEvent, except string) {
	var failed []string
	for id, c := range g.members {
		if id == except {
			continue
		}
		if !c.Deliver(ev) {
			failed = append(failed, id)
		}
	}
	m.dropMembers(g, failed)
}

func (m *ManagerService) dropMembers(g *roomGroup, ids []string) {
	for len(ids) > 0 {
		for _, id := range ids {
			delete(g.members, id)
			m.log.Warn("client.dropped", "room", g.id, "conn", id)
			go m.Disconnect(id)
		}
		var next []string
		for _, id := range ids {
			left := models.UserLeft(g.id, id)
			for other, c := range g.members {
				if !c.Deliver(left) {
					next = append(next, other)
				}
			}
		}
		ids = dedupe(next, g.members)
	}
}

// dedupe keeps the ids that are still members, once each.
func dedupe(ids []string, members map[string]Client) []string {
	seen := make(map[string]struct{}, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if _, ok := members[id]; !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
