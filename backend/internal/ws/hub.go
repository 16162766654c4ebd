package ws

import (
	"sync"

	"whiteboard/backend/internal/metrics"
)

// Hub 维护每个房间当前连接的内存成员表。这是"现在该广播给谁"的权威名单，
// 与 PresenceTracker（跨进程、TTL 兜底的展示视图）刻意分离。
type Hub struct {
	mu sync.RWMutex
	// roomID -> set of connections
	rooms map[string]map[*Conn]struct{}
}

func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[*Conn]struct{})}
}

// Join 将连接加入房间，返回加入后的成员数。
func (h *Hub) Join(roomID string, c *Conn) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[*Conn]struct{})
	}
	h.rooms[roomID][c] = struct{}{}
	return len(h.rooms[roomID])
}

// Leave 将连接移出房间，返回剩余成员数与该连接此前是否在房间内。
// 空房间从表中删除；缓存与数据库里的条目各自按 TTL 或持久策略独立存续。
func (h *Hub) Leave(roomID string, c *Conn) (int, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns, ok := h.rooms[roomID]
	if !ok {
		return 0, false
	}
	if _, member := conns[c]; !member {
		return len(conns), false
	}
	delete(conns, c)
	n := len(conns)
	if n == 0 {
		delete(h.rooms, roomID)
	}
	return n, true
}

// Count 返回房间当前成员数。
func (h *Hub) Count(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

// RoomsOf 返回包含该连接的全部房间，disconnect 清扫用。
func (h *Hub) RoomsOf(c *Conn) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var out []string
	for roomID, conns := range h.rooms {
		if _, ok := conns[c]; ok {
			out = append(out, roomID)
		}
	}
	return out
}

// BroadcastAll 发给房间内所有连接，包括发起者。
func (h *Hub) BroadcastAll(roomID string, msg OutboundMessage) {
	h.broadcast(roomID, nil, msg)
}

// BroadcastExcept 发给房间内除 exclude 外的所有连接。
func (h *Hub) BroadcastExcept(roomID string, exclude *Conn, msg OutboundMessage) {
	h.broadcast(roomID, exclude, msg)
}

func (h *Hub) broadcast(roomID string, exclude *Conn, msg OutboundMessage) {
	h.mu.RLock()
	conns := make([]*Conn, 0, len(h.rooms[roomID]))
	for c := range h.rooms[roomID] {
		if c != exclude {
			conns = append(conns, c)
		}
	}
	h.mu.RUnlock()

	metrics.BroadcastsTotal.WithLabelValues(msg.MessageType()).Inc()
	for _, c := range conns {
		c.Enqueue(msg)
	}
}
