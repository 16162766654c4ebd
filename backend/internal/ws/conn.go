package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"whiteboard/backend/internal/board"
	"whiteboard/backend/internal/cache"
	"whiteboard/backend/internal/metrics"
)

// Deps 协议处理器用到的全部协作方。
type Deps struct {
	Board    *board.Service
	Presence *cache.PresenceTracker
	States   *cache.RoomStateCache
	Cursors  *cache.CursorBroadcaster
	Prefetch *cache.Prefetcher
}

type Conn struct {
	ws   *websocket.Conn
	hub  *Hub
	deps Deps

	// 连接级参与者标识，等价于 socket session id
	id   string
	name string

	send chan OutboundMessage
}

func NewConn(ws *websocket.Conn, hub *Hub, deps Deps) *Conn {
	return &Conn{
		ws:   ws,
		hub:  hub,
		deps: deps,
		id:   uuid.NewString(),
		send: make(chan OutboundMessage, 32),
	}
}

// Enqueue 非阻塞入队，队列满则丢弃该条消息。
func (c *Conn) Enqueue(msg OutboundMessage) {
	select {
	case c.send <- msg:
	default:
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func Serve(hub *Hub, deps Deps) gin.HandlerFunc {
	return func(gc *gin.Context) {
		ws, err := upgrader.Upgrade(gc.Writer, gc.Request, nil)
		if err != nil {
			return
		}
		c := NewConn(ws, hub, deps)
		log.Info().Str("participant", c.id).Msg("client connected")
		metrics.WsConnections.Inc()

		go c.writeLoop()
		c.readLoop(context.Background())
	}
}

func (c *Conn) readLoop(ctx context.Context) {
	defer func() {
		c.disconnect(ctx)
		close(c.send)
		_ = c.ws.Close()
		metrics.WsConnections.Dec()
	}()
	c.ws.SetReadLimit(1 << 20) // 1MB
	_ = c.ws.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(60 * time.Second))
	})
	for {
		var msg ClientMessage
		if err := c.ws.ReadJSON(&msg); err != nil {
			log.Info().Err(err).Str("participant", c.id).Msg("client disconnected")
			return
		}
		c.handleMessage(ctx, msg)
	}
}

func (c *Conn) writeLoop() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			_ = c.ws.WriteJSON(msg)
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage 按事件名分发。处理器之间没有按房间串行化的保证，
// 共享状态的一致性依赖 hub 的锁与数据库的原子追加。
func (c *Conn) handleMessage(ctx context.Context, msg ClientMessage) {
	if msg.Room == "" {
		return
	}
	switch msg.Type {
	case "join":
		c.handleJoin(ctx, msg)
	case "draw":
		c.handleDraw(ctx, msg)
	case "undo":
		c.handleRelay(msg, "undo_update")
	case "redo":
		c.handleRelay(msg, "redo_update")
	case "cursor_move":
		c.handleCursorMove(ctx, msg)
	case "viewport_update":
		c.handleViewportUpdate(ctx, msg)
	case "clear":
		c.handleClear(ctx, msg)
	default:
		log.Debug().Str("type", msg.Type).Msg("ignoring unknown event")
	}
}

// handleJoin 把连接加入内存成员表并刷新各缓存。任何缓存步骤失败都不能
// 阻断广播：退回只带人数的最小 user_joined。
func (c *Conn) handleJoin(ctx context.Context, msg ClientMessage) {
	name := msg.UserName
	if name == "" {
		name = "Anonymous"
	}
	c.name = name

	if err := c.deps.Board.EnsureRoom(ctx, msg.Room); err != nil {
		log.Error().Err(err).Str("room", msg.Room).Msg("ensure room failed")
	}
	count := c.hub.Join(msg.Room, c)
	log.Info().Str("participant", c.id).Str("room", msg.Room).Int("count", count).Msg("joined room")

	cacheOK := true
	if err := c.deps.Presence.Record(ctx, msg.Room, c.id, cache.PresenceRecord{
		Name:     name,
		JoinedAt: time.Now().UTC(),
	}); err != nil {
		log.Error().Err(err).Str("room", msg.Room).Msg("presence record failed")
		cacheOK = false
	}
	if err := c.deps.States.Set(ctx, msg.Room, cache.RoomState{UserCount: count}); err != nil {
		log.Error().Err(err).Str("room", msg.Room).Msg("room state update failed")
		cacheOK = false
	}
	c.deps.Prefetch.MaybePrefetch(ctx, msg.Room)

	if cacheOK {
		if users, err := c.deps.Presence.ListActive(ctx, msg.Room); err == nil {
			c.hub.BroadcastAll(msg.Room, UserJoinedMessage{Type: "user_joined", Count: count, Users: users})
			return
		}
	}
	// 降级：人数来自内存成员表，始终可用
	c.hub.BroadcastAll(msg.Room, UserJoinedMessage{Type: "user_joined", Count: count})
}

// handleDraw 失败时不广播，只给发送者回错误；成功后发送者自身不收回显。
func (c *Conn) handleDraw(ctx context.Context, msg ClientMessage) {
	if len(msg.Path) == 0 {
		return
	}
	res := c.deps.Board.AppendStroke(ctx, msg.Room, msg.Path)
	if !res.Broadcastable() {
		c.Enqueue(ErrorMessage{Type: "error", Message: "Failed to save drawing"})
		return
	}
	c.hub.BroadcastExcept(msg.Room, c, DrawUpdateMessage{Type: "draw_update", Room: msg.Room, Path: msg.Path})
}

// handleRelay undo/redo 是无状态转发：历史完全在各客户端本地。
func (c *Conn) handleRelay(msg ClientMessage, outType string) {
	c.hub.BroadcastExcept(msg.Room, c, ObjectUpdateMessage{Type: outType, Room: msg.Room, ObjectData: msg.ObjectData})
}

func (c *Conn) handleCursorMove(ctx context.Context, msg ClientMessage) {
	name := msg.UserName
	if name == "" {
		name = c.name
	}
	c.deps.Cursors.Set(ctx, msg.Room, c.id, cache.CursorRecord{
		Name: name,
		X:    msg.X,
		Y:    msg.Y,
	})
	c.hub.BroadcastExcept(msg.Room, c, CursorUpdateMessage{
		Type: "cursor_update", Room: msg.Room, UserName: name, X: msg.X, Y: msg.Y,
	})
}

func (c *Conn) handleViewportUpdate(ctx context.Context, msg ClientMessage) {
	if err := c.deps.States.Set(ctx, msg.Room, cache.RoomState{
		UserCount: c.hub.Count(msg.Room),
		Viewport:  msg.Viewport,
	}); err != nil {
		log.Error().Err(err).Str("room", msg.Room).Msg("viewport state update failed")
	}
	c.hub.BroadcastExcept(msg.Room, c, ViewportUpdateMessage{Type: "viewport_update", Room: msg.Room, Viewport: msg.Viewport})
}

// handleClear 数据库删除失败只通知发起者，不广播。
func (c *Conn) handleClear(ctx context.Context, msg ClientMessage) {
	res := c.deps.Board.ClearBoard(ctx, msg.Room)
	if res.Outcome == board.OutcomeFailed {
		c.Enqueue(ErrorMessage{Type: "error", Message: "Failed to clear drawings"})
		return
	}
	c.hub.BroadcastExcept(msg.Room, c, ClearBoardMessage{Type: "clear_board", Room: msg.Room})
}

// disconnect 把连接从所有房间移除并通知剩余成员。
// presence 清理是 best-effort，失败交给 TTL 兜底。
func (c *Conn) disconnect(ctx context.Context) {
	for _, roomID := range c.hub.RoomsOf(c) {
		count, ok := c.hub.Leave(roomID, c)
		if !ok {
			continue
		}
		if err := c.deps.Presence.Remove(ctx, roomID, c.id); err != nil {
			log.Warn().Err(err).Str("room", roomID).Msg("presence remove failed")
		}
		c.hub.BroadcastAll(roomID, UserLeftMessage{Type: "user_left", Count: count})
		log.Info().Str("participant", c.id).Str("room", roomID).Int("count", count).Msg("left room")
	}
}
