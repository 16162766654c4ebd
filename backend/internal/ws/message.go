package ws

import (
	"encoding/json"

	"whiteboard/backend/internal/cache"
)

type ClientMessage struct {
	Type       string          `json:"type"`
	Room       string          `json:"room"`
	UserName   string          `json:"userName,omitempty"`
	Path       json.RawMessage `json:"path,omitempty"`
	ObjectData json.RawMessage `json:"objectData,omitempty"`
	X          float64         `json:"x,omitempty"`
	Y          float64         `json:"y,omitempty"`
	Viewport   *cache.Viewport `json:"viewport,omitempty"`
}

// 出站消息接口，各事件一个结构体。
type OutboundMessage interface {
	MessageType() string
}

type UserJoinedMessage struct {
	Type  string                          `json:"type"`
	Count int                             `json:"count"`
	Users map[string]cache.PresenceRecord `json:"users,omitempty"`
}

type UserLeftMessage struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

type DrawUpdateMessage struct {
	Type string          `json:"type"`
	Room string          `json:"room"`
	Path json.RawMessage `json:"path"`
}

// ObjectUpdateMessage 承载 undo_update / redo_update：服务端只做转发，
// 不重建也不校验各客户端的本地历史。
type ObjectUpdateMessage struct {
	Type       string          `json:"type"`
	Room       string          `json:"room"`
	ObjectData json.RawMessage `json:"objectData,omitempty"`
}

type CursorUpdateMessage struct {
	Type     string  `json:"type"`
	Room     string  `json:"room"`
	UserName string  `json:"userName"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
}

type ViewportUpdateMessage struct {
	Type     string          `json:"type"`
	Room     string          `json:"room"`
	Viewport *cache.Viewport `json:"viewport,omitempty"`
}

type ClearBoardMessage struct {
	Type string `json:"type"`
	Room string `json:"room"`
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (m UserJoinedMessage) MessageType() string     { return m.Type }
func (m UserLeftMessage) MessageType() string       { return m.Type }
func (m DrawUpdateMessage) MessageType() string     { return m.Type }
func (m ObjectUpdateMessage) MessageType() string   { return m.Type }
func (m CursorUpdateMessage) MessageType() string   { return m.Type }
func (m ViewportUpdateMessage) MessageType() string { return m.Type }
func (m ClearBoardMessage) MessageType() string     { return m.Type }
func (m ErrorMessage) MessageType() string          { return m.Type }
