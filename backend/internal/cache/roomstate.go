package cache

import (
	"context"
	"encoding/json"
	"time"
)

// Viewport 最近一次已知的视口矩形。
type Viewport struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// RoomState 房间的派生状态。纯缓存数据，无数据库兜底：
// 缺失代表"未知"而不是"空"。
type RoomState struct {
	UserCount  int       `json:"user_count"`
	LastUpdate time.Time `json:"last_update"`
	Viewport   *Viewport `json:"viewport,omitempty"`
}

// RoomStateCache 整块覆盖写：每次写入替换完整状态，不做部分合并。
// 并发写互相覆盖是可接受的——这些值只用于展示。
type RoomStateCache struct {
	client *Client
}

func NewRoomStateCache(client *Client) *RoomStateCache {
	return &RoomStateCache{client: client}
}

func (r *RoomStateCache) Set(ctx context.Context, roomID string, state RoomState) error {
	state.LastUpdate = time.Now().UTC()
	blob, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return r.client.SetEX(ctx, roomStateKey(roomID), blob, RoomStateTTL)
}

func (r *RoomStateCache) Get(ctx context.Context, roomID string) (RoomState, bool, error) {
	var state RoomState
	data, hit, err := r.client.Get(ctx, roomStateKey(roomID))
	if err != nil || !hit {
		return state, false, err
	}
	if err := json.Unmarshal(data, &state); err != nil {
		return RoomState{}, false, nil
	}
	return state, true, nil
}
