package cache

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// CursorRecord 最近一次光标位置。TTL 只有 2 秒：停止移动的光标自动消失，
// 不需要显式的离开信号。
type CursorRecord struct {
	Name      string    `json:"user_name"`
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
	Timestamp time.Time `json:"timestamp"`
}

type CursorBroadcaster struct {
	client *Client
}

func NewCursorBroadcaster(client *Client) *CursorBroadcaster {
	return &CursorBroadcaster{client: client}
}

// Set 写入光标位置。纯环境数据：redis 不可达时整个写入直接跳过，
// 任何失败都不值得让调用方出错。
func (c *CursorBroadcaster) Set(ctx context.Context, roomID, participantID string, rec CursorRecord) {
	if !c.client.Healthy(ctx) {
		log.Warn().Str("room", roomID).Msg("redis unavailable, skipping cursor write")
		return
	}
	rec.Timestamp = time.Now().UTC()
	blob, err := json.Marshal(rec)
	if err != nil {
		return
	}
	if err := c.client.SetEX(ctx, cursorKey(roomID, participantID), blob, CursorTTL); err != nil {
		log.Warn().Err(err).Str("room", roomID).Msg("cursor write failed")
	}
}

// List 扫描房间内全部光标键，返回 participantId→位置，坏条目跳过。
func (c *CursorBroadcaster) List(ctx context.Context, roomID string) (map[string]CursorRecord, error) {
	keys, err := c.client.ScanKeys(ctx, cursorPattern(roomID))
	if err != nil {
		return nil, err
	}
	out := make(map[string]CursorRecord, len(keys))
	for _, key := range keys {
		data, hit, err := c.client.Get(ctx, key)
		if err != nil || !hit {
			continue
		}
		var rec CursorRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			continue
		}
		// 键形如 board:cursor:<room>:<participant>:v<ver>
		parts := strings.Split(key, ":")
		if len(parts) < 2 {
			continue
		}
		out[parts[len(parts)-2]] = rec
	}
	return out, nil
}
