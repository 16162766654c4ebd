package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
)

// PresenceRecord 某房间内一个参与者的在线记录。
// 这是跨进程的 best-effort 视图，供展示使用；广播名单以 hub 的
// 内存成员表为准。
type PresenceRecord struct {
	Name     string    `json:"user_name"`
	JoinedAt time.Time `json:"joined_at"`
	LastSeen time.Time `json:"last_seen"`
}

// PresenceTracker 每个房间一个 hash，field 为 participantId，
// 整个 hash 带 PresenceTTL。
type PresenceTracker struct {
	client *Client
}

func NewPresenceTracker(client *Client) *PresenceTracker {
	return &PresenceTracker{client: client}
}

// Record 写入一条在线记录并刷新 hash TTL（pipeline 原子提交），
// 随后顺带清理过期成员。清理失败只记日志。
func (p *PresenceTracker) Record(ctx context.Context, roomID, participantID string, rec PresenceRecord) error {
	rec.LastSeen = time.Now().UTC()
	blob, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if err := p.client.HSetWithExpire(ctx, presenceKey(roomID), participantID, blob, PresenceTTL); err != nil {
		return err
	}
	if err := p.Cleanup(ctx, roomID); err != nil {
		log.Warn().Err(err).Str("room", roomID).Msg("presence cleanup failed")
	}
	return nil
}

// ListActive 返回房间内全部在线记录，无法解析的条目跳过。
func (p *PresenceTracker) ListActive(ctx context.Context, roomID string) (map[string]PresenceRecord, error) {
	raw, err := p.client.HGetAll(ctx, presenceKey(roomID))
	if err != nil {
		return nil, err
	}
	out := make(map[string]PresenceRecord, len(raw))
	for id, v := range raw {
		var rec PresenceRecord
		if err := json.Unmarshal([]byte(v), &rec); err != nil {
			log.Warn().Str("room", roomID).Str("participant", id).Msg("skipping malformed presence record")
			continue
		}
		out[id] = rec
	}
	return out, nil
}

// Cleanup 一次性计算 now，批量删除超时成员。
// 解析失败或缺失 last_seen 的记录按最早时间处理，直接清掉。
func (p *PresenceTracker) Cleanup(ctx context.Context, roomID string) error {
	key := presenceKey(roomID)
	raw, err := p.client.HGetAll(ctx, key)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	var stale []string
	for id, v := range raw {
		var rec PresenceRecord
		if err := json.Unmarshal([]byte(v), &rec); err != nil {
			stale = append(stale, id)
			continue
		}
		// 零值 last_seen 视为最早时间，同样过期
		if now.Sub(rec.LastSeen) > PresenceTTL {
			stale = append(stale, id)
		}
	}
	return p.client.HDel(ctx, key, stale...)
}

// Remove 显式断开时移除记录。
func (p *PresenceTracker) Remove(ctx context.Context, roomID, participantID string) error {
	return p.client.HDel(ctx, presenceKey(roomID), participantID)
}
