package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
)

// accessPattern 是纯启发式信号：丢了只损失一次预热机会，不影响正确性。
type accessPattern struct {
	LastAccess time.Time `json:"last_access"`
	Count      int       `json:"access_count"`
}

// touchAccess 记录一次读路径访问：计数加一并刷新 24 小时 TTL，失败只记日志。
func (d *DrawingCache) touchAccess(ctx context.Context, roomID string) {
	key := accessKey(roomID)

	var pat accessPattern
	if data, hit, err := d.client.Get(ctx, key); err != nil {
		log.Warn().Err(err).Str("room", roomID).Msg("failed to read access pattern")
		return
	} else if hit {
		if err := json.Unmarshal(data, &pat); err != nil {
			pat = accessPattern{}
		}
	}
	pat.Count++
	pat.LastAccess = time.Now().UTC()

	blob, err := json.Marshal(pat)
	if err != nil {
		return
	}
	if err := d.client.SetEX(ctx, key, blob, AccessPatternTTL); err != nil {
		log.Warn().Err(err).Str("room", roomID).Msg("failed to update access pattern")
	}
}

// Prefetcher 在 join 路径上机会性地预热高频房间的笔画缓存。
type Prefetcher struct {
	client *Client
	boards *DrawingCache
}

func NewPrefetcher(client *Client, boards *DrawingCache) *Prefetcher {
	return &Prefetcher{client: client, boards: boards}
}

// MaybePrefetch 访问次数超过阈值时重新回源并覆盖缓存，即使缓存仍然有效。
// 纯优化路径：任何失败记日志后忽略。
func (p *Prefetcher) MaybePrefetch(ctx context.Context, roomID string) {
	data, hit, err := p.client.Get(ctx, accessKey(roomID))
	if err != nil || !hit {
		if err != nil {
			log.Warn().Err(err).Str("room", roomID).Msg("failed to read access pattern for prefetch")
		}
		return
	}
	var pat accessPattern
	if err := json.Unmarshal(data, &pat); err != nil {
		return
	}
	if pat.Count <= PrefetchThreshold {
		return
	}

	n, err := p.boards.Warm(ctx, roomID)
	if err != nil {
		log.Warn().Err(err).Str("room", roomID).Msg("prefetch failed")
		return
	}
	log.Info().Str("room", roomID).Int("strokes", n).Msg("prefetched frequently accessed room")
}
