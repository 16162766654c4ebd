package cache

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"whiteboard/backend/internal/metrics"
)

// StrokeSource 是笔画数据的权威来源（数据库），缓存未命中时回源。
type StrokeSource interface {
	ListStrokePayloads(ctx context.Context, roomID string) ([]string, error)
}

// DrawingCache 缓存房间的有序笔画列表，read-through/write-through，
// 数据库始终是唯一可信副本。
type DrawingCache struct {
	client *Client
	source StrokeSource
	sf     singleflight.Group
}

func NewDrawingCache(client *Client, source StrokeSource) *DrawingCache {
	return &DrawingCache{client: client, source: source}
}

// GetDrawings 读路径：命中直接返回；未命中按创建顺序回源并回填缓存。
// 缓存故障降级为直读数据库，不向上传播。singleflight 防止同房间并发回源。
func (d *DrawingCache) GetDrawings(ctx context.Context, roomID string) ([]json.RawMessage, error) {
	d.touchAccess(ctx, roomID)

	v, err, _ := d.sf.Do(drawingKey(roomID), func() (interface{}, error) {
		drawings, err := d.load(ctx, roomID)
		if err != nil {
			return nil, err
		}
		return drawings, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]json.RawMessage), nil
}

func (d *DrawingCache) load(ctx context.Context, roomID string) ([]json.RawMessage, error) {
	key := drawingKey(roomID)

	data, hit, err := d.client.Get(ctx, key)
	if err != nil {
		log.Error().Err(err).Str("room", roomID).Msg("drawing cache unavailable, falling back to store")
	}
	if hit {
		var drawings []json.RawMessage
		if err := json.Unmarshal(data, &drawings); err == nil {
			metrics.CacheHitsTotal.Inc()
			return drawings, nil
		}
		// 缓存内容损坏按未命中处理，整体回源覆盖
		log.Error().Str("room", roomID).Msg("corrupt drawing cache entry, repopulating")
	}
	metrics.CacheMissesTotal.Inc()

	drawings, err := d.fetch(ctx, roomID)
	if err != nil {
		return nil, err
	}
	d.populate(ctx, roomID, drawings)
	return drawings, nil
}

// fetch 回源读取全部笔画，逐条反序列化，坏记录跳过并记日志，绝不使整批失败。
func (d *DrawingCache) fetch(ctx context.Context, roomID string) ([]json.RawMessage, error) {
	payloads, err := d.source.ListStrokePayloads(ctx, roomID)
	if err != nil {
		return nil, err
	}
	drawings := make([]json.RawMessage, 0, len(payloads))
	for i, p := range payloads {
		if !json.Valid([]byte(p)) {
			log.Error().Str("room", roomID).Int("index", i).Msg("skipping malformed stroke payload")
			continue
		}
		drawings = append(drawings, json.RawMessage(p))
	}
	return drawings, nil
}

func (d *DrawingCache) populate(ctx context.Context, roomID string, drawings []json.RawMessage) {
	blob, err := json.Marshal(drawings)
	if err != nil {
		log.Error().Err(err).Str("room", roomID).Msg("marshal drawing list failed")
		return
	}
	if err := d.client.SetEX(ctx, drawingKey(roomID), blob, DrawingTTL); err != nil {
		log.Error().Err(err).Str("room", roomID).Msg("populate drawing cache failed")
	}
}

// Append 在缓存命中时把新笔画追加进缓存列表并刷新 TTL。
// 未命中或任何缓存故障只记日志：数据库已落库，下次未命中自愈。
func (d *DrawingCache) Append(ctx context.Context, roomID string, path json.RawMessage) error {
	key := drawingKey(roomID)

	data, hit, err := d.client.Get(ctx, key)
	if err != nil {
		return err
	}
	if !hit {
		return nil
	}
	var drawings []json.RawMessage
	if err := json.Unmarshal(data, &drawings); err != nil {
		// 无法增量合并，整体作废
		log.Error().Str("room", roomID).Msg("corrupt drawing cache entry, invalidating")
		return d.client.Del(ctx, key)
	}
	drawings = append(drawings, path)
	blob, err := json.Marshal(drawings)
	if err != nil {
		return err
	}
	return d.client.SetEX(ctx, key, blob, DrawingTTL)
}

// Invalidate 无条件删除缓存键，clear 事件使用。
func (d *DrawingCache) Invalidate(ctx context.Context, roomID string) error {
	return d.client.Del(ctx, drawingKey(roomID))
}

// Warm 绕过命中判断，直接回源覆盖缓存。预热路径使用。
func (d *DrawingCache) Warm(ctx context.Context, roomID string) (int, error) {
	drawings, err := d.fetch(ctx, roomID)
	if err != nil {
		return 0, err
	}
	blob, err := json.Marshal(drawings)
	if err != nil {
		return 0, err
	}
	if err := d.client.SetEX(ctx, drawingKey(roomID), blob, DrawingTTL); err != nil {
		return 0, err
	}
	return len(drawings), nil
}
