package board

import (
	"context"
	"encoding/json"
	"time"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog/log"
)

// StrokeStore 持久层接口，实现在 store 包。
type StrokeStore interface {
	CreateRoomIfAbsent(ctx context.Context, roomID string) error
	AppendStroke(ctx context.Context, roomID, payload string) (uint, error)
	DeleteAllStrokes(ctx context.Context, roomID string) error
}

// BoardCache 笔画缓存接口，实现在 cache 包。
type BoardCache interface {
	GetDrawings(ctx context.Context, roomID string) ([]json.RawMessage, error)
	Append(ctx context.Context, roomID string, path json.RawMessage) error
	Invalidate(ctx context.Context, roomID string) error
}

// Outcome 区分三种结局：权威成功、降级成功（缓存步骤失败但已落库）、
// 硬失败（数据库写入失败，已回滚）。调用方据此决定是否广播。
type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeDegraded
	OutcomeFailed
)

type Result struct {
	Outcome  Outcome
	StrokeID uint
	Err      error
}

func (r Result) Broadcastable() bool { return r.Outcome != OutcomeFailed }

// Service 把持久层、笔画缓存和事件发布串起来。
type Service struct {
	store  StrokeStore
	boards BoardCache

	kafka sarama.SyncProducer
	topic string
}

func NewService(store StrokeStore, boards BoardCache, kafka sarama.SyncProducer, topic string) *Service {
	return &Service{store: store, boards: boards, kafka: kafka, topic: topic}
}

// EnsureRoom 首次引用时建房。
func (s *Service) EnsureRoom(ctx context.Context, roomID string) error {
	return s.store.CreateRoomIfAbsent(ctx, roomID)
}

// AppendStroke 先落库（可见性之前先保证持久性），再尽力更新缓存。
// 数据库失败返回 Failed，调用方不得广播；缓存失败只降级，
// 数据库仍是权威，下次未命中自愈。
func (s *Service) AppendStroke(ctx context.Context, roomID string, path json.RawMessage) Result {
	id, err := s.store.AppendStroke(ctx, roomID, string(path))
	if err != nil {
		log.Error().Err(err).Str("room", roomID).Msg("stroke persist failed, rolled back")
		return Result{Outcome: OutcomeFailed, Err: err}
	}

	res := Result{Outcome: OutcomeOK, StrokeID: id}
	if err := s.boards.Append(ctx, roomID, path); err != nil {
		log.Error().Err(err).Str("room", roomID).Msg("drawing cache update failed, store remains authoritative")
		res.Outcome = OutcomeDegraded
		res.Err = err
	}

	s.publish(RoomEvent{EventType: "STROKE_APPENDED", RoomID: roomID, StrokeID: id, Path: path})
	return res
}

// RoomDrawings 缓存优先的读路径。不可恢复的失败返回空列表加错误。
func (s *Service) RoomDrawings(ctx context.Context, roomID string) ([]json.RawMessage, error) {
	drawings, err := s.boards.GetDrawings(ctx, roomID)
	if err != nil {
		return []json.RawMessage{}, err
	}
	if drawings == nil {
		drawings = []json.RawMessage{}
	}
	return drawings, nil
}

// ClearBoard 缓存删除与数据库删除是两个独立的 best-effort 操作：
// 缓存删不掉也无妨，权威数据已清空，下次回源自然为空。
// 数据库删除失败回滚并返回 Failed。
func (s *Service) ClearBoard(ctx context.Context, roomID string) Result {
	res := Result{Outcome: OutcomeOK}
	if err := s.boards.Invalidate(ctx, roomID); err != nil {
		log.Error().Err(err).Str("room", roomID).Msg("drawing cache invalidation failed")
		res.Outcome = OutcomeDegraded
		res.Err = err
	}
	if err := s.store.DeleteAllStrokes(ctx, roomID); err != nil {
		log.Error().Err(err).Str("room", roomID).Msg("stroke delete failed, rolled back")
		return Result{Outcome: OutcomeFailed, Err: err}
	}

	s.publish(RoomEvent{EventType: "BOARD_CLEARED", RoomID: roomID})
	return res
}

// publish 异步发 Kafka，不阻塞主流程。producer 为空时直接跳过。
func (s *Service) publish(evt RoomEvent) {
	if s.kafka == nil || s.topic == "" {
		return
	}
	evt.OccurredAt = time.Now().UTC()
	go func() {
		b, err := json.Marshal(evt)
		if err != nil {
			return
		}
		msg := &sarama.ProducerMessage{
			Topic: s.topic,
			Key:   sarama.StringEncoder(evt.RoomID),
			Value: sarama.ByteEncoder(b),
		}
		if _, _, err := s.kafka.SendMessage(msg); err != nil {
			log.Warn().Err(err).Str("room", evt.RoomID).Str("event", evt.EventType).Msg("kafka publish failed")
		}
	}()
}
