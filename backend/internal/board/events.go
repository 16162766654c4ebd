package board

import (
	"encoding/json"
	"time"
)

// RoomEvent 发往 Kafka 的房间事件，key 取 roomId 以便按房间分区。
type RoomEvent struct {
	EventType  string          `json:"eventType"` // "STROKE_APPENDED" | "BOARD_CLEARED"
	RoomID     string          `json:"roomId"`
	StrokeID   uint            `json:"strokeId,omitempty"`
	Path       json.RawMessage `json:"path,omitempty"`
	OccurredAt time.Time       `json:"occurredAt"`
}
