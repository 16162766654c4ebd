package store

import "time"

// Room 首次被引用时惰性创建，之后只更新 last_active，从不删除。
type Room struct {
	ID         string    `gorm:"primaryKey;size:64" json:"id"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	LastActive time.Time `json:"last_active"`
}

// StrokeRecord 一条落库的笔画。data 对本层不透明，整块存取。
// 只追加：draw 创建，clear 批量删除，从不修改。
type StrokeRecord struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	RoomID    string    `gorm:"size:64;not null;index:idx_room_created" json:"room_id"`
	Data      string    `gorm:"type:text;not null" json:"data"`
	CreatedAt time.Time `gorm:"autoCreateTime;index:idx_room_created" json:"created_at"`
}

func (Room) TableName() string         { return "rooms" }
func (StrokeRecord) TableName() string { return "stroke_records" }
