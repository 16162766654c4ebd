package store

import (
	"context"
	"errors"
	"time"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

// StrokeStore 笔画与房间的持久化操作。写路径都在事务里，失败整体回滚。
type StrokeStore struct {
	db *gorm.DB
}

func NewStrokeStore(db *gorm.DB) *StrokeStore {
	return &StrokeStore{db: db}
}

// CreateRoomIfAbsent 惰性建房。并发创建撞上唯一键冲突(1062)视为成功。
func (s *StrokeStore) CreateRoomIfAbsent(ctx context.Context, roomID string) error {
	room := Room{ID: roomID, LastActive: time.Now().UTC()}
	err := s.db.WithContext(ctx).Create(&room).Error
	if err != nil {
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			return nil
		}
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil
		}
		return err
	}
	return nil
}

// AppendStroke 落库一条笔画并刷新房间活跃时间，同一事务提交。
func (s *StrokeStore) AppendStroke(ctx context.Context, roomID, payload string) (uint, error) {
	rec := StrokeRecord{RoomID: roomID, Data: payload}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&rec).Error; err != nil {
			return err
		}
		return tx.Model(&Room{}).Where("id = ?", roomID).
			Update("last_active", time.Now().UTC()).Error
	})
	if err != nil {
		return 0, err
	}
	return rec.ID, nil
}

// ListStrokes 按创建顺序返回房间全部笔画。
func (s *StrokeStore) ListStrokes(ctx context.Context, roomID string) ([]StrokeRecord, error) {
	var records []StrokeRecord
	err := s.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("id asc").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

// ListStrokePayloads 只取序列化载荷，供缓存回源使用。
func (s *StrokeStore) ListStrokePayloads(ctx context.Context, roomID string) ([]string, error) {
	records, err := s.ListStrokes(ctx, roomID)
	if err != nil {
		return nil, err
	}
	payloads := make([]string, len(records))
	for i, r := range records {
		payloads[i] = r.Data
	}
	return payloads, nil
}

// DeleteAllStrokes 批量删除房间全部笔画，失败回滚。房间本身保留。
func (s *StrokeStore) DeleteAllStrokes(ctx context.Context, roomID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Where("room_id = ?", roomID).Delete(&StrokeRecord{}).Error
	})
}
