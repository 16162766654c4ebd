package cache

import "time"

// 各类数据的 TTL 策略。
// 笔画列表有数据库兜底，1 小时即可；房间状态与访问统计是纯派生数据，
// 放宽到 24 小时；presence 是活性信号，5 分钟；光标 2 秒内不刷新即视为消失。
const (
	DrawingTTL       = time.Hour
	RoomStateTTL     = 24 * time.Hour
	PresenceTTL      = 5 * time.Minute
	CursorTTL        = 2 * time.Second
	AccessPatternTTL = 24 * time.Hour
)

// 重试与连接参数。
const (
	MaxRetries  = 3
	BaseBackoff = 100 * time.Millisecond

	DialTimeout  = 2 * time.Second
	ReadTimeout  = 2 * time.Second
	WriteTimeout = 2 * time.Second
)

// 访问次数超过该阈值的房间在 join 时主动预热笔画缓存。
const PrefetchThreshold = 10
