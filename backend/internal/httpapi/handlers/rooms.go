package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"whiteboard/backend/internal/board"
	"whiteboard/backend/internal/cache"
)

// GetRoomDrawings 缓存优先读取房间笔画。不可恢复的失败返回空列表加
// error 字段，而不是 5xx：前端拿到空画板继续工作。
func GetRoomDrawings(svc *board.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		roomID := c.Param("id")
		ctx := c.Request.Context()

		if err := svc.EnsureRoom(ctx, roomID); err != nil {
			log.Error().Err(err).Str("room", roomID).Msg("ensure room failed")
		}
		drawings, err := svc.RoomDrawings(ctx, roomID)
		if err != nil {
			log.Error().Err(err).Str("room", roomID).Msg("failed to retrieve drawings")
			c.JSON(http.StatusOK, gin.H{"drawings": drawings, "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"drawings": drawings})
	}
}

// GetRoomState 返回房间的派生状态、在线成员与活动光标。
// 三块数据各自独立失败：拿到多少给多少。
func GetRoomState(states *cache.RoomStateCache, presence *cache.PresenceTracker, cursors *cache.CursorBroadcaster) gin.HandlerFunc {
	return func(c *gin.Context) {
		roomID := c.Param("id")
		ctx := c.Request.Context()

		resp := gin.H{}
		if state, ok, err := states.Get(ctx, roomID); err != nil {
			log.Warn().Err(err).Str("room", roomID).Msg("room state read failed")
		} else if ok {
			resp["state"] = state
		}
		if users, err := presence.ListActive(ctx, roomID); err != nil {
			log.Warn().Err(err).Str("room", roomID).Msg("presence read failed")
		} else {
			resp["users"] = users
		}
		if positions, err := cursors.List(ctx, roomID); err != nil {
			log.Warn().Err(err).Str("room", roomID).Msg("cursor read failed")
		} else {
			resp["cursors"] = positions
		}
		c.JSON(http.StatusOK, resp)
	}
}

// Health 健康探针：redis 经过带重试的 ping，全挂才降级。
func Health(client *cache.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		healthy := client.Healthy(c.Request.Context())
		status := "healthy"
		redisState := "connected"
		code := http.StatusOK
		if !healthy {
			status = "degraded"
			redisState = "disconnected"
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{
			"status":    status,
			"redis":     redisState,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	}
}
