package cache

import "fmt"

// 键语义：
// - drawingKey(roomID):    房间有序笔画列表 JSON（String，带 TTL）
// - roomStateKey(roomID):  房间派生状态 JSON（String，带 TTL）
// - presenceKey(roomID):   房间内 participantId→presence JSON 映射（Hash，整体带 TTL）
// - cursorKey(roomID,pid): 成员光标 JSON（String，短 TTL）
// - accessKey(roomID):     访问频次统计 JSON（String，带 TTL）
//
// 每个键内嵌 schema 版本号：缓存格式升级后旧键自然过期，无需手动清空。

const Version = "1.1"

const (
	keyDrawingFmt   = "board:drawing:%s:v%s"
	keyRoomStateFmt = "board:state:%s:v%s"
	keyPresenceFmt  = "board:presence:%s:v%s"
	keyCursorFmt    = "board:cursor:%s:%s:v%s"
	keyAccessFmt    = "board:access:%s:v%s"
)

func drawingKey(roomID string) string   { return fmt.Sprintf(keyDrawingFmt, roomID, Version) }
func roomStateKey(roomID string) string { return fmt.Sprintf(keyRoomStateFmt, roomID, Version) }
func presenceKey(roomID string) string  { return fmt.Sprintf(keyPresenceFmt, roomID, Version) }
func accessKey(roomID string) string    { return fmt.Sprintf(keyAccessFmt, roomID, Version) }

func cursorKey(roomID, participantID string) string {
	return fmt.Sprintf(keyCursorFmt, roomID, participantID, Version)
}

// cursorPattern 匹配某房间全部光标键，供 SCAN 使用。
func cursorPattern(roomID string) string {
	return fmt.Sprintf(keyCursorFmt, roomID, "*", Version)
}
