package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	redis "github.com/redis/go-redis/v9"
)

func testClient(t *testing.T) (*Client, *redis.Client) {
	t.Helper()
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:6379"})
	// 若 Redis 未启动则跳过
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Skipf("skip: redis not available: %v", err)
	}
	return NewClientFromRedis(rdb), rdb
}

func TestPresenceRecordAndList(t *testing.T) {
	client, rdb := testClient(t)
	ctx := context.Background()
	room := "presence-test-1"
	defer rdb.Del(ctx, presenceKey(room))

	tracker := NewPresenceTracker(client)
	if err := tracker.Record(ctx, room, "p1", PresenceRecord{Name: "alice", JoinedAt: time.Now().UTC()}); err != nil {
		t.Fatalf("Record error: %v", err)
	}
	if err := tracker.Record(ctx, room, "p2", PresenceRecord{Name: "bob", JoinedAt: time.Now().UTC()}); err != nil {
		t.Fatalf("Record error: %v", err)
	}

	active, err := tracker.ListActive(ctx, room)
	if err != nil {
		t.Fatalf("ListActive error: %v", err)
	}
	if len(active) != 2 {
		t.Fatalf("len(active) = %d, want 2", len(active))
	}
	if active["p1"].Name != "alice" {
		t.Errorf("p1 name = %q, want alice", active["p1"].Name)
	}
	if active["p1"].LastSeen.IsZero() {
		t.Error("Record did not stamp last_seen")
	}

	ttl := rdb.TTL(ctx, presenceKey(room)).Val()
	if ttl <= 0 || ttl > PresenceTTL {
		t.Errorf("presence hash TTL = %v, want (0, %v]", ttl, PresenceTTL)
	}
}

func TestPresenceCleanupPurgesStale(t *testing.T) {
	client, rdb := testClient(t)
	ctx := context.Background()
	room := "presence-test-2"
	key := presenceKey(room)
	defer rdb.Del(ctx, key)

	tracker := NewPresenceTracker(client)
	if err := tracker.Record(ctx, room, "fresh", PresenceRecord{Name: "alice"}); err != nil {
		t.Fatalf("Record error: %v", err)
	}

	// 直接写入一条早已超时的记录
	stale, _ := json.Marshal(PresenceRecord{
		Name:     "ghost",
		LastSeen: time.Now().UTC().Add(-2 * PresenceTTL),
	})
	if err := rdb.HSet(ctx, key, "stale", stale).Err(); err != nil {
		t.Fatalf("HSet error: %v", err)
	}
	// 以及一条缺失 last_seen 的旧格式记录：按最早时间处理，必须清掉
	if err := rdb.HSet(ctx, key, "legacy", `{"user_name":"old"}`).Err(); err != nil {
		t.Fatalf("HSet error: %v", err)
	}

	if err := tracker.Cleanup(ctx, room); err != nil {
		t.Fatalf("Cleanup error: %v", err)
	}
	active, err := tracker.ListActive(ctx, room)
	if err != nil {
		t.Fatalf("ListActive error: %v", err)
	}
	if _, ok := active["stale"]; ok {
		t.Error("stale record survived cleanup")
	}
	if _, ok := active["legacy"]; ok {
		t.Error("legacy record without last_seen survived cleanup")
	}
	if _, ok := active["fresh"]; !ok {
		t.Error("fresh record was purged")
	}
}

func TestPresenceListSkipsMalformed(t *testing.T) {
	client, rdb := testClient(t)
	ctx := context.Background()
	room := "presence-test-3"
	key := presenceKey(room)
	defer rdb.Del(ctx, key)

	tracker := NewPresenceTracker(client)
	if err := tracker.Record(ctx, room, "ok", PresenceRecord{Name: "alice"}); err != nil {
		t.Fatalf("Record error: %v", err)
	}
	if err := rdb.HSet(ctx, key, "bad", "{not json").Err(); err != nil {
		t.Fatalf("HSet error: %v", err)
	}

	active, err := tracker.ListActive(ctx, room)
	if err != nil {
		t.Fatalf("ListActive error: %v", err)
	}
	if len(active) != 1 {
		t.Fatalf("len(active) = %d, want 1", len(active))
	}
	if _, ok := active["bad"]; ok {
		t.Error("malformed record returned to reader")
	}
}

func TestPresenceRemove(t *testing.T) {
	client, rdb := testClient(t)
	ctx := context.Background()
	room := "presence-test-4"
	defer rdb.Del(ctx, presenceKey(room))

	tracker := NewPresenceTracker(client)
	if err := tracker.Record(ctx, room, "p1", PresenceRecord{Name: "alice"}); err != nil {
		t.Fatalf("Record error: %v", err)
	}
	if err := tracker.Remove(ctx, room, "p1"); err != nil {
		t.Fatalf("Remove error: %v", err)
	}
	active, err := tracker.ListActive(ctx, room)
	if err != nil {
		t.Fatalf("ListActive error: %v", err)
	}
	if len(active) != 0 {
		t.Errorf("len(active) = %d after remove, want 0", len(active))
	}
}
