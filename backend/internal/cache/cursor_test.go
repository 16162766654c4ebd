package cache

import (
	"context"
	"testing"
	"time"
)

func TestCursorSetAndList(t *testing.T) {
	client, rdb := testClient(t)
	ctx := context.Background()
	room := "cursor-test-1"
	defer rdb.Del(ctx, cursorKey(room, "p1"), cursorKey(room, "p2"))

	cursors := NewCursorBroadcaster(client)
	cursors.Set(ctx, room, "p1", CursorRecord{Name: "alice", X: 10, Y: 20})
	cursors.Set(ctx, room, "p2", CursorRecord{Name: "bob", X: 1, Y: 2})

	got, err := cursors.List(ctx, room)
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len(got) = %d, want 2", len(got))
	}
	if got["p1"].X != 10 || got["p1"].Y != 20 {
		t.Errorf("p1 position = (%v, %v), want (10, 20)", got["p1"].X, got["p1"].Y)
	}
	if got["p1"].Timestamp.IsZero() {
		t.Error("Set did not stamp timestamp")
	}
}

func TestCursorExpires(t *testing.T) {
	client, rdb := testClient(t)
	ctx := context.Background()
	room := "cursor-test-2"

	cursors := NewCursorBroadcaster(client)
	// 直接写一个将立即过期的光标
	if err := rdb.Set(ctx, cursorKey(room, "gone"), `{"user_name":"x","x":0,"y":0}`, 50*time.Millisecond).Err(); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	time.Sleep(120 * time.Millisecond)

	got, err := cursors.List(ctx, room)
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if _, ok := got["gone"]; ok {
		t.Error("expired cursor still listed")
	}
}

func TestCursorListSkipsMalformed(t *testing.T) {
	client, rdb := testClient(t)
	ctx := context.Background()
	room := "cursor-test-3"
	defer rdb.Del(ctx, cursorKey(room, "bad"), cursorKey(room, "ok"))

	cursors := NewCursorBroadcaster(client)
	cursors.Set(ctx, room, "ok", CursorRecord{Name: "alice", X: 1, Y: 1})
	if err := rdb.Set(ctx, cursorKey(room, "bad"), "{nope", CursorTTL).Err(); err != nil {
		t.Fatalf("Set error: %v", err)
	}

	got, err := cursors.List(ctx, room)
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if _, ok := got["bad"]; ok {
		t.Error("malformed cursor returned to reader")
	}
	if _, ok := got["ok"]; !ok {
		t.Error("valid cursor missing")
	}
}
