package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

func TestTouchAccessCounts(t *testing.T) {
	client, rdb := testClient(t)
	ctx := context.Background()
	room := "prefetch-test-1"
	defer rdb.Del(ctx, drawingKey(room), accessKey(room))

	dc := NewDrawingCache(client, &fakeSource{})
	for i := 0; i < 3; i++ {
		if _, err := dc.GetDrawings(ctx, room); err != nil {
			t.Fatalf("GetDrawings error: %v", err)
		}
		// 命中也要计数
		rdb.Del(ctx, drawingKey(room))
	}

	data, err := rdb.Get(ctx, accessKey(room)).Bytes()
	if err != nil {
		t.Fatalf("Get access pattern: %v", err)
	}
	var pat accessPattern
	if err := json.Unmarshal(data, &pat); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if pat.Count != 3 {
		t.Errorf("access count = %d, want 3", pat.Count)
	}
	if pat.LastAccess.IsZero() {
		t.Error("last_access not stamped")
	}
}

func TestMaybePrefetchBelowThreshold(t *testing.T) {
	client, rdb := testClient(t)
	ctx := context.Background()
	room := "prefetch-test-2"
	defer rdb.Del(ctx, drawingKey(room), accessKey(room))

	src := &fakeSource{payloads: []string{`{"p":1}`}}
	dc := NewDrawingCache(client, src)
	pf := NewPrefetcher(client, dc)

	pat, _ := json.Marshal(accessPattern{Count: PrefetchThreshold, LastAccess: time.Now().UTC()})
	if err := rdb.Set(ctx, accessKey(room), pat, AccessPatternTTL).Err(); err != nil {
		t.Fatalf("Set: %v", err)
	}

	pf.MaybePrefetch(ctx, room)
	if src.calls != 0 {
		t.Errorf("prefetch fired at threshold: source calls = %d, want 0", src.calls)
	}
}

func TestMaybePrefetchAboveThreshold(t *testing.T) {
	client, rdb := testClient(t)
	ctx := context.Background()
	room := "prefetch-test-3"
	defer rdb.Del(ctx, drawingKey(room), accessKey(room))

	src := &fakeSource{payloads: []string{`{"p":1}`, `{"p":2}`}}
	dc := NewDrawingCache(client, src)
	pf := NewPrefetcher(client, dc)

	pat, _ := json.Marshal(accessPattern{Count: PrefetchThreshold + 1, LastAccess: time.Now().UTC()})
	if err := rdb.Set(ctx, accessKey(room), pat, AccessPatternTTL).Err(); err != nil {
		t.Fatalf("Set: %v", err)
	}

	pf.MaybePrefetch(ctx, room)
	if src.calls != 1 {
		t.Fatalf("source calls = %d, want 1", src.calls)
	}
	if rdb.Exists(ctx, drawingKey(room)).Val() != 1 {
		t.Error("prefetch did not warm the drawing cache")
	}
}
