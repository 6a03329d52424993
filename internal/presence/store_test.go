package presence

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
)

// newTestStore connects to a local Redis instance and cleans up test keys.
// Tests using it are skipped when Redis is not reachable.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not available: %v", err)
	}
	cleanup := func() {
		iter := client.Scan(ctx, 0, KeyPrefix+"test_*", 100).Iterator()
		for iter.Next(ctx) {
			client.Del(ctx, iter.Val())
		}
	}
	cleanup()
	t.Cleanup(func() {
		cleanup()
		client.Close()
	})
	return NewStore(client, "test-server")
}

func TestPresence_OnlineLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	online, err := store.IsOnline(ctx, "test_alice")
	if err != nil {
		t.Fatalf("IsOnline() error: %v", err)
	}
	if online {
		t.Fatal("unknown user must not be online")
	}

	if err := store.MarkOnline(ctx, "test_alice"); err != nil {
		t.Fatalf("MarkOnline() error: %v", err)
	}
	online, err = store.IsOnline(ctx, "test_alice")
	if err != nil || !online {
		t.Fatalf("IsOnline() = (%v, %v), want online", online, err)
	}

	if err := store.Refresh(ctx, "test_alice"); err != nil {
		t.Fatalf("Refresh() error: %v", err)
	}

	if err := store.MarkOffline(ctx, "test_alice"); err != nil {
		t.Fatalf("MarkOffline() error: %v", err)
	}
	online, err = store.IsOnline(ctx, "test_alice")
	if err != nil || online {
		t.Fatalf("IsOnline() after MarkOffline = (%v, %v), want offline", online, err)
	}
}

func TestPresence_OnlineSet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.MarkOnline(ctx, "test_bob"); err != nil {
		t.Fatalf("MarkOnline() error: %v", err)
	}

	set, err := store.OnlineSet(ctx, []string{"test_bob", "test_carol"})
	if err != nil {
		t.Fatalf("OnlineSet() error: %v", err)
	}
	if !set["test_bob"] || set["test_carol"] {
		t.Errorf("OnlineSet() = %v, want bob online, carol offline", set)
	}

	set, err = store.OnlineSet(ctx, nil)
	if err != nil || len(set) != 0 {
		t.Errorf("OnlineSet(nil) = (%v, %v), want empty", set, err)
	}
}
