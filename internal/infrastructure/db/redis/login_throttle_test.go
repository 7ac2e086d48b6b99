package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestThrottle(t *testing.T, max int, window time.Duration) (*LoginThrottle, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewLoginThrottle(client, max, window), mr
}

func TestLoginThrottle_BlocksAfterLimit(t *testing.T) {
	th, _ := newTestThrottle(t, 3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		blocked, err := th.Blocked(ctx, "alice@x.com")
		if err != nil {
			t.Fatalf("Blocked: %v", err)
		}
		if blocked {
			t.Fatalf("blocked after %d failures, limit is 3", i)
		}
		if err := th.Fail(ctx, "alice@x.com"); err != nil {
			t.Fatalf("Fail: %v", err)
		}
	}

	blocked, err := th.Blocked(ctx, "alice@x.com")
	if err != nil || !blocked {
		t.Fatalf("expected blocked after limit, got blocked=%v err=%v", blocked, err)
	}

	other, _ := th.Blocked(ctx, "bob@x.com")
	if other {
		t.Fatal("counters must be per key")
	}
}

func TestLoginThrottle_WindowExpires(t *testing.T) {
	th, mr := newTestThrottle(t, 1, time.Minute)
	ctx := context.Background()

	_ = th.Fail(ctx, "alice@x.com")
	if blocked, _ := th.Blocked(ctx, "alice@x.com"); !blocked {
		t.Fatal("expected blocked")
	}

	mr.FastForward(time.Minute + time.Second)
	if blocked, _ := th.Blocked(ctx, "alice@x.com"); blocked {
		t.Fatal("expected window to expire")
	}
}

func TestLoginThrottle_WindowNotExtendedByLaterFailures(t *testing.T) {
	th, mr := newTestThrottle(t, 10, time.Minute)
	ctx := context.Background()

	_ = th.Fail(ctx, "alice@x.com")
	mr.FastForward(40 * time.Second)
	_ = th.Fail(ctx, "alice@x.com")

	if ttl := mr.TTL(th.key("alice@x.com")); ttl > 20*time.Second {
		t.Fatalf("later failures must not extend the window, ttl=%s", ttl)
	}
}

func TestLoginThrottle_Reset(t *testing.T) {
	th, mr := newTestThrottle(t, 1, time.Minute)
	ctx := context.Background()

	_ = th.Fail(ctx, "alice@x.com")
	if err := th.Reset(ctx, "alice@x.com"); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if blocked, _ := th.Blocked(ctx, "alice@x.com"); blocked {
		t.Fatal("expected unblocked after reset")
	}
	if mr.Exists(th.key("alice@x.com")) {
		t.Fatal("key should be deleted")
	}
}

func TestLoginThrottle_KeyDoesNotContainEmail(t *testing.T) {
	th, _ := newTestThrottle(t, 1, time.Minute)
	k := th.key("alice@x.com")
	if k == "login_failures:alice@x.com" || len(k) != len("login_failures:")+64 {
		t.Fatalf("unexpected key %q", k)
	}
}

func TestLoginThrottle_RedisDown(t *testing.T) {
	th, mr := newTestThrottle(t, 1, time.Minute)
	mr.Close()

	if _, err := th.Blocked(context.Background(), "alice@x.com"); err == nil {
		t.Fatal("expected error when redis is unavailable")
	}
}
