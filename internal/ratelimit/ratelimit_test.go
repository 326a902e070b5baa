package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestMemory_FixedWindow(t *testing.T) {
	l := NewMemory(2, time.Minute)
	now := time.Unix(1700000000, 0)
	l.clock = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if ok, _, _ := l.Allow(ctx, "1.2.3.4"); !ok {
			t.Fatalf("hit %d should be allowed", i+1)
		}
	}
	ok, retry, _ := l.Allow(ctx, "1.2.3.4")
	if ok {
		t.Fatalf("third hit should be rejected")
	}
	if retry != time.Minute {
		t.Fatalf("expected retry after 1m, got %v", retry)
	}
	if ok, _, _ := l.Allow(ctx, "5.6.7.8"); !ok {
		t.Fatalf("other keys have their own budget")
	}

	now = now.Add(time.Minute)
	if ok, _, _ := l.Allow(ctx, "1.2.3.4"); !ok {
		t.Fatalf("new window should reset the budget")
	}
}
