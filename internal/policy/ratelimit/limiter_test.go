package ratelimit

import (
	"testing"
	"time"
)

func TestLimiterAllowPerKey(t *testing.T) {
	t.Parallel()

	now := time.Unix(1700000000, 0)
	l := New(Config{RPS: 1, Burst: 2})
	l.now = func() time.Time { return now }

	if !l.Allow("a") || !l.Allow("a") {
		t.Fatal("expected burst of two to be allowed")
	}
	if l.Allow("a") {
		t.Fatal("expected third request within the same instant to be limited")
	}
	if !l.Allow("b") {
		t.Fatal("expected independent bucket for another key")
	}

	now = now.Add(time.Second)
	if !l.Allow("a") {
		t.Fatal("expected a token to refill after one second")
	}
}

func TestLimiterDisabled(t *testing.T) {
	t.Parallel()

	l := New(Config{})
	for range 100 {
		if !l.Allow("a") {
			t.Fatal("expected unlimited limiter to allow every request")
		}
	}
	if l.Len() != 0 {
		t.Fatalf("expected no buckets when disabled, got %d", l.Len())
	}

	var nilLimiter *Limiter
	if !nilLimiter.Allow("a") {
		t.Fatal("expected nil limiter to allow")
	}
}

func TestLimiterPrunesIdleBuckets(t *testing.T) {
	t.Parallel()

	now := time.Unix(1700000000, 0)
	l := New(Config{RPS: 100, Burst: 1, IdleTTL: time.Minute})
	l.now = func() time.Time { return now }

	l.Allow("idle")
	now = now.Add(2 * time.Minute)
	for i := 0; i < pruneEvery; i++ {
		l.Allow("busy")
		now = now.Add(10 * time.Millisecond)
	}
	if l.Len() != 1 {
		t.Fatalf("expected idle bucket to be pruned, got %d buckets", l.Len())
	}
}
