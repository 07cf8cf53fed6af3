package api

import (
	"fmt"
	"testing"
	"time"
)

func fillClients(l *clientLimiter, prefix string, n int, lastSeen time.Time) {
	for i := 0; i < n; i++ {
		l.clients[fmt.Sprintf("%s-%d", prefix, i)] = &limiterEntry{lastSeen: lastSeen}
	}
}

func TestClientLimiterSweepsIdleClientsOncePerTTL(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	now := start
	l := newClientLimiter(10, 1)
	l.now = func() time.Time { return now }

	fillClients(l, "old", limiterSweepSize, start.Add(-2*limiterIdleTTL))
	if !l.allow("10.0.0.1") {
		t.Fatalf("first request from a new client should pass")
	}
	if len(l.clients) != 1 {
		t.Fatalf("idle clients should be evicted, %d left", len(l.clients))
	}

	// 同一周期内不再扫描，即使空闲条目再次堆积。
	fillClients(l, "stale", limiterSweepSize, start.Add(-2*limiterIdleTTL))
	now = start.Add(time.Second)
	l.allow("10.0.0.2")
	if want := limiterSweepSize + 2; len(l.clients) != want {
		t.Fatalf("expected no sweep within the idle TTL, got %d clients want %d", len(l.clients), want)
	}

	now = start.Add(limiterIdleTTL)
	l.allow("10.0.0.3")
	if len(l.clients) != 3 {
		t.Fatalf("sweep should run again after the idle TTL, %d clients left", len(l.clients))
	}
}

func TestClientLimiterSkipsSweepBelowThreshold(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l := newClientLimiter(10, 1)
	l.now = func() time.Time { return start }

	fillClients(l, "old", 10, start.Add(-2*limiterIdleTTL))
	l.allow("10.0.0.1")
	if len(l.clients) != 11 {
		t.Fatalf("small client sets should not be swept, got %d", len(l.clients))
	}
}
