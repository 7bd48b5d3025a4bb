package ratelimit

import (
	"testing"
	"time"
)

func TestAllowWithinRate(t *testing.T) {
	l := New(3, time.Minute)
	for i := 0; i < 3; i++ {
		if !l.Allow("1.2.3.4") {
			t.Fatalf("request %d should be allowed", i)
		}
	}
	if l.Allow("1.2.3.4") {
		t.Fatal("request beyond rate should be blocked")
	}
}

func TestKeysAreIndependent(t *testing.T) {
	l := New(1, time.Minute)
	if !l.Allow("a") {
		t.Fatal("first request for key a should be allowed")
	}
	if !l.Allow("b") {
		t.Fatal("key b should have its own window")
	}
	if l.Allow("a") {
		t.Fatal("second request for key a should be blocked")
	}
}

func TestWindowResets(t *testing.T) {
	l := New(1, 10*time.Millisecond)
	if !l.Allow("x") {
		t.Fatal("first request should be allowed")
	}
	if l.Allow("x") {
		t.Fatal("second request in window should be blocked")
	}
	time.Sleep(20 * time.Millisecond)
	if !l.Allow("x") {
		t.Fatal("request after window expiry should be allowed")
	}
}

func TestCleanup(t *testing.T) {
	l := New(1, 10*time.Millisecond)
	l.Allow("stale")
	time.Sleep(20 * time.Millisecond)
	l.Cleanup()

	l.mu.Lock()
	_, ok := l.windows["stale"]
	l.mu.Unlock()
	if ok {
		t.Fatal("expired window should be removed by Cleanup")
	}
}
