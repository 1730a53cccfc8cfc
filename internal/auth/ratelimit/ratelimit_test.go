package ratelimit

import (
	"testing"
	"time"
)

func TestAllowWithinLimit(t *testing.T) {
	l := New(time.Minute)

	for i := 0; i < 5; i++ {
		if !l.Allow("key-a", 5) {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if l.Allow("key-a", 5) {
		t.Error("request over limit should be denied")
	}
}

func TestKeysAreIndependent(t *testing.T) {
	l := New(time.Minute)

	for i := 0; i < 3; i++ {
		l.Allow("key-a", 3)
	}
	if l.Allow("key-a", 3) {
		t.Error("key-a should be exhausted")
	}
	if !l.Allow("key-b", 3) {
		t.Error("key-b should be unaffected by key-a")
	}
}

func TestTokensRefill(t *testing.T) {
	l := New(100 * time.Millisecond)

	for i := 0; i < 2; i++ {
		l.Allow("key-a", 2)
	}
	if l.Allow("key-a", 2) {
		t.Fatal("bucket should be empty")
	}

	time.Sleep(120 * time.Millisecond)
	if !l.Allow("key-a", 2) {
		t.Error("bucket should have refilled after the window")
	}
}

func TestReset(t *testing.T) {
	l := New(time.Minute)

	l.Allow("key-a", 1)
	if l.Allow("key-a", 1) {
		t.Fatal("bucket should be empty")
	}

	l.Reset("key-a")
	if !l.Allow("key-a", 1) {
		t.Error("reset should restore capacity")
	}
}
