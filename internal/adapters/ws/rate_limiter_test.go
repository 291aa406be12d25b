package ws

import (
	"testing"
	"time"
)

func TestRateLimiter_Allow(t *testing.T) {
	rl := newRateLimiter(2, 50*time.Millisecond)

	if !rl.Allow() {
		t.Fatal("first Allow() = false, want true")
	}
	if !rl.Allow() {
		t.Fatal("second Allow() = false, want true")
	}
	if rl.Allow() {
		t.Fatal("third Allow() = true, want false while window is full")
	}

	time.Sleep(60 * time.Millisecond)
	if !rl.Allow() {
		t.Error("Allow() = false after the window expired, want true")
	}
}
