package clock

import (
	"testing"
	"time"
)

func TestManual_Advance(t *testing.T) {
	start := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	clk := NewManual(start)

	if got := clk.Now(); !got.Equal(start) {
		t.Fatalf("expected %s, got %s", start, got)
	}
	clk.Advance(10 * time.Minute)
	if got := clk.Now(); !got.Equal(start.Add(10 * time.Minute)) {
		t.Fatalf("expected advanced time, got %s", got)
	}
}

func TestFixed_DoesNotMove(t *testing.T) {
	at := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	clk := NewFixed(at)
	time.Sleep(time.Millisecond)
	if got := clk.Now(); !got.Equal(at) {
		t.Fatalf("expected fixed time, got %s", got)
	}
}
