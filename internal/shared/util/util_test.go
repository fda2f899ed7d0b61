package util

import (
	"context"
	"testing"
	"time"
)

func TestHasPathPrefix(t *testing.T) {
	tests := []struct {
		path     string
		prefix   string
		expected bool
	}{
		{"src/components/Button.tsx", "src/components", true},
		{"src/components", "src/components", true},
		{"src/componentsX/a.tsx", "src/components", false},
		{"./app/page.tsx", "app", true},
		{"", "", true},
	}
	for _, tt := range tests {
		if got := HasPathPrefix(tt.path, tt.prefix); got != tt.expected {
			t.Errorf("HasPathPrefix(%q, %q) = %v, expected %v", tt.path, tt.prefix, got, tt.expected)
		}
	}
}

func TestDedupe(t *testing.T) {
	got := Dedupe([]string{"Button", "Card", "Button", "card", "Card"})
	want := []string{"Button", "Card", "card"}
	if len(got) != len(want) {
		t.Fatalf("Dedupe returned %v, expected %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Dedupe[%d] = %q, expected %q", i, got[i], want[i])
		}
	}
}

func TestLimiter(t *testing.T) {
	// 10 tokens per second, burst of 2
	l := NewLimiter(10, 2)

	if !l.Allow(1) {
		t.Error("expected first token to be allowed")
	}
	if !l.Allow(1) {
		t.Error("expected second token to be allowed (burst)")
	}
	if l.Allow(1) {
		t.Error("expected third token to be rejected (burst exhausted)")
	}

	time.Sleep(150 * time.Millisecond)
	if !l.Allow(1) {
		t.Error("expected token to be refilled after wait")
	}
}

func TestPacer(t *testing.T) {
	// Pacing disabled: Tick never blocks and never errors.
	p := NewPacer(0, 1, 1)
	for i := 0; i < 100; i++ {
		if err := p.Tick(context.Background()); err != nil {
			t.Fatalf("disabled pacer returned error: %v", err)
		}
	}

	// every=2 with a generous rate: still should not error.
	p = NewPacer(2, 1000, 10)
	for i := 0; i < 10; i++ {
		if err := p.Tick(context.Background()); err != nil {
			t.Fatalf("pacer Tick failed: %v", err)
		}
	}
}
