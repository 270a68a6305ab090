package util

import (
	"strings"
	"testing"
)

func TestNewIDPrefixAndUniqueness(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 500; i++ {
		id := NewID("thr")
		if !strings.HasPrefix(id, "thr_") {
			t.Fatalf("expected thr_ prefix, got %q", id)
		}
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = struct{}{}
	}
}

func TestNewIDIsMonotonic(t *testing.T) {
	prev := NewID("")
	for i := 0; i < 100; i++ {
		next := NewID("")
		if next <= prev {
			t.Fatalf("expected %q > %q", next, prev)
		}
		prev = next
	}
}
