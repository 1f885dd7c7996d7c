package testfixtures

import (
	"sync"
	"testing"
)

func TestIDGenerator(t *testing.T) {
	gen := NewIDGenerator("audit")
	if first, second := gen.Next(), gen.Next(); first != "audit-1" || second != "audit-2" {
		t.Fatalf("unexpected identifiers: %q, %q", first, second)
	}

	if got := NewIDGenerator("").Next(); got != "id-1" {
		t.Fatalf("expected default prefix, got %q", got)
	}

	var nilGen *IDGenerator
	if nilGen.NextFunc() != nil {
		t.Fatal("expected nil func from nil generator")
	}
}

func TestIDGeneratorIsUniqueAcrossGoroutines(t *testing.T) {
	gen := NewIDGenerator("audit")
	seen := make(map[string]bool)
	var mu sync.Mutex
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := gen.Next()
			mu.Lock()
			seen[id] = true
			mu.Unlock()
		}()
	}
	wg.Wait()
	if len(seen) != 50 {
		t.Fatalf("expected 50 distinct ids, got %d", len(seen))
	}
}
