package formula

import (
	"sync"
	"testing"
)

func TestEngineCacheIsolation(t *testing.T) {
	engine := NewEngine(EngineConfig{CacheSize: 4})
	first, err := engine.Evaluate("a*2+b", NewEnv(map[string]float64{"a": 1, "b": 1}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := engine.Evaluate("a*2+b", NewEnv(map[string]float64{"a": 10, "b": 5}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first != 3 || second != 25 {
		t.Fatalf("expected 3 and 25, got %v and %v", first, second)
	}
	stats := engine.Stats()
	if stats.Hits != 1 || stats.Misses != 1 || stats.Entries != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestEngineKeysOnRewrittenText(t *testing.T) {
	engine := NewEngine(EngineConfig{})
	if _, err := engine.Compile("[a]+1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := engine.Compile("a+1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats := engine.Stats(); stats.Hits != 1 || stats.Entries != 1 {
		t.Fatalf("expected alias to share the memo entry, got %+v", stats)
	}
}

func TestEngineMemoisesErrors(t *testing.T) {
	engine := NewEngine(EngineConfig{})
	for i := 0; i < 2; i++ {
		if _, err := engine.Evaluate("(1+2", NewEnv(nil)); err == nil {
			t.Fatal("expected syntax error")
		}
	}
	if stats := engine.Stats(); stats.Hits != 1 || stats.Misses != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestEngineEvictsLeastRecentlyUsed(t *testing.T) {
	engine := NewEngine(EngineConfig{CacheSize: 2})
	for _, expr := range []string{"1", "2", "1", "3", "1"} {
		if _, err := engine.Compile(expr); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	stats := engine.Stats()
	if stats.Entries != 2 {
		t.Fatalf("expected 2 entries, got %d", stats.Entries)
	}
	if stats.Hits != 2 || stats.Misses != 3 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestEngineWithoutCache(t *testing.T) {
	engine := NewEngine(EngineConfig{CacheSize: -1})
	for i := 0; i < 3; i++ {
		if v, err := engine.Evaluate("1+1", NewEnv(nil)); err != nil || v != 2 {
			t.Fatalf("expected 2, got %v (%v)", v, err)
		}
	}
	if stats := engine.Stats(); stats.Hits != 0 || stats.Misses != 3 || stats.Entries != 0 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestEngineConcurrentUse(t *testing.T) {
	engine := NewEngine(EngineConfig{CacheSize: 8})
	var wg sync.WaitGroup
	errs := make(chan string, 64)
	for g := 0; g < 16; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				x := float64(g*100 + i)
				got, err := engine.Evaluate("x*2 + max(x, 1)", NewEnv(map[string]float64{"x": x}))
				if err != nil {
					errs <- err.Error()
					return
				}
				want := x*2 + x
				if x < 1 {
					want = x*2 + 1
				}
				if got != want {
					errs <- "cross-contaminated result"
					return
				}
			}
		}(g)
	}
	wg.Wait()
	close(errs)
	for msg := range errs {
		t.Fatal(msg)
	}
}
