package cache

import (
	"testing"
	"time"

	"github.com/sunholo/quillmod/internal/module"
	"github.com/sunholo/quillmod/internal/strpool"
)

func newMod(name string, access int64) *module.Module {
	pool := strpool.New()
	m := module.New(pool.Intern(name), "/tmp/"+name)
	m.Touch(access)
	return m
}

func TestPutGetHitMiss(t *testing.T) {
	c := New()
	c.Put("m1", newMod("m1", 1))

	if _, ok := c.Get("missing"); ok {
		t.Fatal("expected miss")
	}
	if _, ok := c.Get("m1"); !ok {
		t.Fatal("expected hit")
	}
	stats := c.GetStats()
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Fatalf("expected 1 hit / 1 miss, got %+v", stats)
	}
}

func TestTrimEvictsOldestFirst(t *testing.T) {
	c := New()
	for i, name := range []string{"m1", "m2", "m3", "m4", "m5"} {
		c.Put(name, newMod(name, int64(i)))
	}
	c.Trim(3)
	if c.Len() != 3 {
		t.Fatalf("expected 3 entries after trim, got %d", c.Len())
	}
	for _, keep := range []string{"m3", "m4", "m5"} {
		if _, ok := c.Get(keep); !ok {
			t.Fatalf("expected %s to survive trim", keep)
		}
	}
}

func TestTrimSkipsNonZeroRefCount(t *testing.T) {
	c := New()
	busy := newMod("busy", 0)
	busy.Acquire()
	c.Put("busy", busy)
	c.Put("idle", newMod("idle", 1))

	c.Trim(0)
	if c.Len() != 1 {
		t.Fatalf("expected busy entry to survive trim(0), got len %d", c.Len())
	}
	if _, ok := c.Get("busy"); !ok {
		t.Fatal("expected busy module to remain cached")
	}
}

func TestTrimZeroWithNoBusyEntriesEmptiesCache(t *testing.T) {
	c := New()
	c.Put("a", newMod("a", 0))
	c.Put("b", newMod("b", 1))
	c.Trim(0)
	if c.Len() != 0 {
		t.Fatalf("expected empty cache, got %d", c.Len())
	}
}

func TestIterateDoesNotMutate(t *testing.T) {
	c := New()
	c.Put("a", newMod("a", time.Now().UnixNano()))
	seen := 0
	c.Iterate(func(path string, m *module.Module) { seen++ })
	if seen != 1 {
		t.Fatalf("expected 1 entry visited, got %d", seen)
	}
}
