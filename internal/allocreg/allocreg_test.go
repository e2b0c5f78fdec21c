package allocreg

import "testing"

func TestAllocFree(t *testing.T) {
	r := New()
	buf := r.Alloc(Bytecode, 64, FlagZeroed)
	if len(buf) != 64 {
		t.Fatalf("len(buf) = %d, want 64", len(buf))
	}
	for _, b := range buf {
		if b != 0 {
			t.Fatal("expected zeroed buffer")
		}
	}
	r.Free(Bytecode, buf, 0)

	stats := r.GetStats()
	var got Stats
	for _, s := range stats {
		if s.Tag == "BYTECODE" {
			got = s
		}
	}
	if got.AllocCount != 1 || got.FreeCount != 1 {
		t.Fatalf("unexpected stats: %+v", got)
	}
	if got.InUse != 0 {
		t.Fatalf("InUse = %d, want 0", got.InUse)
	}
}

func TestPersistentNotPooled(t *testing.T) {
	r := New()
	buf := r.Alloc(Modules, 16, FlagPersistent)
	r.Free(Modules, buf, FlagPersistent)
	stats := r.GetStats()
	for _, s := range stats {
		if s.Tag == "MODULES" && s.FreeCount != 1 {
			t.Fatalf("expected free to be counted regardless of pooling")
		}
	}
}

func TestTagString(t *testing.T) {
	if Modules.String() != "MODULES" {
		t.Fatalf("got %q", Modules.String())
	}
	if Tag(99).String() != "UNKNOWN" {
		t.Fatalf("expected UNKNOWN for out-of-range tag")
	}
}
