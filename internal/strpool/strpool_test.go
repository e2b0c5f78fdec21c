package strpool

import "testing"

func TestInternDeduplicates(t *testing.T) {
	p := New()
	a := p.Intern("foo/bar")
	b := p.Intern("foo/bar")
	if a.s != b.s {
		t.Fatal("expected identical backing pointer for repeated intern")
	}
	if p.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", p.Len())
	}
}

func TestInternDistinct(t *testing.T) {
	p := New()
	a := p.Intern("a")
	b := p.Intern("b")
	if a.String() == b.String() {
		t.Fatal("expected distinct strings")
	}
	if p.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", p.Len())
	}
}

func TestRehashPreservesLookup(t *testing.T) {
	p := New()
	var handles []Interned
	for i := 0; i < 200; i++ {
		handles = append(handles, p.Intern(string(rune('a'+(i%26)))+string(rune(i))))
	}
	for i, h := range handles {
		again := p.Intern(h.String())
		if again.s != h.s {
			t.Fatalf("lookup %d changed identity after rehash", i)
		}
	}
}
