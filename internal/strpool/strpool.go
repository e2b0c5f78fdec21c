// Package strpool interns immutable byte strings: each distinct string is
// stored once and referenced by a shared handle. Hashing is FNV-1a into
// open-chained buckets, rehashing at 0.75 load, matching the source's
// "interning of immutable byte strings" component.
package strpool

import (
	"hash/fnv"
	"sync"

	"golang.org/x/text/unicode/norm"
)

const initialBuckets = 16
const loadFactor = 0.75

// Interned is an opaque handle to a pooled string. Two Interned values
// compare equal (by pointer) iff the underlying strings are equal, so
// callers can use Interned as a map key or compare with ==.
type Interned struct {
	s *string
}

// String returns the underlying string.
func (i Interned) String() string {
	if i.s == nil {
		return ""
	}
	return *i.s
}

type entry struct {
	hash uint64
	str  string
	ptr  *string
	next *entry
}

// Pool is a single-writer-by-convention interning table: the loader thread
// that parses/resolves paths is expected to be the only writer; readers of
// already-interned strings need no lock since strings are immutable once
// stored.
type Pool struct {
	mu      sync.Mutex
	buckets []*entry
	count   int
}

// New constructs an empty pool.
func New() *Pool {
	return &Pool{buckets: make([]*entry, initialBuckets)}
}

// Intern normalizes s to NFC and returns a shared handle, inserting it if
// not already present.
func (p *Pool) Intern(s string) Interned {
	s = norm.NFC.String(s)
	h := fnv1a(s)

	p.mu.Lock()
	defer p.mu.Unlock()

	idx := h % uint64(len(p.buckets))
	for e := p.buckets[idx]; e != nil; e = e.next {
		if e.hash == h && e.str == s {
			return Interned{s: e.ptr}
		}
	}

	stored := s
	e := &entry{hash: h, str: s, ptr: &stored, next: p.buckets[idx]}
	p.buckets[idx] = e
	p.count++

	if float64(p.count) >= loadFactor*float64(len(p.buckets)) {
		p.rehash()
	}
	return Interned{s: e.ptr}
}

// Len returns the number of distinct interned strings.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.count
}

func (p *Pool) rehash() {
	newBuckets := make([]*entry, len(p.buckets)*2)
	for _, head := range p.buckets {
		for e := head; e != nil; {
			next := e.next
			idx := e.hash % uint64(len(newBuckets))
			e.next = newBuckets[idx]
			newBuckets[idx] = e
			e = next
		}
	}
	p.buckets = newBuckets
}

func fnv1a(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return h.Sum64()
}
