// Package allocreg implements the tagged allocator registry: a small set of
// per-subsystem pools with allocation accounting, addressable by Tag. It
// does not reimplement memory placement (Go's runtime GC already owns
// that); it exists to bound allocation churn per subsystem and expose the
// kind of stats a native-heap allocator would, per subsystem id.
package allocreg

import "sync"

// Tag identifies the subsystem an allocation belongs to.
type Tag int

const (
	Modules Tag = iota
	Strings
	Bytecode
	AST
	numTags
)

func (t Tag) String() string {
	switch t {
	case Modules:
		return "MODULES"
	case Strings:
		return "STRINGS"
	case Bytecode:
		return "BYTECODE"
	case AST:
		return "AST"
	default:
		return "UNKNOWN"
	}
}

// Flags mirrors the allocation-intent bitset used by the accounting layer:
// whether a value must survive a module unload, is shareable across
// modules, or should be zeroed before use.
type Flags uint32

const (
	FlagPersistent Flags = 1 << iota
	FlagShared
	FlagZeroed
)

type counters struct {
	allocCount uint64
	freeCount  uint64
	inUse      int64
}

// Registry tracks allocation counters per Tag and hands out *sync.Pool
// backed arenas for byte-slice scratch space, the one allocation shape the
// module subsystem actually needs pooled (bytecode buffers, string pool
// scratch, section payload staging).
type Registry struct {
	mu       sync.RWMutex
	counters [numTags]*counters
	pools    [numTags]*sync.Pool
}

// New constructs an empty registry. Callers typically keep one Registry per
// VM instance rather than sharing a package-level singleton, so tests never
// share state.
func New() *Registry {
	r := &Registry{}
	for i := range r.counters {
		r.counters[i] = &counters{}
	}
	for i := range r.pools {
		r.pools[i] = &sync.Pool{New: func() any { return make([]byte, 0, 256) }}
	}
	return r
}

// Alloc returns a byte slice with at least size capacity, tagged to tag,
// and records accounting. FlagZeroed zero-fills the returned slice up to
// size (the pool may return reused backing arrays with stale bytes).
func (r *Registry) Alloc(tag Tag, size int, flags Flags) []byte {
	c := r.counters[tag]
	buf := r.pools[tag].Get().([]byte)
	if cap(buf) < size {
		buf = make([]byte, size)
	} else {
		buf = buf[:size]
	}
	if flags&FlagZeroed != 0 {
		for i := range buf {
			buf[i] = 0
		}
	}
	r.mu.Lock()
	c.allocCount++
	c.inUse++
	r.mu.Unlock()
	return buf
}

// Free returns buf to the pool for tag and records accounting. Buffers
// flagged FlagPersistent are not returned to the pool -- they are expected
// to outlive the allocation that requested them (e.g. a module's exports
// array survives the chunk execution that built it).
func (r *Registry) Free(tag Tag, buf []byte, flags Flags) {
	c := r.counters[tag]
	r.mu.Lock()
	c.freeCount++
	c.inUse--
	r.mu.Unlock()
	if flags&FlagPersistent == 0 {
		r.pools[tag].Put(buf[:0])
	}
}

// Stats is a point-in-time snapshot for one Tag.
type Stats struct {
	Tag        string
	AllocCount uint64
	FreeCount  uint64
	InUse      int64
}

// GetStats returns a snapshot for every tag, ordered Modules, Strings,
// Bytecode, AST.
func (r *Registry) GetStats() []Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Stats, 0, numTags)
	for i := 0; i < int(numTags); i++ {
		c := r.counters[i]
		out = append(out, Stats{
			Tag:        Tag(i).String(),
			AllocCount: c.allocCount,
			FreeCount:  c.freeCount,
			InUse:      c.inUse,
		})
	}
	return out
}
