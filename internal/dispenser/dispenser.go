// Package dispenser implements a read-copy-update edge store: readers
// pin the latest EdgeDB snapshot and keep working against it for the
// whole lifetime of a query, while a background loader publishes a new
// snapshot at any time without blocking or invalidating readers already
// in flight. The locking shape mirrors the teacher's memStatsCache
// double-checked-lock idiom (a short critical section around a map
// lookup, nothing held across the caller's own work), generalized from
// a single cached value to a reference-counted table of versions.
package dispenser

import (
	"sync"

	"pathfinder/internal/edgedb"
)

// Dispenser hands out pinned references to versioned EdgeDB snapshots.
// Safe for concurrent use.
type Dispenser struct {
	mu       sync.Mutex
	counter  uint64
	current  uint64
	versions map[uint64]*edgedb.EdgeDB
	refs     map[uint64]int
}

// New creates a dispenser whose first published version is initial.
func New(initial *edgedb.EdgeDB) *Dispenser {
	d := &Dispenser{
		versions: make(map[uint64]*edgedb.EdgeDB),
		refs:     make(map[uint64]int),
	}
	d.counter = 1
	d.current = d.counter
	d.versions[d.current] = initial
	return d
}

// PinLatest returns the current version number and its EdgeDB, and
// increments that version's reference count. The caller must call
// Release(version) exactly once when done.
func (d *Dispenser) PinLatest() (uint64, *edgedb.EdgeDB) {
	d.mu.Lock()
	defer d.mu.Unlock()

	v := d.current
	d.refs[v]++
	return v, d.versions[v]
}

// Release drops a reference taken by PinLatest. A version with no
// remaining references that is no longer current is removed from
// memory immediately.
func (d *Dispenser) Release(version uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.refs[version]--
	d.evictIfUnreferenced(version)
}

// Publish installs edges as the new current version and returns its
// version number. Any previously-current version that has no pinned
// readers left is evicted immediately; one still pinned stays resident
// until its last Release.
func (d *Dispenser) Publish(edges *edgedb.EdgeDB) uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	old := d.current
	d.counter++
	d.current = d.counter
	d.versions[d.current] = edges

	d.evictIfUnreferenced(old)
	return d.current
}

// evictIfUnreferenced removes version from the table when it is not
// the current version and nothing holds a pin on it. Must be called
// with mu held.
func (d *Dispenser) evictIfUnreferenced(version uint64) {
	if version == d.current {
		return
	}
	if d.refs[version] > 0 {
		return
	}
	delete(d.versions, version)
	delete(d.refs, version)
}

// Len reports how many versions are currently resident, for tests and
// diagnostics.
func (d *Dispenser) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.versions)
}
