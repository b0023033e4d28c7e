// Package hostkern holds the inner loops of host device programs.
//
// Implementations register themselves in a priority registry keyed on the
// SIMD level they are tuned for; the highest-priority entry the running CPU
// supports is selected once on first use.
package hostkern

import (
	"sync"

	"github.com/cwbudde/algo-vecmath/cpu"
)

// DotFn returns the float32 dot product of a and b[:len(a)].
type DotFn func(a, b []float32) float32

// Entry is one registered implementation.
type Entry struct {
	Name      string
	SIMDLevel cpu.SIMDLevel
	Priority  int
	Dot       DotFn
}

// Registry stores available implementations.
type Registry struct {
	mu      sync.RWMutex
	entries []Entry
	sorted  bool
}

// Global is the registry Dot dispatches through.
var Global = &Registry{}

// Register adds an implementation entry.
func (r *Registry) Register(entry Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = append(r.entries, entry)
	r.sorted = false
}

// Lookup returns the highest-priority implementation supported by features.
func (r *Registry) Lookup(features cpu.Features) *Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.sorted {
		r.sortByPriority()
		r.sorted = true
	}
	for i := range r.entries {
		entry := &r.entries[i]
		if cpu.Supports(features, entry.SIMDLevel) {
			return entry
		}
	}
	return nil
}

func (r *Registry) sortByPriority() {
	for i := 1; i < len(r.entries); i++ {
		key := r.entries[i]
		j := i - 1
		for j >= 0 && r.entries[j].Priority < key.Priority {
			r.entries[j+1] = r.entries[j]
			j--
		}
		r.entries[j+1] = key
	}
}

// Entries returns a copy of the registered entries.
func (r *Registry) Entries() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]Entry, len(r.entries))
	copy(entries, r.entries)
	return entries
}

var (
	activeOnce sync.Once
	active     *Entry
)

// Active returns the implementation selected for this CPU.
func Active() *Entry {
	activeOnce.Do(func() {
		active = Global.Lookup(cpu.DetectFeatures())
	})
	return active
}

// Dot returns the dot product of a and b[:len(a)] using the active
// implementation.
func Dot(a, b []float32) float32 {
	return Active().Dot(a, b)
}
