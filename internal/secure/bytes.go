// Package secure holds plaintext secrets in memory that is locked against
// swapping where the OS allows it and zeroed when released.
package secure

import (
	"runtime"
	"sync"
	"sync/atomic"
)

//nolint:gochecknoglobals // process-wide switch set from config
var lockMemory atomic.Bool

func init() {
	lockMemory.Store(true)
}

// SetMemoryLock turns mlock on or off for buffers allocated afterwards.
func SetMemoryLock(enabled bool) {
	lockMemory.Store(enabled)
}

// Bytes wraps a sensitive byte slice. The zero value is an empty, destroyed
// buffer.
type Bytes struct {
	mu     sync.Mutex
	data   []byte
	locked bool
}

// New allocates a zeroed buffer of size n and tries to mlock it.
func New(n int) *Bytes {
	b := &Bytes{data: make([]byte, n)}
	if lockMemory.Load() {
		b.locked = mlock(b.data)
	}

	runtime.SetFinalizer(b, func(s *Bytes) {
		s.Destroy()
	})

	return b
}

// From copies data into a new buffer. The caller still owns data and should
// clear it.
func From(data []byte) *Bytes {
	b := New(len(data))
	copy(b.data, data)
	return b
}

// FromString copies s into a new buffer.
func FromString(s string) *Bytes {
	b := New(len(s))
	copy(b.data, s)
	return b
}

// Bytes returns the underlying slice, or nil once destroyed.
// The slice must not be retained past Destroy.
func (b *Bytes) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.data
}

// Clone returns an independent copy. Cloning a destroyed buffer yields an
// empty one.
func (b *Bytes) Clone() *Bytes {
	b.mu.Lock()
	defer b.mu.Unlock()
	return From(b.data)
}

// Len returns the length of the data.
func (b *Bytes) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.data)
}

// IsLocked reports whether the buffer is mlocked.
func (b *Bytes) IsLocked() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.locked
}

// Destroyed reports whether Destroy has run.
func (b *Bytes) Destroyed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.data == nil
}

// Destroy zeroes and unlocks the memory. Safe to call more than once.
func (b *Bytes) Destroy() {
	if b == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.data == nil {
		return
	}

	Zero(b.data)
	if b.locked {
		munlock(b.data)
		b.locked = false
	}
	b.data = nil

	runtime.SetFinalizer(b, nil)
}

// Zero overwrites p with zeros.
func Zero(p []byte) {
	for i := range p {
		p[i] = 0
	}
}
