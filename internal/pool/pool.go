// Package pool provides a fixed-size byte buffer pool for the stack data
// path. The pool is an owned instance handed to whoever needs it; there is
// no package-level pool to reach for.
package pool

import "code.hybscloud.com/lfq"

// Pool hands out fixed-size buffers from a preallocated arena. Get and
// Release are safe from any goroutine; the free list is a lock-free queue
// of arena indexes. A drained pool returns nil rather than allocating;
// the data path treats that as a drop, the same as a full queue.
type Pool struct {
	arena []Buffer
	free  *lfq.MPMCIndirect
	size  int
}

// New builds a pool of count buffers of size bytes each.
func New(count, size int) *Pool {
	if count < 2 {
		count = 2
	}
	if size < 1 {
		size = 1
	}
	p := &Pool{
		arena: make([]Buffer, count),
		free:  lfq.NewMPMCIndirect(count),
		size:  size,
	}
	for i := range p.arena {
		b := &p.arena[i]
		b.pool = p
		b.idx = uintptr(i)
		b.data = make([]byte, size)
		// The free list rounds up to a power of two, so count indexes
		// always fit.
		_ = p.free.Enqueue(uintptr(i))
	}
	return p
}

// Count returns the number of buffers in the arena.
func (p *Pool) Count() int { return len(p.arena) }

// BufSize returns the capacity of each buffer.
func (p *Pool) BufSize() int { return p.size }

// Get returns an empty buffer, or nil when the pool is exhausted.
func (p *Pool) Get() *Buffer {
	idx, err := p.free.Dequeue()
	if err != nil {
		return nil
	}
	b := &p.arena[idx]
	b.n = 0
	return b
}

// Buffer is one pooled buffer. After Release the previous holder must not
// touch it again; the pool hands it to the next Get.
type Buffer struct {
	pool *Pool
	idx  uintptr
	data []byte
	n    int
}

// Bytes returns the written prefix.
func (b *Buffer) Bytes() []byte { return b.data[:b.n] }

// Len returns the number of bytes written.
func (b *Buffer) Len() int { return b.n }

// Cap returns the buffer capacity.
func (b *Buffer) Cap() int { return len(b.data) }

// Append copies p into the remaining space and returns how many bytes fit.
func (b *Buffer) Append(p []byte) int {
	n := copy(b.data[b.n:], p)
	b.n += n
	return n
}

// Reset drops the written prefix.
func (b *Buffer) Reset() { b.n = 0 }

// Release returns the buffer to its pool.
func (b *Buffer) Release() {
	if b == nil {
		return
	}
	b.n = 0
	_ = b.pool.free.Enqueue(b.idx)
}
