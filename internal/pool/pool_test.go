package pool

import (
	"bytes"
	"testing"
)

// TestPool_ExhaustionAndReuse verifies the pool hands out exactly its
// arena, returns nil when drained, and recycles released buffers.
func TestPool_ExhaustionAndReuse(t *testing.T) {
	p := New(4, 16)

	held := make([]*Buffer, 0, 4)
	for i := 0; i < 4; i++ {
		b := p.Get()
		if b == nil {
			t.Fatalf("Get %d returned nil below pool size", i)
		}
		held = append(held, b)
	}
	if b := p.Get(); b != nil {
		t.Error("Get returned a buffer from an exhausted pool")
	}

	held[0].Release()
	if b := p.Get(); b == nil {
		t.Error("Get returned nil after a release")
	}
}

// TestPool_BufferDoesNotLeakAcrossUses verifies a recycled buffer comes
// back empty.
func TestPool_BufferDoesNotLeakAcrossUses(t *testing.T) {
	p := New(2, 8)

	b := p.Get()
	b.Append([]byte("secret"))
	if b.Len() != 6 {
		t.Fatalf("Len() = %d after append, want 6", b.Len())
	}
	b.Release()

	for i := 0; i < 4; i++ {
		nb := p.Get()
		if nb == nil {
			t.Fatal("pool drained unexpectedly")
		}
		if nb.Len() != 0 {
			t.Errorf("recycled buffer has %d leftover bytes", nb.Len())
		}
		nb.Release()
	}
}

// TestBuffer_AppendTruncatesAtCapacity verifies writes past capacity are
// cut, not grown.
func TestBuffer_AppendTruncatesAtCapacity(t *testing.T) {
	p := New(2, 4)
	b := p.Get()

	n := b.Append([]byte("abcdef"))
	if n != 4 {
		t.Errorf("Append copied %d bytes into a 4-byte buffer", n)
	}
	if !bytes.Equal(b.Bytes(), []byte("abcd")) {
		t.Errorf("Bytes() = %q, want %q", b.Bytes(), "abcd")
	}
	if b.Append([]byte("x")) != 0 {
		t.Error("Append copied into a full buffer")
	}
	b.Release()
}

// TestPool_GetReleaseConcurrent hammers the free list from several
// goroutines; every Get must return a distinct live buffer.
func TestPool_GetReleaseConcurrent(t *testing.T) {
	p := New(8, 16)

	done := make(chan struct{})
	for range 4 {
		go func() {
			defer func() { done <- struct{}{} }()
			for range 1000 {
				b := p.Get()
				if b == nil {
					continue
				}
				b.Append([]byte{0xAA})
				b.Release()
			}
		}()
	}
	for range 4 {
		<-done
	}
}
