package renderer

import (
	"fmt"
	"sync"
)

// BufferUsage is how passes bind an UploadBuffer.
type BufferUsage int

const (
	// BufferUsageUniform binds the buffer as a uniform block.
	BufferUsageUniform BufferUsage = iota

	// BufferUsageStorage binds the buffer as a read-only storage array.
	BufferUsageStorage
)

// UploadBuffer is CPU-writable memory the GPU reads when it executes the commands that bind it.
// Writes become visible to every command list submitted after them. The caller must not write a
// range that in-flight work still reads.
type UploadBuffer interface {
	// Label returns the debug label.
	Label() string

	// Size returns the buffer size in bytes.
	Size() int

	// Usage returns how the buffer is bound.
	Usage() BufferUsage

	// Write copies data into the buffer at offset.
	//
	// Parameters:
	//   - offset: the byte offset to write at
	//   - data: the bytes to copy
	//
	// Returns:
	//   - error: ErrOutOfRange when the write does not fit
	Write(offset int, data []byte) error

	// Bytes returns a copy of size bytes starting at offset, as last written by the CPU.
	//
	// Parameters:
	//   - offset: the byte offset to read at
	//   - size: the number of bytes to read
	//
	// Returns:
	//   - []byte: the bytes
	//   - error: ErrOutOfRange when the range does not fit
	Bytes(offset, size int) ([]byte, error)

	// Release frees the buffer.
	Release()
}

// uploadBuffer is the implementation of the UploadBuffer interface shared by the backends.
// The CPU shadow is authoritative; a GPU backend flushes the dirty range before each submission.
type uploadBuffer struct {
	mu    *sync.Mutex
	label string
	usage BufferUsage
	data  []byte

	dirtyLo, dirtyHi int

	native  any
	release func()
}

var _ UploadBuffer = &uploadBuffer{}

func newUploadBuffer(label string, usage BufferUsage, size int) *uploadBuffer {
	return &uploadBuffer{
		mu:      &sync.Mutex{},
		label:   label,
		usage:   usage,
		data:    make([]byte, size),
		dirtyLo: size,
	}
}

func (b *uploadBuffer) Label() string {
	return b.label
}

func (b *uploadBuffer) Size() int {
	return len(b.data)
}

func (b *uploadBuffer) Usage() BufferUsage {
	return b.usage
}

func (b *uploadBuffer) Write(offset int, data []byte) error {
	if err := b.check(offset, len(data)); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	copy(b.data[offset:], data)
	b.dirtyLo = min(b.dirtyLo, offset)
	b.dirtyHi = max(b.dirtyHi, offset+len(data))
	return nil
}

func (b *uploadBuffer) Bytes(offset, size int) ([]byte, error) {
	if err := b.check(offset, size); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]byte, size)
	copy(out, b.data[offset:offset+size])
	return out, nil
}

func (b *uploadBuffer) Release() {
	b.mu.Lock()
	release := b.release
	b.release = nil
	b.data = nil
	b.mu.Unlock()
	if release != nil {
		release()
	}
}

// takeDirty returns and clears the range written since the last call.
func (b *uploadBuffer) takeDirty() (offset int, data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.dirtyHi <= b.dirtyLo {
		return 0, nil
	}
	offset = b.dirtyLo
	data = make([]byte, b.dirtyHi-b.dirtyLo)
	copy(data, b.data[b.dirtyLo:b.dirtyHi])
	b.dirtyLo, b.dirtyHi = len(b.data), 0
	return offset, data
}

func (b *uploadBuffer) check(offset, size int) error {
	if offset < 0 || size < 0 || offset+size > len(b.data) {
		return fmt.Errorf("%w: [%d, %d) of %q (size %d)", ErrOutOfRange, offset, offset+size, b.label, len(b.data))
	}
	return nil
}
