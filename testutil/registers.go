package testutil

import (
	"encoding/binary"
	"sync"
)

// Access records one register access through a RegisterBlock.
type Access struct {
	Offset  uint32
	Size    uint8
	Value   uint32
	IsWrite bool
}

// RegisterBlock implements a mock channel register block for testing. It is
// memory-backed, safe for concurrent use, and records every access so tests
// can assert on hardware programming sequences.
type RegisterBlock struct {
	mu       sync.Mutex
	mem      []byte
	accesses []Access
}

// NewRegisterBlock creates a zero-filled register block of the given size.
func NewRegisterBlock(size uint32) *RegisterBlock {
	return &RegisterBlock{mem: make([]byte, size)}
}

func (b *RegisterBlock) record(offset uint32, size uint8, value uint32, isWrite bool) {
	b.accesses = append(b.accesses, Access{Offset: offset, Size: size, Value: value, IsWrite: isWrite})
}

// Read8 implements vdma.RegisterWindow.
func (b *RegisterBlock) Read8(offset uint32) uint8 {
	b.mu.Lock()
	defer b.mu.Unlock()
	value := b.mem[offset]
	b.record(offset, 1, uint32(value), false)
	return value
}

// Write8 implements vdma.RegisterWindow.
func (b *RegisterBlock) Write8(offset uint32, value uint8) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.mem[offset] = value
	b.record(offset, 1, uint32(value), true)
}

// Read16 implements vdma.RegisterWindow.
func (b *RegisterBlock) Read16(offset uint32) uint16 {
	b.mu.Lock()
	defer b.mu.Unlock()
	value := binary.LittleEndian.Uint16(b.mem[offset:])
	b.record(offset, 2, uint32(value), false)
	return value
}

// Write16 implements vdma.RegisterWindow.
func (b *RegisterBlock) Write16(offset uint32, value uint16) {
	b.mu.Lock()
	defer b.mu.Unlock()
	binary.LittleEndian.PutUint16(b.mem[offset:], value)
	b.record(offset, 2, uint32(value), true)
}

// Read32 implements vdma.RegisterWindow.
func (b *RegisterBlock) Read32(offset uint32) uint32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	value := binary.LittleEndian.Uint32(b.mem[offset:])
	b.record(offset, 4, value, false)
	return value
}

// Write32 implements vdma.RegisterWindow.
func (b *RegisterBlock) Write32(offset uint32, value uint32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	binary.LittleEndian.PutUint32(b.mem[offset:], value)
	b.record(offset, 4, value, true)
}

// Poke16 sets a 16-bit register without recording, simulating a device-side
// write.
func (b *RegisterBlock) Poke16(offset uint32, value uint16) {
	b.mu.Lock()
	defer b.mu.Unlock()
	binary.LittleEndian.PutUint16(b.mem[offset:], value)
}

// Poke8 sets an 8-bit register without recording, simulating a device-side
// write.
func (b *RegisterBlock) Poke8(offset uint32, value uint8) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.mem[offset] = value
}

// Peek16 reads a 16-bit register without recording.
func (b *RegisterBlock) Peek16(offset uint32) uint16 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return binary.LittleEndian.Uint16(b.mem[offset:])
}

// Peek8 reads an 8-bit register without recording.
func (b *RegisterBlock) Peek8(offset uint32) uint8 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.mem[offset]
}

// Accesses returns a copy of all recorded accesses.
func (b *RegisterBlock) Accesses() []Access {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Access(nil), b.accesses...)
}

// Writes returns a copy of all recorded write accesses.
func (b *RegisterBlock) Writes() []Access {
	b.mu.Lock()
	defer b.mu.Unlock()
	var writes []Access
	for _, access := range b.accesses {
		if access.IsWrite {
			writes = append(writes, access)
		}
	}
	return writes
}

// ResetAccesses drops the recorded access log.
func (b *RegisterBlock) ResetAccesses() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.accesses = nil
}
