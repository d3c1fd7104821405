// Package mmio maps device register regions into the process and exposes
// them as register windows for the VDMA core. Accesses go through the
// mapping on every call; nothing is cached on the host side.
package mmio

import (
	"fmt"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Region is a memory-mapped device register region, typically one PCIe BAR
// or a slice of it.
type Region struct {
	mem []byte
}

// Map maps length bytes of the device at the given file offset. The region
// stays mapped until Close.
func Map(fd int, offset int64, length int) (*Region, error) {
	if length <= 0 {
		return nil, fmt.Errorf("invalid region length %d", length)
	}

	mem, err := unix.Mmap(fd, offset, length, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap of %d bytes at offset %#x failed: %w", length, offset, err)
	}

	return &Region{mem: mem}, nil
}

// MapAnonymous maps a zero-filled private region. Useful for harnesses that
// run the core without hardware.
func MapAnonymous(length int) (*Region, error) {
	if length <= 0 {
		return nil, fmt.Errorf("invalid region length %d", length)
	}

	mem, err := unix.Mmap(-1, 0, length, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, fmt.Errorf("anonymous mmap of %d bytes failed: %w", length, err)
	}

	return &Region{mem: mem}, nil
}

// Len returns the region size in bytes.
func (r *Region) Len() int {
	return len(r.mem)
}

// Close unmaps the region. The region and all windows into it become
// invalid.
func (r *Region) Close() error {
	if r.mem == nil {
		return nil
	}
	err := unix.Munmap(r.mem)
	r.mem = nil
	return err
}

// Window returns a register window over [offset, offset+length) of the
// region. It implements vdma.RegisterWindow.
func (r *Region) Window(offset, length uint32) (*Window, error) {
	if uint64(offset)+uint64(length) > uint64(len(r.mem)) {
		return nil, fmt.Errorf("window [%#x, %#x) outside region of %d bytes", offset, offset+length, len(r.mem))
	}
	return &Window{mem: r.mem[offset : offset+length]}, nil
}

// Window is a bounded view into a mapped register region. A mis-sized or
// misaligned access is a driver bug, so it panics rather than returning an
// error.
type Window struct {
	mem []byte
}

func (w *Window) check(offset, size uint32) {
	if uint64(offset)+uint64(size) > uint64(len(w.mem)) {
		panic(fmt.Sprintf("mmio: access of %d bytes at %#x outside window of %d bytes", size, offset, len(w.mem)))
	}
	if offset%size != 0 {
		panic(fmt.Sprintf("mmio: unaligned %d-byte access at %#x", size, offset))
	}
}

// Read8 reads an 8-bit register.
func (w *Window) Read8(offset uint32) uint8 {
	w.check(offset, 1)
	return *(*uint8)(unsafe.Pointer(&w.mem[offset]))
}

// Write8 writes an 8-bit register.
func (w *Window) Write8(offset uint32, value uint8) {
	w.check(offset, 1)
	*(*uint8)(unsafe.Pointer(&w.mem[offset])) = value
}

// Read16 reads a 16-bit register.
func (w *Window) Read16(offset uint32) uint16 {
	w.check(offset, 2)
	return *(*uint16)(unsafe.Pointer(&w.mem[offset]))
}

// Write16 writes a 16-bit register.
func (w *Window) Write16(offset uint32, value uint16) {
	w.check(offset, 2)
	*(*uint16)(unsafe.Pointer(&w.mem[offset])) = value
}

// Read32 reads a 32-bit register. 32-bit accesses are atomic so they are
// never torn or elided.
func (w *Window) Read32(offset uint32) uint32 {
	w.check(offset, 4)
	return atomic.LoadUint32((*uint32)(unsafe.Pointer(&w.mem[offset])))
}

// Write32 writes a 32-bit register.
func (w *Window) Write32(offset uint32, value uint32) {
	w.check(offset, 4)
	atomic.StoreUint32((*uint32)(unsafe.Pointer(&w.mem[offset])), value)
}
