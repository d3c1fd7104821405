package vdma

// RegisterWindow is the register I/O contract the core programs channels
// through. Offsets are byte offsets into the window. Implementations must
// deliver every access to the device: no caching and no coalescing, since
// ordering and volatility are part of the contract. Register windows are
// therefore not modeled as ordinary addressable memory.
type RegisterWindow interface {
	Read8(offset uint32) uint8
	Write8(offset uint32, value uint8)
	Read16(offset uint32) uint16
	Write16(offset uint32, value uint16)
	Read32(offset uint32) uint32
	Write32(offset uint32, value uint32)
}
