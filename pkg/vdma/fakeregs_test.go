package vdma

import "encoding/binary"

// fakeRegs is a memory-backed register window for in-package tests. The
// shared testutil fakes import this package, so tests here carry their own.
type fakeRegs struct {
	mem [ChannelRegistersSize]byte
}

func (r *fakeRegs) Read8(offset uint32) uint8 {
	return r.mem[offset]
}

func (r *fakeRegs) Write8(offset uint32, value uint8) {
	r.mem[offset] = value
}

func (r *fakeRegs) Read16(offset uint32) uint16 {
	return binary.LittleEndian.Uint16(r.mem[offset:])
}

func (r *fakeRegs) Write16(offset uint32, value uint16) {
	binary.LittleEndian.PutUint16(r.mem[offset:], value)
}

func (r *fakeRegs) Read32(offset uint32) uint32 {
	return binary.LittleEndian.Uint32(r.mem[offset:])
}

func (r *fakeRegs) Write32(offset uint32, value uint32) {
	binary.LittleEndian.PutUint32(r.mem[offset:], value)
}

// testHW returns a pcie-flavored hardware config used across the tests.
func testHW() *HW {
	return &HW{
		Ops:                     PcieHWOps{},
		DDRDataID:               0,
		HostInterruptsBitmask:   1 << 4,
		DeviceInterruptsBitmask: 1 << 5,
		SrcChannelsBitmask:      0x0000FFFF,
	}
}

// mustDescriptorList builds a descriptor list or panics.
func mustDescriptorList(count uint32, pageSize uint16, isCircular bool) *DescriptorList {
	list, err := NewDescriptorList(count, pageSize, isCircular, 0x10000)
	if err != nil {
		panic(err)
	}
	return list
}

// contiguousBuffer builds a transfer buffer of consecutive chunks starting
// at addr.
func contiguousBuffer(addr uint64, chunkSizes []uint32) MappedTransferBuffer {
	var buffer MappedTransferBuffer
	for _, size := range chunkSizes {
		buffer.SGTable = append(buffer.SGTable, SGEntry{Address: addr, Length: size})
		addr += uint64(size)
		buffer.Size += size
	}
	return buffer
}
