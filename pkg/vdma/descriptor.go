package vdma

import (
	"encoding/binary"
	"math/bits"
)

// Descriptor is one 16-byte hardware DMA descriptor. The field order and
// widths are hardware-dictated: four little-endian 32-bit words holding the
// page size and control flags, the low address bits and data-identifier tag,
// the high address bits, and a residue-size/status word. Once a descriptor
// has been made available to the device, only the device may alter the
// residue/status word; the host may re-program the descriptor only after the
// counters confirm the device has consumed it.
type Descriptor struct {
	PageSizeDescControl     uint32
	AddrLowDataID           uint32
	AddrHigh                uint32
	RemainingPageSizeStatus uint32
}

// program writes the default encoding for one address chunk: full page size,
// default control bits, address split across the low/high words with the
// data-identifier tag folded into the low word, and a cleared status word.
func (d *Descriptor) program(address uint64, pageSize uint32, dataID uint8) {
	d.PageSizeDescControl = pageSize<<DescPageSizeShift | DescControlDefault
	d.AddrLowDataID = uint32(address)&DescAddrLowMask | uint32(dataID)&DescDataIDMask
	d.AddrHigh = uint32(address >> 32)
	d.RemainingPageSizeStatus = 0
}

// setPageSizeControl rewrites the whole first word. Used when a descriptor
// deviates from default programming (residue size, interrupt bits).
func (d *Descriptor) setPageSizeControl(pageSize uint32, control uint32) {
	d.PageSizeDescControl = pageSize<<DescPageSizeShift | control&DescControlMask
}

// PageSize returns the programmed page (or residue) size.
func (d *Descriptor) PageSize() uint32 {
	return d.PageSizeDescControl >> DescPageSizeShift
}

// Control returns the programmed control bits.
func (d *Descriptor) Control() uint32 {
	return d.PageSizeDescControl & DescControlMask
}

// Address reconstructs the programmed DMA address, without the data id tag.
func (d *Descriptor) Address() uint64 {
	return uint64(d.AddrHigh)<<32 | uint64(d.AddrLowDataID&DescAddrLowMask)
}

// DataID returns the data-identifier tag programmed into the address word.
func (d *Descriptor) DataID() uint8 {
	return uint8(d.AddrLowDataID & DescDataIDMask)
}

// status returns the device-written status byte.
func (d *Descriptor) status() uint32 {
	return d.RemainingPageSizeStatus & DescStatusMask
}

// StatusDone reports whether the device marked the descriptor complete.
func (d *Descriptor) StatusDone() bool {
	return d.status()&DescStatusDoneBit != 0
}

// StatusError reports whether the device marked the descriptor with an error.
func (d *Descriptor) StatusError() bool {
	return d.status()&DescStatusErrorBit != 0
}

// Put marshals the descriptor into b, which must hold SizeOfVdmaDescriptor
// bytes, in the exact device-visible layout.
func (d *Descriptor) Put(b []byte) {
	_ = b[SizeOfVdmaDescriptor-1]
	binary.LittleEndian.PutUint32(b[0:4], d.PageSizeDescControl)
	binary.LittleEndian.PutUint32(b[4:8], d.AddrLowDataID)
	binary.LittleEndian.PutUint32(b[8:12], d.AddrHigh)
	binary.LittleEndian.PutUint32(b[12:16], d.RemainingPageSizeStatus)
}

// Load unmarshals the descriptor from device-visible memory.
func (d *Descriptor) Load(b []byte) {
	_ = b[SizeOfVdmaDescriptor-1]
	d.PageSizeDescControl = binary.LittleEndian.Uint32(b[0:4])
	d.AddrLowDataID = binary.LittleEndian.Uint32(b[4:8])
	d.AddrHigh = binary.LittleEndian.Uint32(b[8:12])
	d.RemainingPageSizeStatus = binary.LittleEndian.Uint32(b[12:16])
}

// DescriptorList is the ordered sequence of descriptors the device's DMA
// fetch logic walks. A list is owned by exactly one channel at a time;
// attaching a different list object to a channel signals a channel reset.
type DescriptorList struct {
	Descs []Descriptor

	descCount uint32
	// The nearest power of 2 to descCount (including descCount), minus 1.
	// If the list is circular, 'index & descCountMask' replaces modulo.
	// Otherwise indices never wrap, and for any index < descCount the mask
	// still returns the same value as modulo.
	descCountMask uint32
	descPageSize  uint16
	isCircular    bool
	dmaAddress    uint64
}

// NewDescriptorList allocates a descriptor list. Circular lists must have a
// power-of-two descCount. dmaAddress is the device-visible base address of
// the list's backing memory and must be DescriptorListAlign-aligned.
func NewDescriptorList(descCount uint32, pageSize uint16, isCircular bool, dmaAddress uint64) (*DescriptorList, error) {
	if descCount == 0 || descCount > MaxSgDescsCount {
		return nil, NewError(StatusInvalidArgument, "desc count out of range")
	}
	if pageSize == 0 {
		return nil, NewError(StatusInvalidArgument, "zero desc page size")
	}
	if isCircular && descCount&(descCount-1) != 0 {
		return nil, NewError(StatusInvalidArgument, "circular list desc count must be a power of two")
	}
	if dmaAddress&(DescriptorListAlign-1) != 0 {
		return nil, NewError(StatusInvalidArgument, "desc list dma address not aligned")
	}

	return &DescriptorList{
		Descs:         make([]Descriptor, descCount),
		descCount:     descCount,
		descCountMask: descCountMask(descCount),
		descPageSize:  pageSize,
		isCircular:    isCircular,
		dmaAddress:    dmaAddress,
	}, nil
}

func descCountMask(descCount uint32) uint32 {
	if descCount&(descCount-1) == 0 {
		return descCount - 1
	}
	return 1<<bits.Len32(descCount) - 1
}

// DescCount returns the number of descriptors in the list.
func (dl *DescriptorList) DescCount() uint32 {
	return dl.descCount
}

// DescCountMask returns the index-folding mask.
func (dl *DescriptorList) DescCountMask() uint32 {
	return dl.descCountMask
}

// PageSize returns the per-descriptor page size.
func (dl *DescriptorList) PageSize() uint16 {
	return dl.descPageSize
}

// IsCircular reports whether the device wraps from the last descriptor back
// to the first.
func (dl *DescriptorList) IsCircular() bool {
	return dl.isCircular
}

// DMAAddress returns the device-visible base address of the list.
func (dl *DescriptorList) DMAAddress() uint64 {
	return dl.dmaAddress
}

// Fold folds an index into the list. For circular lists this wraps; for
// non-circular lists the index must already be below DescCount.
func (dl *DescriptorList) Fold(index uint32) uint32 {
	return index & dl.descCountMask
}

// DescriptorsCount returns the number of descriptors needed to cover size
// bytes at the list's page size.
func (dl *DescriptorList) DescriptorsCount(size uint32) uint32 {
	pageSize := uint32(dl.descPageSize)
	return (size + pageSize - 1) / pageSize
}

// EncodedSize returns the byte size of the list's device-visible image.
func (dl *DescriptorList) EncodedSize() int {
	return int(dl.descCount) * SizeOfVdmaDescriptor
}

// Encode marshals the whole list into b in the device-visible layout. b must
// hold EncodedSize bytes.
func (dl *DescriptorList) Encode(b []byte) error {
	if len(b) < dl.EncodedSize() {
		return NewError(StatusInvalidArgument, "encode buffer too small")
	}
	for i := range dl.Descs {
		dl.Descs[i].Put(b[i*SizeOfVdmaDescriptor:])
	}
	return nil
}
