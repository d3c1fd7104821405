package vdma

// HWOps is the pluggable address-encoding strategy for one hardware
// generation. It is selected once when the engine bank is configured, never
// per operation.
type HWOps interface {
	// EncodeDescDMAAddressRange accepts the start (inclusive) and end
	// (exclusive) of an address range together with the step between
	// consecutive chunk starts. It returns an encoded base value such that
	// base, base+step, base+2*step, ... are valid device-addressable chunk
	// starts up to the end address, or InvalidVdmaAddress if the range or
	// step cannot be expressed by this hardware.
	EncodeDescDMAAddressRange(start, end uint64, step uint32, channelID uint8) uint64
}

// HW holds the per-hardware-generation configuration shared by all engines
// of a device.
type HW struct {
	Ops HWOps

	// DDRDataID is the data-identifier tag of host memory addresses.
	DDRDataID uint8

	// Control bits to set on a descriptor to raise an interrupt towards
	// either side. Values differ per hardware generation.
	HostInterruptsBitmask   uint32
	DeviceInterruptsBitmask uint32

	// SrcChannelsBitmask marks which channel indexes are source (host to
	// device) channels on this hardware (pcie/dram - 0x0000FFFF, pci ep -
	// 0xFFFF0000).
	SrcChannelsBitmask uint32
}

// interruptsBitmask translates an interrupts domain into descriptor control
// bits. Debug transfers additionally request write-back of completion status
// so it can be validated after the transfer is drained.
func (hw *HW) interruptsBitmask(domain InterruptsDomain, isDebug bool) uint32 {
	var bitmask uint32
	if domain&InterruptsDomainDevice != 0 {
		bitmask |= hw.DeviceInterruptsBitmask
	}
	if domain&InterruptsDomainHost != 0 {
		bitmask |= hw.HostInterruptsBitmask
	}
	if isDebug {
		bitmask |= DescStatusReq | DescStatusReqErr
	}
	return bitmask
}

// CheckChannelIndex reports whether a channel index matches the requested
// direction on this hardware.
func CheckChannelIndex(channelIndex uint8, srcChannelsBitmask uint32, isInputChannel bool) bool {
	if channelIndex >= MaxVdmaChannelsPerEngine {
		return false
	}
	isSrc := srcChannelsBitmask&(1<<channelIndex) != 0
	return isInputChannel == isSrc
}

// PcieHWOps encodes addresses for flat 64-bit addressing hardware. Chunk
// starts must be aligned to the descriptor address precision since the low
// address bits of a descriptor are shared with the data-identifier tag.
type PcieHWOps struct{}

// EncodeDescDMAAddressRange implements HWOps.
func (PcieHWOps) EncodeDescDMAAddressRange(start, end uint64, step uint32, channelID uint8) uint64 {
	if step == 0 || start == 0 || start >= end {
		return InvalidVdmaAddress
	}
	if start&uint64(DescDataIDMask) != 0 {
		return InvalidVdmaAddress
	}
	return start
}

// DramHWOps encodes addresses for banked hardware generations: the channel
// id is folded into the address above the bank bits, and a single descriptor
// run may not cross a bank boundary.
type DramHWOps struct{}

const (
	dramBankShift    = 40
	dramBankMask     = uint64(1)<<dramBankShift - 1
	dramChannelShift = dramBankShift
)

// EncodeDescDMAAddressRange implements HWOps.
func (DramHWOps) EncodeDescDMAAddressRange(start, end uint64, step uint32, channelID uint8) uint64 {
	if step == 0 || start == 0 || start >= end {
		return InvalidVdmaAddress
	}
	if start&uint64(DescDataIDMask) != 0 {
		return InvalidVdmaAddress
	}
	if start>>dramBankShift != (end-1)>>dramBankShift {
		// The run would cross a bank boundary.
		return InvalidVdmaAddress
	}
	return uint64(channelID)<<dramChannelShift | start&dramBankMask
}
