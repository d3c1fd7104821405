package vdma

// VDMA geometry constants - must match the hardware register layouts
const (
	MaxVdmaChannelsPerEngine          = 32
	VdmaChannelsPerEnginePerDirection = 16
	MaxVdmaEngines                    = 3
	SizeOfVdmaDescriptor              = 16
	MaxSgDescsCount                   = 64 * 1024
	MaxOngoingTransfers               = 128
	MaxBuffersPerSingleTransfer       = 8
	ChannelIrqTimestampsSize          = MaxOngoingTransfers * 2
)

// MaxDirtyDescriptorsPerTransfer bounds the descriptors a single transfer may
// program with non-default values: the last descriptor of each buffer carries
// the residue size, plus the first descriptor of the transfer may carry the
// first-interrupts domain.
const MaxDirtyDescriptorsPerTransfer = MaxBuffersPerSingleTransfer + 1

// DescriptorListAlign is the required alignment of a descriptor list's base
// DMA address. The channel address registers only hold bits [63:16].
const DescriptorListAlign = 1 << 16

// InvalidVdmaAddress is the sentinel returned by HWOps encoders for ranges
// the hardware cannot express.
const InvalidVdmaAddress = 0

// Per-channel register window layout. Each channel owns a 32-byte window at
// ChannelBaseOffset(index); the host-side fields occupy the first half and
// the destination (device-side) fields mirror them at ChannelDestRegsOffset.
const (
	ChannelControlOffset  = 0x0 // 8-bit
	ChannelDepthIDOffset  = 0x1 // 8-bit
	ChannelNumAvailOffset = 0x2 // 16-bit
	ChannelNumProcOffset  = 0x4 // 16-bit
	ChannelErrorOffset    = 0x8 // 8-bit
	ChannelDestRegsOffset = 0x10

	ChannelAddressLowOffset  = 0xA // 16-bit, bits [31:16] of the list address
	ChannelAddressHighOffset = 0xC // 32-bit, bits [63:32] of the list address
)

// ChannelBaseOffset returns the byte offset of a channel's register window
// within an engine's channel register block.
func ChannelBaseOffset(channelIndex uint8) uint32 {
	return uint32(channelIndex) << 5
}

// ChannelRegistersSize is the size of one engine's channel register block.
const ChannelRegistersSize = MaxVdmaChannelsPerEngine << 5

// Channel control register bits
const (
	ChannelControlStart      = 0x1
	ChannelControlAbortPause = 0x2
	ChannelControlMask       = 0x3
)

// Descriptor word-0 encoding: the page size shares a word with the control
// bits. DescControlDefault is required on every programmed descriptor; the
// status-request bits make the hardware write completion status back into
// the descriptor (used for debug transfers).
const (
	DescPageSizeShift  = 8
	DescControlMask    = 0xFF
	DescControlDefault = 0x2
	DescStatusReq      = 1 << 2
	DescStatusReqErr   = 1 << 3
)

// Descriptor word-1 encoding: address bits [31:6] share the word with the
// per-channel data identifier tag in the low bits.
const (
	DescAddrLowMask = 0xFFFFFFC0
	DescDataIDMask  = 0x3F
)

// Descriptor status byte, written back by the device into the low bits of
// the residue/status word when status was requested.
const (
	DescStatusDoneBit  = 0x1
	DescStatusErrorBit = 0x2
	DescStatusMask     = 0xFF
)

// InterruptsDomain selects which side should be interrupted when the device
// completes a descriptor.
type InterruptsDomain uint32

const (
	InterruptsDomainNone   InterruptsDomain = 0
	InterruptsDomainDevice InterruptsDomain = 1 << 0
	InterruptsDomainHost   InterruptsDomain = 1 << 1
)
