package vdma

import "math/bits"

// ChannelState tracks the host's view of a channel's counter pair. NumAvail
// is synchronized to the hardware num-avail register whenever a transfer is
// launched; NumProc is the last processed count observed when interrupts
// were drained. Both wrap at the attached list's descriptor-count mask.
type ChannelState struct {
	NumAvail uint16
	NumProc  uint16

	// Mask of the num-avail/num-proc counters, mirrored from the attached
	// descriptor list.
	DescCountMask uint32
}

func (s *ChannelState) reset(descCountMask uint32) {
	s.NumAvail = 0
	s.NumProc = 0
	s.DescCountMask = descCountMask
}

// Channel is a single directional DMA queue. All channel state is local to
// the channel: distinct channels of one engine may be driven from distinct
// goroutines concurrently, but a single channel must not be.
type Channel struct {
	Index uint8

	regs RegisterWindow
	base uint32

	// Last descriptor list attached to the channel. When a different list
	// object is attached, the channel is assumed to have been reset and all
	// counters and the ongoing-transfer ledger are reinitialized.
	lastDescList *DescriptorList

	state            ChannelState
	ongoingTransfers OngoingTransfersList

	timestampMeasureEnabled bool
	timestampList           ChannelTimestampList
}

func (ch *Channel) init(index uint8, regs RegisterWindow) {
	ch.Index = index
	ch.regs = regs
	ch.base = ChannelBaseOffset(index)
}

func (ch *Channel) hostOffset(offset uint32) uint32 {
	return ch.base + offset
}

func (ch *Channel) deviceOffset(offset uint32) uint32 {
	return ch.base + ChannelDestRegsOffset + offset
}

// State returns a snapshot of the channel's counters.
func (ch *Channel) State() ChannelState {
	return ch.state
}

// DescriptorList returns the attached descriptor list, or nil if the channel
// is idle.
func (ch *Channel) DescriptorList() *DescriptorList {
	return ch.lastDescList
}

// OngoingTransfersCount returns the number of in-flight transfers in the
// channel's ledger.
func (ch *Channel) OngoingTransfersCount() int {
	return ch.ongoingTransfers.Size()
}

// Attach makes descList the channel's current descriptor list. Attaching a
// different list object than the one previously attached is the channel
// reset signal: the hardware ring position no longer correlates with the
// host's prior bookkeeping, so the counters and the ongoing-transfer ledger
// are cleared.
func (ch *Channel) Attach(descList *DescriptorList) {
	if ch.lastDescList == descList {
		return
	}
	ch.lastDescList = descList
	ch.state.reset(descList.DescCountMask())
	ch.ongoingTransfers.Clear()
}

// SetNumAvail writes the host-side num-available register, making all
// descriptors up to (but excluding) that index visible to the device.
func (ch *Channel) SetNumAvail(numAvail uint16) {
	ch.regs.Write16(ch.hostOffset(ChannelNumAvailOffset), numAvail)
}

// GetNumProc reads the device's reported processed count from the host-side
// register window.
func (ch *Channel) GetNumProc() uint16 {
	return ch.regs.Read16(ch.hostOffset(ChannelNumProcOffset))
}

// hostError and deviceError read the per-side error registers.
func (ch *Channel) hostError() uint8 {
	return ch.regs.Read8(ch.hostOffset(ChannelErrorOffset))
}

func (ch *Channel) deviceError() uint8 {
	return ch.regs.Read8(ch.deviceOffset(ChannelErrorOffset))
}

// descListDepth returns the log2 of the register-visible ring size: the
// descriptor count rounded up to a power of two.
func descListDepth(descCount uint32) uint8 {
	if descCount&(descCount-1) == 0 {
		return uint8(bits.Len32(descCount) - 1)
	}
	return uint8(bits.Len32(descCount))
}

// start issues the hardware start sequence: program the descriptor list base
// address, ring depth and data-identifier tag, then set the start bit. The
// list address must be DescriptorListAlign-aligned since the address
// registers only hold bits [63:16].
func (ch *Channel) start(descDMAAddress uint64, descCount uint32, dataID uint8) error {
	if descDMAAddress == InvalidVdmaAddress || descDMAAddress&(DescriptorListAlign-1) != 0 {
		return NewError(StatusInvalidArgument, "unaligned desc list address")
	}
	if descCount == 0 || descCount > MaxSgDescsCount {
		return NewError(StatusInvalidArgument, "desc count out of range")
	}

	ch.stop()

	depth := descListDepth(descCount)
	ch.regs.Write16(ch.hostOffset(ChannelAddressLowOffset), uint16(descDMAAddress>>16))
	ch.regs.Write32(ch.hostOffset(ChannelAddressHighOffset), uint32(descDMAAddress>>32))
	ch.regs.Write8(ch.hostOffset(ChannelDepthIDOffset), depth<<4|dataID&0xF)
	ch.regs.Write8(ch.hostOffset(ChannelControlOffset), ChannelControlStart)
	return nil
}

// stop issues the hardware stop sequence on both sides of the channel and
// clears the programmed address.
func (ch *Channel) stop() {
	ch.regs.Write8(ch.hostOffset(ChannelControlOffset), ChannelControlAbortPause)
	ch.regs.Write8(ch.deviceOffset(ChannelControlOffset), ChannelControlAbortPause)
	ch.regs.Write16(ch.hostOffset(ChannelAddressLowOffset), 0)
	ch.regs.Write32(ch.hostOffset(ChannelAddressHighOffset), 0)
	ch.regs.Write8(ch.hostOffset(ChannelDepthIDOffset), 0)
}
