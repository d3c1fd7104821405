package vdma

// InterruptsChannelData is one channel's servicing report, filled by
// FillIrqData.
type InterruptsChannelData struct {
	EngineIndex  uint8
	ChannelIndex uint8

	// IsActive is false when the channel has no descriptor list attached;
	// nothing can be drained for it.
	IsActive bool

	// TransfersCompleted is the number of ledger entries drained by this
	// servicing pass.
	TransfersCompleted uint8

	HostError   uint8
	DeviceError uint8

	// ValidationSuccess is false when a debug transfer's dirty descriptors
	// reported a non-success status. Diagnostic only; the transfer is still
	// drained.
	ValidationSuccess bool
}

// InterruptsWaitParams accumulates servicing reports, possibly across
// multiple engines sharing one result structure. ChannelsCount is the number
// of IrqData entries already written; FillIrqData appends after it and never
// resets fields it does not own.
type InterruptsWaitParams struct {
	ChannelsCount uint8
	IrqData       [MaxVdmaChannelsPerEngine * MaxVdmaEngines]InterruptsChannelData
}

// TransferDoneCallback is invoked synchronously from FillIrqData with each
// completed transfer. It runs on the draining path and must not block
// indefinitely. The transfer points into the channel's ledger and is only
// valid for the duration of the call.
type TransferDoneCallback func(transfer *OngoingTransfer, opaque any)

// GotInterrupt reports whether any requested channel needs servicing: it has
// a pending interrupt, or it is not currently enabled. A disabled channel is
// conservatively reported as needing attention so callers do not block
// forever waiting on a channel that was torn down.
//
// Reading the bitmasks without the engine lock is fine; the lock is needed
// only for writes.
func (e *Engine) GotInterrupt(channelsBitmap uint32) bool {
	anyInterrupt := channelsBitmap&e.interruptedChannels != 0
	anyDisabled := channelsBitmap != channelsBitmap&e.enabledChannels
	return anyDisabled || anyInterrupt
}

// SetChannelInterrupts marks channels as interrupted. Called by the
// interrupt-line collaborator when a hardware interrupt fires; must be
// called under the engine's external lock.
func (e *Engine) SetChannelInterrupts(bitmap uint32) {
	e.interruptedChannels |= bitmap
}

// ClearChannelInterrupts clears pending interrupt bits. Must be called under
// the engine's external lock.
func (e *Engine) ClearChannelInterrupts(bitmap uint32) {
	e.interruptedChannels &^= bitmap
}

// ReadInterrupts returns the requested channels that are both enabled and
// interrupted, clearing their pending bits. This is the synchronization
// hand-off point: once a bit has been read here, the caller owns servicing
// it. Must be called under the engine's external lock.
func (e *Engine) ReadInterrupts(requestedBitmap uint32) uint32 {
	// Interrupts only for channels that are requested and enabled.
	irqChannelsBitmap := requestedBitmap &
		e.enabledChannels &
		e.interruptedChannels
	e.interruptedChannels &^= irqChannelsBitmap

	return irqChannelsBitmap
}

// isDescBetween reports whether desc lies in the half-open ring range
// [begin, end).
func isDescBetween(begin, end, desc uint16) bool {
	if begin == end {
		// There are no descriptors in the range.
		return false
	}
	if begin < end {
		return begin <= desc && desc < end
	}
	// The range wraps around the ring.
	return begin <= desc || desc < end
}

// validateTransferStatus checks that every dirty descriptor of a completed
// debug transfer reports a success status.
func validateTransferStatus(descList *DescriptorList, transfer *OngoingTransfer) bool {
	for i := 0; i < transfer.DirtyDescsCount; i++ {
		desc := &descList.Descs[transfer.DirtyDescs[i]]
		if !desc.StatusDone() || desc.StatusError() {
			return false
		}
	}
	return true
}

// FillIrqData services every channel flagged in irqChannelsBitmap: reads the
// device's reported processed count, advances the channel's state toward it,
// and drains every ledger-head transfer whose last descriptor now lies in
// the processed range, invoking transferDone for each.
//
// The caller must have read-and-cleared the engine's interrupt bits for
// irqChannelsBitmap beforehand (ReadInterrupts); the bitmask hand-off is the
// synchronization point, so no lock is required here.
func (e *Engine) FillIrqData(irqData *InterruptsWaitParams, irqChannelsBitmap uint32,
	transferDone TransferDoneCallback, opaque any) error {

	for i := range e.channels {
		if irqChannelsBitmap&(1<<i) == 0 {
			continue
		}
		if int(irqData.ChannelsCount) >= len(irqData.IrqData) {
			return NewError(StatusInvalidArgument, "irq data overflow")
		}

		channel := &e.channels[i]
		data := &irqData.IrqData[irqData.ChannelsCount]
		data.EngineIndex = e.Index
		data.ChannelIndex = uint8(i)
		data.TransfersCompleted = 0
		data.ValidationSuccess = true
		data.HostError = channel.hostError()
		data.DeviceError = channel.deviceError()

		descList := channel.lastDescList
		if descList == nil {
			data.IsActive = false
			irqData.ChannelsCount++
			continue
		}
		data.IsActive = true

		hwNumProc := channel.GetNumProc() & uint16(channel.state.DescCountMask)
		for !channel.ongoingTransfers.IsEmpty() {
			transfer := channel.ongoingTransfers.Head()
			if !isDescBetween(channel.state.NumProc, hwNumProc, transfer.LastDesc) {
				break
			}

			if transfer.IsDebug && !validateTransferStatus(descList, transfer) {
				data.ValidationSuccess = false
			}

			channel.state.NumProc = uint16(uint32(transfer.LastDesc)+1) & uint16(channel.state.DescCountMask)

			transferDone(transfer, opaque)
			channel.ongoingTransfers.Pop()
			data.TransfersCompleted++
		}

		irqData.ChannelsCount++
	}

	return nil
}
