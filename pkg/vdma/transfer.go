package vdma

// OngoingTransfer is the host-side record of one in-flight logical transfer.
// It is created when the transfer is launched and never mutated afterwards,
// except for the dirty-descriptor walk when the completion is drained.
type OngoingTransfer struct {
	LastDesc uint16

	BuffersCount int
	Buffers      [MaxBuffersPerSingleTransfer]MappedTransferBuffer

	// Descriptors programmed with non-default values for this transfer:
	// different size (the residue on each buffer's final descriptor) or
	// different interrupts domain.
	DirtyDescsCount int
	DirtyDescs      [MaxDirtyDescriptorsPerTransfer]uint16

	// If set, descriptor status is validated when the transfer completes.
	IsDebug bool
}

// OngoingTransfersList is a fixed-capacity circular queue of in-flight
// transfers for one channel. Entries are pushed at the tail on launch and
// popped from the head exactly once, when the device confirms processing up
// to the entry's last descriptor. A full ledger is backpressure: the caller
// must drain completions before launching more.
type OngoingTransfersList struct {
	head, tail uint64
	transfers  [MaxOngoingTransfers]OngoingTransfer
}

// Size returns the number of in-flight transfers.
func (l *OngoingTransfersList) Size() int {
	return int(l.tail - l.head)
}

// IsEmpty reports whether no transfers are in flight.
func (l *OngoingTransfersList) IsEmpty() bool {
	return l.head == l.tail
}

// IsFull reports whether the ledger has reached its fixed capacity.
func (l *OngoingTransfersList) IsFull() bool {
	return l.Size() == MaxOngoingTransfers
}

// Clear drops all entries. Used when the channel is reset; remaining entries
// are abandoned, never completed.
func (l *OngoingTransfersList) Clear() {
	l.head = 0
	l.tail = 0
}

// Push appends a transfer at the tail.
func (l *OngoingTransfersList) Push(transfer *OngoingTransfer) error {
	if l.IsFull() {
		return NewError(StatusTooManyOngoingTransfers, "ongoing transfers ledger full")
	}
	l.transfers[l.tail%MaxOngoingTransfers] = *transfer
	l.tail++
	return nil
}

// Head returns the oldest in-flight transfer without removing it, or nil if
// the ledger is empty.
func (l *OngoingTransfersList) Head() *OngoingTransfer {
	if l.IsEmpty() {
		return nil
	}
	return &l.transfers[l.head%MaxOngoingTransfers]
}

// Pop removes the oldest in-flight transfer.
func (l *OngoingTransfersList) Pop() {
	if !l.IsEmpty() {
		l.head++
	}
}

// LaunchTransfer launches one logical transfer on a channel:
//
//  1. Binds the transfer buffers to the descriptors list (unless shouldBind
//     is false and the binding is already in place).
//  2. Programs the descriptors, applying firstInterruptsDomain to the very
//     first descriptor and lastDescInterrupts to the very last.
//  3. Advances num-available and records the transfer in the channel's
//     ongoing-transfer ledger.
//
// An empty buffers slice is a no-op. On error nothing hardware-visible has
// changed: num-available is not advanced and no ledger entry is pushed.
// Returns the number of descriptors programmed.
func LaunchTransfer(
	vdmaHW *HW,
	channel *Channel,
	descList *DescriptorList,
	startingDesc uint32,
	buffers []MappedTransferBuffer,
	shouldBind bool,
	firstInterruptsDomain InterruptsDomain,
	lastDescInterrupts InterruptsDomain,
	isDebug bool,
) (int, error) {
	if len(buffers) == 0 {
		return 0, nil
	}
	if len(buffers) > MaxBuffersPerSingleTransfer {
		return 0, NewError(StatusInvalidArgument, "too many buffers in transfer")
	}
	if startingDesc >= descList.DescCount() {
		return 0, NewError(StatusInvalidArgument, "starting desc out of range")
	}

	channel.Attach(descList)

	if channel.ongoingTransfers.IsFull() {
		return 0, NewError(StatusTooManyOngoingTransfers, "ongoing transfers ledger full")
	}

	transfer := OngoingTransfer{
		BuffersCount: len(buffers),
		IsDebug:      isDebug,
	}
	copy(transfer.Buffers[:], buffers)

	descIndex := startingDesc
	totalDescs := uint32(0)
	lastDesc := uint32(0)

	for i := range buffers {
		bufferLastInterrupts := InterruptsDomainNone
		if i == len(buffers)-1 {
			bufferLastInterrupts = lastDescInterrupts
		}

		programmed, err := ProgramDescriptorsList(vdmaHW, descList, descIndex,
			&buffers[i], shouldBind, channel.Index, bufferLastInterrupts, isDebug)
		if err != nil {
			return 0, err
		}

		// Each buffer's final descriptor deviates from default programming
		// (residue size, and interrupts on the transfer's last one).
		lastDesc = descList.Fold(descIndex + uint32(programmed) - 1)
		transfer.DirtyDescs[transfer.DirtyDescsCount] = uint16(lastDesc)
		transfer.DirtyDescsCount++

		descIndex += uint32(programmed)
		totalDescs += uint32(programmed)
	}

	if firstInterruptsDomain != InterruptsDomainNone {
		firstDesc := descList.Fold(startingDesc)
		descList.Descs[firstDesc].PageSizeDescControl |= vdmaHW.interruptsBitmask(firstInterruptsDomain, isDebug)
		transfer.DirtyDescs[transfer.DirtyDescsCount] = uint16(firstDesc)
		transfer.DirtyDescsCount++
	}

	transfer.LastDesc = uint16(lastDesc)
	if err := channel.ongoingTransfers.Push(&transfer); err != nil {
		return 0, err
	}

	channel.state.NumAvail = uint16(uint32(channel.state.NumAvail)+totalDescs) & uint16(channel.state.DescCountMask)
	channel.SetNumAvail(channel.state.NumAvail)

	return int(totalDescs), nil
}
