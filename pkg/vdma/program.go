package vdma

// SGEntry is one physically contiguous chunk of a mapped buffer, as supplied
// by the buffer-mapping collaborator.
type SGEntry struct {
	Address uint64
	Length  uint32
}

// MappedTransferBuffer describes a scatter-gather buffer plus the sub-range
// of it to transfer. Opaque is caller bookkeeping, carried through to the
// completion callback untouched.
type MappedTransferBuffer struct {
	SGTable []SGEntry
	Size    uint32
	Offset  uint32
	Opaque  any
}

// ProgramDescriptorsInChunk covers one physically contiguous chunk with
// consecutive descriptors starting at descIndex, wrapping with the list mask.
// Every descriptor is programmed with a full page except the chunk's final
// slice, which takes the remainder; interrupt adjustments are applied
// afterwards by the list programmer. descIndex and maxDescIndex are unfolded
// indices: the chunk fails if it needs more descriptors than remain before
// maxDescIndex (inclusive).
//
// Returns the number of descriptors programmed. On error no descriptor the
// device could fetch has been touched.
func ProgramDescriptorsInChunk(
	vdmaHW *HW,
	chunkAddr uint64,
	chunkSize uint32,
	descList *DescriptorList,
	descIndex uint32,
	maxDescIndex uint32,
	channelIndex uint8,
	dataID uint8,
) (int, error) {
	pageSize := uint32(descList.PageSize())
	descsToProgram := descList.DescriptorsCount(chunkSize)
	if descsToProgram == 0 {
		return 0, NewError(StatusInvalidArgument, "empty chunk")
	}
	if descIndex > maxDescIndex || descsToProgram > maxDescIndex-descIndex+1 {
		return 0, NewError(StatusNotEnoughDescriptors, "chunk does not fit before ring boundary")
	}

	// The encoder validates the whole chunk up front; partial programming
	// after a failed encode would leave descriptors the device could fetch.
	encodedAddr := vdmaHW.Ops.EncodeDescDMAAddressRange(chunkAddr, chunkAddr+uint64(chunkSize), pageSize, channelIndex)
	if encodedAddr == InvalidVdmaAddress {
		return 0, NewError(StatusInvalidAddress, "chunk not expressible by hardware addressing")
	}

	for i := uint32(0); i < descsToProgram; i++ {
		sliceSize := pageSize
		if i == descsToProgram-1 {
			sliceSize = chunkSize - (descsToProgram-1)*pageSize
		}
		desc := &descList.Descs[descList.Fold(descIndex+i)]
		desc.program(encodedAddr, sliceSize, dataID)
		encodedAddr += uint64(pageSize)
	}

	return int(descsToProgram), nil
}

// maxDescIndex returns the last unfolded index a program run starting at
// startingDesc may touch. Circular lists may wrap a full ring length past the
// starting descriptor; non-circular lists end at the last slot.
func (dl *DescriptorList) maxDescIndex(startingDesc uint32) uint32 {
	if dl.isCircular {
		return startingDesc + dl.descCount - 1
	}
	return dl.descCount - 1
}

// bufferDescriptors walks the buffer's transfer range over its scatter-gather
// chunks and returns the number of descriptors the range occupies and the
// size of its final slice. Each chunk rounds up to whole descriptors on its
// own, so chunks that are not page-size multiples push the total past
// DescriptorsCount(buffer.Size).
func (dl *DescriptorList) bufferDescriptors(buffer *MappedTransferBuffer) (uint32, uint32, error) {
	pageSize := uint32(dl.descPageSize)
	offset := buffer.Offset
	sizeLeft := buffer.Size
	totalDescs := uint32(0)
	finalSlice := uint32(0)

	for i := range buffer.SGTable {
		entry := &buffer.SGTable[i]
		if offset >= entry.Length {
			offset -= entry.Length
			continue
		}

		chunkSize := entry.Length - offset
		if chunkSize > sizeLeft {
			chunkSize = sizeLeft
		}
		offset = 0

		descs := dl.DescriptorsCount(chunkSize)
		totalDescs += descs
		finalSlice = chunkSize - (descs-1)*pageSize

		sizeLeft -= chunkSize
		if sizeLeft == 0 {
			break
		}
	}

	if sizeLeft > 0 {
		return 0, 0, NewError(StatusInvalidArgument, "sg table smaller than transfer range")
	}
	return totalDescs, finalSlice, nil
}

// programLastDescriptor rewrites the flags/size word of a buffer's final
// descriptor: the residue size replaces the full page size (the hardware
// reports how much is left, not how much was sent) and the requested
// interrupt bits are added to the default control.
func programLastDescriptor(vdmaHW *HW, descList *DescriptorList, lastDesc uint32, residueSize uint32, interrupts InterruptsDomain, isDebug bool) {
	control := uint32(DescControlDefault) | vdmaHW.interruptsBitmask(interrupts, isDebug)
	descList.Descs[lastDesc].setPageSizeControl(residueSize, control)
}

// ProgramDescriptorsList programs the run of descriptors covering buffer into
// descList starting at startingDesc.
//
// If shouldBind is false the caller asserts the buffer's chunks are already
// reflected in the list's descriptors from a previous bind, and only the
// flags/size word of the final descriptor is rewritten. Otherwise the buffer's
// scatter-gather chunks are walked and programmed chunk by chunk.
//
// The final descriptor of the buffer always carries the size of its own
// slice, the bytes remaining after all prior descriptors, and the
// lastDescInterrupts domain. Returns the number of descriptors the buffer
// occupies; on error the operation has no hardware-visible side effects.
func ProgramDescriptorsList(
	vdmaHW *HW,
	descList *DescriptorList,
	startingDesc uint32,
	buffer *MappedTransferBuffer,
	shouldBind bool,
	channelIndex uint8,
	lastDescInterrupts InterruptsDomain,
	isDebug bool,
) (int, error) {
	if buffer.Size == 0 {
		return 0, NewError(StatusInvalidArgument, "empty transfer buffer")
	}

	// Whole-buffer capacity check before the first descriptor is written;
	// the walk also yields the final slice size, which outlives the bind as
	// the last descriptor's residue.
	maxDescIndex := descList.maxDescIndex(startingDesc)
	totalDescs, residueSize, err := descList.bufferDescriptors(buffer)
	if err != nil {
		return 0, err
	}
	if startingDesc > maxDescIndex || totalDescs > maxDescIndex-startingDesc+1 {
		return 0, NewError(StatusNotEnoughDescriptors, "buffer does not fit in descriptors list")
	}

	// With shouldBind false the caller asserts a re-launch of a previously
	// bound, unchanged buffer: the interior descriptors are still valid and
	// only the final descriptor's residue and interrupt bits need updating.
	if shouldBind {
		descIndex := startingDesc
		offset := buffer.Offset
		sizeLeft := buffer.Size

		for i := range buffer.SGTable {
			entry := &buffer.SGTable[i]
			if offset >= entry.Length {
				offset -= entry.Length
				continue
			}

			chunkAddr := entry.Address + uint64(offset)
			chunkSize := entry.Length - offset
			if chunkSize > sizeLeft {
				chunkSize = sizeLeft
			}
			offset = 0

			programmed, err := ProgramDescriptorsInChunk(vdmaHW, chunkAddr, chunkSize,
				descList, descIndex, maxDescIndex, channelIndex, vdmaHW.DDRDataID)
			if err != nil {
				return 0, err
			}

			descIndex += uint32(programmed)
			sizeLeft -= chunkSize
			if sizeLeft == 0 {
				break
			}
		}
	}

	lastDesc := descList.Fold(startingDesc + totalDescs - 1)
	programLastDescriptor(vdmaHW, descList, lastDesc, residueSize, lastDescInterrupts, isDebug)

	return int(totalDescs), nil
}
