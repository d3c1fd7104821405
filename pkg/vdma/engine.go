package vdma

// Engine is a fixed-size bank of channels sharing one enabled/interrupted
// bitmask pair. Bit i of each bitmask refers to channel i. A channel index is
// meaningful only while its bit is set in the enabled mask.
//
// The engine performs no locking itself: the raw interrupt primitives
// (SetChannelInterrupts, ClearChannelInterrupts, ReadInterrupts) race with
// hardware interrupt delivery and must all be called under one external lock
// per engine.
type Engine struct {
	Index uint8

	enabledChannels     uint32
	interruptedChannels uint32

	channels [MaxVdmaChannelsPerEngine]Channel
}

// NewEngine initializes an engine over its channel register block.
// channelRegs must span ChannelRegistersSize bytes.
func NewEngine(index uint8, channelRegs RegisterWindow) *Engine {
	engine := &Engine{Index: index}
	for i := range engine.channels {
		engine.channels[i].init(uint8(i), channelRegs)
	}
	return engine
}

// Channel returns the channel at the given index.
func (e *Engine) Channel(index uint8) *Channel {
	return &e.channels[index]
}

// EnabledChannels returns the bitmask of currently enabled channels.
func (e *Engine) EnabledChannels() uint32 {
	return e.enabledChannels
}

// InterruptedChannels returns the bitmask of channels with a pending,
// unacknowledged interrupt.
func (e *Engine) InterruptedChannels() uint32 {
	return e.interruptedChannels
}

// EnableChannels transitions every channel set in bitmap to its active
// state: marks it enabled, optionally arms its timestamp ring, and issues
// the hardware start sequence for channels that have a descriptor list
// attached (programming the list base address, ring depth and
// data-identifier tag into the channel's register window). Enabling is
// atomic across the bitmap: if any start fails, channels started earlier in
// the sweep are stopped again and no enabled bit is set.
func (e *Engine) EnableChannels(vdmaHW *HW, bitmap uint32, measureTimestamp bool) error {
	for i := range e.channels {
		if bitmap&(1<<i) == 0 {
			continue
		}

		channel := &e.channels[i]
		channel.timestampMeasureEnabled = measureTimestamp
		if measureTimestamp {
			channel.timestampList.clear()
		}

		if list := channel.lastDescList; list != nil {
			if err := channel.start(list.DMAAddress(), list.DescCount(), vdmaHW.DDRDataID); err != nil {
				for j := 0; j <= i; j++ {
					if bitmap&(1<<j) == 0 {
						continue
					}
					e.channels[j].stop()
					e.channels[j].timestampMeasureEnabled = false
				}
				return err
			}
		}
	}

	e.enabledChannels |= bitmap
	return nil
}

// DisableChannels issues the hardware stop sequence for every channel set in
// bitmap and marks it idle. In-flight hardware transfers cannot be aborted;
// remaining ledger entries for a disabled channel are abandoned.
func (e *Engine) DisableChannels(bitmap uint32) {
	for i := range e.channels {
		if bitmap&(1<<i) == 0 {
			continue
		}
		e.channels[i].stop()
		e.channels[i].timestampMeasureEnabled = false
	}

	e.enabledChannels &^= bitmap
}
