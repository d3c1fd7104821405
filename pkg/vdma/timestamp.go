package vdma

import "time"

// ChannelInterruptTimestamp records when a channel interrupt was observed and
// the processed count the device reported at that moment.
type ChannelInterruptTimestamp struct {
	TimestampNs      uint64
	DescNumProcessed uint16
}

// ChannelTimestampList is a fixed-size circular buffer of interrupt
// timestamps. It is a diagnostic, not a correctness-critical log: on
// overflow the oldest entry is silently overwritten, and entries not read
// before being overwritten are permanently lost.
type ChannelTimestampList struct {
	head, tail int
	timestamps [ChannelIrqTimestampsSize]ChannelInterruptTimestamp
}

func (l *ChannelTimestampList) clear() {
	l.head = 0
	l.tail = 0
}

func (l *ChannelTimestampList) push(timestamp ChannelInterruptTimestamp) {
	l.timestamps[l.tail] = timestamp
	l.tail = (l.tail + 1) % ChannelIrqTimestampsSize
	if l.tail == l.head {
		// Overwrite-oldest on overflow.
		l.head = (l.head + 1) % ChannelIrqTimestampsSize
	}
}

func (l *ChannelTimestampList) pop() (ChannelInterruptTimestamp, bool) {
	if l.head == l.tail {
		return ChannelInterruptTimestamp{}, false
	}
	timestamp := l.timestamps[l.head]
	l.head = (l.head + 1) % ChannelIrqTimestampsSize
	return timestamp, true
}

// InterruptsReadTimestampParams is the drain request/result for one
// channel's timestamp ring.
type InterruptsReadTimestampParams struct {
	ChannelIndex    uint8
	TimestampsCount uint32
	Timestamps      [ChannelIrqTimestampsSize]ChannelInterruptTimestamp
}

// PushTimestamps appends the current time to the timestamp ring of every
// enabled, timestamp-armed channel in bitmap. Called on interrupt detection.
func (e *Engine) PushTimestamps(bitmap uint32) {
	now := uint64(time.Now().UnixNano())

	for i := range e.channels {
		if bitmap&(1<<i) == 0 || e.enabledChannels&(1<<i) == 0 {
			continue
		}

		channel := &e.channels[i]
		if !channel.timestampMeasureEnabled {
			continue
		}

		channel.timestampList.push(ChannelInterruptTimestamp{
			TimestampNs:      now,
			DescNumProcessed: channel.GetNumProc(),
		})
	}
}

// ReadTimestamps drains the requested channel's recorded timestamps into
// params, up to the buffer capacity.
func (e *Engine) ReadTimestamps(params *InterruptsReadTimestampParams) error {
	if params.ChannelIndex >= MaxVdmaChannelsPerEngine {
		return NewError(StatusInvalidArgument, "channel index out of range")
	}

	channel := &e.channels[params.ChannelIndex]
	params.TimestampsCount = 0
	for int(params.TimestampsCount) < len(params.Timestamps) {
		timestamp, ok := channel.timestampList.pop()
		if !ok {
			break
		}
		params.Timestamps[params.TimestampsCount] = timestamp
		params.TimestampsCount++
	}

	return nil
}
