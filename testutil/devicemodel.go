package testutil

import (
	"sync"

	"github.com/lothran/hailort-drivers/pkg/vdma"
)

// DeviceModel walks descriptor rings the way the hardware DMA fetch logic
// would: it consumes descriptors between the processed and available
// counters, writes completion status into descriptors that requested it,
// advances the num-processed register, and raises channel interrupts through
// the engine's raw interrupt primitive under the engine's external lock.
type DeviceModel struct {
	mu sync.Mutex

	regs   vdma.RegisterWindow
	engine *vdma.Engine

	// IrqLock is the engine's external interrupt lock; the model takes it
	// around SetChannelInterrupts exactly as an interrupt line would.
	irqLock sync.Locker

	hostInterruptsBitmask uint32

	numProc [vdma.MaxVdmaChannelsPerEngine]uint16
}

// NewDeviceModel creates a device model over an engine's register block.
// hostInterruptsBitmask is the descriptor control bitmask that requests a
// host-side interrupt on this hardware generation.
func NewDeviceModel(regs vdma.RegisterWindow, engine *vdma.Engine, irqLock sync.Locker, hostInterruptsBitmask uint32) *DeviceModel {
	return &DeviceModel{
		regs:                  regs,
		engine:                engine,
		irqLock:               irqLock,
		hostInterruptsBitmask: hostInterruptsBitmask,
	}
}

// RingLock returns the lock that orders host descriptor programming against
// the model's ring walks. Real hardware observes descriptors coherently once
// num-available is written; the model shares plain Go memory with the
// launching goroutines, so launch and drain operations on channels the model
// services must run under this lock.
func (m *DeviceModel) RingLock() sync.Locker {
	return &m.mu
}

// ServiceChannel consumes every descriptor the host has made available on
// one channel. Returns the number of descriptors consumed.
func (m *DeviceModel) ServiceChannel(channelIndex uint8) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.serviceChannelLocked(channelIndex)
}

// Service consumes available descriptors on every enabled channel and
// returns the bitmap of channels that made progress.
func (m *DeviceModel) Service() uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()

	var progressed uint32
	enabled := m.engine.EnabledChannels()
	for i := uint8(0); i < vdma.MaxVdmaChannelsPerEngine; i++ {
		if enabled&(1<<i) == 0 {
			continue
		}
		if m.serviceChannelLocked(i) > 0 {
			progressed |= 1 << i
		}
	}
	return progressed
}

func (m *DeviceModel) serviceChannelLocked(channelIndex uint8) int {
	descList := m.engine.Channel(channelIndex).DescriptorList()
	if descList == nil {
		return 0
	}

	base := vdma.ChannelBaseOffset(channelIndex)
	numAvail := m.regs.Read16(base+vdma.ChannelNumAvailOffset) & uint16(descList.DescCountMask())

	consumed := 0
	interrupt := false
	for m.numProc[channelIndex] != numAvail {
		desc := &descList.Descs[m.numProc[channelIndex]]
		if desc.Control()&vdma.DescStatusReq != 0 {
			desc.RemainingPageSizeStatus = vdma.DescStatusDoneBit
		}
		if desc.Control()&m.hostInterruptsBitmask != 0 {
			interrupt = true
		}

		m.numProc[channelIndex] = uint16(uint32(m.numProc[channelIndex])+1) & uint16(descList.DescCountMask())
		consumed++
	}

	if consumed > 0 {
		m.regs.Write16(base+vdma.ChannelNumProcOffset, m.numProc[channelIndex])
	}
	if interrupt {
		m.irqLock.Lock()
		m.engine.SetChannelInterrupts(1 << channelIndex)
		m.irqLock.Unlock()
	}

	return consumed
}

// InjectChannelError sets a channel's host-side error register, simulating a
// hardware fault.
func (m *DeviceModel) InjectChannelError(channelIndex uint8, errorCode uint8) {
	base := vdma.ChannelBaseOffset(channelIndex)
	m.regs.Write8(base+vdma.ChannelErrorOffset, errorCode)
}
