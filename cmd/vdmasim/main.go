// vdmasim runs the VDMA control core against the software device model: a
// configurable number of channels each launch a stream of transfers while a
// device goroutine walks the rings, and the interrupt path drains completions.
// It exercises the full launch/service/drain cycle without hardware.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/lothran/hailort-drivers/pkg/mmio"
	"github.com/lothran/hailort-drivers/pkg/vdma"
	"github.com/lothran/hailort-drivers/testutil"
)

var (
	channelCount  = flag.Int("channels", 4, "number of channels to drive (1-16)")
	transferCount = flag.Int("transfers", 256, "transfers to launch per channel")
	ringSize      = flag.Int("ring", 64, "descriptors per channel ring (power of two)")
	pageSize      = flag.Int("page-size", 512, "descriptor page size in bytes")
	descsPerXfer  = flag.Int("descs-per-transfer", 4, "descriptors per transfer")
	debugXfers    = flag.Bool("debug-transfers", false, "request and validate per-descriptor completion status")
	timestamps    = flag.Bool("timestamps", false, "record interrupt timestamps and report them at the end")
	logLevel      = flag.String("log-level", "info", "logrus level (debug, info, warn, error)")
)

// Descriptor control bits that raise interrupts on this simulated hardware
// generation.
const (
	hostInterruptsBitmask   = 1 << 4
	deviceInterruptsBitmask = 1 << 5
)

func main() {
	flag.Parse()

	log := logrus.New()
	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid log level %q: %v\n", *logLevel, err)
		os.Exit(2)
	}
	log.SetLevel(level)

	if err := run(log); err != nil {
		log.WithError(err).Fatal("simulation failed")
	}
}

func run(log *logrus.Logger) error {
	if *channelCount < 1 || *channelCount > vdma.VdmaChannelsPerEnginePerDirection {
		return fmt.Errorf("channels must be in [1, %d]", vdma.VdmaChannelsPerEnginePerDirection)
	}
	if *ringSize < 2 || *ringSize > vdma.MaxSgDescsCount || *ringSize&(*ringSize-1) != 0 {
		return fmt.Errorf("ring must be a power of two in [2, %d]", vdma.MaxSgDescsCount)
	}
	if *descsPerXfer < 1 || *descsPerXfer >= *ringSize {
		return fmt.Errorf("descs-per-transfer must be in [1, ring)")
	}
	// Chunk starts share their low bits with the data-identifier tag, so the
	// simulated buffers must stay 64-byte aligned.
	if *pageSize < 64 || *pageSize > 0xFFFF || *pageSize%64 != 0 {
		return fmt.Errorf("page-size must be a multiple of 64 in [64, 65535]")
	}

	region, err := mmio.MapAnonymous(vdma.ChannelRegistersSize)
	if err != nil {
		return err
	}
	defer region.Close()
	window, err := region.Window(0, vdma.ChannelRegistersSize)
	if err != nil {
		return err
	}

	hw := &vdma.HW{
		Ops:                     vdma.PcieHWOps{},
		DDRDataID:               0,
		HostInterruptsBitmask:   hostInterruptsBitmask,
		DeviceInterruptsBitmask: deviceInterruptsBitmask,
		SrcChannelsBitmask:      0x0000FFFF,
	}
	engine := vdma.NewEngine(0, window)
	var irqLock sync.Mutex
	model := testutil.NewDeviceModel(window, engine, &irqLock, hw.HostInterruptsBitmask)

	channelsBitmap := uint32(1)<<*channelCount - 1
	for i := 0; i < *channelCount; i++ {
		// Simulated list base addresses, one aligned slot per channel.
		list, err := vdma.NewDescriptorList(uint32(*ringSize), uint16(*pageSize), true,
			uint64(i+1)<<20)
		if err != nil {
			return err
		}
		engine.Channel(uint8(i)).Attach(list)
	}
	if err := engine.EnableChannels(hw, channelsBitmap, *timestamps); err != nil {
		return err
	}

	log.WithFields(logrus.Fields{
		"channels":  *channelCount,
		"transfers": *transferCount,
		"ring":      *ringSize,
		"page_size": *pageSize,
	}).Info("starting simulation")

	// Device servicing loop. It keeps walking the rings until every launcher
	// has drained its transfers.
	quit := make(chan struct{})
	var deviceDone sync.WaitGroup
	deviceDone.Add(1)
	go func() {
		defer deviceDone.Done()
		for {
			select {
			case <-quit:
				return
			default:
			}
			if model.Service() == 0 {
				time.Sleep(50 * time.Microsecond)
			}
		}
	}()

	start := time.Now()
	var group errgroup.Group
	for i := 0; i < *channelCount; i++ {
		index := uint8(i)
		group.Go(func() error {
			return driveChannel(log, hw, engine, model, &irqLock, index)
		})
	}
	err = group.Wait()
	close(quit)
	deviceDone.Wait()
	if err != nil {
		return err
	}

	elapsed := time.Since(start)
	total := *channelCount * *transferCount
	log.WithFields(logrus.Fields{
		"transfers": total,
		"elapsed":   elapsed.Round(time.Millisecond),
		"rate":      fmt.Sprintf("%.0f/s", float64(total)/elapsed.Seconds()),
	}).Info("simulation complete")

	if *timestamps {
		reportTimestamps(log, engine, channelsBitmap)
	}

	engine.DisableChannels(channelsBitmap)
	return nil
}

// driveChannel launches transfers on one channel and drains its completions.
// Each channel is owned by exactly one goroutine; the interrupt bitmask
// hand-off takes the shared engine lock, and descriptor/counter access is
// ordered against the device goroutine by the model's ring lock.
func driveChannel(log *logrus.Logger, hw *vdma.HW, engine *vdma.Engine,
	model *testutil.DeviceModel, irqLock *sync.Mutex, index uint8) error {
	channel := engine.Channel(index)
	list := channel.DescriptorList()
	clog := log.WithField("channel", index)
	ringLock := model.RingLock()

	transferSize := uint32(*descsPerXfer) * uint32(*pageSize)
	bufferBase := uint64(index+1) << 28

	launched := 0
	completed := 0
	outstanding := uint32(0)
	startingDesc := uint32(0)

	drain := func() error {
		irqLock.Lock()
		var irqBitmap uint32
		if engine.GotInterrupt(1 << index) {
			irqBitmap = engine.ReadInterrupts(1 << index)
		}
		irqLock.Unlock()
		if irqBitmap == 0 {
			time.Sleep(20 * time.Microsecond)
			return nil
		}

		ringLock.Lock()
		if *timestamps {
			engine.PushTimestamps(irqBitmap)
		}
		var params vdma.InterruptsWaitParams
		err := engine.FillIrqData(&params, irqBitmap, func(transfer *vdma.OngoingTransfer, _ any) {
			completed++
			outstanding -= transferSize / uint32(*pageSize)
		}, nil)
		ringLock.Unlock()
		if err != nil {
			return err
		}

		data := &params.IrqData[0]
		if data.HostError != 0 || data.DeviceError != 0 {
			return fmt.Errorf("channel %d reported errors: host %#x device %#x",
				index, data.HostError, data.DeviceError)
		}
		if !data.ValidationSuccess {
			return fmt.Errorf("channel %d transfer status validation failed", index)
		}
		clog.WithFields(logrus.Fields{
			"drained":   data.TransfersCompleted,
			"completed": completed,
		}).Debug("drained interrupts")
		return nil
	}

	for completed < *transferCount {
		if launched < *transferCount {
			// Keep one ring slot free so available never catches up with
			// processed from behind.
			if outstanding+uint32(*descsPerXfer) < uint32(*ringSize) {
				buffer := vdma.MappedTransferBuffer{
					SGTable: []vdma.SGEntry{{
						Address: bufferBase + uint64(launched%8)*uint64(transferSize+0x40),
						Length:  transferSize,
					}},
					Size: transferSize,
				}
				ringLock.Lock()
				programmed, err := vdma.LaunchTransfer(hw, channel, list, startingDesc,
					[]vdma.MappedTransferBuffer{buffer}, true,
					vdma.InterruptsDomainNone, vdma.InterruptsDomainHost, *debugXfers)
				ringLock.Unlock()
				switch {
				case errors.Is(err, vdma.ErrTooManyOngoingTransfers):
					// Ledger backpressure, fall through to draining.
				case err != nil:
					return err
				default:
					launched++
					outstanding += uint32(programmed)
					startingDesc = list.Fold(startingDesc + uint32(programmed))
					continue
				}
			}
		}
		if err := drain(); err != nil {
			return err
		}
	}

	clog.WithField("transfers", completed).Info("channel drained")
	return nil
}

func reportTimestamps(log *logrus.Logger, engine *vdma.Engine, channelsBitmap uint32) {
	for i := uint8(0); i < vdma.MaxVdmaChannelsPerEngine; i++ {
		if channelsBitmap&(1<<i) == 0 {
			continue
		}
		params := vdma.InterruptsReadTimestampParams{ChannelIndex: i}
		if err := engine.ReadTimestamps(&params); err != nil {
			log.WithError(err).WithField("channel", i).Warn("reading timestamps failed")
			continue
		}
		fields := logrus.Fields{"channel": i, "count": params.TimestampsCount}
		if params.TimestampsCount >= 2 {
			first := params.Timestamps[0].TimestampNs
			last := params.Timestamps[params.TimestampsCount-1].TimestampNs
			fields["span"] = time.Duration(last - first).Round(time.Microsecond)
		}
		log.WithFields(fields).Info("interrupt timestamps")
	}
}
