package vdma

import (
	"errors"
	"testing"
)

func TestProgramDescriptorsInChunk(t *testing.T) {
	hw := testHW()

	t.Run("exact pages", func(t *testing.T) {
		list := mustDescriptorList(16, 512, true)
		programmed, err := ProgramDescriptorsInChunk(hw, 0x40000, 3*512, list, 0, 15, 0, 0x3)
		if err != nil {
			t.Fatalf("ProgramDescriptorsInChunk failed: %v", err)
		}
		if programmed != 3 {
			t.Fatalf("programmed = %d, expected 3", programmed)
		}
		for i := 0; i < 3; i++ {
			desc := &list.Descs[i]
			if got := desc.Address(); got != 0x40000+uint64(i)*512 {
				t.Errorf("desc %d address = %#x, expected %#x", i, got, 0x40000+uint64(i)*512)
			}
			if got := desc.PageSize(); got != 512 {
				t.Errorf("desc %d page size = %d, expected 512", i, got)
			}
			if got := desc.DataID(); got != 0x3 {
				t.Errorf("desc %d data id = %d, expected 3", i, got)
			}
		}
	})

	t.Run("partial last page", func(t *testing.T) {
		list := mustDescriptorList(16, 512, true)
		programmed, err := ProgramDescriptorsInChunk(hw, 0x40000, 2*512+100, list, 0, 15, 0, 0)
		if err != nil {
			t.Fatalf("ProgramDescriptorsInChunk failed: %v", err)
		}
		if programmed != 3 {
			t.Errorf("programmed = %d, expected ceil(1124/512) = 3", programmed)
		}
		for i, size := range []uint32{512, 512, 100} {
			if got := list.Descs[i].PageSize(); got != size {
				t.Errorf("desc %d page size = %d, expected %d", i, got, size)
			}
		}
	})

	t.Run("wraps circular list", func(t *testing.T) {
		list := mustDescriptorList(8, 512, true)
		programmed, err := ProgramDescriptorsInChunk(hw, 0x40000, 4*512, list, 6, 6+8-1, 0, 0)
		if err != nil {
			t.Fatalf("ProgramDescriptorsInChunk failed: %v", err)
		}
		if programmed != 4 {
			t.Fatalf("programmed = %d, expected 4", programmed)
		}
		// Descriptors 6, 7, 0, 1.
		for i, slot := range []uint32{6, 7, 0, 1} {
			if got := list.Descs[slot].Address(); got != 0x40000+uint64(i)*512 {
				t.Errorf("desc %d address = %#x, expected %#x", slot, got, 0x40000+uint64(i)*512)
			}
		}
	})

	t.Run("not enough descriptors", func(t *testing.T) {
		list := mustDescriptorList(16, 512, false)
		_, err := ProgramDescriptorsInChunk(hw, 0x40000, 4*512, list, 14, 15, 0, 0)
		if !errors.Is(err, ErrNotEnoughDescriptors) {
			t.Errorf("err = %v, expected ErrNotEnoughDescriptors", err)
		}
	})

	t.Run("invalid address propagates", func(t *testing.T) {
		list := mustDescriptorList(16, 512, true)
		_, err := ProgramDescriptorsInChunk(hw, 0x40010, 512, list, 0, 15, 0, 0)
		if !errors.Is(err, ErrInvalidAddress) {
			t.Errorf("err = %v, expected ErrInvalidAddress", err)
		}
	})
}

func TestProgramDescriptorsListResidue(t *testing.T) {
	hw := testHW()
	list := mustDescriptorList(16, 512, true)

	// 2.5 pages: the final descriptor must carry the residue, not a full
	// page and not the chunk size.
	buffer := contiguousBuffer(0x40000, []uint32{2*512 + 256})
	programmed, err := ProgramDescriptorsList(hw, list, 0, &buffer, true, 0, InterruptsDomainNone, false)
	if err != nil {
		t.Fatalf("ProgramDescriptorsList failed: %v", err)
	}
	if programmed != 3 {
		t.Fatalf("programmed = %d, expected 3", programmed)
	}

	if got := list.Descs[0].PageSize(); got != 512 {
		t.Errorf("interior desc page size = %d, expected 512", got)
	}
	if got := list.Descs[2].PageSize(); got != 256 {
		t.Errorf("last desc residue = %d, expected 256", got)
	}
}

// TestProgramDescriptorsListUnalignedChunks covers scatter-gather chunks that
// are not page-size multiples: each chunk's final slice must take the chunk
// remainder (never a full page past the chunk end) and the transfer's last
// descriptor must carry its own slice size, even though per-chunk rounding
// pushes the descriptor count past ceil(size/page).
func TestProgramDescriptorsListUnalignedChunks(t *testing.T) {
	hw := testHW()
	list := mustDescriptorList(16, 512, true)

	buffer := MappedTransferBuffer{
		SGTable: []SGEntry{
			{Address: 0x40000, Length: 100},
			{Address: 0x80000, Length: 924},
		},
		Size: 100 + 924,
	}

	programmed, err := ProgramDescriptorsList(hw, list, 0, &buffer, true, 0, InterruptsDomainHost, false)
	if err != nil {
		t.Fatalf("ProgramDescriptorsList failed: %v", err)
	}
	if programmed != 3 {
		t.Fatalf("programmed = %d, expected 3 (1 + ceil(924/512))", programmed)
	}

	expected := []struct {
		addr uint64
		size uint32
	}{
		{0x40000, 100},
		{0x80000, 512},
		{0x80000 + 512, 924 - 512},
	}
	for i, want := range expected {
		desc := &list.Descs[i]
		if got := desc.Address(); got != want.addr {
			t.Errorf("desc %d address = %#x, expected %#x", i, got, want.addr)
		}
		if got := desc.PageSize(); got != want.size {
			t.Errorf("desc %d page size = %d, expected %d", i, got, want.size)
		}
	}
	if list.Descs[2].Control()&hw.HostInterruptsBitmask == 0 {
		t.Error("last desc did not get the interrupt bits")
	}

	// The rebind fast path must agree on the descriptor count and residue.
	programmed, err = ProgramDescriptorsList(hw, list, 0, &buffer, false, 0, InterruptsDomainNone, false)
	if err != nil {
		t.Fatalf("rebind failed: %v", err)
	}
	if programmed != 3 {
		t.Errorf("rebind programmed = %d, expected 3", programmed)
	}
	if got := list.Descs[2].PageSize(); got != 924-512 {
		t.Errorf("rebind last desc size = %d, expected %d", got, 924-512)
	}
}

func TestProgramDescriptorsListInterruptsOnLastOnly(t *testing.T) {
	hw := testHW()
	list := mustDescriptorList(16, 512, true)

	buffer := contiguousBuffer(0x40000, []uint32{3 * 512})
	if _, err := ProgramDescriptorsList(hw, list, 0, &buffer, true, 0, InterruptsDomainHost, false); err != nil {
		t.Fatalf("ProgramDescriptorsList failed: %v", err)
	}

	for i := 0; i < 2; i++ {
		if got := list.Descs[i].Control(); got != DescControlDefault {
			t.Errorf("interior desc %d control = %#x, expected default %#x", i, got, DescControlDefault)
		}
	}
	expected := uint32(DescControlDefault) | hw.HostInterruptsBitmask
	if got := list.Descs[2].Control(); got != expected {
		t.Errorf("last desc control = %#x, expected %#x", got, expected)
	}
}

func TestProgramDescriptorsListMultiChunk(t *testing.T) {
	hw := testHW()
	list := mustDescriptorList(16, 512, true)

	// Two contiguous runs at unrelated addresses.
	buffer := MappedTransferBuffer{
		SGTable: []SGEntry{
			{Address: 0x40000, Length: 2 * 512},
			{Address: 0x80000, Length: 512},
		},
		Size: 3 * 512,
	}

	programmed, err := ProgramDescriptorsList(hw, list, 0, &buffer, true, 0, InterruptsDomainNone, false)
	if err != nil {
		t.Fatalf("ProgramDescriptorsList failed: %v", err)
	}
	if programmed != 3 {
		t.Fatalf("programmed = %d, expected 3", programmed)
	}
	if got := list.Descs[2].Address(); got != 0x80000 {
		t.Errorf("third desc address = %#x, expected 0x80000", got)
	}
}

func TestProgramDescriptorsListOffset(t *testing.T) {
	hw := testHW()
	list := mustDescriptorList(16, 512, true)

	// Transfer a page-aligned sub-range of a larger mapped buffer, skipping
	// the first chunk entirely.
	buffer := MappedTransferBuffer{
		SGTable: []SGEntry{
			{Address: 0x40000, Length: 2 * 512},
			{Address: 0x80000, Length: 2 * 512},
		},
		Size:   512,
		Offset: 2 * 512,
	}

	programmed, err := ProgramDescriptorsList(hw, list, 0, &buffer, true, 0, InterruptsDomainNone, false)
	if err != nil {
		t.Fatalf("ProgramDescriptorsList failed: %v", err)
	}
	if programmed != 1 {
		t.Fatalf("programmed = %d, expected 1", programmed)
	}
	if got := list.Descs[0].Address(); got != 0x80000 {
		t.Errorf("desc address = %#x, expected 0x80000", got)
	}
}

func TestProgramDescriptorsListCapacity(t *testing.T) {
	hw := testHW()
	list := mustDescriptorList(4, 512, false)

	buffer := contiguousBuffer(0x40000, []uint32{8 * 512})
	_, err := ProgramDescriptorsList(hw, list, 0, &buffer, true, 0, InterruptsDomainNone, false)
	if !errors.Is(err, ErrNotEnoughDescriptors) {
		t.Errorf("err = %v, expected ErrNotEnoughDescriptors", err)
	}
}

func TestProgramDescriptorsListShortSGTable(t *testing.T) {
	hw := testHW()
	list := mustDescriptorList(16, 512, true)

	buffer := contiguousBuffer(0x40000, []uint32{512})
	buffer.Size = 4 * 512 // larger than the chunks can cover
	_, err := ProgramDescriptorsList(hw, list, 0, &buffer, true, 0, InterruptsDomainNone, false)
	if !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("err = %v, expected ErrInvalidArgument", err)
	}
}

// TestProgramDescriptorsListRebind covers the should_bind=false fast path: a
// re-launch of an already bound buffer only rewrites the final descriptor's
// flags/size word.
func TestProgramDescriptorsListRebind(t *testing.T) {
	hw := testHW()
	list := mustDescriptorList(16, 512, true)

	buffer := contiguousBuffer(0x40000, []uint32{3 * 512})
	if _, err := ProgramDescriptorsList(hw, list, 0, &buffer, true, 0, InterruptsDomainNone, false); err != nil {
		t.Fatalf("bind failed: %v", err)
	}
	boundAddr := list.Descs[2].Address()

	programmed, err := ProgramDescriptorsList(hw, list, 0, &buffer, false, 0, InterruptsDomainHost, false)
	if err != nil {
		t.Fatalf("rebind failed: %v", err)
	}
	if programmed != 3 {
		t.Fatalf("programmed = %d, expected 3", programmed)
	}
	if got := list.Descs[2].Address(); got != boundAddr {
		t.Errorf("rebind changed bound address: %#x != %#x", got, boundAddr)
	}
	if list.Descs[2].Control()&hw.HostInterruptsBitmask == 0 {
		t.Error("rebind did not apply last desc interrupts")
	}
}

// TestProgramRewritesDirtySlots verifies that a slot left with non-default
// flags by a previous transfer is fully re-programmed before reuse, never
// assumed clean.
func TestProgramRewritesDirtySlots(t *testing.T) {
	hw := testHW()
	list := mustDescriptorList(16, 512, true)

	buffer := contiguousBuffer(0x40000, []uint32{3 * 512})
	if _, err := ProgramDescriptorsList(hw, list, 0, &buffer, true, 0, InterruptsDomainHost, true); err != nil {
		t.Fatalf("first program failed: %v", err)
	}
	if list.Descs[2].Control() == DescControlDefault {
		t.Fatal("expected non-default control on last desc after debug program")
	}

	// Re-program the same slots without interrupts or debug.
	longer := contiguousBuffer(0x40000, []uint32{4 * 512})
	if _, err := ProgramDescriptorsList(hw, list, 0, &longer, true, 0, InterruptsDomainNone, false); err != nil {
		t.Fatalf("second program failed: %v", err)
	}
	if got := list.Descs[2].Control(); got != DescControlDefault {
		t.Errorf("reused slot control = %#x, expected default %#x", got, DescControlDefault)
	}
}
