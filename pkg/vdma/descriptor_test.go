package vdma

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

// TestDescriptorLayout pins the device-visible byte layout: four 32-bit
// little-endian words per descriptor, 16 bytes total.
func TestDescriptorLayout(t *testing.T) {
	var desc Descriptor
	desc.program(0x0000_0012_3456_7840, 512, 0x3)

	var buf [SizeOfVdmaDescriptor]byte
	desc.Put(buf[:])

	expected := [SizeOfVdmaDescriptor]byte{
		// PageSize_DescControl: 512<<8 | 0x2 = 0x00020002
		0x02, 0x00, 0x02, 0x00,
		// AddrL_rsvd_DataID: 0x34567840 | 0x3
		0x43, 0x78, 0x56, 0x34,
		// AddrH
		0x12, 0x00, 0x00, 0x00,
		// RemainingPageSize_Status
		0x00, 0x00, 0x00, 0x00,
	}
	if diff := cmp.Diff(expected, buf); diff != "" {
		t.Errorf("descriptor layout mismatch (-want +got):\n%s", diff)
	}

	var loaded Descriptor
	loaded.Load(buf[:])
	if diff := cmp.Diff(desc, loaded); diff != "" {
		t.Errorf("descriptor roundtrip mismatch (-want +got):\n%s", diff)
	}
}

func TestDescriptorFields(t *testing.T) {
	var desc Descriptor
	desc.program(0x1_0000_1000, 4096, 0x7)

	if got := desc.PageSize(); got != 4096 {
		t.Errorf("PageSize() = %d, expected 4096", got)
	}
	if got := desc.Control(); got != DescControlDefault {
		t.Errorf("Control() = %#x, expected %#x", got, DescControlDefault)
	}
	if got := desc.Address(); got != 0x1_0000_1000 {
		t.Errorf("Address() = %#x, expected 0x100001000", got)
	}
	if got := desc.DataID(); got != 0x7 {
		t.Errorf("DataID() = %#x, expected 0x7", got)
	}
}

func TestDescriptorStatus(t *testing.T) {
	tests := []struct {
		name       string
		status     uint32
		done, fail bool
	}{
		{"not written", 0, false, false},
		{"done", DescStatusDoneBit, true, false},
		{"error", DescStatusDoneBit | DescStatusErrorBit, true, true},
		{"error only", DescStatusErrorBit, false, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			desc := Descriptor{RemainingPageSizeStatus: tc.status}
			if got := desc.StatusDone(); got != tc.done {
				t.Errorf("StatusDone() = %v, expected %v", got, tc.done)
			}
			if got := desc.StatusError(); got != tc.fail {
				t.Errorf("StatusError() = %v, expected %v", got, tc.fail)
			}
		})
	}
}

func TestDescCountMask(t *testing.T) {
	tests := []struct {
		count uint32
		mask  uint32
	}{
		{1, 0},
		{2, 1},
		{3, 3},
		{8, 7},
		{15, 15},
		{16, 15},
		{17, 31},
		{100, 127},
		{MaxSgDescsCount, MaxSgDescsCount - 1},
	}

	for _, tc := range tests {
		if got := descCountMask(tc.count); got != tc.mask {
			t.Errorf("descCountMask(%d) = %d, expected %d", tc.count, got, tc.mask)
		}
	}
}

func TestNewDescriptorListValidation(t *testing.T) {
	tests := []struct {
		name       string
		count      uint32
		pageSize   uint16
		isCircular bool
		dmaAddress uint64
		ok         bool
	}{
		{"valid circular", 16, 512, true, 0x10000, true},
		{"valid non circular", 100, 512, false, 0x20000, true},
		{"zero count", 0, 512, false, 0x10000, false},
		{"count too large", MaxSgDescsCount + 1, 512, false, 0x10000, false},
		{"zero page size", 16, 0, true, 0x10000, false},
		{"circular non power of two", 12, 512, true, 0x10000, false},
		{"unaligned address", 16, 512, true, 0x18100, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			list, err := NewDescriptorList(tc.count, tc.pageSize, tc.isCircular, tc.dmaAddress)
			if tc.ok && err != nil {
				t.Fatalf("NewDescriptorList failed: %v", err)
			}
			if !tc.ok {
				if err == nil {
					t.Fatal("NewDescriptorList succeeded, expected error")
				}
				return
			}
			if got := uint32(len(list.Descs)); got != tc.count {
				t.Errorf("len(Descs) = %d, expected %d", got, tc.count)
			}
		})
	}
}

// TestFoldCircular verifies that for circular lists the mask folds like true
// modulo for every index, including wrapped ones.
func TestFoldCircular(t *testing.T) {
	list, err := NewDescriptorList(16, 512, true, 0x10000)
	if err != nil {
		t.Fatalf("NewDescriptorList failed: %v", err)
	}

	for index := uint32(0); index < 100; index++ {
		if got := list.Fold(index); got != index%16 {
			t.Errorf("Fold(%d) = %d, expected %d", index, got, index%16)
		}
	}
}

// TestFoldNonCircular verifies that for non-circular lists the mask behaves
// as modulo for any in-range index.
func TestFoldNonCircular(t *testing.T) {
	list, err := NewDescriptorList(100, 512, false, 0x10000)
	if err != nil {
		t.Fatalf("NewDescriptorList failed: %v", err)
	}

	for index := uint32(0); index < 100; index++ {
		if got := list.Fold(index); got != index {
			t.Errorf("Fold(%d) = %d, expected %d", index, got, index)
		}
	}
}

func TestDescriptorListEncode(t *testing.T) {
	list, err := NewDescriptorList(4, 512, true, 0x10000)
	if err != nil {
		t.Fatalf("NewDescriptorList failed: %v", err)
	}
	for i := range list.Descs {
		list.Descs[i].program(uint64(0x40000+i*512), 512, 0)
	}

	buf := make([]byte, list.EncodedSize())
	if err := list.Encode(buf); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	for i := range list.Descs {
		var loaded Descriptor
		loaded.Load(buf[i*SizeOfVdmaDescriptor:])
		if diff := cmp.Diff(list.Descs[i], loaded); diff != "" {
			t.Errorf("descriptor %d mismatch (-want +got):\n%s", i, diff)
		}
	}

	if err := list.Encode(make([]byte, list.EncodedSize()-1)); err == nil {
		t.Error("Encode succeeded with short buffer, expected error")
	}
}
