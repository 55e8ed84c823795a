package ahci

import (
	"bytes"
	"testing"
	"unsafe"
)

func newTestController(t *testing.T, storageSectors int) (*Controller, *simHBA, *fakeHAL) {
	t.Helper()

	sim := newSimHBA(storageSectors)
	t.Cleanup(sim.stop)

	pool := make([]byte, 64*1024)
	hal := newFakeHAL()

	c, err := New(sim.base(), hal, NewPool(uintptr(unsafe.Pointer(&pool[0])), uintptr(len(pool))))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	return c, sim, hal
}

func TestControllerBringUpIdentifiesDevice(t *testing.T) {
	c, _, _ := newTestController(t, 64)

	id := c.Identity()
	if id.Model != "SIM DISK" {
		t.Fatalf("Model = %q", id.Model)
	}
	if !id.LBA48 {
		t.Fatalf("expected LBA48 disk")
	}
	if id.MaxLBA != 64 {
		t.Fatalf("MaxLBA = %d, want 64", id.MaxLBA)
	}
}

func TestControllerWriteThenRead(t *testing.T) {
	c, _, _ := newTestController(t, 64)

	want := make([]byte, 3*512)
	for i := range want {
		want[i] = byte(i)
	}

	if err := c.Write(2, want); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got := make([]byte, 3*512)
	if err := c.Read(2, got); err != nil {
		t.Fatalf("Read: %v", err)
	}

	if !bytes.Equal(got, want) {
		t.Fatalf("read back data does not match what was written")
	}
}

func TestControllerReadUntouchedSectorsAreZero(t *testing.T) {
	c, _, _ := newTestController(t, 8)

	buf := make([]byte, 512)
	for i := range buf {
		buf[i] = 0xFF
	}

	if err := c.Read(5, buf); err != nil {
		t.Fatalf("Read: %v", err)
	}

	for _, b := range buf {
		if b != 0 {
			t.Fatalf("expected untouched sector to read back as zero")
		}
	}
}

func TestTransferRejectsPartialSector(t *testing.T) {
	c, _, _ := newTestController(t, 8)

	if err := c.Read(0, make([]byte, 100)); err == nil {
		t.Fatalf("expected an error for a non-sector-multiple buffer length")
	}
}

func TestExecCmdRejectsOversizedBuffer(t *testing.T) {
	c, _, hal := newTestController(t, 8)

	fis := buildRWFIS(0, 1, true, false)
	big := make([]byte, maxBytesPerCmd+512)

	if err := c.port.ExecCmd(hal, fis, big, false); err != ErrTooLarge {
		t.Fatalf("ExecCmd with an oversized buffer: got %v, want ErrTooLarge", err)
	}
}
