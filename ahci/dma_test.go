package ahci

import (
	"testing"
	"unsafe"
)

func TestPoolAllocAlignment(t *testing.T) {
	backing := make([]byte, 4096)
	base := uintptr(unsafe.Pointer(&backing[0]))
	pool := NewPool(base, uintptr(len(backing)))

	a, err := pool.Alloc(3, 16)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if a%16 != 0 {
		t.Fatalf("first allocation not 16-byte aligned: %#x", a)
	}

	b, err := pool.Alloc(100, 128)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if b%128 != 0 {
		t.Fatalf("second allocation not 128-byte aligned: %#x", b)
	}
	if b < a+3 {
		t.Fatalf("second allocation overlaps first: a=%#x b=%#x", a, b)
	}
}

func TestPoolAllocZeroesMemory(t *testing.T) {
	backing := make([]byte, 256)
	for i := range backing {
		backing[i] = 0xFF
	}
	base := uintptr(unsafe.Pointer(&backing[0]))
	pool := NewPool(base, uintptr(len(backing)))

	addr, err := pool.Alloc(64, 8)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}

	for _, b := range memAt(addr, 64) {
		if b != 0 {
			t.Fatalf("allocated block not zeroed")
		}
	}
}

func TestPoolAllocExhaustion(t *testing.T) {
	backing := make([]byte, 32)
	base := uintptr(unsafe.Pointer(&backing[0]))
	pool := NewPool(base, uintptr(len(backing)))

	if _, err := pool.Alloc(16, 1); err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if _, err := pool.Alloc(32, 1); err != ErrPoolExhausted {
		t.Fatalf("expected ErrPoolExhausted, got %v", err)
	}
}

func TestPRDFlagsSize(t *testing.T) {
	cases := []struct {
		n    int
		want uint32
	}{
		{1, 0},
		{512, 511},
		{maxBytesPerSG, maxBytesPerSG - 1},
	}

	for _, c := range cases {
		got := prdFlagsSize(c.n) & 0x003FFFFF
		if got != c.want {
			t.Errorf("prdFlagsSize(%d) = %#x, want %#x", c.n, got, c.want)
		}
	}
}

func TestCommandHeaderRoundTrip(t *testing.T) {
	buf := make([]byte, commandHeaderSize)
	want := commandHeader{
		opts:      commandHeaderOpts(true, 3),
		tblAddrLo: 0xdeadbeef,
		tblAddrHi: 0x1,
	}
	want.encodeInto(buf)

	got := decodeCommandHeader(buf)
	if got != want {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, want)
	}
}

func TestH2DRegisterFISRoundTrip(t *testing.T) {
	buf := make([]byte, h2dFISSize)
	want := h2dRegisterFIS{
		fisType:     sataFISTypeRegisterH2D,
		pmPortC:     1 << 7,
		command:     ataCmdRead48,
		lbaLow:      0x11,
		lbaMid:      0x22,
		lbaHigh:     0x33,
		lbaLowExp:   0x44,
		lbaMidExp:   0x55,
		lbaHighExp:  0x66,
		sectorCount: 0x01,
	}
	want.encodeInto(buf)

	got := decodeH2DRegisterFIS(buf)
	if got != want {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, want)
	}
}

func TestCommandHeaderOpts(t *testing.T) {
	opts := commandHeaderOpts(true, 5)
	if opts&0x1F != h2dFISSize/4 {
		t.Errorf("CFL field wrong: %#x", opts)
	}
	if !bit(opts, 6) {
		t.Errorf("write bit not set")
	}
	if opts>>16 != 5 {
		t.Errorf("PRDT length wrong: %#x", opts>>16)
	}

	opts = commandHeaderOpts(false, 0)
	if bit(opts, 6) {
		t.Errorf("write bit set for a read command")
	}
}
