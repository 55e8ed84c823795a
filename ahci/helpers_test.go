package ahci

import "time"

// fakeHAL is a HAL implementation backed by ordinary Go memory: virtual and
// physical addresses are the same (the test process is the only "device" in
// play), and the millisecond clock is real wall-clock time. It gives the
// driver's poll loops genuine timeout behavior without needing a real
// AHCI controller.
type fakeHAL struct {
	start time.Time
}

func newFakeHAL() *fakeHAL {
	return &fakeHAL{start: time.Now()}
}

func (h *fakeHAL) VirtToPhys(va uintptr) uintptr { return va }

func (h *fakeHAL) CurrentMs() uint64 {
	return uint64(time.Since(h.start).Milliseconds())
}

func (h *fakeHAL) FlushDCache() {}
