// AHCI (Advanced Host Controller Interface) SATA driver
// https://github.com/Starry-OS/simple-ahci
//
// Copyright (c) Starry-OS
// https://github.com/Starry-OS
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package ahci

import (
	"sync/atomic"
	"unsafe"
)

// regs gives volatile access to a 32-bit-word MMIO window starting at base.
// All accesses go through sync/atomic over an unsafe.Pointer, matching
// TamaGo's internal/reg package: no access is ever narrower than the
// natural 32-bit width, no store is reordered with respect to another
// through this type, and every read observes the most recent store.
//
// The sole 8-bit register in the map (the per-port DEVSLP register) is
// handled by readByte/writeByte below rather than through read/write, since a
// 32-bit atomic access would read past the end of the MMIO window if
// DEVSLP were the last register implemented.
type regs struct {
	base uintptr
}

func (r regs) addr(offset uintptr) *uint32 {
	return (*uint32)(unsafe.Pointer(r.base + offset))
}

func (r regs) read(offset uintptr) uint32 {
	return atomic.LoadUint32(r.addr(offset))
}

func (r regs) write(offset uintptr, val uint32) {
	atomic.StoreUint32(r.addr(offset), val)
}

// get extracts a bitfield of the given width at bit position pos.
func (r regs) get(offset uintptr, pos uint, width uint) uint32 {
	mask := uint32(1)<<width - 1
	return (r.read(offset) >> pos) & mask
}

// readByte performs the single 8-bit register access the map requires
// (DEVSLP). It is not built on regs.read: that function's natural width is
// 32 bits.
func (r regs) readByte(offset uintptr) uint8 {
	return *(*uint8)(unsafe.Pointer(r.base + offset))
}

func (r regs) writeByte(offset uintptr, val uint8) {
	*(*uint8)(unsafe.Pointer(r.base + offset)) = val
}

// wait spins until the bitfield at offset/pos/width reads as val, or until
// timeoutMs elapses per the HAL clock. It returns whether the condition was
// observed true.
func (r regs) wait(h HAL, offset uintptr, pos uint, width uint, val uint32, timeoutMs uint64) bool {
	return waitUntilTimeout(h, func() bool {
		return r.get(offset, pos, width) == val
	}, timeoutMs)
}
