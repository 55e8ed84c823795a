// AHCI (Advanced Host Controller Interface) SATA driver
// https://github.com/Starry-OS/simple-ahci
//
// Copyright (c) Starry-OS
// https://github.com/Starry-OS
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package ahci

// HAL is the capability set the host environment must supply. It is the
// driver's only dependency on anything outside the MMIO window and the DMA
// buffers it is handed: virtual-to-physical translation, a monotonic clock
// for timeouts, and cache maintenance around DMA transfers.
//
// Implementations must be safe to call from the single execution context
// the driver runs on; the driver itself never spawns goroutines and never
// calls HAL methods concurrently with itself.
type HAL interface {
	// VirtToPhys returns the physical address the device will observe for
	// a virtual address previously returned by the DMA allocator. The
	// mapping must remain stable for the lifetime of the allocation.
	VirtToPhys(va uintptr) uintptr

	// CurrentMs returns a monotonic millisecond counter, used only to
	// bound poll loops with timeouts.
	CurrentMs() uint64

	// FlushDCache makes all prior CPU stores to DMA buffers visible to the
	// device and invalidates any cached reads so that device-written bytes
	// are observed by subsequent loads. Called immediately before issuing
	// a command and immediately after observing its completion.
	FlushDCache()
}
