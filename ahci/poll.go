// AHCI (Advanced Host Controller Interface) SATA driver
// https://github.com/Starry-OS/simple-ahci
//
// Copyright (c) Starry-OS
// https://github.com/Starry-OS
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package ahci

import "runtime"

// spinHint yields to the Go scheduler between poll iterations, the way
// internal register-wait loops in bare-metal drivers give other goroutines
// (or, on a real target, nothing at all) a chance to run. It is not a
// substitute for the HAL-supplied timeout: every caller of spinHint bounds
// its loop independently.
func spinHint() {
	runtime.Gosched()
}

// waitUntilTimeout polls cond, spinning until it becomes true or until
// timeoutMs milliseconds have elapsed per the HAL clock. It returns true if
// cond became true before the timeout.
func waitUntilTimeout(h HAL, cond func() bool, timeoutMs uint64) bool {
	start := h.CurrentMs()

	for {
		if cond() {
			return true
		}

		if h.CurrentMs()-start > timeoutMs {
			return cond()
		}

		spinHint()
	}
}
