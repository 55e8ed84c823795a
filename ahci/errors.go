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
	"errors"
	"fmt"
)

// Bring-up errors (spec.md §7). These are local to controller/port
// construction: a port that times out during bring-up is skipped, not
// fatal to the controller.
var (
	ErrResetTimeout = errors.New("ahci: HBA reset timeout")
	ErrNoDevice     = errors.New("ahci: no AHCI port produced a working link")
)

// Command-path errors (spec.md §7, adopted propagation per §9's Open
// Question: a production re-implementation should surface these to
// Read/Write callers instead of only logging them).
var (
	// ErrCommandTimeout is returned when CI did not clear within the
	// command timeout.
	ErrCommandTimeout = errors.New("ahci: command timeout")

	// ErrTooLarge is returned when a command's buffer exceeds the 224 MiB
	// (56 segments x 4 MiB) per-command limit.
	ErrTooLarge = errors.New("ahci: buffer exceeds per-command transfer limit")

	// ErrNoFreeSlot is returned if slot 0 is still busy when a new command
	// is about to be issued (single-outstanding-command discipline).
	ErrNoFreeSlot = errors.New("ahci: command slot not free")
)

// DeviceError reports an ATA task-file error observed after a command
// completed (TFD.STS_ERR set). TFD is the raw Task File Data register
// snapshot taken at the time the error was observed, for diagnostics.
type DeviceError struct {
	TFD uint32
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("ahci: device error, TFD=%#08x", e.TFD)
}

// bringUpError wraps a bring-up step failure with the port index and step
// name, for diagnostic logging; it is never returned to callers (port
// bring-up failures cause the port to be skipped, per spec.md §4.4).
type bringUpError struct {
	port int
	step string
}

func (e *bringUpError) Error() string {
	return fmt.Sprintf("ahci: port %d: %s timeout", e.port, e.step)
}
