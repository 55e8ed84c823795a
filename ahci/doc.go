// AHCI (Advanced Host Controller Interface) SATA driver
// https://github.com/Starry-OS/simple-ahci
//
// Copyright (c) Starry-OS
// https://github.com/Starry-OS
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package ahci implements a bare-metal driver for an AHCI (Advanced Host
// Controller Interface) SATA host controller.
//
// The driver is meant to run in a kernel or hypervisor environment with no
// standard runtime: no file system, no threads, no heap beyond the
// explicit physically-addressable allocator (Pool) the caller passes to
// New. It brings a memory-mapped AHCI controller from reset
// to a state where a single attached SATA disk can service block read and
// write requests, and executes those requests by building hardware
// command descriptors, issuing them via MMIO, and polling for hardware
// completion.
//
// PCI enumeration and MSI configuration, virtual-to-physical address
// translation, cache maintenance, a millisecond time source, and any
// block-layer or file-system client above the driver are out of scope and
// are expected to be supplied by the host environment through the HAL
// interface (see HAL) and by the caller.
//
// Only slot 0 of the command list is ever used: the driver does not issue
// concurrent commands, does not implement NCQ, port multipliers, hot-plug
// or interrupt-driven completion, and does not speak ATAPI.
package ahci
