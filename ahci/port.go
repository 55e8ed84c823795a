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
	"log"
	"unsafe"
)

// Port drives one AHCI port: its register block, and the three DMA buffers
// (Command List, Received-FIS area, Command Table) it owns for the lifetime
// of the controller. Only command slot 0 is ever used.
type Port struct {
	index int
	regs  regs

	cmdListAddr  uintptr
	rxFISAddr    uintptr
	cmdTableAddr uintptr
}

// portRegs returns the register window for port index within the
// controller's MMIO base.
func portRegs(base uintptr, index int) regs {
	return regs{base: base + portRegionBase + uintptr(index)*portRegionSize}
}

// tryNewPort runs the port bring-up sequence (spec.md §4.4) for port index.
// Timeouts while stopping the port (CR, FR) or clearing a busy device (CLO)
// are logged and bring-up continues. It returns nil and a diagnostic error
// if any later step fails or times out: a port that cannot be brought up is
// skipped, not fatal to the controller.
func tryNewPort(hal HAL, host regs, pool *Pool, index int, sclo bool) (*Port, error) {
	p := &Port{index: index, regs: portRegs(host.base, index)}

	// 1. Stop command processing: clear ST, then FRE; wait for CR and FR
	// to clear.
	p.regs.write(pxCMD, withBit(p.regs.read(pxCMD), pxcmdSTPos, false))
	p.regs.write(pxCMD, withBit(p.regs.read(pxCMD), pxcmdFREPos, false))

	if !p.regs.wait(hal, pxCMD, pxcmdCRPos, 1, 0, 500) {
		log.Printf("ahci: port %d: CR did not clear, continuing", index)
	}
	if !p.regs.wait(hal, pxCMD, pxcmdFRPos, 1, 0, 500) {
		log.Printf("ahci: port %d: FR did not clear, continuing", index)
	}

	// 2. Clear a busy device left over from a prior session, if the HBA
	// supports it.
	tfd := p.regs.read(pxTFD)
	if (bit(tfd, tfdSTSBSYPos) || bit(tfd, tfdSTSDRQPos)) && sclo {
		p.regs.write(pxCMD, withBit(p.regs.read(pxCMD), pxcmdCLOPos, true))
		if !p.regs.wait(hal, pxCMD, pxcmdCLOPos, 1, 0, 1000) {
			log.Printf("ahci: port %d: CLO did not clear, continuing", index)
		}
	}

	// 3. Spin up the device.
	p.regs.write(pxCMD, withBit(p.regs.read(pxCMD), pxcmdSUDPos, true))
	if !p.regs.wait(hal, pxCMD, pxcmdSUDPos, 1, 1, 1000) {
		return nil, &bringUpError{index, "spin-up"}
	}

	// 4. Wait for a link: DET indicating a device present, with or
	// without PHY communication established yet.
	linked := waitUntilTimeout(hal, func() bool {
		det := field(p.regs.read(pxSSTS), sstsDETPos, sstsDETWidth)
		return det == DETPresentNoComm || det == DETPresentPHYReady
	}, 1000)
	if !linked {
		return nil, &bringUpError{index, "link"}
	}

	// 5. Clear stale error and interrupt status left over from reset.
	p.regs.write(pxSERR, p.regs.read(pxSERR))
	p.regs.write(pxIS, p.regs.read(pxIS))
	host.write(ghcIS, 1<<uint(index))

	// 6. Enable the error and device-presence interrupt set (polled on
	// completion, never serviced as actual interrupts by this driver).
	p.regs.write(pxIE, errorsPendingMask)

	// 7. Wait for the PHY to finish link training if it had not already.
	if field(p.regs.read(pxSSTS), sstsDETPos, sstsDETWidth) != DETPresentPHYReady {
		ready := waitUntilTimeout(hal, func() bool {
			return field(p.regs.read(pxSSTS), sstsDETPos, sstsDETWidth) == DETPresentPHYReady
		}, 1000)
		if !ready {
			return nil, &bringUpError{index, "PHY ready"}
		}
	}

	// 8. Allocate this port's Command List, Received-FIS area and Command
	// Table, and program their physical addresses.
	cmdListAddr, err := pool.Alloc(commandListSize, commandListAlign)
	if err != nil {
		return nil, err
	}
	rxFISAddr, err := pool.Alloc(receivedFISSize, receivedFISAlign)
	if err != nil {
		return nil, err
	}
	cmdTableAddr, err := pool.Alloc(commandTableSize, commandTableAlign)
	if err != nil {
		return nil, err
	}

	p.cmdListAddr = cmdListAddr
	p.rxFISAddr = rxFISAddr
	p.cmdTableAddr = cmdTableAddr

	cmdListPhys := hal.VirtToPhys(cmdListAddr)
	p.regs.write(pxCLB, uint32(cmdListPhys))
	p.regs.write(pxCLBU, uint32(cmdListPhys>>32))

	rxFISPhys := hal.VirtToPhys(rxFISAddr)
	p.regs.write(pxFB, uint32(rxFISPhys))
	p.regs.write(pxFBU, uint32(rxFISPhys>>32))

	// 9. Start the port: FIS receive and command list processing, spun
	// up, in a single register store.
	start := uint32(0)
	start = withField(start, pxcmdICCPos, pxcmdICCWidth, ICCActive)
	start = withBit(start, pxcmdFREPos, true)
	start = withBit(start, pxcmdPODPos, true)
	start = withBit(start, pxcmdSUDPos, true)
	start = withBit(start, pxcmdSTPos, true)
	p.regs.write(pxCMD, start)

	// 10. Wait for the device to report ready (not busy, no data request,
	// no error) before the port is considered usable.
	ready := waitUntilTimeout(hal, func() bool {
		tfd := p.regs.read(pxTFD)
		return !bit(tfd, tfdSTSBSYPos) && !bit(tfd, tfdSTSDRQPos) && !bit(tfd, tfdSTSERRPos)
	}, 1000)
	if !ready {
		return nil, &bringUpError{index, "device ready"}
	}

	return p, nil
}

// ExecCmd builds a command around fis and buf, issues it in slot 0, and
// polls for completion (spec.md §4.5). buf, if non-empty, must already be
// memory the HAL can translate to a device-visible physical address: the
// driver does not bounce-copy it through a separate DMA buffer.
func (p *Port) ExecCmd(hal HAL, fis h2dRegisterFIS, buf []byte, isWrite bool) error {
	if !p.regs.wait(hal, pxCI, 0, 1, 0, 1000) {
		return ErrNoFreeSlot
	}

	if len(buf) > maxBytesPerCmd {
		return ErrTooLarge
	}

	sgCount := 0
	if len(buf) > 0 {
		sgCount = (len(buf)-1)/maxBytesPerSG + 1
		if sgCount > maxSGEntries {
			return ErrTooLarge
		}
	}

	tableBuf := memAt(p.cmdTableAddr, commandTableSize)
	fis.encodeInto(tableBuf[0:h2dFISSize])

	remaining := len(buf)
	for k := 0; k < sgCount; k++ {
		offset := k * maxBytesPerSG
		n := remaining
		if n > maxBytesPerSG {
			n = maxBytesPerSG
		}

		segAddr := hal.VirtToPhys(uintptr(unsafe.Pointer(&buf[offset])))
		entry := prdEntry{
			addrLo:    uint32(segAddr),
			addrHi:    uint32(segAddr >> 32),
			flagsSize: prdFlagsSize(n),
		}

		entryOff := commandTablePRDTOffset + k*prdEntrySize
		entry.encodeInto(tableBuf[entryOff : entryOff+prdEntrySize])

		remaining -= n
	}

	opts := commandHeaderOpts(isWrite, sgCount)
	tblPhys := hal.VirtToPhys(p.cmdTableAddr)
	hdr := commandHeader{
		opts:      opts,
		tblAddrLo: uint32(tblPhys),
		tblAddrHi: uint32(tblPhys >> 32),
	}
	hdr.encodeInto(memAt(p.cmdListAddr, commandHeaderSize))

	hal.FlushDCache()

	p.regs.write(pxCI, 1)

	completed := p.regs.wait(hal, pxCI, 0, 1, 0, 1000)

	hal.FlushDCache()

	if !completed {
		log.Printf("ahci: port %d: command timeout, CI=%#x IS=%#x TFD=%#x",
			p.index, p.regs.read(pxCI), p.regs.read(pxIS), p.regs.read(pxTFD))
		return ErrCommandTimeout
	}

	if tfd := p.regs.read(pxTFD); bit(tfd, tfdSTSERRPos) {
		return &DeviceError{TFD: tfd}
	}

	return nil
}
