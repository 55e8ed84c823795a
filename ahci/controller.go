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
	"fmt"
	"log"
)

// Debug gates diagnostic logging of controller and port bring-up. Off by
// default; set true before calling New to see register dumps during
// bring-up. Warnings for non-fatal CR/FR/CLO timeouts during port bring-up
// and for command timeouts are logged regardless of Debug.
var Debug = false

func debugf(format string, args ...interface{}) {
	if Debug {
		log.Printf(format, args...)
	}
}

// Controller represents a memory-mapped AHCI host bus adapter brought up to
// the point where a single attached SATA disk can service Read and Write
// calls (spec.md §2). It binds to the last port that completes bring-up
// successfully, matching the reference driver's behavior of keeping one
// bound device rather than exposing every probed port.
type Controller struct {
	hal  HAL
	host regs

	cap  uint32
	cap2 uint32
	vs   uint32

	port     *Port
	identity Identity
}

// New brings up the AHCI controller whose ABAR is mapped at base and binds
// it to the last working device found while probing its implemented ports
// (spec.md §4.3). pool supplies the physically-contiguous memory used for
// each probed port's Command List, Received-FIS area and Command Table.
func New(base uintptr, hal HAL, pool *Pool) (*Controller, error) {
	c := &Controller{hal: hal, host: regs{base: base}}

	// 1. Reset the HBA and wait for the hardware to clear the reset bit.
	c.host.write(ghcGHC, withBit(c.host.read(ghcGHC), ghcHRPos, true))
	if !c.host.wait(hal, ghcGHC, ghcHRPos, 1, 0, 1000) {
		return nil, ErrResetTimeout
	}

	// 2. Put the HBA in AHCI mode.
	c.host.write(ghcGHC, withBit(c.host.read(ghcGHC), ghcAEPos, true))

	// 3. Seed CAP.SMPS and CAP.SSS and PI, since some emulated controllers
	// do not populate these correctly from BIOS.
	capSeed := c.host.read(ghcCAP)
	capSeed = withBit(capSeed, capSMPSPos, true)
	capSeed = withBit(capSeed, capSSSPos, true)
	c.host.write(ghcCAP, capSeed)
	c.host.write(ghcPI, 0x0000000F)

	// 4. Snapshot capabilities and the implemented-port mask.
	c.cap = c.host.read(ghcCAP)
	c.cap2 = c.host.read(ghcCAP2)
	c.vs = c.host.read(ghcVS)
	pi := c.host.read(ghcPI)

	// 5. Diagnostic dump, gated by Debug.
	debugf("ahci: VS=%#x CAP=%#x CAP2=%#x PI=%#x", c.vs, c.cap, c.cap2, pi)

	// 6. Enable HBA interrupts globally (polled for completion, never
	// actually serviced).
	c.host.write(ghcGHC, withBit(c.host.read(ghcGHC), ghcIEPos, true))

	// 7. Probe every implemented port, binding the last one that
	// completes bring-up.
	np := int(field(c.cap, capNPPos, capNPWidth))
	sclo := bit(c.cap, capSCLOPos)

	var bound *Port
	for i := 0; i <= np; i++ {
		if pi&(1<<uint(i)) == 0 {
			continue
		}

		port, err := tryNewPort(hal, c.host, pool, i, sclo)
		if err != nil {
			debugf("ahci: port %d: %v", i, err)
			continue
		}

		bound = port
	}

	// 8. Fail if no port produced a working link.
	if bound == nil {
		return nil, ErrNoDevice
	}
	c.port = bound

	// 9. Identify the bound device and decode its capacity and addressing
	// mode.
	id, err := c.identify()
	if err != nil {
		return nil, fmt.Errorf("ahci: IDENTIFY failed: %w", err)
	}
	c.identity = id

	debugf("ahci: bound port %d: model=%q serial=%q lba48=%v sectors=%d",
		c.port.index, id.Model, id.Serial, id.LBA48, id.MaxLBA)

	return c, nil
}

// Identity returns the decoded IDENTIFY DEVICE page of the bound disk.
func (c *Controller) Identity() Identity {
	return c.identity
}

func (c *Controller) identify() (Identity, error) {
	page := make([]byte, 512)

	fis := h2dRegisterFIS{
		fisType: sataFISTypeRegisterH2D,
		pmPortC: 1 << 7,
		command: ataCmdIdentify,
	}

	if err := c.port.ExecCmd(c.hal, fis, page, false); err != nil {
		return Identity{}, err
	}

	return decodeIdentity(page), nil
}

// maxSectorsLBA48 and maxSectorsLBA28 are the largest sector counts a single
// READ/WRITE DMA (EXT) command can address (spec.md §4.6): a 16-bit count
// field for LBA48, an 8-bit count field (0 meaning 256) for LBA28.
const (
	maxSectorsLBA48 = 65536
	maxSectorsLBA28 = 256
)

// Read reads len(buf)/512 sectors starting at lba into buf, fragmenting the
// request across as many commands as the addressing mode and per-command
// transfer limit require (spec.md §4.6). len(buf) must be a multiple of 512.
func (c *Controller) Read(lba uint64, buf []byte) error {
	return c.transfer(lba, buf, false)
}

// Write writes len(buf)/512 sectors from buf starting at lba, with the same
// fragmentation rules as Read.
func (c *Controller) Write(lba uint64, buf []byte) error {
	return c.transfer(lba, buf, true)
}

func (c *Controller) transfer(lba uint64, buf []byte, isWrite bool) error {
	const blockSize = 512

	if len(buf)%blockSize != 0 {
		return fmt.Errorf("ahci: buffer length %d is not a multiple of %d bytes", len(buf), blockSize)
	}

	maxSectors := maxSectorsLBA28
	if c.identity.LBA48 {
		maxSectors = maxSectorsLBA48
	}
	if maxBytesPerCmd/blockSize < maxSectors {
		maxSectors = maxBytesPerCmd / blockSize
	}

	sectors := len(buf) / blockSize
	done := 0

	for done < sectors {
		count := sectors - done
		if count > maxSectors {
			count = maxSectors
		}

		chunk := buf[done*blockSize : (done+count)*blockSize]
		fis := buildRWFIS(lba+uint64(done), count, c.identity.LBA48, isWrite)

		if err := c.port.ExecCmd(c.hal, fis, chunk, isWrite); err != nil {
			return err
		}

		done += count
	}

	return nil
}

// buildRWFIS builds the Host-to-Device Register FIS for a READ/WRITE DMA
// (EXT) command addressing count sectors starting at lba (spec.md §4.6).
func buildRWFIS(lba uint64, count int, lba48 bool, isWrite bool) h2dRegisterFIS {
	fis := h2dRegisterFIS{
		fisType: sataFISTypeRegisterH2D,
		pmPortC: 1 << 7,
		device:  1 << 6, // LBA mode
	}

	if lba48 {
		if isWrite {
			fis.command = ataCmdWrite48
		} else {
			fis.command = ataCmdRead48
		}

		fis.lbaLow = byte(lba)
		fis.lbaMid = byte(lba >> 8)
		fis.lbaHigh = byte(lba >> 16)
		fis.lbaLowExp = byte(lba >> 24)
		fis.lbaMidExp = byte(lba >> 32)
		fis.lbaHighExp = byte(lba >> 40)

		fis.sectorCount = byte(count)
		fis.sectorCountExp = byte(count >> 8)
	} else {
		if isWrite {
			fis.command = ataCmdWrite28
		} else {
			fis.command = ataCmdRead28
		}

		fis.lbaLow = byte(lba)
		fis.lbaMid = byte(lba >> 8)
		fis.lbaHigh = byte(lba >> 16)
		fis.device |= byte(lba>>24) & 0x0F

		fis.sectorCount = byte(count) // count==256 wraps to 0, the hardware convention
	}

	return fis
}
