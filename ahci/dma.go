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
	"encoding/binary"
	"errors"
	"unsafe"
)

// DMA-visible structure sizes and limits (spec.md §3, §6).
const (
	commandHeaderSize = 32
	commandListSlots  = 32
	commandListSize   = commandListSlots * commandHeaderSize // 1024 B
	commandListAlign  = 1024

	receivedFISSize  = 256
	receivedFISAlign = 256

	h2dFISSize = 20 // sata_fis_h2d, Command FIS length in dwords = 5

	prdEntrySize  = 16
	maxSGEntries  = 56
	maxBytesPerSG = 4 * 1024 * 1024                 // 4 MiB
	maxBytesPerCmd = maxSGEntries * maxBytesPerSG    // 224 MiB

	commandTablePRDTOffset = 0x80 // ahci_sg[56] starts at offset 0x80
	commandTableSize       = commandTablePRDTOffset + maxSGEntries*prdEntrySize
	commandTableAlign      = 128
)

// Pool is a bump allocator over a physically-contiguous, caller-supplied
// memory range. AHCI port buffers (Command List, Received-FIS area,
// Command Table) are allocated once at port bring-up and live for the
// lifetime of the port, so unlike tamago's general-purpose dma.Region this
// allocator never frees: it only hands out zero-initialized, aligned
// blocks until the range is exhausted.
type Pool struct {
	base uintptr
	size uintptr
	next uintptr
}

// NewPool creates an allocator over [base, base+size). The caller is
// responsible for ensuring the range is physically contiguous and not
// otherwise in use.
func NewPool(base uintptr, size uintptr) *Pool {
	return &Pool{base: base, size: size, next: base}
}

// ErrPoolExhausted is returned by Pool.Alloc when the backing range cannot
// satisfy an allocation.
var ErrPoolExhausted = errors.New("ahci: dma pool exhausted")

// Alloc reserves n zero-initialized bytes aligned to align (a power of
// two), returning the virtual address of the block.
func (p *Pool) Alloc(n int, align uintptr) (uintptr, error) {
	addr := alignUp(p.next, align)
	end := addr + uintptr(n)

	if end > p.base+p.size || end < addr {
		return 0, ErrPoolExhausted
	}

	clear(memAt(addr, n))
	p.next = end

	return addr, nil
}

func alignUp(addr uintptr, align uintptr) uintptr {
	if align <= 1 {
		return addr
	}
	return (addr + align - 1) &^ (align - 1)
}

// memAt returns a byte slice view of n bytes of memory starting at addr.
// It exists solely to let the driver treat a DMA buffer's virtual address
// as structured, readable/writable memory without a second copy.
func memAt(addr uintptr, n int) []byte {
	if n == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), n)
}

// commandHeader is the 32-byte Command Header entry of the Command List
// (spec.md §6): opts word, device-written status, and the 64-bit (as two
// 32-bit halves) physical address of this command's Command Table.
type commandHeader struct {
	opts      uint32
	status    uint32
	tblAddrLo uint32
	tblAddrHi uint32
}

func (h commandHeader) encodeInto(buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:4], h.opts)
	binary.LittleEndian.PutUint32(buf[4:8], h.status)
	binary.LittleEndian.PutUint32(buf[8:12], h.tblAddrLo)
	binary.LittleEndian.PutUint32(buf[12:16], h.tblAddrHi)
	clear(buf[16:32])
}

func decodeCommandHeader(buf []byte) commandHeader {
	return commandHeader{
		opts:      binary.LittleEndian.Uint32(buf[0:4]),
		status:    binary.LittleEndian.Uint32(buf[4:8]),
		tblAddrLo: binary.LittleEndian.Uint32(buf[8:12]),
		tblAddrHi: binary.LittleEndian.Uint32(buf[12:16]),
	}
}

// commandHeaderOpts builds the Command Header opts word (spec.md §4.5
// step 5): bits 0..4 Command FIS length in dwords, bit 6 write direction,
// bits 16..31 PRDT length.
func commandHeaderOpts(isWrite bool, prdtLen int) uint32 {
	const cfl = h2dFISSize / 4 // 5 dwords

	opts := uint32(cfl)
	opts = withBit(opts, 6, isWrite)
	opts |= uint32(prdtLen) << 16

	return opts
}

// prdEntry is one 16-byte Physical Region Descriptor (spec.md §3, §6): the
// 64-bit physical address of a segment and a byte count encoded as
// (length - 1) in the low 22 bits of flagsSize.
type prdEntry struct {
	addrLo    uint32
	addrHi    uint32
	flagsSize uint32
}

func prdFlagsSize(byteCount int) uint32 {
	return uint32(byteCount-1) & 0x003FFFFF
}

func (e prdEntry) encodeInto(buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:4], e.addrLo)
	binary.LittleEndian.PutUint32(buf[4:8], e.addrHi)
	binary.LittleEndian.PutUint32(buf[8:12], 0)
	binary.LittleEndian.PutUint32(buf[12:16], e.flagsSize)
}

func decodePRDEntry(buf []byte) prdEntry {
	return prdEntry{
		addrLo:    binary.LittleEndian.Uint32(buf[0:4]),
		addrHi:    binary.LittleEndian.Uint32(buf[4:8]),
		flagsSize: binary.LittleEndian.Uint32(buf[12:16]),
	}
}

// h2dRegisterFIS is the 20-byte Host-to-Device Register FIS (spec.md §3,
// §4.6, §6): the frame that writes the ATA task-file registers on the
// device and initiates an ATA command.
type h2dRegisterFIS struct {
	fisType  uint8
	pmPortC  uint8 // bit 7: command register update
	command  uint8
	features uint8

	lbaLow, lbaMid, lbaHigh uint8
	device                  uint8

	lbaLowExp, lbaMidExp, lbaHighExp uint8
	featuresExp                     uint8

	sectorCount, sectorCountExp uint8
	reserved1                   uint8
	control                     uint8
}

const sataFISTypeRegisterH2D = 0x27

func (f h2dRegisterFIS) encodeInto(buf []byte) {
	buf[0] = f.fisType
	buf[1] = f.pmPortC
	buf[2] = f.command
	buf[3] = f.features
	buf[4] = f.lbaLow
	buf[5] = f.lbaMid
	buf[6] = f.lbaHigh
	buf[7] = f.device
	buf[8] = f.lbaLowExp
	buf[9] = f.lbaMidExp
	buf[10] = f.lbaHighExp
	buf[11] = f.featuresExp
	buf[12] = f.sectorCount
	buf[13] = f.sectorCountExp
	buf[14] = f.reserved1
	buf[15] = f.control
	clear(buf[16:20])
}

func decodeH2DRegisterFIS(buf []byte) h2dRegisterFIS {
	return h2dRegisterFIS{
		fisType:         buf[0],
		pmPortC:         buf[1],
		command:         buf[2],
		features:        buf[3],
		lbaLow:          buf[4],
		lbaMid:          buf[5],
		lbaHigh:         buf[6],
		device:          buf[7],
		lbaLowExp:       buf[8],
		lbaMidExp:       buf[9],
		lbaHighExp:      buf[10],
		featuresExp:     buf[11],
		sectorCount:     buf[12],
		sectorCountExp:  buf[13],
		reserved1:       buf[14],
		control:         buf[15],
	}
}
