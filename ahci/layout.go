// AHCI (Advanced Host Controller Interface) SATA driver
// https://github.com/Starry-OS/simple-ahci
//
// Copyright (c) Starry-OS
// https://github.com/Starry-OS
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package ahci

// MMIO layout of an AHCI host bus adapter (AHCI 1.3). The Generic Host
// Control block starts at offset 0, padded to 0x100, followed by 32
// per-port register blocks of 0x80 bytes each.
//
//	0x00000..0x0002B   Generic Host Control
//	0x00100..0x00180   Port 0 registers
//	0x00180..0x00200   Port 1 registers
//	...
//	0x00880..0x00900   Port 31 registers
const (
	ghcCAP      = 0x00
	ghcGHC      = 0x04
	ghcIS       = 0x08
	ghcPI       = 0x0C
	ghcVS       = 0x10
	ghcCCCCTL   = 0x14
	ghcCCCPORTS = 0x18
	ghcEMLOC    = 0x1C
	ghcEMCTL    = 0x20
	ghcCAP2     = 0x24

	portRegionBase = 0x100
	portRegionSize = 0x80
	maxPorts       = 32
)

// per-port register offsets, relative to the start of a port's 0x80-byte
// block.
const (
	pxCLB    = 0x00
	pxCLBU   = 0x04
	pxFB     = 0x08
	pxFBU    = 0x0C
	pxIS     = 0x10
	pxIE     = 0x14
	pxCMD    = 0x18
	pxTFD    = 0x20
	pxSIG    = 0x24
	pxSSTS   = 0x28
	pxSCTL   = 0x2C
	pxSERR   = 0x30
	pxSACT   = 0x34
	pxCI     = 0x38
	pxSNTF   = 0x3C
	pxFBS    = 0x40
	pxDEVSLP = 0x44 // 8-bit register, the sole non-32-bit access in the map
)

// CAP – HBA Capabilities bitfield positions (AHCI 1.3, §3.1.1).
const (
	capNPPos    = 0
	capNPWidth  = 5
	capSXSPos   = 5
	capEMSPos   = 6
	capCCCSPos  = 7
	capNCSPos   = 8
	capNCSWidth = 5
	capPSCPos   = 13
	capSSCPos   = 14
	capPMDPos   = 15
	capFBSSPos  = 16
	capSPMPos   = 17
	capSAMPos   = 18
	capISSPos   = 20
	capISSWidth = 4
	capSCLOPos  = 24
	capSALPos   = 25
	capSALPPos  = 26
	capSSSPos   = 27
	capSMPSPos  = 28
	capSSNTFPos = 29
	capSNCQPos  = 30
	capS64APos  = 31
)

// GHC – Global HBA Control bitfield positions.
const (
	ghcHRPos   = 0
	ghcIEPos   = 1
	ghcMRSMPos = 2
	ghcAEPos   = 31
)

// CAP2 – HBA Capabilities Extended bitfield positions.
const (
	cap2BOHPos  = 0
	cap2NVMPPos = 1
	cap2APSTPos = 2
	cap2SDSPos  = 3
	cap2SADMPos = 4
	cap2DESOPos = 5
)

// PxCMD – Port Command and Status bitfield positions.
const (
	pxcmdSTPos    = 0
	pxcmdSUDPos   = 1
	pxcmdPODPos   = 2
	pxcmdCLOPos   = 3
	pxcmdFREPos   = 4
	pxcmdCCSPos   = 8
	pxcmdCCSWidth = 5
	pxcmdMPSSPos  = 13
	pxcmdFRPos    = 14
	pxcmdCRPos    = 15
	pxcmdCPSPos   = 16
	pxcmdPMAPos   = 17
	pxcmdHPCPPos  = 18
	pxcmdMPSPPos  = 19
	pxcmdCPDPos   = 20
	pxcmdESPPos   = 21
	pxcmdFBSCPPos = 22
	pxcmdAPSTEPos = 23
	pxcmdATAPIPos = 24
	pxcmdDLAEPos  = 25
	pxcmdALPEPos  = 26
	pxcmdASPPos   = 27
	pxcmdICCPos   = 28
	pxcmdICCWidth = 4
)

// ICC – Interface Communication Control values (PxCMD bits 31:28).
const (
	ICCIdle     = 0x0
	ICCActive   = 0x1
	ICCPartial  = 0x2
	ICCSlumber  = 0x6
	ICCDevSleep = 0x8
)

// PxTFD – Task File Data bitfield positions.
const (
	tfdERRPos      = 8
	tfdERRWidth    = 8
	tfdSTSBSYPos   = 7
	tfdSTSDRQPos   = 3
	tfdSTSERRPos   = 0
)

// PxSSTS – Serial ATA Status bitfield positions.
const (
	sstsDETPos    = 0
	sstsDETWidth  = 4
	sstsSPDPos    = 4
	sstsSPDWidth  = 4
	sstsIPMPos    = 8
	sstsIPMWidth  = 4
)

// SSTS.DET device-detection values.
const (
	DETNoDevice         = 0x0
	DETPresentNoComm    = 0x1
	DETPresentPHYReady  = 0x3
	DETPHYOfflineMode   = 0x4
)

// PxIS / PxIE – Interrupt Status / Enable bitfield positions, shared layout.
const (
	pxiDHRPos = 0
	pxiPSPos  = 1
	pxiDSPos  = 2
	pxiSDBPos = 3
	pxiUFPos  = 4
	pxiDPPos  = 5
	pxiPCPos  = 6
	pxiDMPPos = 7
	pxiPRCPos = 22
	pxiIPMPos = 23
	pxiOFPos  = 24
	pxiINFPos = 26
	pxiIFPos  = 27
	pxiHBDPos = 28
	pxiHBFPos = 29
	pxiTFEPos = 30
	pxiCPDPos = 31
)

// errorsPendingMask is the "all errors plus device-presence" interrupt
// enable mask the driver installs during port bring-up (spec.md §4.4 step
// 6): TFE|HBF|HBD|IF|IPM|PRC|PC|UF|SDB|DS|PS|DHR.
const errorsPendingMask uint32 = 1<<pxiTFEPos | 1<<pxiHBFPos | 1<<pxiHBDPos |
	1<<pxiIFPos | 1<<pxiIPMPos | 1<<pxiPRCPos | 1<<pxiPCPos | 1<<pxiUFPos |
	1<<pxiSDBPos | 1<<pxiDSPos | 1<<pxiPSPos | 1<<pxiDHRPos

func bit(v uint32, pos uint) bool {
	return (v>>pos)&1 == 1
}

func withBit(v uint32, pos uint, set bool) uint32 {
	if set {
		return v | (1 << pos)
	}
	return v &^ (1 << pos)
}

func field(v uint32, pos uint, width uint) uint32 {
	mask := uint32(1)<<width - 1
	return (v >> pos) & mask
}

func withField(v uint32, pos uint, width uint, val uint32) uint32 {
	mask := uint32(1)<<width - 1
	return (v &^ (mask << pos)) | ((val & mask) << pos)
}
