// SPDX-Licence-Identifier: MIT

// Package lowlevel exposes the kernel ABI pieces needed to build and attach
// seccomp BPF programs: audit architecture identifiers, the seccomp_data
// layout and the seccomp(2) syscall itself.
package lowlevel

import (
	"runtime"

	"golang.org/x/sys/unix"
)

// Arch identifies a filter target architecture by its GOARCH name
// (as in [runtime.GOARCH]).
type Arch string

// Native returns the architecture of the running process.
func Native() Arch { return Arch(runtime.GOARCH) }

var auditArch = map[Arch]uint32{
	"386":         unix.AUDIT_ARCH_I386,
	"amd64":       unix.AUDIT_ARCH_X86_64,
	"arm":         unix.AUDIT_ARCH_ARM,
	"arm64":       unix.AUDIT_ARCH_AARCH64,
	"arm64be":     0x800000b7,
	"armbe":       unix.AUDIT_ARCH_ARMEB,
	"loong64":     0xc0000102,
	"mips":        unix.AUDIT_ARCH_MIPS,
	"mips64":      unix.AUDIT_ARCH_MIPS64,
	"mips64le":    unix.AUDIT_ARCH_MIPSEL64,
	"mips64p32":   unix.AUDIT_ARCH_MIPS64N32,
	"mips64p32le": unix.AUDIT_ARCH_MIPSEL64N32,
	"mipsle":      unix.AUDIT_ARCH_MIPSEL,
	"ppc":         unix.AUDIT_ARCH_PPC,
	"ppc64":       unix.AUDIT_ARCH_PPC64,
	"ppc64le":     unix.AUDIT_ARCH_PPC64LE,
	"riscv":       0x400000f3,
	"riscv64":     unix.AUDIT_ARCH_RISCV64,
	"s390":        unix.AUDIT_ARCH_S390,
	"s390x":       unix.AUDIT_ARCH_S390X,
	"sparc":       unix.AUDIT_ARCH_SPARC,
	"sparc64":     unix.AUDIT_ARCH_SPARC64,
}

// AuditArch returns the linux kernel audit identifier carried in
// seccomp_data.arch, or 0 when the architecture is unknown.
func (a Arch) AuditArch() uint32 { return auditArch[a] }

// Supported reports whether the architecture can be targeted at all.
func (a Arch) Supported() bool { return a.AuditArch() != 0 }

// Is64Bit reports whether the kernel considers the architecture 64 bits.
func (a Arch) Is64Bit() bool { return a.AuditArch()&0x80000000 != 0 }

// LittleEndian reports whether the kernel considers the architecture
// little endian.
func (a Arch) LittleEndian() bool { return a.AuditArch()&0x40000000 != 0 }

func (a Arch) String() string { return string(a) }
