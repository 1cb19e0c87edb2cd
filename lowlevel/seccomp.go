// SPDX-Licence-Identifier: MIT

package lowlevel

import (
	"unsafe"

	"golang.org/x/net/bpf"
	"golang.org/x/sys/unix"
)

// seccomp(2) operations.
const (
	opSetModeStrict  = 0
	opSetModeFilter  = 1
	opGetActionAvail = 2
	opGetNotifSizes  = 3
)

// Filter return values.
const (
	RetKillProcess = 0x80000000
	RetKillThread  = 0x00000000
	RetKill        = RetKillThread
	RetTrap        = 0x00030000
	RetErrno       = 0x00050000
	RetUserNotif   = 0x7fc00000
	RetTrace       = 0x7ff00000
	RetLog         = 0x7ffc0000
	RetAllow       = 0x7fff0000

	RetActionFull = 0xffff0000
	RetDataMask   = 0x0000ffff
)

// Filter attach flags.
const (
	FilterFlagTSync            uint = 1 << 0
	FilterFlagLog              uint = 1 << 1
	FilterFlagSpecAllow        uint = 1 << 2
	FilterFlagNewListener      uint = 1 << 3
	FilterFlagTSyncESRCH       uint = 1 << 4
	FilterFlagWaitKillableRecv uint = 1 << 5
)

// struct seccomp_data layout (linux/seccomp.h). Arguments are 64-bit words
// stored in the byte order of the target architecture.
const (
	dataOffNr   = 0
	dataOffArch = 4
	dataOffArgs = 16
	dataArgSize = 8
)

// LoadNr loads the 32-bit syscall number into the accumulator.
func (a Arch) LoadNr() bpf.LoadAbsolute {
	return bpf.LoadAbsolute{Off: dataOffNr, Size: 4}
}

// LoadArch loads the audit architecture word into the accumulator.
func (a Arch) LoadArch() bpf.LoadAbsolute {
	return bpf.LoadAbsolute{Off: dataOffArch, Size: 4}
}

// LoadArg loads one 32-bit half of syscall argument i. Classic BPF has a
// 32-bit accumulator, so 64-bit arguments are read one word at a time; high
// selects the most significant word.
func (a Arch) LoadArg(i int, high bool) bpf.LoadAbsolute {
	off := uint32(dataOffArgs + dataArgSize*i)
	if high == a.LittleEndian() {
		off += 4
	}
	return bpf.LoadAbsolute{Off: off, Size: 4}
}

// NotifSizes holds the kernel's user-notification structure sizes.
type NotifSizes struct {
	Notif     uint16
	NotifResp uint16
	Data      uint16
}

type sockFprog struct {
	len    uint16
	filter uintptr
}

func errnoErr(errno unix.Errno) error {
	if errno == 0 {
		return nil
	}
	return errno
}

func seccomp(operation uint, flags uint, args uintptr) (int, unix.Errno) {
	ret, _, errno := unix.Syscall(unix.SYS_SECCOMP, uintptr(operation), uintptr(flags), args)
	return int(ret), errno
}

// ActionAvailable reports whether the kernel knows the given filter return
// action.
func ActionAvailable(action uint32) bool {
	ret, _ := seccomp(opGetActionAvail, 0, uintptr(unsafe.Pointer(&action)))
	return ret == 0
}

// GetNotifSizes queries the kernel's user-notification structure sizes.
func GetNotifSizes() (NotifSizes, error) {
	var sizes NotifSizes
	_, errno := seccomp(opGetNotifSizes, 0, uintptr(unsafe.Pointer(&sizes)))
	return sizes, errnoErr(errno)
}

// SetModeFilter attaches an assembled filter program to the calling thread.
// When FilterFlagNewListener is set the returned value is the notification
// file descriptor.
func SetModeFilter(prog []bpf.RawInstruction, flags uint) (int, error) {
	if len(prog) == 0 {
		return 0, unix.EINVAL
	}
	fprog := sockFprog{
		len:    uint16(len(prog)),
		filter: uintptr(unsafe.Pointer(&prog[0])),
	}
	ret, errno := seccomp(opSetModeFilter, flags, uintptr(unsafe.Pointer(&fprog)))
	if flags&FilterFlagNewListener != 0 && ret >= 0 {
		return ret, nil
	}
	if ret != 0 {
		return 0, errnoErr(errno)
	}
	return 0, nil
}

// NoNewPrivs sets PR_SET_NO_NEW_PRIVS, required before an unprivileged
// process may attach a filter.
func NoNewPrivs() error {
	return unix.Prctl(unix.PR_SET_NO_NEW_PRIVS, 1, 0, 0, 0)
}
