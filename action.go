// SPDX-Licence-Identifier: MIT

package filterdb

import (
	"fmt"

	"github.com/seccomp-go/filterdb/lowlevel"
	"golang.org/x/net/bpf"
)

// Action is the packed seccomp return value taken when a rule matches. The
// database stores actions uninterpreted and only ever compares them for
// equality; the low 16 bits carry action-specific data such as an errno.
type Action uint32

const (
	ActionKillThread  Action = lowlevel.RetKillThread
	ActionKillProcess Action = lowlevel.RetKillProcess
	ActionTrap        Action = lowlevel.RetTrap
	ActionNotify      Action = lowlevel.RetUserNotif
	ActionTrace       Action = lowlevel.RetTrace
	ActionLog         Action = lowlevel.RetLog
	ActionAllow       Action = lowlevel.RetAllow
)

// ActionErrno denies the call and makes it fail with the given errno.
func ActionErrno(errno uint16) Action {
	return Action(lowlevel.RetErrno | uint32(errno))
}

// ActionTraceData notifies an attached tracer, passing it data.
func ActionTraceData(data uint16) Action {
	return Action(lowlevel.RetTrace | uint32(data))
}

func (a Action) base() uint32 { return uint32(a) & lowlevel.RetActionFull }
func (a Action) data() uint16 { return uint16(uint32(a) & lowlevel.RetDataMask) }

func (a Action) compile() bpf.RetConstant {
	return bpf.RetConstant{Val: uint32(a)}
}

func (a Action) String() string {
	switch a.base() {
	case lowlevel.RetKillProcess:
		return "kill_process"
	case lowlevel.RetKillThread:
		return "kill_thread"
	case lowlevel.RetTrap:
		return "trap"
	case lowlevel.RetErrno:
		return fmt.Sprintf("errno(%d)", a.data())
	case lowlevel.RetUserNotif:
		return "notify"
	case lowlevel.RetTrace:
		return fmt.Sprintf("trace(%d)", a.data())
	case lowlevel.RetLog:
		return "log"
	case lowlevel.RetAllow:
		return "allow"
	default:
		return fmt.Sprintf("action(%#x)", uint32(a))
	}
}
