// SPDX-Licence-Identifier: MIT

package filterdb

import (
	"fmt"

	"github.com/seccomp-go/filterdb/lowlevel"
)

// Install compiles the database for the running architecture and attaches it
// to the calling thread. The caller must not hold privileges it expects to
// keep: no_new_privs is set first.
func (db *DB) Install() error {
	var flags uint
	for _, a := range db.actions() {
		if !lowlevel.ActionAvailable(a.base()) {
			return fmt.Errorf("action '%s' unavailable", a)
		}
		if a.base() == lowlevel.RetUserNotif {
			flags |= lowlevel.FilterFlagNewListener
		}
	}
	raw, err := db.Assemble(lowlevel.Native())
	if err != nil {
		return err
	}
	if err := lowlevel.NoNewPrivs(); err != nil {
		return err
	}
	// TODO: return the notification fd when FilterFlagNewListener is set.
	_, err = lowlevel.SetModeFilter(raw, flags)
	return err
}

// actions lists every distinct action the stored filter can return.
func (db *DB) actions() []Action {
	seen := map[Action]bool{db.defaultAction: true}
	out := []Action{db.defaultAction}
	add := func(a Action) {
		if !seen[a] {
			seen[a] = true
			out = append(out, a)
		}
	}
	for e := db.syscalls; e != nil; e = e.next {
		if a, ok := e.Action(); ok {
			add(a)
			continue
		}
		e.Walk(func(n *Node) bool {
			if a, ok := n.Action(); ok {
				add(a)
			}
			return true
		})
	}
	return out
}
