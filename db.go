// SPDX-Licence-Identifier: MIT

package filterdb

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

// ArgMax is the number of syscall arguments a filter can inspect.
const ArgMax = 6

var (
	// ErrInvalidRule reports a malformed rule: too many argument filters,
	// an argument position out of range, an unknown operator, or two
	// filters for the same argument in one call.
	ErrInvalidRule = errors.New("invalid filter rule")

	// ErrInternal reports a state the merge walk cannot legally reach. It
	// indicates a defect in the database, not a caller mistake.
	ErrInternal = errors.New("filter database inconsistency")
)

// SyscallEntry associates one syscall number with the root of its decision
// tree. A nil chain means the action applies unconditionally.
type SyscallEntry struct {
	nr    uint
	chain *Node

	// action holds the unconditional action; valid only while chain is nil.
	action    Action
	hasAction bool

	next *SyscallEntry
}

// DB is the filter rule database: a sorted list of syscall entries plus the
// action applied to any syscall without an entry.
//
// The database is a passive, single-threaded structure; callers serialize
// access themselves.
type DB struct {
	defaultAction Action
	syscalls      *SyscallEntry
}

// New returns an empty database with the given default action.
func New(defaultAction Action) *DB {
	return &DB{defaultAction: defaultAction}
}

// DefaultAction returns the action applied to syscalls without an entry.
func (db *DB) DefaultAction() Action { return db.defaultAction }

// Release severs every owned node link, children before parent, and empties
// the entry list. The database may be reused afterwards. Safe on nil.
func (db *DB) Release() {
	if db == nil {
		return
	}
	for e := db.syscalls; e != nil; {
		next := e.next
		chainFree(e.chain)
		e.chain = nil
		e.next = nil
		e = next
	}
	db.syscalls = nil
}

// FindSyscall returns the entry for the given syscall number, or nil if the
// database holds no rule for it.
func (db *DB) FindSyscall(nr uint) *SyscallEntry {
	for e := db.syscalls; e != nil && e.nr <= nr; e = e.next {
		if e.nr == nr {
			return e
		}
	}
	return nil
}

// AddRule inserts one rule: when syscall nr is invoked and every argument
// spec matches, the filter takes the given action. The rule is merged into
// the syscall's existing decision tree so that identical sub-chains are
// shared and more general rules subsume more specific ones. On error the
// database is unchanged.
func (db *DB) AddRule(action Action, nr uint, specs []ArgSpec) error {
	if len(specs) > ArgMax {
		return fmt.Errorf("%w: %d argument filters, at most %d", ErrInvalidRule, len(specs), ArgMax)
	}

	// Order the specs by argument number so that chains from different
	// calls line up node by node.
	var ordered [ArgMax]ArgSpec
	var present [ArgMax]bool
	for _, s := range specs {
		if s.Arg >= ArgMax {
			return fmt.Errorf("%w: argument %d out of range", ErrInvalidRule, s.Arg)
		}
		if !s.Op.valid() {
			return fmt.Errorf("%w: unknown operator %d", ErrInvalidRule, uint(s.Op))
		}
		if present[s.Arg] {
			return fmt.Errorf("%w: duplicate filter for argument %d", ErrInvalidRule, s.Arg)
		}
		present[s.Arg] = true
		ordered[s.Arg] = s
	}

	logrus.Debugf("filterdb: add rule: syscall %d: %s => %s", nr, specsString(specs), action)

	// Build the whole candidate chain before touching the stored filter;
	// nothing below allocates once the splice begins.
	entry := &SyscallEntry{nr: nr}
	var prev *Node
	onTrue := true
	for i := 0; i < ArgMax; i++ {
		if !present[i] {
			continue
		}
		op, cont := ordered[i].canonical()
		n := &Node{arg: ordered[i].Arg, op: op, datum: ordered[i].Datum, refs: 1}
		if prev == nil {
			entry.chain = n
		} else if onTrue {
			prev.nextTrue = n
		} else {
			prev.nextFalse = n
		}
		onTrue = cont
		prev = n
	}
	if prev != nil {
		prev.action = action
		prev.hasAction = true
		prev.actionOnTrue = onTrue
	} else {
		entry.action = action
		entry.hasAction = true
	}

	// Find the matching entry or splice a new one into the sorted list.
	var sPrev *SyscallEntry
	sIter := db.syscalls
	for sIter != nil && sIter.nr < nr {
		sPrev = sIter
		sIter = sIter.next
	}
	if sIter == nil || sIter.nr != nr {
		entry.next = sIter
		if sPrev != nil {
			sPrev.next = entry
		} else {
			db.syscalls = entry
		}
		return nil
	}

	if sIter.chain == nil {
		// The stored unconditional rule is at least as inclusive as
		// anything the new rule could add.
		logrus.Debugf("filterdb: syscall %d: existing unconditional rule wins", nr)
		chainFree(entry.chain)
		return nil
	}
	if entry.chain == nil {
		// The new unconditional rule subsumes every stored chain.
		logrus.Debugf("filterdb: syscall %d: new unconditional rule replaces chains", nr)
		chainFree(sIter.chain)
		sIter.chain = nil
		sIter.action = action
		sIter.hasAction = true
		return nil
	}

	return db.merge(sIter, entry.chain)
}

// merge walks the candidate chain and the stored tree in lock step, splicing
// the unmatched candidate remainder into the tree or discarding it when the
// stored rules already cover it.
func (db *DB) merge(entry *SyscallEntry, cand *Node) error {
	// anchor points at whatever holds the head of the level list the walk
	// currently sits in: the entry's root or a parent successor pointer.
	anchor := &entry.chain
	c := cand
	e := entry.chain

	// discard releases what is left of the candidate; donated subtrees
	// must have been unlinked from it first.
	discard := func() { chainFree(cand) }

	for c != nil && e != nil {
		if !chainSameKey(c, e) {
			// Look for an alternative with the candidate's key on
			// this level, or splice the candidate in at its sorted
			// position.
			if chainLess(c, e) {
				if e.levelPrev == nil {
					c.levelNext = e
					e.levelPrev = c
					*anchor = c
					discardPrefix(cand, c)
					return nil
				}
				if chainLess(e.levelPrev, c) {
					p := e.levelPrev
					p.levelNext = c
					c.levelPrev = p
					c.levelNext = e
					e.levelPrev = c
					discardPrefix(cand, c)
					return nil
				}
				e = e.levelPrev
			} else {
				if e.levelNext == nil {
					e.levelNext = c
					c.levelPrev = e
					discardPrefix(cand, c)
					return nil
				}
				if chainLess(c, e.levelNext) {
					n := e.levelNext
					e.levelNext = c
					c.levelPrev = e
					c.levelNext = n
					n.levelPrev = c
					discardPrefix(cand, c)
					return nil
				}
				e = e.levelNext
			}
			continue
		}

		// Same comparison at the same position: share the stored node.
		e.refs++
		switch {
		case e.leaf() && c.leaf():
			if e.actionOnTrue != c.actionOnTrue {
				// Both outcomes of the comparison now take an
				// action, so the node decides nothing anymore.
				act := e.action
				removeNode(&entry.chain, e)
				if entry.chain == nil {
					entry.action = act
					entry.hasAction = true
				}
			}
			discard()
			return nil

		case e.leaf():
			// The stored rule terminates one outcome; the candidate
			// may only deepen the other.
			if e.actionOnTrue {
				if c.nextTrue != nil {
					// The stored, shorter rule already
					// resolves that outcome.
					discard()
					return nil
				}
				if e.nextFalse == nil {
					e.nextFalse = c.nextFalse
					c.nextFalse = nil
					discard()
					return nil
				}
				c = c.nextFalse
				anchor = &e.nextFalse
				e = e.nextFalse
			} else {
				if c.nextFalse != nil {
					discard()
					return nil
				}
				if e.nextTrue == nil {
					e.nextTrue = c.nextTrue
					c.nextTrue = nil
					discard()
					return nil
				}
				c = c.nextTrue
				anchor = &e.nextTrue
				e = e.nextTrue
			}

		case c.leaf():
			// The new rule is shorter, so the stored depth beyond
			// the terminated outcome is unreachable.
			e.action = c.action
			e.hasAction = true
			e.actionOnTrue = c.actionOnTrue
			if e.actionOnTrue {
				chainFree(e.nextTrue)
				e.nextTrue = nil
			} else {
				chainFree(e.nextFalse)
				e.nextFalse = nil
			}
			discard()
			return nil

		case c.nextTrue != nil:
			if e.nextTrue == nil {
				e.nextTrue = c.nextTrue
				c.nextTrue = nil
				discard()
				return nil
			}
			c = c.nextTrue
			anchor = &e.nextTrue
			e = e.nextTrue

		case c.nextFalse != nil:
			if e.nextFalse == nil {
				e.nextFalse = c.nextFalse
				c.nextFalse = nil
				discard()
				return nil
			}
			c = c.nextFalse
			anchor = &e.nextFalse
			e = e.nextFalse

		default:
			discard()
			return fmt.Errorf("%w: merge walk dead end at syscall %d arg %d", ErrInternal, entry.nr, c.arg)
		}
	}
	return fmt.Errorf("%w: merge walk ran off both chains at syscall %d", ErrInternal, entry.nr)
}

// discardPrefix releases the candidate nodes before donated, which has been
// spliced into the stored tree along with everything below it.
func discardPrefix(cand, donated *Node) {
	if cand == donated {
		return
	}
	for n := cand; n != nil; {
		var next *Node
		if n.nextTrue == donated {
			n.nextTrue = nil
		} else {
			next = n.nextTrue
		}
		if n.nextFalse == donated {
			n.nextFalse = nil
		} else if next == nil {
			next = n.nextFalse
		}
		n.nextTrue, n.nextFalse = nil, nil
		n = next
	}
}
