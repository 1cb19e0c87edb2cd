// SPDX-Licence-Identifier: MIT

package filterdb

// Read-only traversal of the stored decision trees, for code generators that
// mirror the tree shape in emitted conditionals.

// Nr returns the entry's native syscall number.
func (e *SyscallEntry) Nr() uint { return e.nr }

// Chain returns the root of the entry's decision tree, or nil when the
// entry's action applies unconditionally.
func (e *SyscallEntry) Chain() *Node { return e.chain }

// Action returns the entry's unconditional action. It is only valid, and ok
// only true, while the entry has no chain.
func (e *SyscallEntry) Action() (Action, bool) { return e.action, e.hasAction && e.chain == nil }

// Next returns the entry for the next higher filtered syscall number.
func (e *SyscallEntry) Next() *SyscallEntry { return e.next }

// Walk visits every node of the entry's tree, parents before successors, and
// stops early when fn returns false.
func (e *SyscallEntry) Walk(fn func(*Node) bool) {
	walkNodes(e.chain, fn)
}

func walkNodes(n *Node, fn func(*Node) bool) bool {
	for ; n != nil; n = n.levelNext {
		if !fn(n) {
			return false
		}
		if !walkNodes(n.nextTrue, fn) {
			return false
		}
		if !walkNodes(n.nextFalse, fn) {
			return false
		}
	}
	return true
}

// Syscalls returns the first entry of the sorted syscall list.
func (db *DB) Syscalls() *SyscallEntry { return db.syscalls }

// Arg returns the argument position the node tests.
func (n *Node) Arg() uint { return n.arg }

// Op returns the node's canonical comparison operator.
func (n *Node) Op() Op { return n.op }

// Datum returns the comparison operand.
func (n *Node) Datum() uint64 { return n.datum }

// Action returns the node's terminal action; ok is false on interior nodes.
func (n *Node) Action() (Action, bool) { return n.action, n.hasAction }

// ActionOnTrue reports which comparison outcome the action terminates. Only
// meaningful on leaves.
func (n *Node) ActionOnTrue() bool { return n.actionOnTrue }

// NextTrue returns the subtree taken when the comparison holds.
func (n *Node) NextTrue() *Node { return n.nextTrue }

// NextFalse returns the subtree taken when the comparison fails.
func (n *Node) NextFalse() *Node { return n.nextFalse }

// LevelPrev returns the lower-keyed alternative at the same chain position.
func (n *Node) LevelPrev() *Node { return n.levelPrev }

// LevelNext returns the higher-keyed alternative at the same chain position.
func (n *Node) LevelNext() *Node { return n.levelNext }

// RefCount returns the number of inserted rules sharing this node.
func (n *Node) RefCount() uint { return n.refs }
