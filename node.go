// SPDX-Licence-Identifier: MIT

package filterdb

// Node is one argument comparison in a syscall's decision tree. The stored
// operator is always in canonical form (see ArgSpec.canonical).
//
// nextTrue and nextFalse own the subtrees continuing the chain on each
// comparison outcome. levelPrev and levelNext are non-owning links between
// alternatives sitting at the same position in their chains, kept sorted
// ascending by (arg, op); whatever anchors the level list (the syscall entry
// or a parent's successor pointer) always points at its head.
type Node struct {
	arg   uint
	op    Op
	datum uint64

	// action terminates the chain on the actionOnTrue outcome; hasAction
	// marks the node as a leaf. The opposite branch may still continue
	// deeper for another rule.
	action       Action
	hasAction    bool
	actionOnTrue bool

	levelPrev *Node
	levelNext *Node

	nextTrue  *Node
	nextFalse *Node

	// refs counts the inserted rules that depend on this exact node.
	refs uint
}

func (n *Node) leaf() bool { return n.hasAction }

func chainLess(a, b *Node) bool {
	return a.arg < b.arg || (a.arg == b.arg && a.op < b.op)
}

func chainSameKey(a, b *Node) bool {
	return a.arg == b.arg && a.op == b.op && a.datum == b.datum
}

// chainFree releases a subtree post-order, severing every link before
// descending so that ownership is handed over one level at a time and sibling
// back-references can never be followed twice.
func chainFree(n *Node) {
	if n == nil {
		return
	}
	prev, next := n.levelPrev, n.levelNext
	nt, nf := n.nextTrue, n.nextFalse
	n.levelPrev, n.levelNext = nil, nil
	n.nextTrue, n.nextFalse = nil, nil
	if prev != nil {
		prev.levelNext = nil
	}
	if next != nil {
		next.levelPrev = nil
	}
	chainFree(prev)
	chainFree(next)
	chainFree(nt)
	chainFree(nf)
}

// removeNode searches the subtree anchored at *anchor for target and excises
// it: level siblings are relinked around it, the anchor is rewired when the
// target headed its level list, and only the target's own subtree is
// released. It reports whether the target was found.
func removeNode(anchor **Node, target *Node) bool {
	if anchor == nil || *anchor == nil || target == nil {
		return false
	}
	head := *anchor
	for head.levelPrev != nil {
		head = head.levelPrev
	}
	for iter := head; iter != nil; iter = iter.levelNext {
		if iter == target {
			if iter.levelPrev != nil {
				iter.levelPrev.levelNext = iter.levelNext
			}
			if iter.levelNext != nil {
				iter.levelNext.levelPrev = iter.levelPrev
			}
			if *anchor == iter {
				if iter.levelPrev != nil {
					*anchor = iter.levelPrev
				} else {
					*anchor = iter.levelNext
				}
			}
			iter.levelPrev, iter.levelNext = nil, nil
			chainFree(iter)
			return true
		}
		if removeNode(&iter.nextTrue, target) {
			return true
		}
		if removeNode(&iter.nextFalse, target) {
			return true
		}
	}
	return false
}
