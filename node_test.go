// SPDX-Licence-Identifier: MIT

package filterdb

import "testing"

func levelList(arg uint, ops ...Op) []*Node {
	nodes := make([]*Node, len(ops))
	for i, op := range ops {
		nodes[i] = &Node{arg: arg, op: op, datum: uint64(i), refs: 1}
		if i > 0 {
			nodes[i-1].levelNext = nodes[i]
			nodes[i].levelPrev = nodes[i-1]
		}
	}
	return nodes
}

func TestRemoveNodeMidList(t *testing.T) {
	nodes := levelList(0, CompareEqual, CompareGreaterEqual, CompareGreater)
	root := nodes[0]
	if !removeNode(&root, nodes[1]) {
		t.Fatal("Expected node to be found")
	}
	if root != nodes[0] {
		t.Errorf("Expected root to stay at head, got %+v", root)
	}
	if nodes[0].levelNext != nodes[2] || nodes[2].levelPrev != nodes[0] {
		t.Error("Expected siblings relinked around the removed node")
	}
}

func TestRemoveNodeHead(t *testing.T) {
	nodes := levelList(0, CompareEqual, CompareGreater)
	root := nodes[0]
	if !removeNode(&root, nodes[0]) {
		t.Fatal("Expected node to be found")
	}
	if root != nodes[1] {
		t.Errorf("Expected root rewired to the next sibling, got %+v", root)
	}
	if nodes[1].levelPrev != nil {
		t.Error("Expected new head to have no previous sibling")
	}
}

func TestRemoveNodeDeepHead(t *testing.T) {
	parent := &Node{arg: 0, op: CompareEqual, refs: 1}
	children := levelList(1, CompareEqual, CompareGreater)
	parent.nextTrue = children[0]
	root := parent
	if !removeNode(&root, children[0]) {
		t.Fatal("Expected node to be found")
	}
	if parent.nextTrue != children[1] {
		t.Errorf("Expected parent successor rewired, got %+v", parent.nextTrue)
	}
}

func TestRemoveNodeFalseSubtree(t *testing.T) {
	parent := &Node{arg: 0, op: CompareEqual, refs: 1}
	target := &Node{arg: 1, op: CompareEqual, refs: 1}
	parent.nextFalse = target
	root := parent
	if !removeNode(&root, target) {
		t.Fatal("Expected the false subtree to be searched")
	}
	if parent.nextFalse != nil {
		t.Error("Expected the false successor to be cleared")
	}
}

func TestRemoveNodeNotFound(t *testing.T) {
	nodes := levelList(0, CompareEqual, CompareGreater)
	root := nodes[0]
	if removeNode(&root, &Node{arg: 5, op: CompareEqual}) {
		t.Error("Expected node not to be found")
	}
	if root != nodes[0] || nodes[0].levelNext != nodes[1] {
		t.Error("Expected list untouched")
	}
}

func TestChainFreeSeversLinks(t *testing.T) {
	root := &Node{arg: 0, op: CompareEqual}
	child := &Node{arg: 1, op: CompareEqual}
	sibling := &Node{arg: 1, op: CompareGreater}
	root.nextTrue = child
	child.levelNext = sibling
	sibling.levelPrev = child
	chainFree(root)
	if root.nextTrue != nil || child.levelNext != nil || sibling.levelPrev != nil {
		t.Error("Expected every link severed")
	}
}
