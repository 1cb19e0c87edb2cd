// SPDX-Licence-Identifier: MIT

// Package filterdb stores seccomp filter rules and incrementally merges them
// into per-syscall decision trees that a BPF generator can walk.
package filterdb

import (
	"fmt"
	"strings"
)

// Op is a comparison operator applied to one syscall argument.
type Op uint

const (
	CompareNotEqual Op = iota + 1
	CompareLess
	CompareLessEqual
	CompareEqual
	CompareGreaterEqual
	CompareGreater
	// CompareMaskedEqual matches when (argument & datum) == datum.
	CompareMaskedEqual
)

func (op Op) valid() bool {
	return op >= CompareNotEqual && op <= CompareMaskedEqual
}

func (op Op) String() string {
	switch op {
	case CompareNotEqual:
		return "!="
	case CompareLess:
		return "<"
	case CompareLessEqual:
		return "<="
	case CompareEqual:
		return "=="
	case CompareGreaterEqual:
		return ">="
	case CompareGreater:
		return ">"
	case CompareMaskedEqual:
		return "&="
	default:
		return fmt.Sprintf("op(%d)", uint(op))
	}
}

// ArgSpec constrains a single syscall argument.
type ArgSpec struct {
	// Arg is the argument position, a0 = 0, a1 = 1, etc.
	Arg uint
	Op  Op
	// Datum is the value the live argument is compared against.
	Datum uint64
}

func (s ArgSpec) String() string {
	return fmt.Sprintf("arg%d %s %d {%#x}", s.Arg, s.Op, s.Datum, s.Datum)
}

// canonical rewrites the operator to shrink the stored op/datum combinations
// so that logically equivalent rules produce identical nodes. The returned
// flag tells which comparison outcome the rule continues, or terminates, on.
func (s ArgSpec) canonical() (Op, bool) {
	switch s.Op {
	case CompareNotEqual:
		return CompareEqual, false
	case CompareLess:
		return CompareGreaterEqual, false
	case CompareLessEqual:
		return CompareGreater, false
	default:
		return s.Op, true
	}
}

func specsString(specs []ArgSpec) string {
	if len(specs) == 0 {
		return "[always]"
	}
	parts := make([]string, len(specs))
	for i, s := range specs {
		parts[i] = s.String()
	}
	return strings.Join(parts, " && ")
}
