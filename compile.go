// SPDX-Licence-Identifier: MIT

package filterdb

import (
	"errors"
	"fmt"

	"github.com/seccomp-go/filterdb/lowlevel"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/bpf"
)

// ErrProgramTooLarge reports a filter whose conditionals need jumps beyond
// the 255-instruction reach of a classic BPF conditional.
var ErrProgramTooLarge = errors.New("filter program too large")

// program accumulates instructions with symbolic jump targets; jumps are
// resolved to skip counts once every block has been placed.
type program struct {
	insns  []bpf.Instruction
	labels map[string]int
	jumps  map[int]jumpTarget
	nextID int
}

type jumpTarget struct {
	onTrue  string
	onFalse string
}

func newProgram() *program {
	return &program{
		labels: make(map[string]int),
		jumps:  make(map[int]jumpTarget),
	}
}

func (p *program) emit(ins bpf.Instruction) {
	p.insns = append(p.insns, ins)
}

func (p *program) label(name string) {
	p.labels[name] = len(p.insns)
}

func (p *program) fresh(prefix string) string {
	p.nextID++
	return fmt.Sprintf("%s%d", prefix, p.nextID)
}

// jumpIf emits a conditional jump; an empty label falls through.
func (p *program) jumpIf(cond bpf.JumpTest, val uint32, onTrue, onFalse string) {
	p.jumps[len(p.insns)] = jumpTarget{onTrue: onTrue, onFalse: onFalse}
	p.emit(bpf.JumpIf{Cond: cond, Val: val})
}

func (p *program) jump(to string) {
	p.jumps[len(p.insns)] = jumpTarget{onTrue: to}
	p.emit(bpf.Jump{})
}

func (p *program) skipTo(idx int, label string) (int, error) {
	if label == "" {
		return 0, nil
	}
	pos, ok := p.labels[label]
	if !ok || pos <= idx {
		return 0, fmt.Errorf("%w: unresolved jump to %q", ErrInternal, label)
	}
	return pos - idx - 1, nil
}

func (p *program) resolve() ([]bpf.Instruction, error) {
	for idx, tgt := range p.jumps {
		st, err := p.skipTo(idx, tgt.onTrue)
		if err != nil {
			return nil, err
		}
		sf, err := p.skipTo(idx, tgt.onFalse)
		if err != nil {
			return nil, err
		}
		switch ins := p.insns[idx].(type) {
		case bpf.JumpIf:
			if st > 255 || sf > 255 {
				return nil, fmt.Errorf("%w: conditional jump of %d/%d", ErrProgramTooLarge, st, sf)
			}
			ins.SkipTrue = uint8(st)
			ins.SkipFalse = uint8(sf)
			p.insns[idx] = ins
		case bpf.Jump:
			ins.Skip = uint32(st)
			p.insns[idx] = ins
		}
	}
	return p.insns, nil
}

// Compile lowers the database into a classic BPF filter program for the
// given architecture. The program checks the audit arch word, dispatches on
// the syscall number and mirrors each entry's decision tree in conditional
// jumps; syscalls without an entry fall through to the default action.
func (db *DB) Compile(arch lowlevel.Arch) ([]bpf.Instruction, error) {
	if !arch.Supported() {
		return nil, fmt.Errorf("unsupported architecture %q", arch)
	}
	g := &codeGen{p: newProgram(), arch: arch}

	// Refuse syscalls made under a foreign architecture or ABI.
	g.p.emit(arch.LoadArch())
	g.p.emit(bpf.JumpIf{Cond: bpf.JumpEqual, Val: arch.AuditArch(), SkipTrue: 1})
	g.p.emit(bpf.RetConstant{Val: lowlevel.RetKillProcess})

	entries := 0
	for e := db.syscalls; e != nil; e = e.next {
		miss := "default"
		if e.next != nil {
			miss = fmt.Sprintf("sys_%d", e.next.nr)
		}
		g.p.label(fmt.Sprintf("sys_%d", e.nr))
		g.p.emit(arch.LoadNr())
		g.p.jumpIf(bpf.JumpNotEqual, uint32(e.nr), miss, "")
		if e.chain == nil {
			if !e.hasAction {
				return nil, fmt.Errorf("%w: syscall %d has neither chain nor action", ErrInternal, e.nr)
			}
			g.p.emit(e.action.compile())
		} else {
			g.level(e.chain, "default")
		}
		entries++
	}
	g.p.label("default")
	g.p.emit(db.defaultAction.compile())

	if g.err != nil {
		return nil, g.err
	}
	insns, err := g.p.resolve()
	if err != nil {
		return nil, err
	}
	logrus.Debugf("filterdb: compiled %d instructions for %d syscalls (%s)", len(insns), entries, arch)
	return insns, nil
}

// Assemble compiles the database and assembles the result into raw
// instructions ready for seccomp(2).
func (db *DB) Assemble(arch lowlevel.Arch) ([]bpf.RawInstruction, error) {
	insns, err := db.Compile(arch)
	if err != nil {
		return nil, err
	}
	return bpf.Assemble(insns)
}

type codeGen struct {
	p    *program
	arch lowlevel.Arch
	err  error
}

// level emits one level list. miss is the target when no alternative on the
// level, nor anything below one, decides the call.
func (g *codeGen) level(head *Node, miss string) {
	for n := head; n != nil; n = n.levelNext {
		onMiss := miss
		if n.levelNext != nil {
			onMiss = g.p.fresh("alt")
		}
		g.node(n, onMiss)
		if n.levelNext != nil {
			g.p.label(onMiss)
		}
	}
}

// node emits one comparison and the code for both of its outcomes.
func (g *codeGen) node(n *Node, miss string) {
	onTrue := g.p.fresh("t")
	onFalse := g.p.fresh("f")
	g.compare(n, onTrue, onFalse)
	g.p.label(onTrue)
	g.outcome(n.leaf() && n.actionOnTrue, n.action, n.nextTrue, miss)
	g.p.label(onFalse)
	g.outcome(n.leaf() && !n.actionOnTrue, n.action, n.nextFalse, miss)
}

func (g *codeGen) outcome(terminal bool, action Action, next *Node, miss string) {
	switch {
	case terminal:
		g.p.emit(action.compile())
	case next != nil:
		g.level(next, miss)
	default:
		g.p.jump(miss)
	}
}

// compare emits the comparison of one argument against the node's datum,
// branching to onTrue or onFalse. 64-bit architectures compare the high
// word first.
func (g *codeGen) compare(n *Node, onTrue, onFalse string) {
	lo := uint32(n.datum)
	hi := uint32(n.datum >> 32)
	wide := g.arch.Is64Bit()

	switch n.op {
	case CompareEqual:
		if wide {
			g.p.emit(g.arch.LoadArg(int(n.arg), true))
			g.p.jumpIf(bpf.JumpNotEqual, hi, onFalse, "")
		}
		g.p.emit(g.arch.LoadArg(int(n.arg), false))
		g.p.jumpIf(bpf.JumpEqual, lo, onTrue, onFalse)

	case CompareGreater, CompareGreaterEqual:
		cond := bpf.JumpGreaterThan
		if n.op == CompareGreaterEqual {
			cond = bpf.JumpGreaterOrEqual
		}
		if wide {
			g.p.emit(g.arch.LoadArg(int(n.arg), true))
			g.p.jumpIf(bpf.JumpGreaterThan, hi, onTrue, "")
			g.p.jumpIf(bpf.JumpNotEqual, hi, onFalse, "")
		}
		g.p.emit(g.arch.LoadArg(int(n.arg), false))
		g.p.jumpIf(cond, lo, onTrue, onFalse)

	case CompareMaskedEqual:
		if wide {
			g.p.emit(g.arch.LoadArg(int(n.arg), true))
			g.p.emit(bpf.ALUOpConstant{Op: bpf.ALUOpAnd, Val: hi})
			g.p.jumpIf(bpf.JumpNotEqual, hi, onFalse, "")
		}
		g.p.emit(g.arch.LoadArg(int(n.arg), false))
		g.p.emit(bpf.ALUOpConstant{Op: bpf.ALUOpAnd, Val: lo})
		g.p.jumpIf(bpf.JumpEqual, lo, onTrue, onFalse)

	default:
		if g.err == nil {
			g.err = fmt.Errorf("%w: non-canonical operator %s in stored tree", ErrInternal, n.op)
		}
	}
}
