// (c) Copyright boundscheck's authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package interp is a concrete evaluator for the ir package with a byte-level
// memory model. It exists so tests can run instrumented functions and observe
// whether an inserted guard traps. It is an interpreter for straight-line
// verification runs, not a performant VM.
package interp

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/secureir/boundscheck/ir"
)

// Options configure how calls to external declarations are handled.
type Options struct {
	// ErrorFn is the name of the non-returning error signal; calling it
	// makes the run end with Trapped set.
	ErrorFn string
	// MarkerFn is the name of the instrumentation marker signal; calls to it
	// are no-ops.
	MarkerFn string
	// AllocFns are heap-allocation functions taking one integer byte count
	// and returning a fresh pointer.
	AllocFns []string
	// MaxSteps bounds the number of executed instructions. Zero means the
	// default of one million.
	MaxSteps int
}

// Result is the outcome of executing a function.
type Result struct {
	// Ret is the returned value's bit pattern; zero for void.
	Ret uint64
	// Trapped reports that the error signal was reached.
	Trapped bool
}

// Machine executes functions of one module against a shared memory arena.
type Machine struct {
	mod     *ir.Module
	opts    Options
	mem     []byte
	brk     uint64
	globals map[*ir.Global]uint64
	steps   int
}

// NewMachine prepares an execution arena for m and allocates its globals.
func NewMachine(m *ir.Module, opts Options) *Machine {
	if opts.MaxSteps == 0 {
		opts.MaxSteps = 1_000_000
	}
	mach := &Machine{
		mod:     m,
		opts:    opts,
		mem:     make([]byte, 1<<20),
		brk:     16, // address 0 stays unmapped so null pointers stay distinct
		globals: make(map[*ir.Global]uint64),
	}
	for _, g := range m.Globals {
		addr := mach.allocate(ir.StoreSize(g.Elem))
		mach.globals[g] = addr
		if g.Init != nil {
			mach.write(addr, ir.StoreSize(g.Elem), uint64(g.Init.V))
		}
	}
	return mach
}

// GlobalAddr returns the arena address of g.
func (m *Machine) GlobalAddr(g *ir.Global) uint64 { return m.globals[g] }

// Run executes the named function with the given argument bit patterns.
func (m *Machine) Run(name string, args ...uint64) (Result, error) {
	fn := m.mod.Func(name)
	if fn == nil || fn.IsDeclaration() {
		return Result{}, fmt.Errorf("interp: no defined function %q", name)
	}
	return m.call(fn, args)
}

type trapSignal struct{}

func (m *Machine) call(fn *ir.Function, args []uint64) (res Result, err error) {
	if len(args) < len(fn.Params) {
		// Shadow formals appended by the ABI rewrite default to zero when
		// the caller does not supply them.
		padded := make([]uint64, len(fn.Params))
		copy(padded, args)
		args = padded
	}
	frame := make(map[ir.Value]uint64, 32)
	for i, p := range fn.Params {
		frame[p] = args[i]
	}

	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(trapSignal); ok {
				res = Result{Trapped: true}
				err = nil
				return
			}
			panic(r)
		}
	}()

	block := fn.Entry()
	var prev *ir.Block
	for {
		next, ret, done, err := m.runBlock(fn, block, prev, frame)
		if err != nil {
			return Result{}, err
		}
		if done {
			return Result{Ret: ret}, nil
		}
		prev, block = block, next
	}
}

func (m *Machine) runBlock(fn *ir.Function, b, prev *ir.Block, frame map[ir.Value]uint64) (next *ir.Block, ret uint64, done bool, err error) {
	// Phis read their incoming values simultaneously on block entry.
	var phiVals []uint64
	var phis []*ir.Phi
	for _, inst := range b.Instrs {
		phi, ok := inst.(*ir.Phi)
		if !ok {
			break
		}
		slot := -1
		for i, inc := range phi.Incomings {
			if inc.Pred == prev {
				slot = i
				break
			}
		}
		if slot < 0 {
			return nil, 0, false, fmt.Errorf("interp: phi %s in @%s has no matching incoming edge", phi.Ident(), fn.Name)
		}
		phis = append(phis, phi)
		phiVals = append(phiVals, m.eval(phi.Incomings[slot].Val, frame))
	}
	for i, phi := range phis {
		frame[phi] = phiVals[i]
	}

	for _, inst := range b.Instrs[len(phis):] {
		m.steps++
		if m.steps > m.opts.MaxSteps {
			return nil, 0, false, fmt.Errorf("interp: step limit exceeded in @%s", fn.Name)
		}
		switch inst := inst.(type) {
		case *ir.Alloca:
			count := m.eval(inst.Count, frame)
			frame[inst] = m.allocate(ir.StoreSize(inst.Allocated) * count)
		case *ir.Load:
			addr := m.eval(inst.Addr, frame)
			frame[inst] = m.read(addr, ir.StoreSize(inst.Type()))
		case *ir.Store:
			addr := m.eval(inst.Addr, frame)
			m.write(addr, ir.StoreSize(inst.Val.Type()), m.eval(inst.Val, frame))
		case *ir.GEP:
			frame[inst] = m.evalGEP(inst, frame)
		case *ir.BitCast:
			frame[inst] = m.eval(inst.From, frame)
		case *ir.IntToPtr:
			frame[inst] = m.eval(inst.From, frame)
		case *ir.ZExt:
			frame[inst] = m.eval(inst.From, frame)
		case *ir.BinOp:
			x, y := m.eval(inst.X, frame), m.eval(inst.Y, frame)
			var v uint64
			switch inst.Op {
			case ir.Add:
				v = x + y
			case ir.Sub:
				v = x - y
			case ir.Mul:
				v = x * y
			}
			frame[inst] = truncate(v, inst.Type())
		case *ir.ICmp:
			x := signed(m.eval(inst.X, frame), inst.X.Type())
			y := signed(m.eval(inst.Y, frame), inst.Y.Type())
			var v bool
			switch inst.Pred {
			case ir.EQ:
				v = x == y
			case ir.NE:
				v = x != y
			case ir.SLT:
				v = x < y
			case ir.SLE:
				v = x <= y
			case ir.SGT:
				v = x > y
			case ir.SGE:
				v = x >= y
			}
			if v {
				frame[inst] = 1
			} else {
				frame[inst] = 0
			}
		case *ir.Call:
			v, err := m.evalCall(inst, frame)
			if err != nil {
				return nil, 0, false, err
			}
			frame[inst] = v
		case *ir.Br:
			if inst.Cond == nil || m.eval(inst.Cond, frame) != 0 {
				return inst.Then, 0, false, nil
			}
			return inst.Else, 0, false, nil
		case *ir.Ret:
			if inst.Val != nil {
				return nil, m.eval(inst.Val, frame), true, nil
			}
			return nil, 0, true, nil
		case *ir.Unreachable:
			return nil, 0, false, fmt.Errorf("interp: reached unreachable in @%s", fn.Name)
		default:
			return nil, 0, false, fmt.Errorf("interp: cannot execute %T", inst)
		}
	}
	return nil, 0, false, fmt.Errorf("interp: block %%%s in @%s has no terminator", b.Name, fn.Name)
}

func (m *Machine) evalCall(call *ir.Call, frame map[ir.Value]uint64) (uint64, error) {
	callee := call.Callee
	switch {
	case callee.Name == m.opts.ErrorFn:
		panic(trapSignal{})
	case callee.Name == m.opts.MarkerFn:
		return 0, nil
	case m.isAllocFn(callee.Name):
		if len(call.Args) < 1 {
			return 0, fmt.Errorf("interp: allocation call @%s without size argument", callee.Name)
		}
		return m.allocate(m.eval(call.Args[0], frame)), nil
	case callee.IsDeclaration():
		return 0, fmt.Errorf("interp: call to external @%s", callee.Name)
	default:
		args := make([]uint64, len(call.Args))
		for i, a := range call.Args {
			args[i] = m.eval(a, frame)
		}
		res, err := m.call(callee, args)
		if err != nil {
			return 0, err
		}
		if res.Trapped {
			panic(trapSignal{})
		}
		return res.Ret, nil
	}
}

func (m *Machine) evalGEP(gep *ir.GEP, frame map[ir.Value]uint64) uint64 {
	addr := m.eval(gep.Base, frame)
	cur := gep.Base.Type().(*ir.PointerType).Elem
	for i, idx := range gep.Indices {
		n := m.eval(idx, frame)
		if i == 0 {
			addr += n * ir.StoreSize(cur)
			continue
		}
		switch t := cur.(type) {
		case *ir.StructType:
			addr += ir.FieldOffset(t, int(n))
			cur = t.Fields[n]
		case *ir.ArrayType:
			addr += n * ir.StoreSize(t.Elem)
			cur = t.Elem
		default:
			panic(fmt.Sprintf("interp: gep into non-aggregate %s", cur))
		}
	}
	return addr
}

func (m *Machine) isAllocFn(name string) bool {
	for _, fn := range m.opts.AllocFns {
		if fn == name {
			return true
		}
	}
	return false
}

func (m *Machine) eval(v ir.Value, frame map[ir.Value]uint64) uint64 {
	switch v := v.(type) {
	case *ir.IntConst:
		return truncate(uint64(v.V), v.Typ)
	case *ir.Null:
		return 0
	case *ir.Undef:
		return 0
	case *ir.Global:
		return m.globals[v]
	default:
		val, ok := frame[v]
		if !ok {
			panic(fmt.Sprintf("interp: use of unevaluated value %s", v.Ident()))
		}
		return val
	}
}

func (m *Machine) allocate(size uint64) uint64 {
	const align = 16
	addr := m.brk
	m.brk += size
	m.brk += align - m.brk%align
	if m.brk > uint64(len(m.mem)) {
		panic("interp: arena exhausted")
	}
	return addr
}

func (m *Machine) read(addr, size uint64) uint64 {
	var buf [8]byte
	copy(buf[:size], m.mem[addr:addr+size])
	return binary.LittleEndian.Uint64(buf[:])
}

func (m *Machine) write(addr, size, v uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	copy(m.mem[addr:addr+size], buf[:size])
}

func truncate(v uint64, t ir.Type) uint64 {
	it, ok := t.(*ir.IntType)
	if !ok || it.Bits >= 64 {
		return v
	}
	return v & (1<<uint(it.Bits) - 1)
}

func signed(v uint64, t ir.Type) int64 {
	it, ok := t.(*ir.IntType)
	if !ok || it.Bits >= 64 {
		return int64(v)
	}
	shift := uint(64 - it.Bits)
	return int64(v<<shift) >> shift
}

// Dump renders the first n bytes of the arena, for debugging tests.
func (m *Machine) Dump(n int) string {
	var sb strings.Builder
	for i := 0; i < n; i += 16 {
		fmt.Fprintf(&sb, "%04x: % x\n", i, m.mem[i:i+16])
	}
	return sb.String()
}
