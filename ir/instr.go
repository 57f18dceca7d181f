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

package ir

import "fmt"

// Instruction is implemented by every instruction in a basic block.
type Instruction interface {
	Parent() *Block
	setParent(*Block)
	// Operands returns the instruction's value operands in order.
	Operands() []Value
	String() string
}

// Terminator is implemented by instructions that end a basic block.
type Terminator interface {
	Instruction
	Succs() []*Block
}

type instrBase struct {
	id    ValueID
	name  string
	block *Block
}

func (i *instrBase) Parent() *Block      { return i.block }
func (i *instrBase) setParent(b *Block)  { i.block = b }
func (i *instrBase) ID() ValueID         { return i.id }
func (i *instrBase) Name() string        { return i.name }

func (i *instrBase) Ident() string {
	if i.name != "" {
		return "%" + i.name
	}
	return fmt.Sprintf("%%t%d", i.id)
}

// Alloca reserves stack storage for Allocated, scaled by Count elements.
type Alloca struct {
	instrBase
	Allocated Type
	Count     Value
}

func (i *Alloca) Type() Type        { return PointerTo(i.Allocated) }
func (i *Alloca) Operands() []Value { return []Value{i.Count} }

// IsStatic reports whether the allocation size is a compile-time constant.
func (i *Alloca) IsStatic() bool {
	_, ok := i.Count.(*IntConst)
	return ok
}

func (i *Alloca) String() string {
	return fmt.Sprintf("%s = alloca %s, %s %s", i.Ident(), i.Allocated, i.Count.Type(), i.Count.Ident())
}

// Load reads the value stored at Addr.
type Load struct {
	instrBase
	Addr Value
}

func (i *Load) Type() Type {
	return i.Addr.Type().(*PointerType).Elem
}

func (i *Load) Operands() []Value { return []Value{i.Addr} }

func (i *Load) String() string {
	return fmt.Sprintf("%s = load %s, %s %s", i.Ident(), i.Type(), i.Addr.Type(), i.Addr.Ident())
}

// Store writes Val to Addr. It produces no value.
type Store struct {
	instrBase
	Val  Value
	Addr Value
}

func (i *Store) Operands() []Value { return []Value{i.Val, i.Addr} }

func (i *Store) String() string {
	return fmt.Sprintf("store %s %s, %s %s", i.Val.Type(), i.Val.Ident(), i.Addr.Type(), i.Addr.Ident())
}

// GEP computes an address from Base plus a chain of indices, in the LLVM
// getelementptr style: the first index steps over the pointee type, later
// indices select struct fields or array elements.
type GEP struct {
	instrBase
	Base    Value
	Indices []Value
}

// ResultType walks the indexed type chain to determine the pointee of the
// resulting address.
func (i *GEP) ResultType() Type {
	cur := i.Base.Type().(*PointerType).Elem
	for _, idx := range i.Indices[1:] {
		switch t := cur.(type) {
		case *StructType:
			ci := idx.(*IntConst)
			cur = t.Fields[ci.V]
		case *ArrayType:
			cur = t.Elem
		default:
			panic(fmt.Sprintf("ir: gep into non-aggregate type %s", cur))
		}
	}
	return cur
}

func (i *GEP) Type() Type        { return PointerTo(i.ResultType()) }
func (i *GEP) Operands() []Value { return append([]Value{i.Base}, i.Indices...) }

func (i *GEP) String() string {
	s := fmt.Sprintf("%s = getelementptr %s, %s %s",
		i.Ident(), i.Base.Type().(*PointerType).Elem, i.Base.Type(), i.Base.Ident())
	for _, idx := range i.Indices {
		s += fmt.Sprintf(", %s %s", idx.Type(), idx.Ident())
	}
	return s
}

// BitCast reinterprets From as type To without changing the address.
type BitCast struct {
	instrBase
	From Value
	To   Type
}

func (i *BitCast) Type() Type        { return i.To }
func (i *BitCast) Operands() []Value { return []Value{i.From} }

func (i *BitCast) String() string {
	return fmt.Sprintf("%s = bitcast %s %s to %s", i.Ident(), i.From.Type(), i.From.Ident(), i.To)
}

// IntToPtr converts an integer to a pointer.
type IntToPtr struct {
	instrBase
	From Value
	To   *PointerType
}

func (i *IntToPtr) Type() Type        { return i.To }
func (i *IntToPtr) Operands() []Value { return []Value{i.From} }

func (i *IntToPtr) String() string {
	return fmt.Sprintf("%s = inttoptr %s %s to %s", i.Ident(), i.From.Type(), i.From.Ident(), i.To)
}

// ZExt zero-extends an integer to a wider type.
type ZExt struct {
	instrBase
	From Value
	To   *IntType
}

func (i *ZExt) Type() Type        { return i.To }
func (i *ZExt) Operands() []Value { return []Value{i.From} }

func (i *ZExt) String() string {
	return fmt.Sprintf("%s = zext %s %s to %s", i.Ident(), i.From.Type(), i.From.Ident(), i.To)
}

// BinOpKind enumerates integer binary operators.
type BinOpKind int

const (
	Add BinOpKind = iota
	Sub
	Mul
)

func (k BinOpKind) String() string {
	switch k {
	case Add:
		return "add"
	case Sub:
		return "sub"
	case Mul:
		return "mul"
	}
	return "?"
}

// BinOp is an integer arithmetic instruction.
type BinOp struct {
	instrBase
	Op BinOpKind
	X  Value
	Y  Value
}

func (i *BinOp) Type() Type        { return i.X.Type() }
func (i *BinOp) Operands() []Value { return []Value{i.X, i.Y} }

func (i *BinOp) String() string {
	return fmt.Sprintf("%s = %s %s %s, %s", i.Ident(), i.Op, i.X.Type(), i.X.Ident(), i.Y.Ident())
}

// Predicate enumerates integer comparison predicates (signed).
type Predicate int

const (
	EQ Predicate = iota
	NE
	SLT
	SLE
	SGT
	SGE
)

func (p Predicate) String() string {
	switch p {
	case EQ:
		return "eq"
	case NE:
		return "ne"
	case SLT:
		return "slt"
	case SLE:
		return "sle"
	case SGT:
		return "sgt"
	case SGE:
		return "sge"
	}
	return "?"
}

// ICmp compares two integers and produces an i1.
type ICmp struct {
	instrBase
	Pred Predicate
	X    Value
	Y    Value
}

func (i *ICmp) Type() Type        { return I1 }
func (i *ICmp) Operands() []Value { return []Value{i.X, i.Y} }

func (i *ICmp) String() string {
	return fmt.Sprintf("%s = icmp %s %s %s, %s", i.Ident(), i.Pred, i.X.Type(), i.X.Ident(), i.Y.Ident())
}

// Incoming is one (value, predecessor) slot of a phi.
type Incoming struct {
	Val  Value
	Pred *Block
}

// Phi merges values at a control-flow join, one incoming slot per
// predecessor.
type Phi struct {
	instrBase
	Typ       Type
	Incomings []Incoming
}

func (i *Phi) Type() Type { return i.Typ }

func (i *Phi) Operands() []Value {
	ops := make([]Value, len(i.Incomings))
	for n, inc := range i.Incomings {
		ops[n] = inc.Val
	}
	return ops
}

// SetIncoming back-patches the value of incoming slot n.
func (i *Phi) SetIncoming(n int, v Value) {
	i.Incomings[n].Val = v
}

func (i *Phi) String() string {
	s := fmt.Sprintf("%s = phi %s ", i.Ident(), i.Typ)
	for n, inc := range i.Incomings {
		if n > 0 {
			s += ", "
		}
		s += fmt.Sprintf("[%s, %%%s]", inc.Val.Ident(), inc.Pred.Name)
	}
	return s
}

// Call invokes Callee with Args. For a void callee the call produces no
// usable value.
type Call struct {
	instrBase
	Callee *Function
	Args   []Value
}

func (i *Call) Type() Type        { return i.Callee.Sig.Ret }
func (i *Call) Operands() []Value { return i.Args }

// SetArg overwrites actual argument n, used to fill shadow slots at call
// sites.
func (i *Call) SetArg(n int, v Value) {
	i.Args[n] = v
}

func (i *Call) String() string {
	s := ""
	if !isVoid(i.Callee.Sig.Ret) {
		s = i.Ident() + " = "
	}
	s += fmt.Sprintf("call %s @%s(", i.Callee.Sig.Ret, i.Callee.Name)
	for n, a := range i.Args {
		if n > 0 {
			s += ", "
		}
		s += fmt.Sprintf("%s %s", a.Type(), a.Ident())
	}
	return s + ")"
}

// Br is a conditional or unconditional branch. Cond is nil for an
// unconditional branch.
type Br struct {
	instrBase
	Cond Value
	Then *Block
	Else *Block
}

func (i *Br) Operands() []Value {
	if i.Cond == nil {
		return nil
	}
	return []Value{i.Cond}
}

func (i *Br) Succs() []*Block {
	if i.Cond == nil {
		return []*Block{i.Then}
	}
	return []*Block{i.Then, i.Else}
}

func (i *Br) String() string {
	if i.Cond == nil {
		return fmt.Sprintf("br label %%%s", i.Then.Name)
	}
	return fmt.Sprintf("br i1 %s, label %%%s, label %%%s", i.Cond.Ident(), i.Then.Name, i.Else.Name)
}

// Ret returns from the function. Val is nil for void returns.
type Ret struct {
	instrBase
	Val Value
}

func (i *Ret) Operands() []Value {
	if i.Val == nil {
		return nil
	}
	return []Value{i.Val}
}

func (i *Ret) Succs() []*Block { return nil }

func (i *Ret) String() string {
	if i.Val == nil {
		return "ret void"
	}
	return fmt.Sprintf("ret %s %s", i.Val.Type(), i.Val.Ident())
}

// Unreachable marks a point control flow can never pass.
type Unreachable struct {
	instrBase
}

func (i *Unreachable) Operands() []Value { return nil }
func (i *Unreachable) Succs() []*Block   { return nil }
func (i *Unreachable) String() string    { return "unreachable" }

func isVoid(t Type) bool {
	_, ok := t.(VoidType)
	return ok
}
