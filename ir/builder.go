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

// Builder constructs instructions at a movable insertion point, in the
// IRBuilder style. When the insertion point is an instruction, new
// instructions are placed immediately before it; when it is a block, they are
// appended.
type Builder struct {
	fn     *Function
	block  *Block
	before Instruction
}

// NewBuilder returns a builder for f with no insertion point set.
func NewBuilder(f *Function) *Builder {
	return &Builder{fn: f}
}

// Func returns the function the builder emits into.
func (b *Builder) Func() *Function { return b.fn }

// SetInsertPoint places new instructions immediately before inst.
func (b *Builder) SetInsertPoint(inst Instruction) {
	b.block = inst.Parent()
	b.before = inst
}

// SetInsertPointAfter places new instructions immediately after inst.
// Subsequent creations keep their emission order.
func (b *Builder) SetInsertPointAfter(inst Instruction) {
	blk := inst.Parent()
	i := blk.indexOf(inst)
	if i+1 < len(blk.Instrs) {
		b.block = blk
		b.before = blk.Instrs[i+1]
		return
	}
	b.SetInsertPointAtEnd(blk)
}

// SetInsertPointAtEnd appends new instructions at the end of block.
func (b *Builder) SetInsertPointAtEnd(block *Block) {
	b.block = block
	b.before = nil
}

func (b *Builder) insert(inst Instruction) {
	if b.block == nil {
		panic("ir: builder has no insertion point")
	}
	if b.before != nil {
		b.block.insertBefore(inst, b.before)
		return
	}
	b.block.append(inst)
}

func (b *Builder) base(name string) instrBase {
	return instrBase{id: b.fn.mod.nextID(), name: name}
}

// CreateAlloca reserves storage for count elements of type t.
func (b *Builder) CreateAlloca(t Type, count Value, name string) *Alloca {
	inst := &Alloca{instrBase: b.base(name), Allocated: t, Count: count}
	b.insert(inst)
	return inst
}

// CreateLoad reads through addr.
func (b *Builder) CreateLoad(addr Value, name string) *Load {
	inst := &Load{instrBase: b.base(name), Addr: addr}
	b.insert(inst)
	return inst
}

// CreateStore writes val through addr.
func (b *Builder) CreateStore(val, addr Value) *Store {
	inst := &Store{instrBase: b.base(""), Val: val, Addr: addr}
	b.insert(inst)
	return inst
}

// CreateGEP computes an element address from base and an index chain.
func (b *Builder) CreateGEP(base Value, indices []Value, name string) *GEP {
	inst := &GEP{instrBase: b.base(name), Base: base, Indices: indices}
	b.insert(inst)
	return inst
}

// CreateBitCast reinterprets v as type to.
func (b *Builder) CreateBitCast(v Value, to Type, name string) *BitCast {
	inst := &BitCast{instrBase: b.base(name), From: v, To: to}
	b.insert(inst)
	return inst
}

// CreateIntToPtr converts integer v to pointer type to.
func (b *Builder) CreateIntToPtr(v Value, to *PointerType, name string) *IntToPtr {
	inst := &IntToPtr{instrBase: b.base(name), From: v, To: to}
	b.insert(inst)
	return inst
}

// CreateZExt zero-extends v to the wider integer type to.
func (b *Builder) CreateZExt(v Value, to *IntType, name string) *ZExt {
	inst := &ZExt{instrBase: b.base(name), From: v, To: to}
	b.insert(inst)
	return inst
}

// CreateBinOp emits an arithmetic instruction.
func (b *Builder) CreateBinOp(op BinOpKind, x, y Value, name string) *BinOp {
	inst := &BinOp{instrBase: b.base(name), Op: op, X: x, Y: y}
	b.insert(inst)
	return inst
}

// CreateAdd emits x + y.
func (b *Builder) CreateAdd(x, y Value, name string) *BinOp {
	return b.CreateBinOp(Add, x, y, name)
}

// CreateMul emits x * y.
func (b *Builder) CreateMul(x, y Value, name string) *BinOp {
	return b.CreateBinOp(Mul, x, y, name)
}

// CreateICmp emits a signed integer comparison.
func (b *Builder) CreateICmp(pred Predicate, x, y Value, name string) *ICmp {
	inst := &ICmp{instrBase: b.base(name), Pred: pred, X: x, Y: y}
	b.insert(inst)
	return inst
}

// CreatePhi emits an empty phi of type t; incoming slots are added with
// AddIncoming.
func (b *Builder) CreatePhi(t Type, name string) *Phi {
	inst := &Phi{instrBase: b.base(name), Typ: t}
	b.insert(inst)
	return inst
}

// AddIncoming appends an incoming slot to the phi.
func (p *Phi) AddIncoming(v Value, pred *Block) {
	p.Incomings = append(p.Incomings, Incoming{Val: v, Pred: pred})
}

// CreateCall invokes callee with args.
func (b *Builder) CreateCall(callee *Function, args []Value, name string) *Call {
	inst := &Call{instrBase: b.base(name), Callee: callee, Args: args}
	b.insert(inst)
	return inst
}

// CreateBr emits an unconditional branch to dest.
func (b *Builder) CreateBr(dest *Block) *Br {
	inst := &Br{instrBase: b.base(""), Then: dest}
	b.insert(inst)
	return inst
}

// CreateCondBr branches to then when cond is true, otherwise to els.
func (b *Builder) CreateCondBr(cond Value, then, els *Block) *Br {
	inst := &Br{instrBase: b.base(""), Cond: cond, Then: then, Else: els}
	b.insert(inst)
	return inst
}

// CreateRet returns v from the function; v may be nil for void.
func (b *Builder) CreateRet(v Value) *Ret {
	inst := &Ret{instrBase: b.base(""), Val: v}
	b.insert(inst)
	return inst
}

// CreateUnreachable marks the current point as unreachable.
func (b *Builder) CreateUnreachable() *Unreachable {
	inst := &Unreachable{instrBase: b.base("")}
	b.insert(inst)
	return inst
}
