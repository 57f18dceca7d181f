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

package boundscheck

import "github.com/secureir/boundscheck/ir"

// resolveShadow derives the shadow pair (offset, size) for v, emitting any
// shadow arithmetic immediately before at, and memoizes identified values
// into the function's ShadowState.
//
// The resolver follows the pointer-provenance grammar
//
//	Ptr = global | alloca | malloc | load | inttoptr | formal param | call |
//	      (getelementptr(Ptr) | bitcast(Ptr) | phi(Ptr)...(Ptr))*
//
// A failed resolution is recoverable: the caller skips the affected check.
func (in *Instrumenter) resolveShadow(fc *funcContext, at ir.Instruction, v ir.Value) (offset, size ir.Value, ok bool) {
	if offset, size, ok = fc.state.Pair(v); ok {
		return offset, size, true
	}
	if id := v.ID(); id != ir.NoID {
		// Already visited without producing a pair: either a def-use cycle
		// or a known-unresolvable value.
		if !fc.state.visited.Insert(int(id)) {
			return nil, nil, false
		}
	}

	switch v := v.(type) {
	// Recursive cases.
	case *ir.BitCast:
		offset, size, ok = in.resolveShadow(fc, v, v.From)
		if !ok {
			return nil, nil, false
		}
		fc.state.record(v, offset, size)
		if id := v.From.ID(); id != ir.NoID && fc.state.elemCounts[id] {
			fc.state.elemCounts[v.ID()] = true
		}
		return offset, size, true

	case *ir.GEP:
		return in.resolveGEP(fc, v)

	case *ir.Phi:
		return in.resolvePhi(fc, v)

	case *ir.Alloca:
		if sz, known := in.sizes.StaticSize(v); known {
			offset, size = i64Const(0), i64Const(int64(sz))
			fc.state.record(v, offset, size)
			return offset, size, true
		}
		// Dynamically sized stack allocation: the element-count operand is
		// the size, in elements rather than bytes; the first indexing step
		// rescales it.
		fc.b.SetInsertPoint(v)
		offset, size = i64Const(0), in.ensureI64(fc.b, v.Count)
		fc.state.record(v, offset, size)
		fc.state.elemCounts[v.ID()] = true
		return offset, size, true

	case *ir.Load:
		if ir.IsPointer(v.Type()) {
			if sz, known := in.sizes.StaticSize(v); known {
				offset, size = i64Const(0), i64Const(int64(sz))
				fc.state.record(v, offset, size)
				return offset, size, true
			}
		}
		offset, size, ok = in.resolveShadow(fc, v, v.Addr)
		if !ok {
			return nil, nil, false
		}
		fc.state.record(v, offset, size)
		return offset, size, true

	case *ir.BinOp:
		return in.resolveBinOp(fc, at, v)

	// Base cases.
	case *ir.IntConst:
		// An integer literal used as a pointer-like operand: its own value
		// is the best size bound available.
		return i64Const(0), i64Const(v.V), true

	case *ir.Global:
		if v.Init != nil {
			// A constant initializer yields the size directly.
			offset, size = i64Const(0), i64Const(v.Init.V)
		} else if sz, known := in.sizes.StaticSize(v); known {
			offset, size = i64Const(0), i64Const(int64(sz))
		} else {
			in.logger.Printf("unable to size global %s", v.Ident())
			return nil, nil, false
		}
		fc.state.record(v, offset, size)
		return offset, size, true

	case *ir.IntToPtr:
		// Conservative full-width assumption for raw addresses.
		offset, size = i64Const(0), i64Const(ir.PointerBytes)
		fc.state.record(v, offset, size)
		return offset, size, true

	case *ir.Call:
		return in.resolveCall(fc, v)

	case *ir.Param:
		if in.inlineAll || in.abi == nil {
			return nil, nil, false
		}
		offset, size, ok = in.abi.FindShadowArg(fc.fn, v)
		if !ok {
			return nil, nil, false
		}
		fc.state.record(v, offset, size)
		return offset, size, true
	}

	in.logger.Printf("unable to instrument %s in @%s", v.Ident(), fc.fn.Name)
	return nil, nil, false
}

// resolveGEP adds the accumulated indexing byte offset to the base pointer's
// offset. The size is inherited from the base, rescaled from elements to
// bytes when the base's size was recorded as an element count.
func (in *Instrumenter) resolveGEP(fc *funcContext, gep *ir.GEP) (ir.Value, ir.Value, bool) {
	baseOff, baseSize, ok := in.resolveShadow(fc, gep, gep.Base)
	if !ok {
		in.logger.Printf("cannot determine base offset for %s in @%s", gep.Base.Ident(), fc.fn.Name)
		return nil, nil, false
	}

	fc.b.SetInsertPoint(gep)
	offset := in.gepByteOffset(fc, gep, baseOff)

	size := baseSize
	if id := gep.Base.ID(); id != ir.NoID && fc.state.elemCounts[id] {
		elem := gep.Base.Type().(*ir.PointerType).Elem
		fc.b.SetInsertPoint(gep)
		size = in.createMul(fc.b, baseSize, i64Const(int64(in.layout.StorageSize(elem))), "boc.size.bytes")
	}

	fc.state.record(gep, offset, size)
	return offset, size, true
}

// gepByteOffset accumulates the byte offset of a getelementptr index chain
// on top of the base pointer's resolved offset. All arithmetic is performed
// in 64 bits; narrower indices are zero-extended. A struct field selected by
// a non-constant index is a contract violation in the input IR.
func (in *Instrumenter) gepByteOffset(fc *funcContext, gep *ir.GEP, baseOff ir.Value) ir.Value {
	acc := baseOff
	cur := gep.Base.Type().(*ir.PointerType).Elem
	for i, idx := range gep.Indices {
		if i == 0 {
			// The first index steps over whole pointees.
			step := in.createMul(fc.b, idx, i64Const(int64(in.layout.StorageSize(cur))), "boc.step")
			acc = in.createAdd(fc.b, acc, step, "boc.off")
			continue
		}
		switch t := cur.(type) {
		case *ir.StructType:
			ci, isConst := idx.(*ir.IntConst)
			if !isConst {
				contractViolation(fc.fn, gep, "struct field selected by non-constant index %s", idx.Ident())
			}
			acc = in.createAdd(fc.b, acc, i64Const(int64(in.layout.FieldOffset(t, int(ci.V)))), "boc.off")
			cur = t.Fields[ci.V]
		case *ir.ArrayType:
			step := in.createMul(fc.b, idx, i64Const(int64(in.layout.StorageSize(t.Elem))), "boc.step")
			acc = in.createAdd(fc.b, acc, step, "boc.off")
			cur = t.Elem
		default:
			contractViolation(fc.fn, gep, "indexing into non-aggregate type %s", cur)
		}
	}
	return acc
}

// resolvePhi synthesizes one shadow phi for offsets and one for sizes,
// mirroring the original join's predecessor structure. Both are memoized
// before recursing into the incoming values, which breaks def-use cycles
// through loops: a recursive resolution of the same phi sees the memoized
// shadow pair. Incoming slots start as undef placeholders; slots whose value
// resolves are back-patched immediately, the rest become pending obligations
// fulfilled when (and if) the blocked value later resolves.
func (in *Instrumenter) resolvePhi(fc *funcContext, phi *ir.Phi) (ir.Value, ir.Value, bool) {
	fc.b.SetInsertPoint(phi)
	offPhi := fc.b.CreatePhi(ir.I64, phi.Name()+".shadow.off")
	sizePhi := fc.b.CreatePhi(ir.I64, phi.Name()+".shadow.size")
	for _, inc := range phi.Incomings {
		offPhi.AddIncoming(&ir.Undef{Typ: ir.I64}, inc.Pred)
		sizePhi.AddIncoming(&ir.Undef{Typ: ir.I64}, inc.Pred)
	}
	fc.state.record(phi, offPhi, sizePhi)

	for i, inc := range phi.Incomings {
		// Shadow arithmetic for the incoming value is emitted in the
		// predecessor so it dominates the join.
		at := inc.Pred.Terminator()
		off, size, ok := in.resolveShadow(fc, at, inc.Val)
		if !ok {
			fc.state.block(inc.Val, phiSlot{off: offPhi, size: sizePhi, index: i})
			continue
		}
		offPhi.SetIncoming(i, off)
		sizePhi.SetIncoming(i, size)
	}
	return offPhi, sizePhi, true
}

// resolveBinOp handles pointer-like integer arithmetic. When both operands
// have known constant sizes, addition and subtraction both combine to the
// sum of the operand sizes with offset zero. This is a deliberately
// conservative approximation inherited from the original analysis; it may
// over- or under-estimate the true bound.
func (in *Instrumenter) resolveBinOp(fc *funcContext, at ir.Instruction, bin *ir.BinOp) (ir.Value, ir.Value, bool) {
	_, xSize, xOK := in.resolveShadow(fc, at, bin.X)
	_, ySize, yOK := in.resolveShadow(fc, at, bin.Y)
	if !xOK || !yOK {
		return nil, nil, false
	}
	xc, xConst := xSize.(*ir.IntConst)
	yc, yConst := ySize.(*ir.IntConst)
	if !xConst || !yConst {
		return nil, nil, false
	}
	if bin.Op != ir.Add && bin.Op != ir.Sub {
		return nil, nil, false
	}
	offset, size := i64Const(0), i64Const(xc.V+yc.V)
	fc.state.record(bin, offset, size)
	return offset, size, true
}

// resolveCall handles heap-allocation calls and, in interprocedural mode,
// results of shadowable callees via the shadow bridge.
func (in *Instrumenter) resolveCall(fc *funcContext, call *ir.Call) (ir.Value, ir.Value, bool) {
	if in.isAllocFn(call.Callee.Name) {
		if len(call.Args) < 1 || !ir.IsInteger(call.Args[0].Type()) {
			contractViolation(fc.fn, call, "allocation call without an integer size argument")
		}
		fc.b.SetInsertPoint(call)
		offset := ir.Value(i64Const(0))
		size := in.ensureI64(fc.b, call.Args[0])
		fc.state.record(call, offset, size)
		return offset, size, true
	}
	if in.inlineAll || in.abi == nil || !in.abi.IsShadowable(call.Callee) {
		in.logger.Printf("unable to instrument call result %s in @%s", call.Ident(), fc.fn.Name)
		return nil, nil, false
	}
	return in.resolveCallResult(fc, call)
}

// Shadow arithmetic helpers. All shadow values are i64; narrower operands
// are zero-extended and constant operands are folded so statically known
// pairs stay constants.

func i64Const(v int64) *ir.IntConst { return ir.ConstInt(ir.I64, v) }

func (in *Instrumenter) ensureI64(b *ir.Builder, v ir.Value) ir.Value {
	if c, ok := v.(*ir.IntConst); ok {
		return i64Const(c.V)
	}
	if it, ok := v.Type().(*ir.IntType); ok && it.Bits == 64 {
		return v
	}
	return b.CreateZExt(v, ir.I64, "")
}

func (in *Instrumenter) createAdd(b *ir.Builder, x, y ir.Value, name string) ir.Value {
	xc, xConst := x.(*ir.IntConst)
	yc, yConst := y.(*ir.IntConst)
	if xConst && yConst {
		return i64Const(xc.V + yc.V)
	}
	if xConst && xc.V == 0 {
		return in.ensureI64(b, y)
	}
	if yConst && yc.V == 0 {
		return in.ensureI64(b, x)
	}
	return b.CreateAdd(in.ensureI64(b, x), in.ensureI64(b, y), name)
}

func (in *Instrumenter) createMul(b *ir.Builder, x, y ir.Value, name string) ir.Value {
	xc, xConst := x.(*ir.IntConst)
	yc, yConst := y.(*ir.IntConst)
	if xConst && yConst {
		return i64Const(xc.V * yc.V)
	}
	if xConst && xc.V == 1 {
		return in.ensureI64(b, y)
	}
	if yConst && yc.V == 1 {
		return in.ensureI64(b, x)
	}
	return b.CreateMul(in.ensureI64(b, x), in.ensureI64(b, y), name)
}
