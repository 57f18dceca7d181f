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

// ShadowABI is the interprocedural ABI provider: it decides which functions
// carry extra shadow parameters and exposes the mapping from pointer formals
// and return values to their shadow offset/size slots.
type ShadowABI interface {
	// IsShadowable reports whether fn carries shadow parameters.
	IsShadowable(fn *ir.Function) bool
	// ShadowableArgCount returns the number of original (pre-rewrite)
	// formal parameters of a shadowable function.
	ShadowableArgCount(fn *ir.Function) int
	// FindShadowArg maps a pointer formal parameter of fn to its two shadow
	// formals.
	FindShadowArg(fn *ir.Function, v ir.Value) (offset, size ir.Value, ok bool)
	// ShadowArgSlot returns the call-site argument index of the first
	// shadow slot for original parameter index, or -1 when the parameter
	// has no shadow.
	ShadowArgSlot(fn *ir.Function, index int) int
	// InstallShadowReturn writes offset and size into fn's by-reference
	// shadow return slots, emitting the stores immediately before at.
	InstallShadowReturn(fn *ir.Function, offset, size ir.Value, at ir.Instruction) bool
}

// IsShadowableType reports whether values of type t are dereferenceable and
// therefore tracked across call boundaries.
func IsShadowableType(t ir.Type) bool { return ir.IsPointer(t) }

type shadowMeta struct {
	origParams int
	// argSlots maps an original parameter index to the parameter index of
	// its shadow offset formal; the size formal follows it.
	argSlots map[int]int
	// retOffSlot is the parameter index of the i64* return offset slot, or
	// -1 when the function does not return a pointer.
	retOffSlot int
}

// ParamABI is the default ShadowABI provider. Build rewrites every eligible
// defined function to append, per dereferenceable formal, two i64 shadow
// formals, and, for pointer-returning functions, two i64* by-reference return
// slots; every call site gains matching trailing actual arguments. The
// rewrite is purely structural: the appended actuals start out undefined and
// the instrumentation pass back-fills them during argument relay.
type ParamABI struct {
	meta map[*ir.Function]*shadowMeta
}

// NewParamABI rewrites m and returns the provider describing the rewrite.
func NewParamABI(m *ir.Module) *ParamABI {
	abi := &ParamABI{meta: make(map[*ir.Function]*shadowMeta)}
	abi.build(m)
	return abi
}

func (abi *ParamABI) build(m *ir.Module) {
	// Pass 1: extend shadowable signatures.
	for _, fn := range m.Funcs {
		if fn.IsDeclaration() {
			continue
		}
		shadowable := IsShadowableType(fn.Sig.Ret)
		for _, p := range fn.Params {
			if IsShadowableType(p.Typ) {
				shadowable = true
			}
		}
		if !shadowable {
			continue
		}
		meta := &shadowMeta{
			origParams: len(fn.Params),
			argSlots:   make(map[int]int),
			retOffSlot: -1,
		}
		for i := 0; i < meta.origParams; i++ {
			p := fn.Params[i]
			if !IsShadowableType(p.Typ) {
				continue
			}
			meta.argSlots[i] = len(fn.Params)
			fn.AddParam(p.Name()+".shadow.off", ir.I64)
			fn.AddParam(p.Name()+".shadow.size", ir.I64)
		}
		if IsShadowableType(fn.Sig.Ret) {
			meta.retOffSlot = len(fn.Params)
			fn.AddParam("ret.shadow.off", ir.PointerTo(ir.I64))
			fn.AddParam("ret.shadow.size", ir.PointerTo(ir.I64))
		}
		abi.meta[fn] = meta
	}

	// Pass 2: extend call sites of shadowable callees. The added actuals
	// pre-declare the shadow slots so that instrumentation of callers and
	// callees does not depend on processing order.
	for _, fn := range m.Funcs {
		if fn.IsDeclaration() {
			continue
		}
		var calls []*ir.Call
		fn.Instructions(func(inst ir.Instruction) {
			if call, ok := inst.(*ir.Call); ok {
				if _, shadowed := abi.meta[call.Callee]; shadowed {
					calls = append(calls, call)
				}
			}
		})
		if len(calls) == 0 {
			continue
		}
		b := ir.NewBuilder(fn)
		for _, call := range calls {
			meta := abi.meta[call.Callee]
			for i := 0; i < meta.origParams; i++ {
				if _, ok := meta.argSlots[i]; ok {
					call.Args = append(call.Args,
						&ir.Undef{Typ: ir.I64}, &ir.Undef{Typ: ir.I64})
				}
			}
			if meta.retOffSlot >= 0 {
				// Caller-allocated storage for the outgoing pair.
				entry := fn.Entry()
				if first := entry.FirstNonPhi(); first != nil {
					b.SetInsertPoint(first)
				} else {
					b.SetInsertPointAtEnd(entry)
				}
				one := ir.ConstInt(ir.I64, 1)
				offSlot := b.CreateAlloca(ir.I64, one, call.Callee.Name+".ret.off")
				sizeSlot := b.CreateAlloca(ir.I64, one, call.Callee.Name+".ret.size")
				call.Args = append(call.Args, offSlot, sizeSlot)
			}
		}
	}
}

// IsShadowable implements ShadowABI.
func (abi *ParamABI) IsShadowable(fn *ir.Function) bool {
	_, ok := abi.meta[fn]
	return ok
}

// ShadowableArgCount implements ShadowABI.
func (abi *ParamABI) ShadowableArgCount(fn *ir.Function) int {
	meta, ok := abi.meta[fn]
	if !ok {
		return 0
	}
	return meta.origParams
}

// FindShadowArg implements ShadowABI.
func (abi *ParamABI) FindShadowArg(fn *ir.Function, v ir.Value) (ir.Value, ir.Value, bool) {
	meta, ok := abi.meta[fn]
	if !ok {
		return nil, nil, false
	}
	param, ok := v.(*ir.Param)
	if !ok || param.Parent() != fn {
		return nil, nil, false
	}
	for i := 0; i < meta.origParams; i++ {
		if fn.Params[i] != param {
			continue
		}
		slot, ok := meta.argSlots[i]
		if !ok {
			return nil, nil, false
		}
		return fn.Params[slot], fn.Params[slot+1], true
	}
	return nil, nil, false
}

// ShadowArgSlot implements ShadowABI.
func (abi *ParamABI) ShadowArgSlot(fn *ir.Function, index int) int {
	meta, ok := abi.meta[fn]
	if !ok {
		return -1
	}
	slot, ok := meta.argSlots[index]
	if !ok {
		return -1
	}
	return slot
}

// InstallShadowReturn implements ShadowABI.
func (abi *ParamABI) InstallShadowReturn(fn *ir.Function, offset, size ir.Value, at ir.Instruction) bool {
	meta, ok := abi.meta[fn]
	if !ok || meta.retOffSlot < 0 {
		return false
	}
	b := ir.NewBuilder(fn)
	b.SetInsertPoint(at)
	b.CreateStore(offset, fn.Params[meta.retOffSlot])
	b.CreateStore(size, fn.Params[meta.retOffSlot+1])
	return true
}
