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

// The shadow bridge carries shadow pairs across call boundaries using the
// ABI provider's pre-declared extra parameters. Every relay failure is a
// recoverable analysis incompleteness: the affected argument or return is
// skipped and downstream checks on it fail to resolve.

// resolveCallResult reads back the callee's outgoing shadow pair from the
// two by-reference return slots passed as the trailing actual arguments.
// Each read is bracketed by a marker-signal call so a scan of the function
// can recognize the loads as instrumentation-internal and never treat them
// as user memory accesses.
func (in *Instrumenter) resolveCallResult(fc *funcContext, call *ir.Call) (ir.Value, ir.Value, bool) {
	if len(call.Args) < 2 {
		in.logger.Printf("shadowable call %s carries no return slots in @%s", call.Ident(), fc.fn.Name)
		return nil, nil, false
	}
	offSlot := call.Args[len(call.Args)-2]
	sizeSlot := call.Args[len(call.Args)-1]

	fc.b.SetInsertPointAfter(call)
	fc.b.CreateCall(in.markerFn, []ir.Value{offSlot}, "")
	offset := fc.b.CreateLoad(offSlot, call.Callee.Name+".shadow.off")
	fc.b.CreateCall(in.markerFn, []ir.Value{sizeSlot}, "")
	size := fc.b.CreateLoad(sizeSlot, call.Callee.Name+".shadow.size")

	fc.state.record(call, offset, size)
	return offset, size, true
}

// relayCallArgs resolves each dereferenceable actual argument of a call to a
// shadowable callee and writes its shadow pair into the corresponding
// trailing shadow slots at the call site.
func (in *Instrumenter) relayCallArgs(fc *funcContext, call *ir.Call) bool {
	changed := false
	for i := 0; i < in.abi.ShadowableArgCount(call.Callee); i++ {
		arg := call.Args[i]
		// Undef or null actuals here are a symptom of a bug upstream;
		// leave their slots unfilled.
		if ir.IsUndef(arg) {
			continue
		}
		if _, isNull := arg.(*ir.Null); isNull {
			continue
		}
		if !IsShadowableType(arg.Type()) {
			continue
		}
		slot := in.abi.ShadowArgSlot(call.Callee, i)
		if slot < 0 {
			continue
		}
		offset, size, ok := in.resolveShadow(fc, call, arg)
		if !ok {
			in.logger.Printf("cannot relay shadow pair for argument %d of %s in @%s", i, call.Ident(), fc.fn.Name)
			continue
		}
		call.SetArg(slot, offset)
		call.SetArg(slot+1, size)
		changed = true
	}
	return changed
}

// relayReturn resolves a returned dereferenceable value and stores its
// shadow pair into the enclosing function's shadow return slots.
func (in *Instrumenter) relayReturn(fc *funcContext, ret *ir.Ret) bool {
	if ret.Val == nil || !IsShadowableType(ret.Val.Type()) {
		return false
	}
	offset, size, ok := in.resolveShadow(fc, ret, ret.Val)
	if !ok {
		in.logger.Printf("cannot relay shadow pair for return value in @%s", fc.fn.Name)
		return false
	}
	return in.abi.InstallShadowReturn(fc.fn, offset, size, ret)
}
