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

// errorSink returns the function's single error block, creating it on first
// use: a call to the external error signal followed by an unreachable
// terminator. All failed guards branch here; nothing else does.
func (in *Instrumenter) errorSink(fc *funcContext) *ir.Block {
	if fc.errSink == nil {
		sink := fc.fn.NewBlock("boc.error")
		fc.b.SetInsertPointAtEnd(sink)
		fc.b.CreateCall(in.errorFn, nil, "")
		fc.b.CreateUnreachable()
		fc.errSink = sink
	}
	return fc.errSink
}

// insertAccessCheck splices the two guards for a single-element access at
// inst through ptr:
//
//	underflow: offset >= 0
//	overflow:  offset < size
//
// It reports whether a check was inserted. The guards are emitted as two
// sequential conditional branches rather than one conjoined condition:
// downstream static analyses reason more precisely about two simple branch
// conditions than about a compound boolean.
func (in *Instrumenter) insertAccessCheck(fc *funcContext, inst ir.Instruction, ptr ir.Value) bool {
	return in.insertCheck(fc, inst, ptr, nil)
}

// insertRangeCheck splices the guards for a bulk access of the given length:
//
//	underflow: offset >= 0
//	overflow:  offset + length <= size
func (in *Instrumenter) insertRangeCheck(fc *funcContext, inst ir.Instruction, ptr, length ir.Value) bool {
	return in.insertCheck(fc, inst, ptr, length)
}

func (in *Instrumenter) insertCheck(fc *funcContext, inst ir.Instruction, ptr ir.Value, length ir.Value) bool {
	offset, size, ok := fc.state.Pair(ptr)
	if !ok {
		in.stats.ChecksUnable++
		return false
	}
	if isUnknownConst(offset) || isUnknownConst(size) {
		in.stats.ChecksUnable++
		return false
	}

	sink := in.errorSink(fc)

	// Split so the guarded access starts the continuation block, then
	// chain the two guards in front of it.
	old := inst.Parent()
	cont := old.SplitBefore(inst, "boc.cont")

	fc.b.SetInsertPointAtEnd(old)
	underflow := fc.b.CreateICmp(ir.SGE, offset, i64Const(0), "boc.underflow")
	inbounds := fc.fn.NewBlock("boc.inbounds")
	fc.b.CreateCondBr(underflow, inbounds, sink)

	fc.b.SetInsertPointAtEnd(inbounds)
	var overflow ir.Value
	if length == nil {
		overflow = fc.b.CreateICmp(ir.SLT, offset, size, "boc.overflow")
	} else {
		reach := in.createAdd(fc.b, offset, length, "boc.reach")
		overflow = fc.b.CreateICmp(ir.SLE, reach, size, "boc.overflow")
	}
	fc.b.CreateCondBr(overflow, cont, sink)

	in.stats.ChecksAdded++
	return true
}

// isUnknownConst reports whether v is the constant unknown-size sentinel.
func isUnknownConst(v ir.Value) bool {
	c, ok := v.(*ir.IntConst)
	return ok && IsUnknownSize(uint64(c.V))
}
