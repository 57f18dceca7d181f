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

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildLinearFunc(t *testing.T) (*Function, *Store) {
	t.Helper()
	m := NewModule("t")
	fn := m.NewFunc("f", &FuncType{Ret: Void})
	entry := fn.NewBlock("entry")
	b := NewBuilder(fn)
	b.SetInsertPointAtEnd(entry)

	buf := b.CreateAlloca(&ArrayType{Len: 4, Elem: I32}, ConstInt(I64, 1), "buf")
	p := b.CreateGEP(buf, []Value{ConstInt(I64, 0), ConstInt(I64, 1)}, "p")
	st := b.CreateStore(ConstInt(I32, 7), p)
	b.CreateRet(nil)
	return fn, st
}

func TestSplitBefore(t *testing.T) {
	fn, st := buildLinearFunc(t)
	entry := fn.Entry()
	require.Len(t, entry.Instrs, 4)

	cont := entry.SplitBefore(st, "cont")
	// The access and everything after it moved; the old block is left
	// unterminated for the caller to rewire.
	assert.Len(t, entry.Instrs, 2)
	require.Len(t, cont.Instrs, 2)
	assert.Same(t, st, cont.Instrs[0])
	assert.Same(t, cont, st.Parent())
	assert.Nil(t, entry.Terminator())
	assert.NotNil(t, cont.Terminator())

	// Rewire and verify successor edges.
	b := NewBuilder(fn)
	b.SetInsertPointAtEnd(entry)
	b.CreateBr(cont)
	require.NotNil(t, entry.Terminator())
	assert.Equal(t, []*Block{cont}, entry.Succs())
}

func TestSplitBeforeRepointsSuccessorPhis(t *testing.T) {
	m := NewModule("t")
	fn := m.NewFunc("f", &FuncType{Ret: Void})
	entry := fn.NewBlock("entry")
	loop := fn.NewBlock("loop")
	b := NewBuilder(fn)
	b.SetInsertPointAtEnd(entry)
	b.CreateBr(loop)

	b.SetInsertPointAtEnd(loop)
	phi := b.CreatePhi(I64, "i")
	phi.AddIncoming(ConstInt(I64, 0), entry)
	inc := b.CreateAdd(phi, ConstInt(I64, 1), "inc")
	phi.AddIncoming(inc, loop)
	b.CreateBr(loop)

	// Splitting at the back-edge arithmetic moves the branch into the new
	// block, which becomes the loop's real predecessor.
	cont := loop.SplitBefore(inc, "cont")
	assert.Same(t, entry, phi.Incomings[0].Pred)
	assert.Same(t, cont, phi.Incomings[1].Pred)
}

func TestNewBlockUniqueNames(t *testing.T) {
	m := NewModule("t")
	fn := m.NewFunc("f", &FuncType{Ret: Void})
	a := fn.NewBlock("bb")
	b := fn.NewBlock("bb")
	c := fn.NewBlock("bb")
	assert.Equal(t, "bb", a.Name)
	assert.NotEqual(t, a.Name, b.Name)
	assert.NotEqual(t, b.Name, c.Name)
}

func TestBuilderInsertBefore(t *testing.T) {
	fn, st := buildLinearFunc(t)
	b := NewBuilder(fn)
	b.SetInsertPoint(st)
	cmp := b.CreateICmp(SGE, ConstInt(I64, 0), ConstInt(I64, 0), "cmp")

	entry := fn.Entry()
	idx := entry.indexOf(cmp)
	assert.Equal(t, idx+1, entry.indexOf(st))
}

func TestPhiIncomings(t *testing.T) {
	m := NewModule("t")
	fn := m.NewFunc("f", &FuncType{Ret: I64})
	entry := fn.NewBlock("entry")
	loop := fn.NewBlock("loop")
	b := NewBuilder(fn)
	b.SetInsertPointAtEnd(entry)
	b.CreateBr(loop)

	b.SetInsertPointAtEnd(loop)
	phi := b.CreatePhi(I64, "i")
	phi.AddIncoming(ConstInt(I64, 0), entry)
	inc := b.CreateAdd(phi, ConstInt(I64, 1), "inc")
	phi.AddIncoming(inc, loop)
	b.CreateRet(phi)

	require.Len(t, phi.Incomings, 2)
	assert.Same(t, entry, phi.Incomings[0].Pred)
	assert.Same(t, loop, phi.Incomings[1].Pred)

	// SetIncoming patches one slot only.
	phi.SetIncoming(1, ConstInt(I64, 5))
	assert.Equal(t, "5", phi.Incomings[1].Val.Ident())
	assert.Equal(t, "0", phi.Incomings[0].Val.Ident())
}
