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
)

func TestStoreSize(t *testing.T) {
	assert.Equal(t, uint64(1), StoreSize(I8))
	assert.Equal(t, uint64(4), StoreSize(I32))
	assert.Equal(t, uint64(8), StoreSize(I64))
	assert.Equal(t, uint64(8), StoreSize(PointerTo(I8)))
	assert.Equal(t, uint64(40), StoreSize(&ArrayType{Len: 10, Elem: I32}))
}

func TestStructLayout(t *testing.T) {
	// {i8, i64, i32}: i64 is aligned up to offset 8, the struct itself is
	// padded out to a multiple of its widest member.
	st := &StructType{Fields: []Type{I8, I64, I32}}
	assert.Equal(t, uint64(0), FieldOffset(st, 0))
	assert.Equal(t, uint64(8), FieldOffset(st, 1))
	assert.Equal(t, uint64(16), FieldOffset(st, 2))
	assert.Equal(t, uint64(24), StoreSize(st))
	assert.Equal(t, uint64(8), Alignment(st))
}

func TestStructWithArrayField(t *testing.T) {
	st := &StructType{Fields: []Type{I64, &ArrayType{Len: 8, Elem: I32}}}
	assert.Equal(t, uint64(8), FieldOffset(st, 1))
	assert.Equal(t, uint64(40), StoreSize(st))
}

func TestTypeStrings(t *testing.T) {
	assert.Equal(t, "i64", I64.String())
	assert.Equal(t, "i32*", PointerTo(I32).String())
	assert.Equal(t, "[4 x i8]", (&ArrayType{Len: 4, Elem: I8}).String())
	named := &StructType{TypeName: "pair", Fields: []Type{I64, I64}}
	assert.Equal(t, "%pair", named.String())
}

func TestGEPResultType(t *testing.T) {
	m := NewModule("t")
	st := m.DefineStruct("pair", I64, &ArrayType{Len: 8, Elem: I32})
	fn := m.NewFunc("f", &FuncType{Ret: Void})
	entry := fn.NewBlock("entry")
	b := NewBuilder(fn)
	b.SetInsertPointAtEnd(entry)

	s := b.CreateAlloca(st, ConstInt(I64, 1), "s")
	gep := b.CreateGEP(s, []Value{ConstInt(I64, 0), ConstInt(I32, 1), ConstInt(I64, 3)}, "f")
	assert.Equal(t, "i32*", gep.Type().String())
}
