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

const parseSample = `module "sample"

%pair = type { i64, [8 x i32] }

@counter = global i64 5

declare i8* @malloc(i64 %n)

define void @main(i64 %flag) {
entry:
  %s = alloca %pair, i64 1
  %f = getelementptr %pair, %pair* %s, i64 0, i32 1, i64 3
  store i32 1, i32* %f
  %c = icmp ne i64 %flag, 0
  br i1 %c, label %left, label %join

left:
  br label %join

join:
  %v = phi i32 [1, %entry], [2, %left]
  store i32 %v, i32* %f
  ret void
}
`

func TestParseModule(t *testing.T) {
	m, err := ParseString(parseSample)
	require.NoError(t, err)

	assert.Equal(t, "sample", m.Name)
	require.NotNil(t, m.Structs["pair"])
	assert.Equal(t, uint64(40), StoreSize(m.Structs["pair"]))

	g := m.Global("counter")
	require.NotNil(t, g)
	require.NotNil(t, g.Init)
	assert.Equal(t, int64(5), g.Init.V)

	malloc := m.Func("malloc")
	require.NotNil(t, malloc)
	assert.True(t, malloc.IsDeclaration())
	assert.Equal(t, "i8*", malloc.Sig.Ret.String())

	main := m.Func("main")
	require.NotNil(t, main)
	require.Len(t, main.Blocks, 3)
	assert.Equal(t, "entry", main.Entry().Name)
}

func TestParsePhiForwardReference(t *testing.T) {
	src := `module "loop"

define void @main() {
entry:
  br label %loop

loop:
  %i = phi i64 [0, %entry], [%inc, %loop]
  %inc = add i64 %i, 1
  %c = icmp slt i64 %inc, 4
  br i1 %c, label %loop, label %done

done:
  ret void
}
`
	m, err := ParseString(src)
	require.NoError(t, err)

	loop := m.Func("main").Blocks[1]
	phi, ok := loop.Instrs[0].(*Phi)
	require.True(t, ok)
	require.Len(t, phi.Incomings, 2)
	assert.Equal(t, "%inc", phi.Incomings[1].Val.Ident())
}

func TestPrintParseStable(t *testing.T) {
	m, err := ParseString(parseSample)
	require.NoError(t, err)

	first := m.String()
	m2, err := ParseString(first)
	require.NoError(t, err)
	assert.Equal(t, first, m2.String())
}

func TestParseErrors(t *testing.T) {
	_, err := ParseString(`module "x"
bogus top level
`)
	require.Error(t, err)
	perr, ok := err.(*ParseError)
	require.True(t, ok)
	assert.Equal(t, 2, perr.Line)

	_, err = ParseString(`module "x"

define void @f() {
entry:
  %v = load i64, i64* %missing
  ret void
}
`)
	require.Error(t, err)
}
