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

package interp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/secureir/boundscheck/ir"
)

func mustParse(t *testing.T, src string) *ir.Module {
	t.Helper()
	m, err := ir.ParseString(src)
	require.NoError(t, err)
	return m
}

func TestRunArithmeticLoop(t *testing.T) {
	m := mustParse(t, `module "sum"

define i64 @sum(i64 %n) {
entry:
  br label %loop

loop:
  %i = phi i64 [0, %entry], [%inc, %loop]
  %acc = phi i64 [0, %entry], [%nacc, %loop]
  %nacc = add i64 %acc, %i
  %inc = add i64 %i, 1
  %c = icmp slt i64 %inc, %n
  br i1 %c, label %loop, label %done

done:
  ret i64 %nacc
}
`)
	mach := NewMachine(m, Options{})
	res, err := mach.Run("sum", 5)
	require.NoError(t, err)
	// 0+1+2+3+4
	assert.Equal(t, uint64(10), res.Ret)
	assert.False(t, res.Trapped)
}

func TestMemoryRoundTrip(t *testing.T) {
	m := mustParse(t, `module "mem"

define i32 @main() {
entry:
  %buf = alloca [4 x i32], i64 1
  %p = getelementptr [4 x i32], [4 x i32]* %buf, i64 0, i64 2
  store i32 77, i32* %p
  %v = load i32, i32* %p
  ret i32 %v
}
`)
	mach := NewMachine(m, Options{})
	res, err := mach.Run("main")
	require.NoError(t, err)
	assert.Equal(t, uint64(77), res.Ret)
}

func TestGlobalInitializer(t *testing.T) {
	m := mustParse(t, `module "glob"

@seed = global i64 41

define i64 @main() {
entry:
  %v = load i64, i64* @seed
  %r = add i64 %v, 1
  store i64 %r, i64* @seed
  ret i64 %r
}
`)
	mach := NewMachine(m, Options{})
	res, err := mach.Run("main")
	require.NoError(t, err)
	assert.Equal(t, uint64(42), res.Ret)

	g := m.Global("seed")
	require.NotNil(t, g)
	assert.NotZero(t, mach.GlobalAddr(g))
}

func TestAllocAndErrorSignals(t *testing.T) {
	m := mustParse(t, `module "signals"

declare i8* @malloc(i64 %n)
declare void @verifier.error()

define i64 @main(i64 %bad) {
entry:
  %p = call i8* @malloc(i64 8)
  %q = bitcast i8* %p to i64*
  store i64 9, i64* %q
  %c = icmp ne i64 %bad, 0
  br i1 %c, label %fail, label %ok

fail:
  call void @verifier.error()
  unreachable

ok:
  ret i64 1
}
`)
	opts := Options{ErrorFn: "verifier.error", AllocFns: []string{"malloc"}}

	res, err := NewMachine(m, opts).Run("main", 0)
	require.NoError(t, err)
	assert.False(t, res.Trapped)
	assert.Equal(t, uint64(1), res.Ret)

	res, err = NewMachine(m, opts).Run("main", 1)
	require.NoError(t, err)
	assert.True(t, res.Trapped)
}

func TestNestedCallTrapPropagates(t *testing.T) {
	m := mustParse(t, `module "nested"

declare void @verifier.error()

define void @inner() {
entry:
  call void @verifier.error()
  unreachable
}

define i64 @main() {
entry:
  call void @inner()
  ret i64 0
}
`)
	mach := NewMachine(m, Options{ErrorFn: "verifier.error"})
	res, err := mach.Run("main")
	require.NoError(t, err)
	assert.True(t, res.Trapped)
}

func TestMissingShadowArgsDefaultToZero(t *testing.T) {
	m := mustParse(t, `module "pad"

define i64 @f(i64 %a, i64 %a.shadow.off, i64 %a.shadow.size) {
entry:
  %r = add i64 %a, %a.shadow.size
  ret i64 %r
}

define i64 @main() {
entry:
  %r = call i64 @f(i64 7, i64 undef, i64 undef)
  ret i64 %r
}
`)
	mach := NewMachine(m, Options{})
	res, err := mach.Run("f", 3)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), res.Ret)

	res, err = mach.Run("main")
	require.NoError(t, err)
	assert.Equal(t, uint64(7), res.Ret)
}

func TestStepLimit(t *testing.T) {
	m := mustParse(t, `module "spin"

define void @main() {
entry:
  br label %loop

loop:
  br label %loop
}
`)
	mach := NewMachine(m, Options{MaxSteps: 100})
	_, err := mach.Run("main")
	require.Error(t, err)
}
