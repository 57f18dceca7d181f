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

// Package testutils provides IR fixtures shared by the instrumentation
// tests.
package testutils

// IRSample couples a textual module with the check-site outcome its
// instrumentation run should produce.
type IRSample struct {
	Source  string
	Added   int
	Skipped int
	Unable  int
}

// SampleLinearArray indexes a fixed array through a getelementptr in
// bounds. One guard, never trapping.
var SampleLinearArray = IRSample{Source: `module "linear"

define void @main() {
entry:
  %buf = alloca [10 x i32], i64 1
  %p = getelementptr [10 x i32], [10 x i32]* %buf, i64 0, i64 3
  store i32 7, i32* %p
  ret void
}
`, Added: 1}

// SampleStructField walks a struct field and then an array element inside
// it, exercising offset accumulation across a multi-index getelementptr.
var SampleStructField = IRSample{Source: `module "fields"

%pair = type { i64, [8 x i32] }

define void @main() {
entry:
  %s = alloca %pair, i64 1
  %f = getelementptr %pair, %pair* %s, i64 0, i32 1, i64 3
  store i32 1, i32* %f
  ret void
}
`, Added: 1}

// SamplePhiLoop advances a pointer through a loop-carried phi. The store
// guard must see the pair merged over both incoming edges.
var SamplePhiLoop = IRSample{Source: `module "loop"

define void @main() {
entry:
  %buf = alloca [4 x i64], i64 1
  %base = getelementptr [4 x i64], [4 x i64]* %buf, i64 0, i64 0
  br label %loop

loop:
  %p = phi i64* [%base, %entry], [%next, %loop]
  %i = phi i64 [0, %entry], [%inc, %loop]
  store i64 0, i64* %p
  %next = getelementptr i64, i64* %p, i64 1
  %inc = add i64 %i, 1
  %c = icmp slt i64 %inc, 4
  br i1 %c, label %loop, label %done

done:
  ret void
}
`, Added: 1}

// SamplePhiSelect merges two distinct buffers at a join, the classic
// two-predecessor phi with one shadow pair per edge.
var SamplePhiSelect = IRSample{Source: `module "select"

define void @main(i64 %flag) {
entry:
  %a = alloca [16 x i8], i64 1
  %b = alloca [32 x i8], i64 1
  %pa = getelementptr [16 x i8], [16 x i8]* %a, i64 0, i64 0
  %pb = getelementptr [32 x i8], [32 x i8]* %b, i64 0, i64 8
  %c = icmp ne i64 %flag, 0
  br i1 %c, label %left, label %right

left:
  br label %join

right:
  br label %join

join:
  %p = phi i8* [%pa, %left], [%pb, %right]
  store i8 1, i8* %p
  ret void
}
`, Added: 1}

// SampleMemcpyOverflow copies 50 bytes into a 40 byte destination. Both
// operand ranges are guarded and the destination guard fires.
var SampleMemcpyOverflow = IRSample{Source: `module "memcpy"

declare void @memcpy(i8* %dst, i8* %src, i64 %len)

define void @main() {
entry:
  %a = alloca [40 x i8], i64 1
  %b = alloca [64 x i8], i64 1
  %dst = getelementptr [40 x i8], [40 x i8]* %a, i64 0, i64 0
  %src = getelementptr [64 x i8], [64 x i8]* %b, i64 0, i64 0
  call void @memcpy(i8* %dst, i8* %src, i64 50)
  ret void
}
`, Added: 2}

// SampleScalarGlobal stores straight through a scalar global, which needs
// no guard at all.
var SampleScalarGlobal = IRSample{Source: `module "globals"

@counter = global i64 0

define void @main() {
entry:
  store i64 1, i64* @counter
  ret void
}
`, Skipped: 1}

// SampleOpaquePointer dereferences a pointer produced by an external
// declaration, which no shadow pair can describe.
var SampleOpaquePointer = IRSample{Source: `module "unknown"

declare i8* @opaque_source()

define void @main() {
entry:
  %p = call i8* @opaque_source()
  store i8 0, i8* %p
  ret void
}
`, Unable: 1}

// SampleInterproc passes a stack buffer into a defined callee that writes
// through the formal parameter. The pair travels over the shadow argument
// slots.
var SampleInterproc = IRSample{Source: `module "interproc"

define void @fill(i32* %dst) {
entry:
  %p = getelementptr i32, i32* %dst, i64 9
  store i32 5, i32* %p
  ret void
}

define void @main() {
entry:
  %buf = alloca [10 x i32], i64 1
  %p = getelementptr [10 x i32], [10 x i32]* %buf, i64 0, i64 0
  call void @fill(i32* %p)
  ret void
}
`, Added: 1}

// SampleHeapOverflow indexes past the end of a malloc'd block, so the
// overflow guard on the store fires.
var SampleHeapOverflow = IRSample{Source: `module "heap"

declare i8* @malloc(i64 %n)

define void @main() {
entry:
  %p = call i8* @malloc(i64 24)
  %q = getelementptr i8, i8* %p, i64 30
  store i8 1, i8* %q
  ret void
}
`, Added: 1}

// SampleUnderflow steps one byte before the start of a buffer, so the
// underflow guard on the store fires.
var SampleUnderflow = IRSample{Source: `module "underflow"

define void @main() {
entry:
  %buf = alloca [8 x i8], i64 1
  %p = getelementptr [8 x i8], [8 x i8]* %buf, i64 0, i64 0
  %q = getelementptr i8, i8* %p, i64 -1
  store i8 0, i8* %q
  ret void
}
`, Added: 1}

// SampleDynamicAlloca sizes a stack buffer from a runtime element count;
// the size half of the pair stays symbolic and is rescaled to bytes at the
// first getelementptr.
var SampleDynamicAlloca = IRSample{Source: `module "dynalloc"

define void @main(i64 %n) {
entry:
  %buf = alloca i32, i64 %n
  %p = getelementptr i32, i32* %buf, i64 2
  store i32 9, i32* %p
  ret void
}
`, Added: 1}

// SampleCallResult returns a fresh heap block from a defined callee; the
// caller's guard reads the pair back through the shadow return slots.
var SampleCallResult = IRSample{Source: `module "callresult"

declare i8* @malloc(i64 %n)

define i8* @fresh() {
entry:
  %p = call i8* @malloc(i64 16)
  ret i8* %p
}

define void @main() {
entry:
  %p = call i8* @fresh()
  %q = getelementptr i8, i8* %p, i64 4
  store i8 2, i8* %q
  ret void
}
`, Added: 1}
