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

// Package ir defines a small typed SSA intermediate representation with a
// mutable control-flow graph. It is the host representation consumed by the
// boundscheck instrumentation pass: instructions, basic blocks, functions and
// modules, plus the layout rules needed to answer byte-offset queries.
package ir

import (
	"fmt"
	"strings"
)

// PointerBytes is the byte width of a pointer on the modeled target.
const PointerBytes = 8

// Type is the interface implemented by all IR types.
type Type interface {
	String() string
	isType()
}

// VoidType is the type of instructions that produce no value.
type VoidType struct{}

// IntType is an integer type of a fixed bit width.
type IntType struct {
	Bits int
}

// PointerType is a typed pointer.
type PointerType struct {
	Elem Type
}

// ArrayType is a fixed-length array.
type ArrayType struct {
	Elem Type
	Len  uint64
}

// StructType is a named aggregate with a fixed field layout.
type StructType struct {
	TypeName string
	Fields   []Type
}

// FuncType describes a function signature.
type FuncType struct {
	Params []Type
	Ret    Type
}

func (VoidType) isType()    {}
func (*IntType) isType()    {}
func (*PointerType) isType() {}
func (*ArrayType) isType()  {}
func (*StructType) isType() {}
func (*FuncType) isType()   {}

// Singleton integer types shared across modules.
var (
	Void = VoidType{}
	I1   = &IntType{Bits: 1}
	I8   = &IntType{Bits: 8}
	I16  = &IntType{Bits: 16}
	I32  = &IntType{Bits: 32}
	I64  = &IntType{Bits: 64}
)

// PointerTo returns a pointer type to elem.
func PointerTo(elem Type) *PointerType {
	return &PointerType{Elem: elem}
}

func (VoidType) String() string { return "void" }

func (t *IntType) String() string { return fmt.Sprintf("i%d", t.Bits) }

func (t *PointerType) String() string { return t.Elem.String() + "*" }

func (t *ArrayType) String() string {
	return fmt.Sprintf("[%d x %s]", t.Len, t.Elem.String())
}

func (t *StructType) String() string {
	if t.TypeName != "" {
		return "%" + t.TypeName
	}
	fields := make([]string, len(t.Fields))
	for i, f := range t.Fields {
		fields[i] = f.String()
	}
	return "{" + strings.Join(fields, ", ") + "}"
}

func (t *FuncType) String() string {
	params := make([]string, len(t.Params))
	for i, p := range t.Params {
		params[i] = p.String()
	}
	return fmt.Sprintf("%s (%s)", t.Ret.String(), strings.Join(params, ", "))
}

// IsInteger reports whether t is an integer type.
func IsInteger(t Type) bool {
	_, ok := t.(*IntType)
	return ok
}

// IsPointer reports whether t is a pointer type.
func IsPointer(t Type) bool {
	_, ok := t.(*PointerType)
	return ok
}

// Alignment returns the natural alignment of t in bytes.
func Alignment(t Type) uint64 {
	switch t := t.(type) {
	case *IntType:
		if t.Bits <= 8 {
			return 1
		}
		return uint64(t.Bits) / 8
	case *PointerType:
		return PointerBytes
	case *ArrayType:
		return Alignment(t.Elem)
	case *StructType:
		var align uint64 = 1
		for _, f := range t.Fields {
			if a := Alignment(f); a > align {
				align = a
			}
		}
		return align
	default:
		return 1
	}
}

// StoreSize returns the number of bytes occupied by a value of type t,
// including struct padding.
func StoreSize(t Type) uint64 {
	switch t := t.(type) {
	case *IntType:
		if t.Bits <= 8 {
			return 1
		}
		return uint64(t.Bits) / 8
	case *PointerType:
		return PointerBytes
	case *ArrayType:
		return t.Len * StoreSize(t.Elem)
	case *StructType:
		var off uint64
		for _, f := range t.Fields {
			off = alignUp(off, Alignment(f))
			off += StoreSize(f)
		}
		return alignUp(off, Alignment(t))
	default:
		return 0
	}
}

// FieldOffset returns the byte offset of field i within st, following the
// same padding rules as StoreSize.
func FieldOffset(st *StructType, i int) uint64 {
	if i < 0 || i >= len(st.Fields) {
		panic(fmt.Sprintf("ir: field index %d out of range for %s", i, st))
	}
	var off uint64
	for j := 0; j <= i; j++ {
		off = alignUp(off, Alignment(st.Fields[j]))
		if j < i {
			off += StoreSize(st.Fields[j])
		}
	}
	return off
}

func alignUp(n, align uint64) uint64 {
	if align <= 1 {
		return n
	}
	rem := n % align
	if rem == 0 {
		return n
	}
	return n + align - rem
}
