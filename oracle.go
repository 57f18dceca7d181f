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

// UnknownSize is the sentinel byte size for allocations whose extent cannot
// be determined statically. It mirrors the unknown-size convention of alias
// analyses: all ones in 64 bits.
const UnknownSize = ^uint64(0)

// IsUnknownSize reports whether sz is the unknown sentinel.
func IsUnknownSize(sz uint64) bool { return sz == UnknownSize }

// SizeOracle answers static allocation size queries for IR values. An
// implementation may always answer "unknown"; the pass degrades to skipping
// the affected checks.
type SizeOracle interface {
	// StaticSize returns the exact byte size of the storage referenced by v
	// when it is statically determinable.
	StaticSize(v ir.Value) (uint64, bool)
}

// LayoutOracle answers byte layout queries for aggregate types.
type LayoutOracle interface {
	// FieldOffset returns the byte offset of field index within st.
	FieldOffset(st *ir.StructType, index int) uint64
	// StorageSize returns the allocated byte size of a value of type t.
	StorageSize(t ir.Type) uint64
}

// staticSizeOracle is the default SizeOracle: it knows the sizes of
// statically sized stack allocations and of globals.
type staticSizeOracle struct{}

// NewStaticSizeOracle returns the default size oracle.
func NewStaticSizeOracle() SizeOracle { return staticSizeOracle{} }

func (staticSizeOracle) StaticSize(v ir.Value) (uint64, bool) {
	switch v := v.(type) {
	case *ir.Alloca:
		count, ok := v.Count.(*ir.IntConst)
		if !ok {
			return 0, false
		}
		return ir.StoreSize(v.Allocated) * uint64(count.V), true
	case *ir.Global:
		return ir.StoreSize(v.Elem), true
	default:
		return 0, false
	}
}

// dataLayoutOracle is the default LayoutOracle, delegating to the ir
// package's natural-alignment layout rules.
type dataLayoutOracle struct{}

// NewDataLayoutOracle returns the default layout oracle.
func NewDataLayoutOracle() LayoutOracle { return dataLayoutOracle{} }

func (dataLayoutOracle) FieldOffset(st *ir.StructType, index int) uint64 {
	return ir.FieldOffset(st, index)
}

func (dataLayoutOracle) StorageSize(t ir.Type) uint64 {
	return ir.StoreSize(t)
}
