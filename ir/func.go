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

import "strconv"

// Function is a declared or defined function. A declaration has no blocks.
type Function struct {
	Name   string
	Sig    *FuncType
	Params []*Param
	Blocks []*Block

	mod *Module

	// NoReturn marks external signal functions that never return to the
	// caller.
	NoReturn bool
}

// Module returns the owning module.
func (f *Function) Module() *Module { return f.mod }

// IsDeclaration reports whether f has no body.
func (f *Function) IsDeclaration() bool { return len(f.Blocks) == 0 }

// Entry returns the function's entry block.
func (f *Function) Entry() *Block { return f.Blocks[0] }

// NewBlock appends a fresh empty block named name to the function. Block
// names are made unique within the function.
func (f *Function) NewBlock(name string) *Block {
	b := &Block{Name: f.uniqueBlockName(name), fn: f}
	f.Blocks = append(f.Blocks, b)
	return b
}

func (f *Function) uniqueBlockName(name string) string {
	taken := func(n string) bool {
		for _, b := range f.Blocks {
			if b.Name == n {
				return true
			}
		}
		return false
	}
	if !taken(name) {
		return name
	}
	for i := 1; ; i++ {
		n := name + "." + strconv.Itoa(i)
		if !taken(n) {
			return n
		}
	}
}

// AddParam appends a formal parameter to the function and its signature.
// Used by the shadow ABI rewrite to extend shadowable signatures.
func (f *Function) AddParam(name string, t Type) *Param {
	p := &Param{id: f.mod.nextID(), name: name, Typ: t, fn: f}
	f.Params = append(f.Params, p)
	f.Sig.Params = append(f.Sig.Params, t)
	return p
}

// Instructions calls visit for every instruction in the function, in block
// order. Mutating the CFG during the walk is not safe; callers snapshot
// first.
func (f *Function) Instructions(visit func(Instruction)) {
	for _, b := range f.Blocks {
		for _, inst := range b.Instrs {
			visit(inst)
		}
	}
}
