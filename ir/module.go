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

import "fmt"

// Module is a translation unit: named struct types, globals and functions.
type Module struct {
	Name    string
	Structs map[string]*StructType
	Globals []*Global
	Funcs   []*Function

	nextValueID ValueID
}

// NewModule returns an empty module.
func NewModule(name string) *Module {
	return &Module{Name: name, Structs: make(map[string]*StructType)}
}

func (m *Module) nextID() ValueID {
	id := m.nextValueID
	m.nextValueID++
	return id
}

// NumValueIDs returns the number of identified values allocated so far. Side
// tables can use it as a capacity hint.
func (m *Module) NumValueIDs() int { return int(m.nextValueID) }

// DefineStruct registers a named struct type.
func (m *Module) DefineStruct(name string, fields ...Type) *StructType {
	st := &StructType{TypeName: name, Fields: fields}
	m.Structs[name] = st
	return st
}

// NewGlobal adds a global variable of element type elem.
func (m *Module) NewGlobal(name string, elem Type) *Global {
	g := &Global{id: m.nextID(), Name: name, Elem: elem}
	m.Globals = append(m.Globals, g)
	return g
}

// NewFunc adds a defined or declared function. Parameter values are created
// from the signature; paramNames may be shorter than the parameter list.
func (m *Module) NewFunc(name string, sig *FuncType, paramNames ...string) *Function {
	f := &Function{Name: name, Sig: sig, mod: m}
	for i, t := range sig.Params {
		pname := fmt.Sprintf("arg%d", i)
		if i < len(paramNames) {
			pname = paramNames[i]
		}
		f.Params = append(f.Params, &Param{id: m.nextID(), name: pname, Typ: t, fn: f})
	}
	m.Funcs = append(m.Funcs, f)
	return f
}

// Func returns the function named name, or nil.
func (m *Module) Func(name string) *Function {
	for _, f := range m.Funcs {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// Global looks up a global by name, or nil.
func (m *Module) Global(name string) *Global {
	for _, g := range m.Globals {
		if g.Name == name {
			return g
		}
	}
	return nil
}

// EnsureFunc returns the function named name, declaring it with sig if it
// does not exist yet.
func (m *Module) EnsureFunc(name string, sig *FuncType) *Function {
	if f := m.Func(name); f != nil {
		return f
	}
	return m.NewFunc(name, sig)
}
