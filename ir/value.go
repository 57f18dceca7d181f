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

// ValueID is a dense, module-unique identifier for identified values
// (instruction results, function parameters and globals). Side tables over the
// IR are keyed by ValueID rather than by Go pointer identity. Constants are
// not identified and carry NoID.
type ValueID int

// NoID marks values (constants) that do not participate in side tables.
const NoID ValueID = -1

// Value is any operand or result in the IR.
type Value interface {
	Type() Type
	ID() ValueID
	// Ident returns the printable identifier of the value, e.g. "%t3",
	// "@buf" or a constant literal.
	Ident() string
}

// IntConst is an integer literal.
type IntConst struct {
	Typ *IntType
	V   int64
}

// ConstInt returns an integer constant of the given type.
func ConstInt(t *IntType, v int64) *IntConst {
	return &IntConst{Typ: t, V: v}
}

func (c *IntConst) Type() Type    { return c.Typ }
func (c *IntConst) ID() ValueID   { return NoID }
func (c *IntConst) Ident() string { return fmt.Sprintf("%d", c.V) }

// Null is the null pointer constant of a given pointer type.
type Null struct {
	Typ *PointerType
}

func (c *Null) Type() Type    { return c.Typ }
func (c *Null) ID() ValueID   { return NoID }
func (c *Null) Ident() string { return "null" }

// Undef is an undefined value of a given type. The instrumentation pass uses
// i64 undefs as phi incoming placeholders that are back-patched later.
type Undef struct {
	Typ Type
}

func (c *Undef) Type() Type    { return c.Typ }
func (c *Undef) ID() ValueID   { return NoID }
func (c *Undef) Ident() string { return "undef" }

// IsUndef reports whether v is the undef constant.
func IsUndef(v Value) bool {
	_, ok := v.(*Undef)
	return ok
}

// Param is a function formal parameter.
type Param struct {
	id   ValueID
	name string
	Typ  Type
	fn   *Function
}

func (p *Param) Type() Type         { return p.Typ }
func (p *Param) ID() ValueID        { return p.id }
func (p *Param) Ident() string      { return "%" + p.name }
func (p *Param) Name() string       { return p.name }
func (p *Param) Parent() *Function  { return p.fn }

// Global is a module-level variable. Its value is the address of the storage,
// so the type observed through the Value interface is a pointer to Elem.
type Global struct {
	id   ValueID
	Name string
	Elem Type
	// Init is the optional constant initializer for scalar globals.
	Init *IntConst
}

func (g *Global) Type() Type    { return PointerTo(g.Elem) }
func (g *Global) ID() ValueID   { return g.id }
func (g *Global) Ident() string { return "@" + g.Name }

// IsScalarGlobal reports whether v is a global whose storage is a bare
// integer. Accesses through such globals need no bounds checking.
func IsScalarGlobal(v Value) bool {
	g, ok := v.(*Global)
	if !ok {
		return false
	}
	return IsInteger(g.Elem)
}
