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
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ParseError describes a syntax error in textual IR.
type ParseError struct {
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("ir: parse error at line %d: %s", e.Line, e.Msg)
}

// Parse reads a module in the textual form produced by Module.WriteTo.
func Parse(r io.Reader) (*Module, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	p := &parser{lines: lines, mod: NewModule("")}
	if err := p.run(); err != nil {
		return nil, err
	}
	return p.mod, nil
}

// ParseString is a convenience wrapper around Parse.
func ParseString(s string) (*Module, error) {
	return Parse(strings.NewReader(s))
}

type parser struct {
	lines []string
	mod   *Module
}

func (p *parser) errf(line int, format string, args ...interface{}) error {
	return &ParseError{Line: line + 1, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) run() error {
	// First pass: module header, types, globals and function signatures, so
	// call sites can reference functions defined later.
	type funcBody struct {
		fn    *Function
		start int // first line inside the braces
		end   int // line of the closing brace
	}
	var bodies []funcBody

	for i := 0; i < len(p.lines); i++ {
		line := strings.TrimSpace(p.lines[i])
		switch {
		case line == "" || strings.HasPrefix(line, ";"):
		case strings.HasPrefix(line, "module "):
			name, err := strconv.Unquote(strings.TrimSpace(strings.TrimPrefix(line, "module ")))
			if err != nil {
				return p.errf(i, "malformed module header")
			}
			p.mod.Name = name
		case strings.HasPrefix(line, "%") && strings.Contains(line, "= type"):
			if err := p.parseStructDef(i, line); err != nil {
				return err
			}
		case strings.HasPrefix(line, "@"):
			if err := p.parseGlobal(i, line); err != nil {
				return err
			}
		case strings.HasPrefix(line, "declare "):
			if _, err := p.parseFuncHeader(i, strings.TrimPrefix(line, "declare ")); err != nil {
				return err
			}
		case strings.HasPrefix(line, "define "):
			header := strings.TrimSuffix(strings.TrimPrefix(line, "define "), "{")
			fn, err := p.parseFuncHeader(i, header)
			if err != nil {
				return err
			}
			start := i + 1
			depth := 1
			for i++; i < len(p.lines); i++ {
				t := strings.TrimSpace(p.lines[i])
				if t == "}" {
					depth--
					if depth == 0 {
						break
					}
				}
			}
			if depth != 0 {
				return p.errf(start-1, "unterminated function body for @%s", fn.Name)
			}
			bodies = append(bodies, funcBody{fn: fn, start: start, end: i})
		default:
			return p.errf(i, "unrecognized top-level construct: %s", line)
		}
	}

	for _, body := range bodies {
		if err := p.parseBody(body.fn, body.start, body.end); err != nil {
			return err
		}
	}
	return nil
}

func (p *parser) parseStructDef(i int, line string) error {
	// %Name = type { f1, f2, ... }
	eq := strings.Index(line, "=")
	name := strings.TrimSpace(line[1:eq])
	open := strings.Index(line, "{")
	close := strings.LastIndex(line, "}")
	if open < 0 || close < open {
		return p.errf(i, "malformed type definition")
	}
	var fields []Type
	for _, fs := range splitTopLevel(line[open+1 : close]) {
		ft, err := p.parseType(i, fs)
		if err != nil {
			return err
		}
		fields = append(fields, ft)
	}
	p.mod.DefineStruct(name, fields...)
	return nil
}

func (p *parser) parseGlobal(i int, line string) error {
	// @name = global <type> [init]
	eq := strings.Index(line, "=")
	if eq < 0 {
		return p.errf(i, "malformed global")
	}
	name := strings.TrimSpace(line[1:eq])
	rest := strings.TrimSpace(line[eq+1:])
	if !strings.HasPrefix(rest, "global ") {
		return p.errf(i, "malformed global @%s", name)
	}
	rest = strings.TrimSpace(strings.TrimPrefix(rest, "global "))
	// An optional trailing integer is the initializer.
	typStr, initStr := rest, ""
	if n := strings.LastIndex(rest, " "); n > 0 {
		if _, err := strconv.ParseInt(rest[n+1:], 10, 64); err == nil {
			typStr, initStr = rest[:n], rest[n+1:]
		}
	}
	elem, err := p.parseType(i, typStr)
	if err != nil {
		return err
	}
	g := p.mod.NewGlobal(name, elem)
	if initStr != "" {
		it, ok := elem.(*IntType)
		if !ok {
			return p.errf(i, "initializer on non-integer global @%s", name)
		}
		v, _ := strconv.ParseInt(initStr, 10, 64)
		g.Init = ConstInt(it, v)
	}
	return nil
}

// parseFuncHeader parses "<ret> @name(<type> %p, ...)".
func (p *parser) parseFuncHeader(i int, header string) (*Function, error) {
	header = strings.TrimSpace(header)
	at := strings.Index(header, "@")
	open := strings.Index(header, "(")
	close := strings.LastIndex(header, ")")
	if at < 0 || open < at || close < open {
		return nil, p.errf(i, "malformed function header")
	}
	ret, err := p.parseType(i, header[:at])
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(header[at+1 : open])
	var params []Type
	var paramNames []string
	for _, ps := range splitTopLevel(header[open+1 : close]) {
		n := strings.LastIndex(ps, "%")
		if n < 0 {
			return nil, p.errf(i, "parameter without name in @%s", name)
		}
		pt, err := p.parseType(i, ps[:n])
		if err != nil {
			return nil, err
		}
		params = append(params, pt)
		paramNames = append(paramNames, strings.TrimSpace(ps[n+1:]))
	}
	return p.mod.NewFunc(name, &FuncType{Params: params, Ret: ret}, paramNames...), nil
}

func (p *parser) parseType(i int, s string) (Type, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "void":
		return Void, nil
	case strings.HasSuffix(s, "*"):
		elem, err := p.parseType(i, s[:len(s)-1])
		if err != nil {
			return nil, err
		}
		return PointerTo(elem), nil
	case strings.HasPrefix(s, "i"):
		bits, err := strconv.Atoi(s[1:])
		if err != nil {
			return nil, p.errf(i, "bad integer type %q", s)
		}
		switch bits {
		case 1:
			return I1, nil
		case 8:
			return I8, nil
		case 16:
			return I16, nil
		case 32:
			return I32, nil
		case 64:
			return I64, nil
		}
		return &IntType{Bits: bits}, nil
	case strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]"):
		inner := s[1 : len(s)-1]
		x := strings.Index(inner, " x ")
		if x < 0 {
			return nil, p.errf(i, "bad array type %q", s)
		}
		n, err := strconv.ParseUint(strings.TrimSpace(inner[:x]), 10, 64)
		if err != nil {
			return nil, p.errf(i, "bad array length in %q", s)
		}
		elem, err := p.parseType(i, inner[x+3:])
		if err != nil {
			return nil, err
		}
		return &ArrayType{Elem: elem, Len: n}, nil
	case strings.HasPrefix(s, "%"):
		st, ok := p.mod.Structs[s[1:]]
		if !ok {
			return nil, p.errf(i, "undefined struct type %s", s)
		}
		return st, nil
	}
	return nil, p.errf(i, "unrecognized type %q", s)
}

type bodyParser struct {
	p      *parser
	fn     *Function
	b      *Builder
	values map[string]Value
	blocks map[string]*Block
	// phi incoming slots referencing values defined later in the text.
	fixups []func() error
}

func (p *parser) parseBody(fn *Function, start, end int) error {
	bp := &bodyParser{
		p:      p,
		fn:     fn,
		b:      NewBuilder(fn),
		values: make(map[string]Value),
		blocks: make(map[string]*Block),
	}
	for _, param := range fn.Params {
		bp.values[param.Name()] = param
	}

	// Pre-create blocks so branches can reference labels defined later.
	for i := start; i < end; i++ {
		line := strings.TrimSpace(p.lines[i])
		if strings.HasSuffix(line, ":") && !strings.Contains(line, " ") {
			name := strings.TrimSuffix(line, ":")
			bp.blocks[name] = fn.NewBlock(name)
		}
	}

	for i := start; i < end; i++ {
		line := strings.TrimSpace(p.lines[i])
		switch {
		case line == "" || strings.HasPrefix(line, ";"):
		case strings.HasSuffix(line, ":") && !strings.Contains(line, " "):
			bp.b.SetInsertPointAtEnd(bp.blocks[strings.TrimSuffix(line, ":")])
		default:
			if err := bp.parseInstr(i, line); err != nil {
				return err
			}
		}
	}
	for _, fix := range bp.fixups {
		if err := fix(); err != nil {
			return err
		}
	}
	return nil
}

func (bp *bodyParser) parseInstr(i int, line string) error {
	name := ""
	if strings.HasPrefix(line, "%") {
		eq := strings.Index(line, " = ")
		if eq < 0 {
			return bp.p.errf(i, "malformed instruction")
		}
		name = line[1:eq]
		line = line[eq+3:]
	}
	op := line
	if n := strings.IndexAny(line, " "); n > 0 {
		op = line[:n]
	}
	rest := strings.TrimSpace(strings.TrimPrefix(line, op))

	var v Value
	var err error
	switch op {
	case "alloca":
		v, err = bp.parseAlloca(i, name, rest)
	case "load":
		v, err = bp.parseLoad(i, name, rest)
	case "store":
		err = bp.parseStore(i, rest)
	case "getelementptr":
		v, err = bp.parseGEP(i, name, rest)
	case "bitcast", "inttoptr", "zext":
		v, err = bp.parseConv(i, op, name, rest)
	case "add", "sub", "mul":
		v, err = bp.parseBinOp(i, op, name, rest)
	case "icmp":
		v, err = bp.parseICmp(i, name, rest)
	case "phi":
		v, err = bp.parsePhi(i, name, rest)
	case "call":
		v, err = bp.parseCall(i, name, rest)
	case "br":
		err = bp.parseBr(i, rest)
	case "ret":
		err = bp.parseRet(i, rest)
	case "unreachable":
		bp.b.CreateUnreachable()
	default:
		return bp.p.errf(i, "unrecognized instruction %q", op)
	}
	if err != nil {
		return err
	}
	if name != "" {
		if v == nil {
			return bp.p.errf(i, "instruction %q produces no value", op)
		}
		bp.values[name] = v
	}
	return nil
}

// typedValue parses "<type> <value>".
func (bp *bodyParser) typedValue(i int, s string) (Value, error) {
	s = strings.TrimSpace(s)
	n := strings.LastIndex(s, " ")
	if n < 0 {
		return nil, bp.p.errf(i, "expected typed value, got %q", s)
	}
	t, err := bp.p.parseType(i, s[:n])
	if err != nil {
		return nil, err
	}
	return bp.value(i, t, s[n+1:])
}

func (bp *bodyParser) value(i int, t Type, s string) (Value, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "null":
		pt, ok := t.(*PointerType)
		if !ok {
			return nil, bp.p.errf(i, "null of non-pointer type %s", t)
		}
		return &Null{Typ: pt}, nil
	case s == "undef":
		return &Undef{Typ: t}, nil
	case strings.HasPrefix(s, "%"):
		v, ok := bp.values[s[1:]]
		if !ok {
			return nil, bp.p.errf(i, "undefined value %s", s)
		}
		return v, nil
	case strings.HasPrefix(s, "@"):
		if g := bp.p.mod.Global(s[1:]); g != nil {
			return g, nil
		}
		return nil, bp.p.errf(i, "undefined global %s", s)
	default:
		it, ok := t.(*IntType)
		if !ok {
			return nil, bp.p.errf(i, "integer literal of non-integer type %s", t)
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, bp.p.errf(i, "bad integer literal %q", s)
		}
		return ConstInt(it, n), nil
	}
}

func (bp *bodyParser) parseAlloca(i int, name, rest string) (Value, error) {
	parts := splitTopLevel(rest)
	if len(parts) != 2 {
		return nil, bp.p.errf(i, "malformed alloca")
	}
	t, err := bp.p.parseType(i, parts[0])
	if err != nil {
		return nil, err
	}
	count, err := bp.typedValue(i, parts[1])
	if err != nil {
		return nil, err
	}
	return bp.b.CreateAlloca(t, count, name), nil
}

func (bp *bodyParser) parseLoad(i int, name, rest string) (Value, error) {
	parts := splitTopLevel(rest)
	if len(parts) != 2 {
		return nil, bp.p.errf(i, "malformed load")
	}
	addr, err := bp.typedValue(i, parts[1])
	if err != nil {
		return nil, err
	}
	return bp.b.CreateLoad(addr, name), nil
}

func (bp *bodyParser) parseStore(i int, rest string) error {
	parts := splitTopLevel(rest)
	if len(parts) != 2 {
		return bp.p.errf(i, "malformed store")
	}
	val, err := bp.typedValue(i, parts[0])
	if err != nil {
		return err
	}
	addr, err := bp.typedValue(i, parts[1])
	if err != nil {
		return err
	}
	bp.b.CreateStore(val, addr)
	return nil
}

func (bp *bodyParser) parseGEP(i int, name, rest string) (Value, error) {
	parts := splitTopLevel(rest)
	if len(parts) < 3 {
		return nil, bp.p.errf(i, "malformed getelementptr")
	}
	base, err := bp.typedValue(i, parts[1])
	if err != nil {
		return nil, err
	}
	var indices []Value
	for _, is := range parts[2:] {
		idx, err := bp.typedValue(i, is)
		if err != nil {
			return nil, err
		}
		indices = append(indices, idx)
	}
	return bp.b.CreateGEP(base, indices, name), nil
}

func (bp *bodyParser) parseConv(i int, op, name, rest string) (Value, error) {
	to := strings.LastIndex(rest, " to ")
	if to < 0 {
		return nil, bp.p.errf(i, "malformed %s", op)
	}
	from, err := bp.typedValue(i, rest[:to])
	if err != nil {
		return nil, err
	}
	t, err := bp.p.parseType(i, rest[to+4:])
	if err != nil {
		return nil, err
	}
	switch op {
	case "bitcast":
		return bp.b.CreateBitCast(from, t, name), nil
	case "inttoptr":
		pt, ok := t.(*PointerType)
		if !ok {
			return nil, bp.p.errf(i, "inttoptr to non-pointer type %s", t)
		}
		return bp.b.CreateIntToPtr(from, pt, name), nil
	default:
		it, ok := t.(*IntType)
		if !ok {
			return nil, bp.p.errf(i, "zext to non-integer type %s", t)
		}
		return bp.b.CreateZExt(from, it, name), nil
	}
}

func (bp *bodyParser) parseBinOp(i int, op, name, rest string) (Value, error) {
	parts := splitTopLevel(rest)
	if len(parts) != 2 {
		return nil, bp.p.errf(i, "malformed %s", op)
	}
	x, err := bp.typedValue(i, parts[0])
	if err != nil {
		return nil, err
	}
	y, err := bp.value(i, x.Type(), parts[1])
	if err != nil {
		return nil, err
	}
	kind := map[string]BinOpKind{"add": Add, "sub": Sub, "mul": Mul}[op]
	return bp.b.CreateBinOp(kind, x, y, name), nil
}

func (bp *bodyParser) parseICmp(i int, name, rest string) (Value, error) {
	sp := strings.Index(rest, " ")
	if sp < 0 {
		return nil, bp.p.errf(i, "malformed icmp")
	}
	predStr := rest[:sp]
	pred, ok := map[string]Predicate{
		"eq": EQ, "ne": NE, "slt": SLT, "sle": SLE, "sgt": SGT, "sge": SGE,
	}[predStr]
	if !ok {
		return nil, bp.p.errf(i, "unknown icmp predicate %q", predStr)
	}
	parts := splitTopLevel(rest[sp+1:])
	if len(parts) != 2 {
		return nil, bp.p.errf(i, "malformed icmp")
	}
	x, err := bp.typedValue(i, parts[0])
	if err != nil {
		return nil, err
	}
	y, err := bp.value(i, x.Type(), parts[1])
	if err != nil {
		return nil, err
	}
	return bp.b.CreateICmp(pred, x, y, name), nil
}

func (bp *bodyParser) parsePhi(i int, name, rest string) (Value, error) {
	sp := strings.Index(rest, " ")
	if sp < 0 {
		return nil, bp.p.errf(i, "malformed phi")
	}
	t, err := bp.p.parseType(i, rest[:sp])
	if err != nil {
		return nil, err
	}
	phi := bp.b.CreatePhi(t, name)
	for _, part := range splitTopLevel(rest[sp+1:]) {
		part = strings.TrimSpace(part)
		if !strings.HasPrefix(part, "[") || !strings.HasSuffix(part, "]") {
			return nil, bp.p.errf(i, "malformed phi incoming %q", part)
		}
		inner := splitTopLevel(part[1 : len(part)-1])
		if len(inner) != 2 {
			return nil, bp.p.errf(i, "malformed phi incoming %q", part)
		}
		predName := strings.TrimPrefix(strings.TrimSpace(inner[1]), "%")
		pred, ok := bp.blocks[predName]
		if !ok {
			return nil, bp.p.errf(i, "undefined block %%%s", predName)
		}
		slot := len(phi.Incomings)
		phi.AddIncoming(&Undef{Typ: t}, pred)
		valStr := strings.TrimSpace(inner[0])
		// Loop phis may reference values defined later in the text, so
		// incoming values are resolved after the whole body is parsed.
		line := i
		bp.fixups = append(bp.fixups, func() error {
			v, err := bp.value(line, t, valStr)
			if err != nil {
				return err
			}
			phi.SetIncoming(slot, v)
			return nil
		})
	}
	return phi, nil
}

func (bp *bodyParser) parseCall(i int, name, rest string) (Value, error) {
	at := strings.Index(rest, "@")
	open := strings.Index(rest, "(")
	close := strings.LastIndex(rest, ")")
	if at < 0 || open < at || close < open {
		return nil, bp.p.errf(i, "malformed call")
	}
	callee := bp.p.mod.Func(rest[at+1 : open])
	if callee == nil {
		return nil, bp.p.errf(i, "call to undefined function @%s", rest[at+1:open])
	}
	var args []Value
	for _, as := range splitTopLevel(rest[open+1 : close]) {
		a, err := bp.typedValue(i, as)
		if err != nil {
			return nil, err
		}
		args = append(args, a)
	}
	call := bp.b.CreateCall(callee, args, name)
	if isVoid(callee.Sig.Ret) {
		return nil, nil
	}
	return call, nil
}

func (bp *bodyParser) parseBr(i int, rest string) error {
	parts := splitTopLevel(rest)
	label := func(s string) (*Block, error) {
		s = strings.TrimSpace(s)
		s = strings.TrimPrefix(s, "label ")
		s = strings.TrimPrefix(strings.TrimSpace(s), "%")
		b, ok := bp.blocks[s]
		if !ok {
			return nil, bp.p.errf(i, "undefined block %%%s", s)
		}
		return b, nil
	}
	switch len(parts) {
	case 1:
		dest, err := label(parts[0])
		if err != nil {
			return err
		}
		bp.b.CreateBr(dest)
		return nil
	case 3:
		cond, err := bp.typedValue(i, parts[0])
		if err != nil {
			return err
		}
		then, err := label(parts[1])
		if err != nil {
			return err
		}
		els, err := label(parts[2])
		if err != nil {
			return err
		}
		bp.b.CreateCondBr(cond, then, els)
		return nil
	}
	return bp.p.errf(i, "malformed br")
}

func (bp *bodyParser) parseRet(i int, rest string) error {
	if strings.TrimSpace(rest) == "void" {
		bp.b.CreateRet(nil)
		return nil
	}
	v, err := bp.typedValue(i, rest)
	if err != nil {
		return err
	}
	bp.b.CreateRet(v)
	return nil
}

// splitTopLevel splits on commas that are not nested inside brackets, braces
// or parens.
func splitTopLevel(s string) []string {
	var parts []string
	depth := 0
	start := 0
	for i, r := range s {
		switch r {
		case '[', '{', '(':
			depth++
		case ']', '}', ')':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	last := strings.TrimSpace(s[start:])
	if last != "" {
		parts = append(parts, last)
	}
	return parts
}
