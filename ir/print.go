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
	"fmt"
	"io"
	"sort"
	"strings"
)

// WriteTo prints the module in its textual form.
func (m *Module) WriteTo(w io.Writer) (int64, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "module %q\n", m.Name)

	names := make([]string, 0, len(m.Structs))
	for name := range m.Structs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		st := m.Structs[name]
		fields := make([]string, len(st.Fields))
		for i, f := range st.Fields {
			fields[i] = f.String()
		}
		fmt.Fprintf(&sb, "\n%%%s = type { %s }\n", name, strings.Join(fields, ", "))
	}

	for _, g := range m.Globals {
		if g.Init != nil {
			fmt.Fprintf(&sb, "\n@%s = global %s %d\n", g.Name, g.Elem, g.Init.V)
		} else {
			fmt.Fprintf(&sb, "\n@%s = global %s\n", g.Name, g.Elem)
		}
	}

	for _, f := range m.Funcs {
		sb.WriteString("\n")
		writeFunc(&sb, f)
	}

	n, err := io.WriteString(w, sb.String())
	return int64(n), err
}

// String returns the module's textual form.
func (m *Module) String() string {
	var sb strings.Builder
	m.WriteTo(&sb)
	return sb.String()
}

func writeFunc(sb *strings.Builder, f *Function) {
	params := make([]string, len(f.Params))
	for i, p := range f.Params {
		params[i] = fmt.Sprintf("%s %s", p.Typ, p.Ident())
	}
	if f.IsDeclaration() {
		fmt.Fprintf(sb, "declare %s @%s(%s)\n", f.Sig.Ret, f.Name, strings.Join(params, ", "))
		return
	}
	fmt.Fprintf(sb, "define %s @%s(%s) {\n", f.Sig.Ret, f.Name, strings.Join(params, ", "))
	for i, b := range f.Blocks {
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(sb, "%s:\n", b.Name)
		for _, inst := range b.Instrs {
			fmt.Fprintf(sb, "  %s\n", inst.String())
		}
	}
	sb.WriteString("}\n")
}

// String returns the function's textual form.
func (f *Function) String() string {
	var sb strings.Builder
	writeFunc(&sb, f)
	return sb.String()
}
