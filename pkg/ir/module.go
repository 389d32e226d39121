package ir

import (
	"fmt"
	"strings"

	"github.com/ddptensor/ddpt/pkg/support/xslices"
)

// Module is a compilation unit: a named bundle of functions, the unit the
// JIT engine compiles and caches as one piece (spec.md §4.3).
type Module struct {
	Name      string
	Functions []*Function
}

// NewModule creates an empty module.
func NewModule(name string) *Module {
	return &Module{Name: name}
}

// AddFunction appends f to the module.
func (m *Module) AddFunction(f *Function) {
	m.Functions = append(m.Functions, f)
}

// Lookup returns the named function, or nil if absent.
func (m *Module) Lookup(name string) *Function {
	for _, f := range m.Functions {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// CanonicalText renders a deterministic textual form of the module: same
// structure, same bytes, regardless of map iteration order or pointer
// identity. The JIT engine's cache key is sha1(CanonicalText()) (spec.md
// §4.3's Testable Property 3, "same canonical module text -> same cache
// key"), so this function must never depend on anything but the module's
// own declared structure.
func (m *Module) CanonicalText() string {
	var b strings.Builder
	fmt.Fprintf(&b, "module %s {\n", m.Name)
	for _, f := range m.Functions {
		writeFunction(&b, f)
	}
	b.WriteString("}\n")
	return b.String()
}

func writeFunction(b *strings.Builder, f *Function) {
	fmt.Fprintf(b, "  func %s(", f.Name)
	for i, a := range f.Args {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(b, "%s: %s", a.String(), a.typ)
	}
	b.WriteString(") -> (")
	for i, t := range f.ResultTypes {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(t.String())
	}
	b.WriteString(") {\n")
	for _, op := range f.Ops {
		writeOp(b, op)
	}
	b.WriteString("  }\n")
}

func writeOp(b *strings.Builder, op Op) {
	b.WriteString("    ")
	if len(op.Results) > 0 {
		for i, r := range op.Results {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(r.String())
		}
		b.WriteString(" = ")
	}
	b.WriteString(op.Name)
	b.WriteString("(")
	for i, o := range op.Operands {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(o.String())
	}
	b.WriteString(")")
	if len(op.Attrs) > 0 {
		b.WriteString(" {")
		keys := xslices.SortedKeys(op.Attrs)
		for i, k := range keys {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(b, "%s = %v", k, op.Attrs[k])
		}
		b.WriteString("}")
	}
	if len(op.Results) > 0 {
		fmt.Fprintf(b, " : %s", op.Results[0].Type())
	}
	b.WriteString("\n")
}
