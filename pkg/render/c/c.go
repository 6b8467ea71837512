// Package c renders block.Function IR into C99 source text — the one
// concrete Renderer this repo ships for the external rendering contract
// spec.md §4.1 leaves open.
//
// Grounded on original_source/compiler's renderer role (spec.md §4.1 calls
// the renderer an external collaborator the original project fills
// concretely for its own native target; this package fills the same role
// for C instead) and on the teacher's pkg/compiler/codegen.go for the Go
// idiom: a struct wrapping a strings.Builder and an indent-aware
// line(format, args...) helper.
package c

import (
	"fmt"
	"sort"
	"strings"

	"indexc/pkg/block"
)

// Renderer emits C99 source for a single block.Function.
type Renderer struct {
	out    strings.Builder
	indent int
}

// New returns a ready-to-use Renderer.
func New() *Renderer { return &Renderer{} }

func (r *Renderer) FileExtension() string { return "c" }

func (r *Renderer) line(format string, args ...any) {
	r.out.WriteString(strings.Repeat("    ", r.indent))
	fmt.Fprintf(&r.out, format, args...)
	r.out.WriteByte('\n')
}

// Render emits fn's signature and body as a standalone C99 translation
// unit, including the <stdlib.h>/<math.h> headers the emitted calls need.
func (r *Renderer) Render(fn *block.Function) (string, error) {
	r.out.Reset()
	r.indent = 0

	r.line("#include <stdlib.h>")
	r.line("#include <math.h>")
	r.line("")

	if err := r.renderFunction(fn); err != nil {
		return "", err
	}

	return r.out.String(), nil
}

// renderFunction renders fn as a standalone C function. C99 has no nested
// functions, so any block.Function statements in fn.Body (pkg/lower emits
// one per interior graph node, spec.md §4.4.2 steps 6-8) are hoisted out
// and rendered first, as sibling top-level definitions that fn's own body
// then reaches through a Call.
func (r *Renderer) renderFunction(fn *block.Function) error {
	var exec []block.Statement
	for _, s := range fn.Body {
		if helper, ok := s.(block.Function); ok {
			if err := r.renderFunction(&helper); err != nil {
				return err
			}
			r.line("")
			continue
		}
		exec = append(exec, s)
	}

	dimParams := collectArrayDims(exec)
	sig, err := r.signature(fn, dimParams)
	if err != nil {
		return err
	}
	r.line("%s {", sig)
	r.indent++
	if err := r.renderStatements(exec); err != nil {
		return err
	}
	r.indent--
	r.line("}")
	return nil
}

func (r *Renderer) signature(fn *block.Function, dimParams []string) (string, error) {
	parts := make([]string, 0, len(fn.Params)+len(dimParams))
	for _, p := range fn.Params {
		ctype, err := cType(p.Type)
		if err != nil {
			return "", err
		}
		parts = append(parts, fmt.Sprintf("%s %s", ctype, p.Ident))
	}
	for _, name := range dimParams {
		parts = append(parts, fmt.Sprintf("int %s", name))
	}
	return fmt.Sprintf("void %s(%s)", fn.Name, strings.Join(parts, ", ")), nil
}

func cType(t block.Type) (string, error) {
	switch t.Kind {
	case block.IntKind:
		return "int", nil
	case block.ArrayKind, block.ArrayRefKind:
		return "float *", nil
	default:
		return "", fmt.Errorf("render/c: unknown type kind %v", t.Kind)
	}
}

func (r *Renderer) renderStatements(stmts []block.Statement) error {
	for _, s := range stmts {
		if err := r.renderStatement(s); err != nil {
			return err
		}
	}
	return nil
}

func (r *Renderer) renderStatement(s block.Statement) error {
	switch v := s.(type) {
	case block.Declaration:
		return r.renderDeclaration(v)
	case block.Assignment:
		target, err := r.expr(v.Target)
		if err != nil {
			return err
		}
		value, err := r.expr(v.Value)
		if err != nil {
			return err
		}
		r.line("%s = %s;", target, value)
		return nil
	case block.Loop:
		bound, err := r.expr(v.Bound)
		if err != nil {
			return err
		}
		r.line("for (int %s = 0; %s < %s; %s++) {", v.Index, v.Index, bound, v.Index)
		r.indent++
		if err := r.renderStatements(v.Body); err != nil {
			return err
		}
		r.indent--
		r.line("}")
		return nil
	case block.Skip:
		bound, err := r.expr(v.Bound)
		if err != nil {
			return err
		}
		r.line("if (%s >= %s) continue;", v.Index, bound)
		return nil
	case block.Return:
		value, err := r.expr(v.Value)
		if err != nil {
			return err
		}
		r.line("return %s;", value)
		return nil
	case block.Call:
		args := make([]string, len(v.Args))
		for i, a := range v.Args {
			s, err := r.expr(a)
			if err != nil {
				return err
			}
			args[i] = s
		}
		r.line("%s(%s);", v.Name, strings.Join(args, ", "))
		return nil
	case block.Function:
		// renderFunction hoists every Function in a function's own Body
		// before calling renderStatements on what remains; a Function
		// nested inside a Loop/Skip body instead would mean pkg/lower put
		// a helper somewhere other than its parent's top-level Body.
		return fmt.Errorf("render/c: Function statement found outside a function's top-level body")
	default:
		return fmt.Errorf("render/c: unknown statement type %T", s)
	}
}

func (r *Renderer) renderDeclaration(d block.Declaration) error {
	if alloc, ok := d.Init.(block.Alloc); ok {
		dims := make([]string, len(alloc.Dims))
		for i, dim := range alloc.Dims {
			s, err := r.expr(dim)
			if err != nil {
				return err
			}
			dims[i] = s
		}
		r.line("float *%s = (float *)malloc(sizeof(float) * (%s));", d.Ident, strings.Join(dims, " * "))
		return nil
	}

	ctype, err := cType(d.Type)
	if err != nil {
		return err
	}
	init, err := r.expr(d.Init)
	if err != nil {
		return err
	}
	r.line("%s %s = %s;", ctype, d.Ident, init)
	return nil
}

func (r *Renderer) expr(e block.Expr) (string, error) {
	switch v := e.(type) {
	case block.Int:
		return fmt.Sprintf("%d", v.Value), nil
	case block.Ident:
		return v.Name, nil
	case block.ArrayDim:
		return arrayDimIdent(v), nil
	case block.Indexed:
		return fmt.Sprintf("%gf", v.Value), nil
	case block.Ref:
		idx, err := r.expr(v.Index)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s[%s]", v.Ident, idx), nil
	case block.Op:
		return r.op(v)
	case block.Alloc:
		return "", fmt.Errorf("render/c: Alloc may only appear as a Declaration initializer")
	default:
		return "", fmt.Errorf("render/c: unknown expression type %T", e)
	}
}

func (r *Renderer) op(o block.Op) (string, error) {
	operands := make([]string, len(o.Operands))
	for i, operand := range o.Operands {
		s, err := r.expr(operand)
		if err != nil {
			return "", err
		}
		operands[i] = s
	}

	if len(operands) == 1 {
		x := operands[0]
		switch o.Char {
		case '-':
			return fmt.Sprintf("(-(%s))", x), nil
		case '/':
			return fmt.Sprintf("(1.0f / (%s))", x), nil
		case '^':
			return fmt.Sprintf("expf(%s)", x), nil
		case '$':
			return fmt.Sprintf("logf(%s)", x), nil
		case '>':
			return fmt.Sprintf("fmaxf(%s, 0.0f)", x), nil
		default:
			return "", fmt.Errorf("render/c: unknown unary op %q", o.Char)
		}
	}

	if len(operands) != 2 {
		return "", fmt.Errorf("render/c: op %q has %d operands, want 1 or 2", o.Char, len(operands))
	}
	a, b := operands[0], operands[1]
	switch o.Char {
	case '+':
		return fmt.Sprintf("(%s + %s)", a, b), nil
	case '*':
		return fmt.Sprintf("(%s * %s)", a, b), nil
	case '-':
		return fmt.Sprintf("(%s - %s)", a, b), nil
	case '/':
		return fmt.Sprintf("(%s / %s)", a, b), nil
	case '>':
		return fmt.Sprintf("fmaxf(%s, %s)", a, b), nil
	default:
		return "", fmt.Errorf("render/c: unknown binary op %q", o.Char)
	}
}

func arrayDimIdent(d block.ArrayDim) string {
	return fmt.Sprintf("%s_dim%d", d.Ident, d.Axis)
}

// collectArrayDims walks stmts for every ArrayDim reference and returns the
// distinct "<ident>_dim<axis>" parameter names in sorted order, so the
// function signature can declare them as int parameters alongside the
// array pointers they describe.
func collectArrayDims(stmts []block.Statement) []string {
	seen := map[string]bool{}
	var walkExpr func(block.Expr)
	walkExpr = func(e block.Expr) {
		switch v := e.(type) {
		case block.ArrayDim:
			seen[arrayDimIdent(v)] = true
		case block.Ref:
			walkExpr(v.Index)
		case block.Op:
			for _, o := range v.Operands {
				walkExpr(o)
			}
		case block.Alloc:
			for _, d := range v.Dims {
				walkExpr(d)
			}
		}
	}
	var walkStmt func(block.Statement)
	walkStmt = func(s block.Statement) {
		switch v := s.(type) {
		case block.Declaration:
			walkExpr(v.Init)
		case block.Assignment:
			walkExpr(v.Target)
			walkExpr(v.Value)
		case block.Loop:
			walkExpr(v.Bound)
			for _, b := range v.Body {
				walkStmt(b)
			}
		case block.Skip:
			walkExpr(v.Bound)
		case block.Return:
			walkExpr(v.Value)
		case block.Call:
			for _, a := range v.Args {
				walkExpr(a)
			}
		}
	}
	for _, s := range stmts {
		walkStmt(s)
	}

	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
