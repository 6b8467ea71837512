// Package parse implements the recursive-descent parser of spec.md §4.1:
// a sequence of named component definitions plus an optional trailing
// anonymous expression, each built against a shared expression bank and
// name-to-handle symbol table.
//
// Grounded on original_source/compiler/src/parser.rs (Parser, SymbolTable,
// ParseError, and the token-pattern-matching grammar dispatch), extended
// with the schedule clause spec.md §4.1/§6 add beyond that snapshot.
package parse

import (
	"fmt"

	"indexc/pkg/ast"
	"indexc/pkg/lex"
)

// ErrorKind discriminates the two parse-error shapes spec.md §4.1/§4.5
// define.
type ErrorKind int

const (
	InvalidToken ErrorKind = iota
	UnrecognizedSymbol
)

// Error is the structured parse error spec.md §7 requires: a kind plus
// context, never an exception used for control flow.
type Error struct {
	Kind     ErrorKind
	Expected string // set when Kind == InvalidToken
	Name     string // set when Kind == UnrecognizedSymbol
	Pos      int
}

func (e *Error) Error() string {
	switch e.Kind {
	case InvalidToken:
		return fmt.Sprintf("parse: invalid token at %d: expected %s", e.Pos, e.Expected)
	case UnrecognizedSymbol:
		return fmt.Sprintf("parse: unrecognized symbol %q at %d", e.Name, e.Pos)
	default:
		return "parse: unknown error"
	}
}

// Result is the output of a successful Parse: the named components in
// source order, the trailing anonymous expression if present, and the
// shared bank both reference.
type Result struct {
	Named  []ast.NamedExpr
	Final  ast.ExprRef
	HasFinal bool
	Bank   *ast.ExprBank
}

type parser struct {
	tokens []lex.Token
	pos    int
	syms   map[string]ast.ExprRef
	bank   *ast.ExprBank
}

// Parse tokenizes and parses src in one call.
func Parse(src string) (*Result, error) {
	tokens, err := lex.Lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens, syms: map[string]ast.ExprRef{}, bank: &ast.ExprBank{}}
	return p.parseFile()
}

func (p *parser) peek(offset int) lex.Token {
	i := p.pos + offset
	if i >= len(p.tokens) {
		return lex.Token{Kind: lex.EOF}
	}
	return p.tokens[i]
}

func (p *parser) next() lex.Token {
	t := p.peek(0)
	if p.pos < len(p.tokens)-1 || t.Kind != lex.EOF {
		p.pos++
	}
	return t
}

func (p *parser) invalidToken(expected string) error {
	return &Error{Kind: InvalidToken, Expected: expected, Pos: p.peek(0).Pos}
}

func (p *parser) parseFile() (*Result, error) {
	var named []ast.NamedExpr

	for p.peek(0).Kind == lex.Symbol && p.peek(1).Kind == lex.Colon {
		ne, err := p.parseNamedExpr()
		if err != nil {
			return nil, err
		}
		named = append(named, ne)
	}

	if p.peek(0).Kind == lex.EOF {
		return &Result{Named: named, Bank: p.bank}, nil
	}

	ref, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	return &Result{Named: named, Final: ref, HasFinal: true, Bank: p.bank}, nil
}

func (p *parser) parseNamedExpr() (ast.NamedExpr, error) {
	identTok := p.next()
	if identTok.Kind != lex.Symbol {
		return ast.NamedExpr{}, p.invalidToken("Symbol")
	}
	if p.next().Kind != lex.Colon {
		return ast.NamedExpr{}, p.invalidToken("Colon")
	}
	ref, err := p.parseExpr()
	if err != nil {
		return ast.NamedExpr{}, err
	}
	p.syms[identTok.Text] = ref
	return ast.NamedExpr{Ident: identTok.Text, Ref: ref}, nil
}

// parseExpr dispatches on a combinator (SYMBOL "." SYMBOL) vs an index
// expression (scalarop "~" ...), matching parser.rs's two-token peek.
func (p *parser) parseExpr() (ast.ExprRef, error) {
	if p.peek(0).Kind == lex.Symbol && p.peek(1).Kind == lex.Dot {
		return p.parseCombinator()
	}
	return p.parseIndexExpr()
}

func (p *parser) parseCombinator() (ast.ExprRef, error) {
	leftTok := p.next() // Symbol
	leftRef, ok := p.syms[leftTok.Text]
	if !ok {
		return 0, &Error{Kind: UnrecognizedSymbol, Name: leftTok.Text, Pos: leftTok.Pos}
	}
	if p.next().Kind != lex.Dot {
		return 0, p.invalidToken("Dot")
	}
	rightTok := p.next()
	if rightTok.Kind != lex.Symbol {
		return 0, p.invalidToken("Symbol")
	}
	rightRef, ok := p.syms[rightTok.Text]
	if !ok {
		return 0, &Error{Kind: UnrecognizedSymbol, Name: rightTok.Text, Pos: rightTok.Pos}
	}
	return p.bank.Push(ast.Expr{Combinator: &ast.Combinator{Left: leftRef, Right: rightRef}}), nil
}

// rawOp is the pre-resolution shape of a parsed scalarop: we don't yet
// know the output index, so '>' can't be told apart as UnaryMax vs Relu
// until parseIndexExpr sees Out (see resolveUnary).
type rawOp struct {
	binary   *ast.BinaryExpr
	unaryOp  rune
	unaryIn  ast.Symbol
	isNoOp   bool
	noOpIn   ast.Symbol
}

func (p *parser) parseIndexExpr() (ast.ExprRef, error) {
	raw, err := p.parseScalarOp()
	if err != nil {
		return 0, err
	}
	if p.next().Kind != lex.Squiggle {
		return 0, p.invalidToken("Squiggle")
	}
	outTok := p.next()
	if outTok.Kind != lex.Symbol {
		return 0, p.invalidToken("Symbol")
	}
	out := ast.Symbol(outTok.Text)

	schedule := ast.Schedule{}
	if p.peek(0).Kind == lex.Bar {
		schedule, err = p.parseSchedule()
		if err != nil {
			return 0, err
		}
	}

	op, err := raw.resolve(out)
	if err != nil {
		return 0, err
	}

	return p.bank.Push(ast.Expr{Index: &ast.IndexExpr{Op: op, Out: out, Schedule: schedule}}), nil
}

func (raw rawOp) resolve(out ast.Symbol) (ast.ScalarOp, error) {
	switch {
	case raw.binary != nil:
		return ast.ScalarOp{Binary: raw.binary}, nil
	case raw.isNoOp:
		return ast.ScalarOp{NoOp: &ast.NoOpExpr{In0: raw.noOpIn}}, nil
	default:
		return resolveUnary(raw.unaryOp, raw.unaryIn, out), nil
	}
}

// resolveUnary decides, for the single ambiguous operator ('>', shared by
// the reduction Max and the element-wise Relu per spec.md §3), which
// concrete op was meant: if any axis of the input is absent from the
// output, the op is a reduction; otherwise it is element-wise. '+' and '*'
// are unambiguous (there is no element-wise '+' or '*'); '-','/','^','$'
// are unambiguous element-wise ops.
func resolveUnary(opChar rune, in0, out ast.Symbol) ast.ScalarOp {
	switch opChar {
	case '+':
		return ast.ScalarOp{UnaryReduction: &ast.UnaryReductionExpr{Kind: ast.Accum, In0: in0}}
	case '*':
		return ast.ScalarOp{UnaryReduction: &ast.UnaryReductionExpr{Kind: ast.Prod, In0: in0}}
	case '>':
		if hasReductionAxis(string(in0), string(out)) {
			return ast.ScalarOp{UnaryReduction: &ast.UnaryReductionExpr{Kind: ast.UnaryMax, In0: in0}}
		}
		return ast.ScalarOp{Elementwise: &ast.ElementwiseExpr{Kind: ast.Relu, In0: in0}}
	case '-':
		return ast.ScalarOp{Elementwise: &ast.ElementwiseExpr{Kind: ast.Neg, In0: in0}}
	case '/':
		return ast.ScalarOp{Elementwise: &ast.ElementwiseExpr{Kind: ast.Recip, In0: in0}}
	case '^':
		return ast.ScalarOp{Elementwise: &ast.ElementwiseExpr{Kind: ast.Exp, In0: in0}}
	case '$':
		return ast.ScalarOp{Elementwise: &ast.ElementwiseExpr{Kind: ast.Log, In0: in0}}
	default:
		panic(fmt.Sprintf("parse: unreachable unary operator %q", opChar))
	}
}

func hasReductionAxis(in0, out string) bool {
	outSet := make(map[rune]bool, len(out))
	for _, c := range out {
		outSet[c] = true
	}
	for _, c := range in0 {
		if !outSet[c] {
			return true
		}
	}
	return false
}

func (p *parser) parseScalarOp() (rawOp, error) {
	switch {
	case p.peek(0).Kind == lex.Operator && p.peek(0).Op != '\'':
		return p.parseUnaryOp()
	case p.peek(0).Kind == lex.Symbol && p.peek(1).Kind == lex.Operator:
		return p.parseBinaryOp()
	case p.peek(0).Kind == lex.Symbol && p.peek(1).Kind == lex.Squiggle:
		tok := p.next()
		return rawOp{isNoOp: true, noOpIn: ast.Symbol(tok.Text)}, nil
	default:
		return rawOp{}, p.invalidToken("scalarop: [Operator]<Any>, [Symbol][Operator], [Symbol]<Squiggle>")
	}
}

func (p *parser) parseBinaryOp() (rawOp, error) {
	leftTok := p.next()
	opTok := p.next()
	if opTok.Kind != lex.Operator {
		return rawOp{}, p.invalidToken("Operator")
	}
	rightTok := p.next()
	if rightTok.Kind != lex.Symbol {
		return rawOp{}, p.invalidToken("Symbol")
	}

	var kind ast.BinaryKind
	switch opTok.Op {
	case '+':
		kind = ast.Add
	case '*':
		kind = ast.Mul
	case '>':
		kind = ast.BinaryMax
	default:
		return rawOp{}, p.invalidToken("binary Operator (+, *, >)")
	}

	return rawOp{binary: &ast.BinaryExpr{Kind: kind, In0: ast.Symbol(leftTok.Text), In1: ast.Symbol(rightTok.Text)}}, nil
}

func (p *parser) parseUnaryOp() (rawOp, error) {
	opTok := p.next()
	inTok := p.next()
	if inTok.Kind != lex.Symbol {
		return rawOp{}, p.invalidToken("Symbol")
	}
	return rawOp{unaryOp: opTok.Op, unaryIn: ast.Symbol(inTok.Text)}, nil
}

// parseSchedule consumes "| splits | loop_order" (spec.md §4.1/§6).
func (p *parser) parseSchedule() (ast.Schedule, error) {
	if p.next().Kind != lex.Bar {
		return ast.Schedule{}, p.invalidToken("Bar")
	}
	splits, err := p.parseSplits()
	if err != nil {
		return ast.Schedule{}, err
	}
	if p.next().Kind != lex.Bar {
		return ast.Schedule{}, p.invalidToken("Bar")
	}
	order, err := p.parseLoopOrder()
	if err != nil {
		return ast.Schedule{}, err
	}
	return ast.Schedule{Splits: splits, LoopOrder: order}, nil
}

// parseSplits consumes a comma-separated list of `AXIS {":" INT}` entries.
func (p *parser) parseSplits() (map[rune][]int, error) {
	splits := map[rune][]int{}
	for p.peek(0).Kind == lex.Symbol {
		axisTok := p.next()
		if len(axisTok.Text) != 1 {
			return nil, p.invalidToken("single-character axis")
		}
		axis := rune(axisTok.Text[0])

		var factors []int
		for p.peek(0).Kind == lex.Colon {
			p.next()
			intTok := p.next()
			if intTok.Kind != lex.Int {
				return nil, p.invalidToken("Int")
			}
			factors = append(factors, intTok.IntValue)
		}
		splits[axis] = factors

		if p.peek(0).Kind == lex.Comma {
			p.next()
			continue
		}
		break
	}
	return splits, nil
}

// parseLoopOrder consumes a sequence of `AXIS{'}` tokens; the number of
// trailing primes on an axis token is its rank (0 primes = rank 0).
func (p *parser) parseLoopOrder() ([]ast.LoopOrderEntry, error) {
	var order []ast.LoopOrderEntry
	for p.peek(0).Kind == lex.Symbol {
		axisTok := p.next()
		if len(axisTok.Text) != 1 {
			return nil, p.invalidToken("single-character axis")
		}
		axis := rune(axisTok.Text[0])

		rank := 0
		for p.peek(0).Kind == lex.Operator && p.peek(0).Op == '\'' {
			p.next()
			rank++
		}
		order = append(order, ast.LoopOrderEntry{Axis: axis, Rank: rank})
	}
	return order, nil
}
