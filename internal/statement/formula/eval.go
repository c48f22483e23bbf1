// Package formula evaluates template line expressions against a derived
// symbol table and orders formula lines by their references.
package formula

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Context supplies the symbol maps an expression may reference, in lookup
// priority order: line values, event totals, previous-period values, custom
// mappings, balance-sheet context, cross-statement values.
type Context struct {
	EventValues          map[string]float64
	LineValues           map[string]float64
	PreviousPeriodValues map[string]float64
	CustomMappings       map[string]float64
	BalanceSheet         map[string]float64
	CrossStatementValues map[string]float64
}

func (c Context) lookup(name string) (float64, bool) {
	for _, m := range []map[string]float64{
		c.LineValues,
		c.EventValues,
		c.PreviousPeriodValues,
		c.CustomMappings,
		c.BalanceSheet,
		c.CrossStatementValues,
	} {
		if m == nil {
			continue
		}
		if v, ok := m[name]; ok {
			return v, true
		}
	}
	return 0, false
}

// Result carries the evaluated value plus any symbols that resolved to 0
// because no map contained them. Callers surface those as warnings.
type Result struct {
	Value      float64
	Unresolved []string
}

// Evaluate parses and evaluates expr against ctx. Unresolved symbols and
// division by zero degrade to 0 rather than aborting; only a malformed
// expression returns an error.
func Evaluate(expr string, ctx Context) (Result, error) {
	tokens, err := tokenize(expr)
	if err != nil {
		return Result{}, err
	}
	p := &parser{tokens: tokens, ctx: ctx}
	value, err := p.parseExpr()
	if err != nil {
		return Result{}, err
	}
	if p.pos != len(p.tokens) {
		return Result{}, fmt.Errorf("formula: unexpected token %q", p.tokens[p.pos].text)
	}
	return Result{Value: value, Unresolved: p.unresolved}, nil
}

type tokenKind int

const (
	tokNumber tokenKind = iota
	tokIdent
	tokOp
	tokLParen
	tokRParen
)

type token struct {
	kind tokenKind
	text string
}

func tokenize(expr string) ([]token, error) {
	var tokens []token
	runes := []rune(expr)
	i := 0
	for i < len(runes) {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '(':
			tokens = append(tokens, token{tokLParen, "("})
			i++
		case r == ')':
			tokens = append(tokens, token{tokRParen, ")"})
			i++
		case r == '+' || r == '-' || r == '*' || r == '/':
			tokens = append(tokens, token{tokOp, string(r)})
			i++
		case unicode.IsDigit(r) || r == '.':
			start := i
			for i < len(runes) && (unicode.IsDigit(runes[i]) || runes[i] == '.') {
				i++
			}
			text := string(runes[start:i])
			if _, err := strconv.ParseFloat(text, 64); err != nil {
				return nil, fmt.Errorf("formula: invalid number %q", text)
			}
			tokens = append(tokens, token{tokNumber, text})
		case unicode.IsLetter(r) || r == '_':
			start := i
			for i < len(runes) && (unicode.IsLetter(runes[i]) || unicode.IsDigit(runes[i]) || runes[i] == '_') {
				i++
			}
			tokens = append(tokens, token{tokIdent, string(runes[start:i])})
		default:
			return nil, fmt.Errorf("formula: unexpected character %q", string(r))
		}
	}
	if len(tokens) == 0 {
		return nil, fmt.Errorf("formula: empty expression")
	}
	return tokens, nil
}

type parser struct {
	tokens     []token
	pos        int
	ctx        Context
	unresolved []string
}

func (p *parser) peek() (token, bool) {
	if p.pos >= len(p.tokens) {
		return token{}, false
	}
	return p.tokens[p.pos], true
}

func (p *parser) parseExpr() (float64, error) {
	value, err := p.parseTerm()
	if err != nil {
		return 0, err
	}
	for {
		tok, ok := p.peek()
		if !ok || tok.kind != tokOp || (tok.text != "+" && tok.text != "-") {
			return value, nil
		}
		p.pos++
		rhs, err := p.parseTerm()
		if err != nil {
			return 0, err
		}
		if tok.text == "+" {
			value += rhs
		} else {
			value -= rhs
		}
	}
}

func (p *parser) parseTerm() (float64, error) {
	value, err := p.parseFactor()
	if err != nil {
		return 0, err
	}
	for {
		tok, ok := p.peek()
		if !ok || tok.kind != tokOp || (tok.text != "*" && tok.text != "/") {
			return value, nil
		}
		p.pos++
		rhs, err := p.parseFactor()
		if err != nil {
			return 0, err
		}
		if tok.text == "*" {
			value *= rhs
		} else if rhs == 0 {
			// Degrade instead of producing Inf; a zero denominator means the
			// underlying data point is absent.
			value = 0
		} else {
			value /= rhs
		}
	}
}

func (p *parser) parseFactor() (float64, error) {
	tok, ok := p.peek()
	if !ok {
		return 0, fmt.Errorf("formula: unexpected end of expression")
	}
	switch tok.kind {
	case tokNumber:
		p.pos++
		v, _ := strconv.ParseFloat(tok.text, 64)
		return v, nil
	case tokIdent:
		p.pos++
		v, found := p.ctx.lookup(tok.text)
		if !found {
			p.unresolved = append(p.unresolved, tok.text)
			return 0, nil
		}
		return v, nil
	case tokLParen:
		p.pos++
		v, err := p.parseExpr()
		if err != nil {
			return 0, err
		}
		next, ok := p.peek()
		if !ok || next.kind != tokRParen {
			return 0, fmt.Errorf("formula: missing closing parenthesis")
		}
		p.pos++
		return v, nil
	case tokOp:
		if tok.text == "-" {
			p.pos++
			v, err := p.parseFactor()
			if err != nil {
				return 0, err
			}
			return -v, nil
		}
		if tok.text == "+" {
			p.pos++
			return p.parseFactor()
		}
	}
	return 0, fmt.Errorf("formula: unexpected token %q", tok.text)
}

// References extracts the identifiers an expression mentions. Used to build
// the dependency graph over line codes; a malformed expression yields nil.
func References(expr string) []string {
	tokens, err := tokenize(expr)
	if err != nil {
		return nil
	}
	seen := make(map[string]struct{})
	var refs []string
	for _, tok := range tokens {
		if tok.kind != tokIdent {
			continue
		}
		if _, ok := seen[tok.text]; ok {
			continue
		}
		seen[tok.text] = struct{}{}
		refs = append(refs, tok.text)
	}
	return refs
}

// NormalizeSymbol trims surrounding whitespace from a symbol name as authored
// on a template.
func NormalizeSymbol(name string) string {
	return strings.TrimSpace(name)
}
