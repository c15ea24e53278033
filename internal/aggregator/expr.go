package aggregator

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// The formula language is deliberately small: elementwise + - * /,
// unary minus, parentheses, numeric literals, and column references.
// References are bare identifiers or backtick-quoted names (for columns
// containing spaces or punctuation). Names are matched as whole tokens
// against a symbol table, never by textual substitution, so a short
// column name can never match inside a longer one.

type tokenKind int

const (
	tokNumber tokenKind = iota
	tokIdent
	tokPlus
	tokMinus
	tokStar
	tokSlash
	tokLParen
	tokRParen
	tokEOF
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

func tokenize(input string) ([]token, error) {
	var tokens []token
	runes := []rune(input)
	i := 0
	for i < len(runes) {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '+':
			tokens = append(tokens, token{tokPlus, "+", i})
			i++
		case r == '-':
			tokens = append(tokens, token{tokMinus, "-", i})
			i++
		case r == '*':
			tokens = append(tokens, token{tokStar, "*", i})
			i++
		case r == '/':
			tokens = append(tokens, token{tokSlash, "/", i})
			i++
		case r == '(':
			tokens = append(tokens, token{tokLParen, "(", i})
			i++
		case r == ')':
			tokens = append(tokens, token{tokRParen, ")", i})
			i++
		case r == '`':
			start := i + 1
			j := start
			for j < len(runes) && runes[j] != '`' {
				j++
			}
			if j >= len(runes) {
				return nil, fmt.Errorf("unterminated backtick at position %d", i)
			}
			name := strings.TrimSpace(string(runes[start:j]))
			if name == "" {
				return nil, fmt.Errorf("empty column reference at position %d", i)
			}
			tokens = append(tokens, token{tokIdent, name, i})
			i = j + 1
		case unicode.IsDigit(r) || r == '.':
			j := i
			for j < len(runes) && (unicode.IsDigit(runes[j]) || runes[j] == '.') {
				j++
			}
			// Exponent suffix, e.g. 1.5e-3.
			if j < len(runes) && (runes[j] == 'e' || runes[j] == 'E') {
				k := j + 1
				if k < len(runes) && (runes[k] == '+' || runes[k] == '-') {
					k++
				}
				if k < len(runes) && unicode.IsDigit(runes[k]) {
					for k < len(runes) && unicode.IsDigit(runes[k]) {
						k++
					}
					j = k
				}
			}
			text := string(runes[i:j])
			if _, err := strconv.ParseFloat(text, 64); err != nil {
				return nil, fmt.Errorf("invalid number %q at position %d", text, i)
			}
			tokens = append(tokens, token{tokNumber, text, i})
			i = j
		case unicode.IsLetter(r) || r == '_':
			j := i
			for j < len(runes) && (unicode.IsLetter(runes[j]) || unicode.IsDigit(runes[j]) || runes[j] == '_') {
				j++
			}
			tokens = append(tokens, token{tokIdent, string(runes[i:j]), i})
			i = j
		default:
			return nil, fmt.Errorf("unexpected character %q at position %d", r, i)
		}
	}
	tokens = append(tokens, token{tokEOF, "", len(runes)})
	return tokens, nil
}

// exprNode is a parsed formula node evaluated columnwise.
type exprNode interface {
	eval(rows int, resolve resolver) ([]float64, error)
}

// resolver maps a column reference to its numeric vector.
type resolver func(name string) ([]float64, bool)

type numberNode struct{ value float64 }

func (n numberNode) eval(rows int, _ resolver) ([]float64, error) {
	out := make([]float64, rows)
	for i := range out {
		out[i] = n.value
	}
	return out, nil
}

type identNode struct{ name string }

func (n identNode) eval(rows int, resolve resolver) ([]float64, error) {
	values, ok := resolve(n.name)
	if !ok {
		return nil, fmt.Errorf("unknown column %q", n.name)
	}
	if len(values) != rows {
		return nil, fmt.Errorf("column %q has %d values, expected %d", n.name, len(values), rows)
	}
	// Copy so callers can mutate the result without touching the
	// resolver's backing column.
	out := make([]float64, rows)
	copy(out, values)
	return out, nil
}

type unaryNode struct {
	op      tokenKind
	operand exprNode
}

func (n unaryNode) eval(rows int, resolve resolver) ([]float64, error) {
	values, err := n.operand.eval(rows, resolve)
	if err != nil {
		return nil, err
	}
	if n.op == tokMinus {
		out := make([]float64, rows)
		for i, v := range values {
			out[i] = -v
		}
		return out, nil
	}
	return values, nil
}

type binaryNode struct {
	op          tokenKind
	left, right exprNode
}

func (n binaryNode) eval(rows int, resolve resolver) ([]float64, error) {
	left, err := n.left.eval(rows, resolve)
	if err != nil {
		return nil, err
	}
	right, err := n.right.eval(rows, resolve)
	if err != nil {
		return nil, err
	}
	out := make([]float64, rows)
	for i := range out {
		switch n.op {
		case tokPlus:
			out[i] = left[i] + right[i]
		case tokMinus:
			out[i] = left[i] - right[i]
		case tokStar:
			out[i] = left[i] * right[i]
		case tokSlash:
			// IEEE semantics here; non-finite results are neutralized
			// by the fill step after evaluation.
			out[i] = left[i] / right[i]
		}
	}
	return out, nil
}

type parser struct {
	tokens []token
	pos    int
}

func (p *parser) current() token { return p.tokens[p.pos] }

func (p *parser) advance() token {
	t := p.tokens[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

// parseFormula parses a formula string into an expression tree.
func parseFormula(input string) (exprNode, error) {
	tokens, err := tokenize(input)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens}
	node, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if t := p.current(); t.kind != tokEOF {
		return nil, fmt.Errorf("unexpected token %q at position %d", t.text, t.pos)
	}
	return node, nil
}

func (p *parser) parseExpr() (exprNode, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for {
		t := p.current()
		if t.kind != tokPlus && t.kind != tokMinus {
			return left, nil
		}
		p.advance()
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: t.kind, left: left, right: right}
	}
}

func (p *parser) parseTerm() (exprNode, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		t := p.current()
		if t.kind != tokStar && t.kind != tokSlash {
			return left, nil
		}
		p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: t.kind, left: left, right: right}
	}
}

func (p *parser) parseUnary() (exprNode, error) {
	t := p.current()
	if t.kind == tokMinus || t.kind == tokPlus {
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return unaryNode{op: t.kind, operand: operand}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (exprNode, error) {
	t := p.advance()
	switch t.kind {
	case tokNumber:
		v, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q: %w", t.text, err)
		}
		return numberNode{value: v}, nil
	case tokIdent:
		return identNode{name: t.text}, nil
	case tokLParen:
		node, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if closing := p.advance(); closing.kind != tokRParen {
			return nil, fmt.Errorf("missing closing parenthesis at position %d", closing.pos)
		}
		return node, nil
	case tokEOF:
		return nil, fmt.Errorf("unexpected end of formula")
	default:
		return nil, fmt.Errorf("unexpected token %q at position %d", t.text, t.pos)
	}
}

// evalFormula parses and evaluates a formula over rows-length column
// vectors supplied by resolve.
func evalFormula(formula string, rows int, resolve resolver) ([]float64, error) {
	node, err := parseFormula(formula)
	if err != nil {
		return nil, err
	}
	return node.eval(rows, resolve)
}
