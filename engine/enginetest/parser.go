package enginetest

import (
	"strconv"
	"strings"
)

type evalError struct {
	code int32
}

// parser is a small recursive-descent evaluator over arithmetic and string literals
type parser struct {
	src string
	pos int
}

func (p *parser) parse() (string, *evalError) {
	if strings.HasPrefix(p.src, `"`) {
		if len(p.src) < 2 || !strings.HasSuffix(p.src, `"`) {
			return "", &evalError{codeCompileError}
		}

		return p.src[1 : len(p.src)-1], nil
	}

	n, err := p.expr()
	if err != nil {
		return "", err
	}

	p.skip()
	if p.pos != len(p.src) {
		return "", &evalError{codeCompileError}
	}

	return strconv.FormatFloat(n, 'g', -1, 64), nil
}

func (p *parser) expr() (float64, *evalError) {
	left, err := p.term()
	if err != nil {
		return 0, err
	}

	for {
		switch p.peek() {
		case '+':
			p.pos++
			right, err := p.term()
			if err != nil {
				return 0, err
			}
			left += right
		case '-':
			p.pos++
			right, err := p.term()
			if err != nil {
				return 0, err
			}
			left -= right
		default:
			return left, nil
		}
	}
}

func (p *parser) term() (float64, *evalError) {
	left, err := p.factor()
	if err != nil {
		return 0, err
	}

	for {
		switch p.peek() {
		case '*':
			p.pos++
			right, err := p.factor()
			if err != nil {
				return 0, err
			}
			left *= right
		case '/':
			p.pos++
			right, err := p.factor()
			if err != nil {
				return 0, err
			}
			if right == 0 {
				return 0, &evalError{codeRuntimeError}
			}
			left /= right
		default:
			return left, nil
		}
	}
}

func (p *parser) factor() (float64, *evalError) {
	switch c := p.peek(); {
	case c == '(':
		p.pos++
		n, err := p.expr()
		if err != nil {
			return 0, err
		}
		if p.peek() != ')' {
			return 0, &evalError{codeCompileError}
		}
		p.pos++
		return n, nil
	case c == '-':
		p.pos++
		n, err := p.factor()
		return -n, err
	case c >= '0' && c <= '9' || c == '.':
		start := p.pos
		for p.pos < len(p.src) && (p.src[p.pos] >= '0' && p.src[p.pos] <= '9' || p.src[p.pos] == '.') {
			p.pos++
		}
		n, err := strconv.ParseFloat(p.src[start:p.pos], 64)
		if err != nil {
			return 0, &evalError{codeCompileError}
		}
		return n, nil
	}

	return 0, &evalError{codeCompileError}
}

// peek skips whitespace and returns the next byte, or 0 at the end
func (p *parser) peek() byte {
	p.skip()
	if p.pos >= len(p.src) {
		return 0
	}

	return p.src[p.pos]
}

func (p *parser) skip() {
	for p.pos < len(p.src) && (p.src[p.pos] == ' ' || p.src[p.pos] == '\t' || p.src[p.pos] == '\n') {
		p.pos++
	}
}
