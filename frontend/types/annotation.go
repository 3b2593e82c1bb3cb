package types

import (
	"fmt"
	"strings"
	"unicode"
)

// ParseAnnotation parses a source type annotation such as "int", "list[float]",
// "tuple[int, str]", "int | str" or "(int, int) -> float"
func ParseAnnotation(src string) (Type, error) {
	p := &annotationParser{src: src}
	p.next()
	t, err := p.parseUnion()
	if err != nil {
		return nil, err
	}
	if p.tok != "" {
		return nil, p.errorf("unexpected %q", p.tok)
	}
	return t, nil
}

type annotationParser struct {
	src string
	pos int
	tok string
}

func (p *annotationParser) errorf(format string, args ...any) error {
	return fmt.Errorf("annotation %q: %s", p.src, fmt.Sprintf(format, args...))
}

// next advances to the next token: an identifier, "->", or a single punctuation character
func (p *annotationParser) next() {
	for p.pos < len(p.src) && p.src[p.pos] == ' ' {
		p.pos++
	}
	if p.pos >= len(p.src) {
		p.tok = ""
		return
	}
	start := p.pos
	r := rune(p.src[p.pos])
	switch {
	case unicode.IsLetter(r) || r == '_':
		for p.pos < len(p.src) && (unicode.IsLetter(rune(p.src[p.pos])) || unicode.IsDigit(rune(p.src[p.pos])) || p.src[p.pos] == '_') {
			p.pos++
		}
	case strings.HasPrefix(p.src[p.pos:], "->"):
		p.pos += 2
	default:
		p.pos++
	}
	p.tok = p.src[start:p.pos]
}

func (p *annotationParser) expect(tok string) error {
	if p.tok != tok {
		if p.tok == "" {
			return p.errorf("expected %q, found end of annotation", tok)
		}
		return p.errorf("expected %q, found %q", tok, p.tok)
	}
	p.next()
	return nil
}

func (p *annotationParser) parseUnion() (Type, error) {
	first, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	if p.tok != "|" {
		return first, nil
	}
	members := []Type{first}
	for p.tok == "|" {
		p.next()
		member, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		members = append(members, member)
	}
	return NewUnion(members...), nil
}

func (p *annotationParser) parseList(closing string) ([]Type, error) {
	var ts []Type
	for p.tok != closing {
		t, err := p.parseUnion()
		if err != nil {
			return nil, err
		}
		ts = append(ts, t)
		if p.tok != "," {
			break
		}
		p.next()
	}
	return ts, p.expect(closing)
}

func (p *annotationParser) parsePrimary() (Type, error) {
	tok := p.tok
	switch tok {
	case "":
		return nil, p.errorf("expected a type, found end of annotation")
	case "(":
		p.next()
		params, err := p.parseList(")")
		if err != nil {
			return nil, err
		}
		if p.tok != "->" {
			if len(params) == 1 {
				return params[0], nil
			}
			return nil, p.errorf("expected '->' after parameter list")
		}
		p.next()
		ret, err := p.parseUnion()
		if err != nil {
			return nil, err
		}
		return NewFunction(ret, params...), nil
	case "int":
		p.next()
		return Int, nil
	case "float":
		p.next()
		return Float, nil
	case "bool":
		p.next()
		return Bool, nil
	case "str", "string":
		p.next()
		return String, nil
	case "void":
		p.next()
		return Void, nil
	case "list":
		p.next()
		if err := p.expect("["); err != nil {
			return nil, err
		}
		elems, err := p.parseList("]")
		if err != nil {
			return nil, err
		}
		if len(elems) != 1 {
			return nil, p.errorf("list takes exactly one element type, got %d", len(elems))
		}
		return NewList(elems[0]), nil
	case "tuple":
		p.next()
		if err := p.expect("["); err != nil {
			return nil, err
		}
		elems, err := p.parseList("]")
		if err != nil {
			return nil, err
		}
		return NewTuple(elems...), nil
	}
	return nil, p.errorf("unknown type %q", tok)
}
