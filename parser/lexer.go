package parser

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/quill-lang/quill/util"
	"github.com/smasher164/xid"
)

const tabWidth = 8

type lexError struct {
	offset int
	msg    string
}

// lexer splits source into tokens, turning leading whitespace into
// tIndent and tDedent tokens the way Python does
type lexer struct {
	src     string
	offset  int
	tokens  []token
	errors  []lexError
	indents util.Stack[int]
	// depth of open brackets; newlines inside brackets are not significant
	nesting int
}

func lex(src string) ([]token, []lexError) {
	l := &lexer{src: src}
	l.indents.Push(0)
	l.run()
	return l.tokens, l.errors
}

func (l *lexer) emit(kind tokenKind, start int) {
	l.tokens = append(l.tokens, token{kind: kind, text: l.src[start:l.offset], offset: start, end: l.offset})
}

func (l *lexer) errorf(offset int, msg string) {
	l.errors = append(l.errors, lexError{offset: offset, msg: msg})
}

func (l *lexer) lastKind() tokenKind {
	if len(l.tokens) == 0 {
		return tNewline
	}
	return l.tokens[len(l.tokens)-1].kind
}

func (l *lexer) run() {
	atLineStart := true
	for l.offset < len(l.src) {
		if atLineStart && l.nesting == 0 {
			atLineStart = false
			if !l.lineIndentation() {
				atLineStart = true
				continue
			}
		}
		c := l.src[l.offset]
		switch {
		case c == '\n':
			l.offset++
			if l.nesting == 0 {
				if l.lastKind() != tNewline {
					l.emit(tNewline, l.offset-1)
				}
				atLineStart = true
			}
		case c == ' ' || c == '\t' || c == '\r':
			l.offset++
		case c == '#':
			l.skipComment()
		case c == '\\' && strings.HasPrefix(l.src[l.offset:], "\\\n"):
			// explicit line joining
			l.offset += 2
		case isDigit(c) || (c == '.' && l.offset+1 < len(l.src) && isDigit(l.src[l.offset+1])):
			l.number()
		case c == '"' || c == '\'':
			l.string(c)
		default:
			r, size := utf8.DecodeRuneInString(l.src[l.offset:])
			if r == '_' || xid.Start(r) {
				l.identifier()
				continue
			}
			if !l.punctuation() {
				l.errorf(l.offset, "unexpected character "+strconv.QuoteRune(r))
				l.offset += size
			}
		}
	}
	if l.lastKind() != tNewline {
		l.emit(tNewline, l.offset)
	}
	for l.indents.Len() > 1 {
		_, _ = l.indents.Pop()
		l.emit(tDedent, l.offset)
	}
	l.emit(tEOF, l.offset)
}

// lineIndentation measures the indentation of the line starting at l.offset and emits
// indent or dedent tokens for it. Blank and comment-only lines are consumed entirely
// and reported as false.
func (l *lexer) lineIndentation() bool {
	width := 0
	i := l.offset
	for ; i < len(l.src); i++ {
		switch l.src[i] {
		case ' ':
			width++
			continue
		case '\t':
			width = (width/tabWidth + 1) * tabWidth
			continue
		case '\r':
			continue
		}
		break
	}
	if i >= len(l.src) || l.src[i] == '\n' || l.src[i] == '#' {
		l.offset = i
		if i < len(l.src) && l.src[i] == '#' {
			l.skipComment()
		}
		if l.offset < len(l.src) {
			// the newline of a blank line
			l.offset++
		}
		return false
	}
	l.offset = i
	current, _ := l.indents.Peek()
	switch {
	case width > current:
		l.indents.Push(width)
		l.emit(tIndent, i)
	case width < current:
		for width < current {
			_, _ = l.indents.Pop()
			l.emit(tDedent, i)
			current, _ = l.indents.Peek()
		}
		if width != current {
			l.errorf(i, "unindent does not match any outer indentation level")
			l.indents.Push(width)
		}
	}
	return true
}

func (l *lexer) skipComment() {
	for l.offset < len(l.src) && l.src[l.offset] != '\n' {
		l.offset++
	}
}

func (l *lexer) identifier() {
	start := l.offset
	for l.offset < len(l.src) {
		r, size := utf8.DecodeRuneInString(l.src[l.offset:])
		if r != '_' && !xid.Continue(r) {
			break
		}
		l.offset += size
	}
	if kind, ok := keywords[l.src[start:l.offset]]; ok {
		l.emit(kind, start)
		return
	}
	l.emit(tIdent, start)
}

func (l *lexer) number() {
	start := l.offset
	for l.offset < len(l.src) && isDigit(l.src[l.offset]) {
		l.offset++
	}
	if l.offset < len(l.src) && l.src[l.offset] == '.' {
		l.offset++
		for l.offset < len(l.src) && isDigit(l.src[l.offset]) {
			l.offset++
		}
	}
	if l.offset < len(l.src) && (l.src[l.offset] == 'e' || l.src[l.offset] == 'E') {
		exp := l.offset + 1
		if exp < len(l.src) && (l.src[exp] == '+' || l.src[exp] == '-') {
			exp++
		}
		if exp < len(l.src) && isDigit(l.src[exp]) {
			l.offset = exp
			for l.offset < len(l.src) && isDigit(l.src[l.offset]) {
				l.offset++
			}
		}
	}
	l.emit(tNumber, start)
}

func (l *lexer) string(quote byte) {
	start := l.offset
	l.offset++
	for l.offset < len(l.src) {
		switch l.src[l.offset] {
		case '\\':
			l.offset += 2
			continue
		case '\n':
			l.errorf(start, "unterminated string literal")
			l.emit(tString, start)
			return
		case quote:
			l.offset++
			l.emit(tString, start)
			return
		}
		l.offset++
	}
	if l.offset > len(l.src) {
		l.offset = len(l.src)
	}
	l.errorf(start, "unterminated string literal")
	l.emit(tString, start)
}

var twoCharPunctuation = map[string]tokenKind{
	"->": tArrow,
	"==": tEq,
	"!=": tNe,
	"<=": tLe,
	">=": tGe,
	"&&": tAnd,
	"||": tOr,
}

var oneCharPunctuation = map[byte]tokenKind{
	'(': tLParen,
	')': tRParen,
	'[': tLBrack,
	']': tRBrack,
	',': tComma,
	':': tColon,
	'=': tAssign,
	'+': tPlus,
	'-': tMinus,
	'*': tStar,
	'/': tSlash,
	'%': tPercent,
	'<': tLt,
	'>': tGt,
	'!': tBang,
	'|': tPipe,
}

func (l *lexer) punctuation() bool {
	start := l.offset
	if l.offset+2 <= len(l.src) {
		if kind, ok := twoCharPunctuation[l.src[l.offset:l.offset+2]]; ok {
			l.offset += 2
			l.emit(kind, start)
			return true
		}
	}
	kind, ok := oneCharPunctuation[l.src[l.offset]]
	if !ok {
		return false
	}
	switch kind {
	case tLParen, tLBrack:
		l.nesting++
	case tRParen, tRBrack:
		if l.nesting > 0 {
			l.nesting--
		}
	}
	l.offset++
	l.emit(kind, start)
	return true
}

func isDigit(c byte) bool {
	return '0' <= c && c <= '9'
}
