package parser

import (
	"fmt"
	gotoken "go/token"
	"log/slog"
	"strconv"
	"strings"

	"github.com/quill-lang/quill/frontend/ast"
	"github.com/quill-lang/quill/frontend/qerr"
)

// bailout unwinds the parser to the enclosing function declaration after a syntax error
type bailout struct{}

type parser struct {
	file   *gotoken.File
	src    string
	tokens []token
	pos    int
	errors *qerr.Errors
	logger *slog.Logger
}

func (p *parser) peek() token {
	return p.tokens[p.pos]
}

func (p *parser) peekKind() tokenKind {
	return p.tokens[p.pos].kind
}

func (p *parser) advance() token {
	tok := p.tokens[p.pos]
	if tok.kind != tEOF {
		p.pos++
	}
	return tok
}

func (p *parser) accept(kind tokenKind) bool {
	if p.peekKind() == kind {
		p.advance()
		return true
	}
	return false
}

func (p *parser) expect(kind tokenKind, context string) token {
	tok := p.peek()
	if tok.kind != kind {
		p.failf(tok, "expected %v %s, found %v", kind, context, tok)
	}
	return p.advance()
}

func (p *parser) failf(at token, format string, args ...any) {
	p.errorAt(at.offset, at.end, fmt.Sprintf(format, args...))
	panic(bailout{})
}

func (p *parser) errorAt(start, end int, msg string) {
	p.errors = p.errors.With(newSyntaxError(p.rangeOf(start, end), msg))
}

func (p *parser) posOf(offset int) gotoken.Pos {
	if offset > p.file.Size() {
		offset = p.file.Size()
	}
	return p.file.Pos(offset)
}

func (p *parser) rangeOf(start, end int) ast.Range {
	return ast.Range{PosStart: p.posOf(start), PosEnd: p.posOf(end)}
}

func (p *parser) rangeFrom(start token) ast.Range {
	prev := start
	if p.pos > 0 {
		prev = p.tokens[p.pos-1]
	}
	return p.rangeOf(start.offset, prev.end)
}

func (p *parser) parseProgram(name string) *ast.Program {
	prog := &ast.Program{Name: name, Range: p.rangeOf(0, len(p.src))}
	for p.peekKind() != tEOF {
		switch p.peekKind() {
		case tNewline, tDedent:
			p.advance()
		case tDef:
			if fn := p.parseFunctionRecovering(); fn != nil {
				prog.Functions = append(prog.Functions, fn)
			}
		default:
			tok := p.peek()
			p.errorAt(tok.offset, tok.end, fmt.Sprintf("expected 'def' at top level, found %v", tok))
			p.synchronize()
		}
	}
	return prog
}

// parseFunctionRecovering parses one function, and on a syntax error skips to the next
// top-level 'def' so that later functions are still parsed
func (p *parser) parseFunctionRecovering() (fn *ast.Function) {
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(bailout); !ok {
				panic(r)
			}
			p.logger.Debug("recovering from syntax error", "at", p.peek())
			p.synchronize()
			fn = nil
		}
	}()
	return p.parseFunction()
}

// synchronize skips tokens until a 'def' in the first column
func (p *parser) synchronize() {
	for {
		tok := p.peek()
		if tok.kind == tEOF {
			return
		}
		if tok.kind == tDef && (tok.offset == 0 || p.src[tok.offset-1] == '\n') {
			return
		}
		p.advance()
	}
}

func (p *parser) parseFunction() *ast.Function {
	start := p.expect(tDef, "")
	name := p.expect(tIdent, "after 'def'")
	fn := &ast.Function{Name: name.text}

	p.expect(tLParen, "after function name")
	for p.peekKind() != tRParen {
		paramTok := p.expect(tIdent, "in parameter list")
		param := ast.Param{Name: paramTok.text}
		if p.accept(tColon) {
			param.Annotation = p.annotationUntil(tComma, tRParen)
		}
		param.Range = p.rangeFrom(paramTok)
		fn.Params = append(fn.Params, param)
		if !p.accept(tComma) {
			break
		}
	}
	p.expect(tRParen, "to close parameter list")
	if p.accept(tArrow) {
		fn.ReturnAnnotation = p.annotationUntil(tColon)
	}
	p.expect(tColon, "after function signature")
	fn.Body = p.parseSuite()
	fn.Range = p.rangeFrom(start)
	return fn
}

// annotationUntil returns the raw source text of a type annotation, ending before the
// first of stops found outside brackets
func (p *parser) annotationUntil(stops ...tokenKind) string {
	first := p.peek()
	last := first
	consumed := false
	depth := 0
scan:
	for {
		tok := p.peek()
		switch tok.kind {
		case tNewline, tEOF, tIndent, tDedent:
			p.failf(tok, "unterminated type annotation")
		case tLParen, tLBrack:
			depth++
		case tRParen, tRBrack:
			if depth == 0 {
				break scan
			}
			depth--
		default:
			if depth == 0 && containsKind(stops, tok.kind) {
				break scan
			}
		}
		last = p.advance()
		consumed = true
	}
	if !consumed {
		p.failf(first, "expected a type annotation, found %v", first)
	}
	return strings.TrimSpace(p.src[first.offset:last.end])
}

func containsKind(kinds []tokenKind, k tokenKind) bool {
	for _, kind := range kinds {
		if kind == k {
			return true
		}
	}
	return false
}

// parseSuite parses the body of a compound statement:
// either an indented block or a single simple statement on the same line
func (p *parser) parseSuite() *ast.Block {
	start := p.peek()
	if !p.accept(tNewline) {
		stmt := p.parseSimpleStatement()
		p.expectEndOfStatement()
		return &ast.Block{Range: p.rangeFrom(start), Stmts: []ast.Stmt{stmt}}
	}
	p.expect(tIndent, "to start an indented block")
	block := &ast.Block{}
	for p.peekKind() != tDedent && p.peekKind() != tEOF {
		if p.accept(tNewline) {
			continue
		}
		if stmt := p.parseStatement(); stmt != nil {
			block.Stmts = append(block.Stmts, stmt)
		}
	}
	p.expect(tDedent, "to end the indented block")
	block.Range = p.rangeFrom(start)
	return block
}

func (p *parser) expectEndOfStatement() {
	if p.peekKind() == tEOF || p.peekKind() == tDedent {
		return
	}
	p.expect(tNewline, "at end of statement")
}

func (p *parser) parseStatement() ast.Stmt {
	switch p.peekKind() {
	case tIf:
		return p.parseIf()
	case tWhile:
		start := p.advance()
		cond := p.parseExpr()
		p.expect(tColon, "after while condition")
		body := p.parseSuite()
		return &ast.While{Range: p.rangeFrom(start), Cond: cond, Body: body}
	}
	stmt := p.parseSimpleStatement()
	p.expectEndOfStatement()
	return stmt
}

// parseIf parses if/elif/else, turning every elif into an If nested in the else branch
func (p *parser) parseIf() ast.Stmt {
	start := p.advance()
	cond := p.parseExpr()
	p.expect(tColon, "after if condition")
	stmt := &ast.If{Cond: cond, Then: p.parseSuite()}
	switch p.peekKind() {
	case tElif:
		stmt.Else = p.parseIf()
	case tElse:
		p.advance()
		p.expect(tColon, "after else")
		stmt.Else = p.parseSuite()
	}
	stmt.Range = p.rangeFrom(start)
	return stmt
}

func (p *parser) parseSimpleStatement() ast.Stmt {
	start := p.peek()
	switch start.kind {
	case tReturn:
		p.advance()
		ret := &ast.Return{}
		switch p.peekKind() {
		case tNewline, tEOF, tDedent:
		default:
			ret.Value = p.parseExpr()
		}
		ret.Range = p.rangeFrom(start)
		return ret
	case tPrint:
		p.advance()
		p.expect(tLParen, "after print")
		value := p.parseExpr()
		p.expect(tRParen, "to close print")
		return &ast.Print{Range: p.rangeFrom(start), Value: value}
	case tPass:
		p.advance()
		return &ast.Block{Range: p.rangeFrom(start)}
	case tIdent:
		if p.tokens[p.pos+1].kind == tAssign {
			p.advance()
			p.advance()
			value := p.parseExpr()
			return &ast.Assignment{Range: p.rangeFrom(start), Name: start.text, Value: value}
		}
	}
	x := p.parseExpr()
	return &ast.ExprStmt{Range: p.rangeFrom(start), X: x}
}

func (p *parser) parseExpr() ast.Expr {
	return p.parseOr()
}

func (p *parser) binary(start token, op gotoken.Token, lhs, rhs ast.Expr) ast.Expr {
	return &ast.Binary{Range: p.rangeFrom(start), Operator: op, Lhs: lhs, Rhs: rhs}
}

func (p *parser) parseOr() ast.Expr {
	start := p.peek()
	lhs := p.parseAnd()
	for p.accept(tOr) {
		lhs = p.binary(start, gotoken.LOR, lhs, p.parseAnd())
	}
	return lhs
}

func (p *parser) parseAnd() ast.Expr {
	start := p.peek()
	lhs := p.parseNot()
	for p.accept(tAnd) {
		lhs = p.binary(start, gotoken.LAND, lhs, p.parseNot())
	}
	return lhs
}

func (p *parser) parseNot() ast.Expr {
	start := p.peek()
	if p.accept(tNot) {
		operand := p.parseNot()
		return &ast.Unary{Range: p.rangeFrom(start), Operator: gotoken.NOT, Operand: operand}
	}
	return p.parseComparison()
}

var comparisonOps = map[tokenKind]gotoken.Token{
	tLt: gotoken.LSS,
	tLe: gotoken.LEQ,
	tGt: gotoken.GTR,
	tGe: gotoken.GEQ,
	tEq: gotoken.EQL,
	tNe: gotoken.NEQ,
}

func (p *parser) parseComparison() ast.Expr {
	start := p.peek()
	lhs := p.parseAdditive()
	for {
		op, ok := comparisonOps[p.peekKind()]
		if !ok {
			return lhs
		}
		p.advance()
		lhs = p.binary(start, op, lhs, p.parseAdditive())
	}
}

func (p *parser) parseAdditive() ast.Expr {
	start := p.peek()
	lhs := p.parseTerm()
	for {
		var op gotoken.Token
		switch p.peekKind() {
		case tPlus:
			op = gotoken.ADD
		case tMinus:
			op = gotoken.SUB
		default:
			return lhs
		}
		p.advance()
		lhs = p.binary(start, op, lhs, p.parseTerm())
	}
}

func (p *parser) parseTerm() ast.Expr {
	start := p.peek()
	lhs := p.parseUnary()
	for {
		var op gotoken.Token
		switch p.peekKind() {
		case tStar:
			op = gotoken.MUL
		case tSlash:
			op = gotoken.QUO
		case tPercent:
			op = gotoken.REM
		default:
			return lhs
		}
		p.advance()
		lhs = p.binary(start, op, lhs, p.parseUnary())
	}
}

func (p *parser) parseUnary() ast.Expr {
	start := p.peek()
	var op gotoken.Token
	switch start.kind {
	case tMinus:
		op = gotoken.SUB
	case tBang:
		op = gotoken.NOT
	default:
		return p.parsePrimary()
	}
	p.advance()
	operand := p.parseUnary()
	return &ast.Unary{Range: p.rangeFrom(start), Operator: op, Operand: operand}
}

func (p *parser) parsePrimary() ast.Expr {
	tok := p.advance()
	switch tok.kind {
	case tNumber:
		value, err := strconv.ParseFloat(tok.text, 64)
		if err != nil {
			p.errorAt(tok.offset, tok.end, fmt.Sprintf("invalid number literal %q", tok.text))
		}
		return &ast.Number{Range: p.rangeFrom(tok), Value: value}
	case tTrue:
		return &ast.Number{Range: p.rangeFrom(tok), Value: 1}
	case tFalse:
		return &ast.Number{Range: p.rangeFrom(tok), Value: 0}
	case tString:
		value, err := unquote(tok.text)
		if err != nil {
			p.errorAt(tok.offset, tok.end, err.Error())
		}
		return &ast.String{Range: p.rangeFrom(tok), Value: value}
	case tIdent:
		if !p.accept(tLParen) {
			return &ast.Variable{Range: p.rangeFrom(tok), Name: tok.text}
		}
		call := &ast.Call{Callee: tok.text}
		for p.peekKind() != tRParen {
			call.Args = append(call.Args, p.parseExpr())
			if !p.accept(tComma) {
				break
			}
		}
		p.expect(tRParen, "to close argument list")
		call.Range = p.rangeFrom(tok)
		return call
	case tPrint:
		// print used as an expression calls the builtin
		p.expect(tLParen, "after print")
		arg := p.parseExpr()
		p.expect(tRParen, "to close print")
		return &ast.Call{Range: p.rangeFrom(tok), Callee: "print", Args: []ast.Expr{arg}}
	case tLParen:
		inner := p.parseExpr()
		p.expect(tRParen, "to close parenthesised expression")
		return inner
	}
	p.failf(tok, "expected an expression, found %v", tok)
	return nil
}

// unquote resolves the escapes of a single or double quoted string literal
func unquote(lit string) (string, error) {
	if len(lit) < 2 || lit[len(lit)-1] != lit[0] {
		return "", fmt.Errorf("unterminated string literal")
	}
	body := lit[1 : len(lit)-1]
	sb := &strings.Builder{}
	for i := 0; i < len(body); i++ {
		c := body[i]
		if c != '\\' {
			sb.WriteByte(c)
			continue
		}
		i++
		if i >= len(body) {
			return "", fmt.Errorf("string literal ends in a backslash")
		}
		switch body[i] {
		case 'n':
			sb.WriteByte('\n')
		case 't':
			sb.WriteByte('\t')
		case 'r':
			sb.WriteByte('\r')
		case '0':
			sb.WriteByte(0)
		case '\\', '"', '\'':
			sb.WriteByte(body[i])
		default:
			return "", fmt.Errorf("unknown escape sequence \\%c", body[i])
		}
	}
	return sb.String(), nil
}
