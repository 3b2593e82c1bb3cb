package parser

import (
	gotoken "go/token"
	"log/slog"

	"github.com/quill-lang/quill/frontend/ast"
	"github.com/quill-lang/quill/frontend/qerr"
	"github.com/quill-lang/quill/internal/log"
)

// ParseToAST parses the given source code into an ast.Program.
// The file is registered in fset so that positions in the returned
// program and errors can be resolved to file:line:col.
//
// A syntax error in one function does not prevent the following
// functions from being parsed: the parser recovers at the next
// top-level 'def'.
func ParseToAST(fset *gotoken.FileSet, filename string, src []byte) (*ast.Program, *qerr.Errors) {
	file := fset.AddFile(filename, -1, len(src))
	file.SetLinesForContent(src)

	p := &parser{
		file:   file,
		src:    string(src),
		logger: log.DefaultLogger.With("section", "parser"),
	}
	tokens, lexErrs := lex(p.src)
	for _, e := range lexErrs {
		p.errorAt(e.offset, e.offset, e.msg)
	}
	p.tokens = tokens

	prog := p.parseProgram(filename)
	p.logger.Debug("parsed program", "functions", len(prog.Functions), slog.Any("errors", p.errors))
	return prog, p.errors
}
