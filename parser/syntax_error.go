package parser

import (
	"github.com/quill-lang/quill/frontend/ast"
	"github.com/quill-lang/quill/frontend/qerr"
)

func newSyntaxError(at ast.Range, msg string) qerr.QuillError {
	return qerr.New(qerr.NewSyntax{
		Positioner:    at,
		ParserMessage: msg,
	})
}
