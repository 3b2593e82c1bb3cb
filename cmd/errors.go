package cmd

import (
	"go/token"
	"strings"

	"github.com/quill-lang/quill/frontend/qerr"
)

func formatErrors(errs *qerr.Errors, fset *token.FileSet) string {
	sb := &strings.Builder{}
	for _, quillError := range errs.Errors() {
		sb.WriteString(qerr.FormatWithCodeAndSource(quillError, fset))
		sb.WriteString("\n")
	}
	return sb.String()
}
