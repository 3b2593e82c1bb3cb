package parser

import "fmt"

type tokenKind int

const (
	tEOF tokenKind = iota
	tNewline
	tIndent
	tDedent
	tIdent
	tNumber
	tString

	// keywords
	tDef
	tIf
	tElif
	tElse
	tWhile
	tReturn
	tPrint
	tPass
	tTrue
	tFalse
	tAnd
	tOr
	tNot

	// punctuation
	tLParen
	tRParen
	tLBrack
	tRBrack
	tComma
	tColon
	tArrow
	tAssign
	tPlus
	tMinus
	tStar
	tSlash
	tPercent
	tEq
	tNe
	tLt
	tLe
	tGt
	tGe
	tBang
	tPipe
)

var keywords = map[string]tokenKind{
	"def":    tDef,
	"if":     tIf,
	"elif":   tElif,
	"else":   tElse,
	"while":  tWhile,
	"return": tReturn,
	"print":  tPrint,
	"pass":   tPass,
	"True":   tTrue,
	"False":  tFalse,
	"and":    tAnd,
	"or":     tOr,
	"not":    tNot,
}

var kindNames = map[tokenKind]string{
	tEOF:     "end of file",
	tNewline: "newline",
	tIndent:  "indent",
	tDedent:  "dedent",
	tIdent:   "identifier",
	tNumber:  "number",
	tString:  "string",
	tLParen:  "'('",
	tRParen:  "')'",
	tLBrack:  "'['",
	tRBrack:  "']'",
	tComma:   "','",
	tColon:   "':'",
	tArrow:   "'->'",
	tAssign:  "'='",
	tPlus:    "'+'",
	tMinus:   "'-'",
	tStar:    "'*'",
	tSlash:   "'/'",
	tPercent: "'%'",
	tEq:      "'=='",
	tNe:      "'!='",
	tLt:      "'<'",
	tLe:      "'<='",
	tGt:      "'>'",
	tGe:      "'>='",
	tBang:    "'!'",
	tPipe:    "'|'",
}

func (k tokenKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	for word, kind := range keywords {
		if kind == k {
			return "'" + word + "'"
		}
	}
	return fmt.Sprintf("token(%d)", int(k))
}

type token struct {
	kind tokenKind
	text string
	// byte offsets of the token in the source, end exclusive
	offset, end int
}

func (t token) String() string {
	switch t.kind {
	case tIdent, tNumber:
		return fmt.Sprintf("%v %q", t.kind, t.text)
	}
	return t.kind.String()
}
