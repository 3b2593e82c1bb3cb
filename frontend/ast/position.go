package ast

import (
	"fmt"
	"go/token"
	"hash/maphash"
)

// Positioner is anything that spans a stretch of a token.FileSet
type Positioner interface {
	Pos() token.Pos
	End() token.Pos // first position after the node
}

// Range is the half-open span [PosStart, PosEnd) of a node
type Range struct {
	PosStart token.Pos
	PosEnd   token.Pos
}

var rangeSeed = maphash.MakeSeed()

func (r Range) Hash() uint64 {
	var h maphash.Hash
	h.SetSeed(rangeSeed)
	_, _ = fmt.Fprintf(&h, "%d:%d", r.PosStart, r.PosEnd)
	return h.Sum64()
}

func (r Range) Pos() token.Pos { return r.PosStart }
func (r Range) End() token.Pos { return r.PosEnd }

func (r Range) String() string {
	if r.PosEnd <= r.PosStart {
		return fmt.Sprint(r.PosStart)
	}
	return fmt.Sprintf("%v-%v", r.PosStart, r.PosEnd)
}

// Locate renders the start of p as file:line:col, or "?" when it cannot be resolved
func Locate(fset *token.FileSet, p Positioner) string {
	if fset == nil || p == nil || !p.Pos().IsValid() {
		return "?"
	}
	return fset.Position(p.Pos()).String()
}
