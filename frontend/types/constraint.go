package types

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/davecgh/go-spew/spew"
	"github.com/quill-lang/quill/internal/log"
)

// ErrSolverNonConvergence is returned if constraint solving exceeds its iteration bound
var ErrSolverNonConvergence = errors.New("constraint solving did not converge")

var solverLogger = log.DefaultLogger.With("section", "types.solver")

type ConstraintKind int

const (
	Equals ConstraintKind = iota
	Subtype
	Implements
	Numeric
	Comparable
)

func (k ConstraintKind) String() string {
	switch k {
	case Equals:
		return "="
	case Subtype:
		return "<:"
	case Implements:
		return "implements"
	case Numeric:
		return "numeric"
	case Comparable:
		return "comparable"
	}
	return fmt.Sprintf("ConstraintKind(%d)", int(k))
}

// Constraint relates Left to Right. Right is nil for the unary kinds Numeric and Comparable.
type Constraint struct {
	Kind  ConstraintKind
	Left  Type
	Right Type
}

func (c Constraint) String() string {
	if c.Right == nil {
		return fmt.Sprintf("%v %v", c.Kind, typeString(c.Left))
	}
	return fmt.Sprintf("%v %v %v", typeString(c.Left), c.Kind, typeString(c.Right))
}

// ConstraintSet is the set of constraints collected for one call site or generic declaration
type ConstraintSet struct {
	constraints []Constraint
}

func (cs *ConstraintSet) Add(kind ConstraintKind, left, right Type) {
	cs.constraints = append(cs.constraints, Constraint{Kind: kind, Left: left, Right: right})
}

func (cs *ConstraintSet) Constraints() []Constraint {
	return cs.constraints
}

func (cs *ConstraintSet) Len() int {
	return len(cs.constraints)
}

// Solve binds generic parameters in in until no binding changes.
//
// An Equals constraint with exactly one side an unbound Generic binds it to the other
// side once that side is concrete. When no Equals constraint makes progress, Numeric and
// Comparable constraints default their still-unbound Generic to int.
// Every round binds at least one new name or ends the loop, so at most one round per
// distinct parameter name (plus a final round) is run.
//
// After solving, every constraint is verified against the bindings; violations are
// returned joined into one error.
func (cs *ConstraintSet) Solve(in *Instantiator) error {
	maxRounds := len(cs.genericNames()) + 1
	for round := 0; ; round++ {
		if round > maxRounds {
			return ErrSolverNonConvergence
		}
		if cs.bindEquals(in) {
			continue
		}
		if cs.applyDefaults(in) {
			continue
		}
		break
	}
	if solverLogger.Enabled(context.Background(), slog.LevelDebug) {
		solverLogger.Debug("solved constraints", "constraints", cs.constraints, "bindings", spew.Sdump(in.Bindings()))
	}
	return cs.verify(in)
}

func (cs *ConstraintSet) bindEquals(in *Instantiator) (changed bool) {
	for _, c := range cs.constraints {
		if c.Kind != Equals {
			continue
		}
		left, right := in.Instantiate(c.Left), in.Instantiate(c.Right)
		leftGeneric, leftUnbound := left.(*Generic)
		rightGeneric, rightUnbound := right.(*Generic)
		switch {
		case leftUnbound && rightUnbound:
			// both sides still open: nothing to learn yet
		case leftUnbound && right != nil && !HasGenerics(right):
			in.Bind(leftGeneric.Name, right)
			changed = true
		case rightUnbound && left != nil && !HasGenerics(left):
			in.Bind(rightGeneric.Name, left)
			changed = true
		}
	}
	return changed
}

func (cs *ConstraintSet) applyDefaults(in *Instantiator) (changed bool) {
	for _, c := range cs.constraints {
		if c.Kind != Numeric && c.Kind != Comparable {
			continue
		}
		if g, ok := in.Instantiate(c.Left).(*Generic); ok {
			in.Bind(g.Name, Int)
			changed = true
		}
	}
	return changed
}

func (cs *ConstraintSet) verify(in *Instantiator) error {
	var errs []error
	for _, c := range cs.constraints {
		left, right := in.Instantiate(c.Left), in.Instantiate(c.Right)
		if left == nil || HasGenerics(left) || (right != nil && HasGenerics(right)) {
			continue
		}
		ok := true
		switch c.Kind {
		case Equals:
			ok = left.Equals(right) || isWildcard(left) || isWildcard(right)
		case Subtype:
			ok = right != nil && right.IsAssignableFrom(left)
		case Implements:
			iface, isIface := right.(*Interface)
			ok = isIface && iface.IsAssignableFrom(left)
		case Numeric:
			ok = IsNumeric(left) || isWildcard(left)
		case Comparable:
			ok = isComparable(left)
		}
		if !ok {
			errs = append(errs, fmt.Errorf("unsatisfied constraint %v", Constraint{Kind: c.Kind, Left: left, Right: right}))
		}
	}
	return errors.Join(errs...)
}

func (cs *ConstraintSet) genericNames() map[string]struct{} {
	names := make(map[string]struct{})
	collect := func(t Type) bool {
		if g, ok := t.(*Generic); ok {
			names[g.Name] = struct{}{}
		}
		return true
	}
	for _, c := range cs.constraints {
		Walk(c.Left, collect)
		Walk(c.Right, collect)
	}
	return names
}

func isComparable(t Type) bool {
	switch t.Kind() {
	case KindInt, KindFloat, KindBool, KindString, KindUnknown, KindError:
		return true
	}
	return false
}
