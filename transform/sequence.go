package transform

import (
	"fmt"
	"strings"
)

// NoopPolicy governs how a Sequence turns its children's individual
// noop outcomes into its own.
type NoopPolicy int

const (
	// IgnoreNoop lets children noop freely; the Sequence reports
	// success regardless.
	IgnoreNoop NoopPolicy = iota
	// NoopIfAnyNoop short-circuits at the first child noop and reports
	// noop without running the remaining children.
	NoopIfAnyNoop
	// NoopIfAllNoop always runs every child and reports noop only if
	// every one of them did.
	NoopIfAllNoop
	// FailIfAnyNoop turns any child noop into a VoidOperationError.
	FailIfAnyNoop
)

type sequence struct {
	children []Transformation
	policy   NoopPolicy
}

// Sequence runs children in declaration order on a single thread,
// applying policy to their individual noop outcomes. Its reverse runs
// each child's reverse, in reverse order.
func Sequence(policy NoopPolicy, children ...Transformation) Transformation {
	return &sequence{children: children, policy: policy}
}

func (s *sequence) Describe() string {
	parts := make([]string, len(s.children))
	for i, c := range s.children {
		parts[i] = c.Describe()
	}
	return "sequence(" + strings.Join(parts, "; ") + ")"
}

func (s *sequence) CanReverse() bool {
	for _, c := range s.children {
		if !c.CanReverse() {
			return false
		}
	}
	return true
}

func (s *sequence) Reverse() (Transformation, error) {
	reversed := make([]Transformation, len(s.children))
	for i, c := range s.children {
		r, err := c.Reverse()
		if err != nil {
			return nil, err
		}
		reversed[len(s.children)-1-i] = r
	}
	return &sequence{children: reversed, policy: s.policy}, nil
}

func (s *sequence) Transform(w *Work) (Outcome, error) {
	tree := w.Tree()
	allNoop := true
	anyRan := false
	for _, c := range s.children {
		tree.beginChild()
		outcome, err := c.Transform(w)
		if err != nil {
			return Outcome{}, err
		}
		tree.settleAfterChild()
		anyRan = true
		if outcome.Status == StatusNoop {
			switch s.policy {
			case FailIfAnyNoop:
				return Outcome{}, &VoidOperationError{Component: c.Describe(), Reason: outcome.Reason}
			case NoopIfAnyNoop:
				return Noop(outcome.Reason), nil
			case IgnoreNoop, NoopIfAllNoop:
				// keep going
			}
			continue
		}
		allNoop = false
	}
	if s.policy == NoopIfAllNoop && anyRan && allNoop {
		return Noop("every child in the sequence noop'd"), nil
	}
	return Success, nil
}

var _ fmt.Stringer = (*sequence)(nil)

func (s *sequence) String() string { return s.Describe() }
