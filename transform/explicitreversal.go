package transform

import "fmt"

// explicitReversal pairs a forward transformation with a caller-given
// reverse, bypassing CanReverse inference entirely. It is always
// reversible by construction.
type explicitReversal struct {
	forward, reverse Transformation
}

// ExplicitReversal returns a Transformation that runs forward on
// Transform and reverse on Reverse. It is the only way to give Remove,
// or any other catalog entry with no automatic inverse, a counterpart.
func ExplicitReversal(forward, reverse Transformation) Transformation {
	return &explicitReversal{forward: forward, reverse: reverse}
}

func (e *explicitReversal) Describe() string {
	return fmt.Sprintf("explicit_reversal(%s, %s)", e.forward.Describe(), e.reverse.Describe())
}

func (e *explicitReversal) CanReverse() bool { return true }

func (e *explicitReversal) Reverse() (Transformation, error) {
	return &explicitReversal{forward: e.reverse, reverse: e.forward}, nil
}

func (e *explicitReversal) Transform(w *Work) (Outcome, error) {
	return e.forward.Transform(w)
}
