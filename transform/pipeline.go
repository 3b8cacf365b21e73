package transform

// Pipeline bundles an ordered list of top-level transformations with
// the ignoreNoop run flag that Move/Copy's noop-vs-fail rule
// (SourceDoesNotExistError) reads off the Work. It exists so callers
// don't have to hand-roll a Sequence and a Work every time they want
// to run a whole migration's transform list.
type Pipeline struct {
	Transformations []Transformation
	Policy          NoopPolicy
	IgnoreNoop      bool
}

// NewPipeline returns a Pipeline that runs transformations under
// policy, with IgnoreNoop initially false.
func NewPipeline(policy NoopPolicy, transformations ...Transformation) *Pipeline {
	return &Pipeline{Transformations: transformations, Policy: policy}
}

// Run executes the pipeline's transformations, in order, against a
// fresh TreeState rooted at checkoutDir.
func (p *Pipeline) Run(checkoutDir string, console Console) (Outcome, error) {
	w := &Work{
		CheckoutDir: checkoutDir,
		Console:     console,
		Labels:      map[string][]string{},
		IgnoreNoop:  p.IgnoreNoop,
	}
	return p.asSequence().Transform(w)
}

// RunWork executes the pipeline against a caller-prepared Work,
// letting callers inspect/mutate Message and Labels afterward.
func (p *Pipeline) RunWork(w *Work) (Outcome, error) {
	w.IgnoreNoop = p.IgnoreNoop
	return p.asSequence().Transform(w)
}

// CanReverse reports whether every transformation in the pipeline can
// be reversed, letting callers validate a workflow before running it.
func (p *Pipeline) CanReverse() bool {
	return p.asSequence().CanReverse()
}

// Reverse returns a Pipeline that undoes this one.
func (p *Pipeline) Reverse() (*Pipeline, error) {
	r, err := p.asSequence().Reverse()
	if err != nil {
		return nil, err
	}
	return &Pipeline{Transformations: r.(*sequence).children, Policy: p.Policy, IgnoreNoop: p.IgnoreNoop}, nil
}

func (p *Pipeline) asSequence() *sequence {
	return &sequence{children: p.Transformations, policy: p.Policy}
}
