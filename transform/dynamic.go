package transform

// DynamicContext is handed to a DynamicTransform's script. Calling one
// of its outcome-setting methods records that outcome for the step;
// calling none of them defaults to success.
type DynamicContext struct {
	work    *Work
	outcome *Outcome
}

// Success explicitly records a successful outcome (the default if no
// method is called at all).
func (c *DynamicContext) Success() { c.outcome = &Outcome{Status: StatusSuccess} }

// Noop records a noop outcome with reason.
func (c *DynamicContext) Noop(reason string) { c.outcome = &Outcome{Status: StatusNoop, Reason: reason} }

// FailWithNoop records a noop outcome for what would otherwise be a
// failure condition the script has decided to downgrade, e.g. a
// best-effort step whose absence of selection isn't fatal here.
func (c *DynamicContext) FailWithNoop(reason string) { c.Noop(reason) }

// Run invokes another transformation against the same Work and
// records its outcome, returning any error it produced.
func (c *DynamicContext) Run(t Transformation) error {
	outcome, err := t.Transform(c.work)
	if err != nil {
		return err
	}
	c.outcome = &outcome
	return nil
}

// CheckoutDir, Message, and Console mirror the underlying Work for
// scripts that only need read access plus message mutation.
func (c *DynamicContext) CheckoutDir() string   { return c.work.CheckoutDir }
func (c *DynamicContext) Message() string       { return c.work.Message }
func (c *DynamicContext) SetMessage(msg string) { c.work.Message = msg }
func (c *DynamicContext) Console() Console      { return c.work.console() }

// DynamicScript is a user-provided closure run by DynamicTransform. It
// may mutate the checkout, call ctx methods to set the outcome, and
// return an error to fail the step.
type DynamicScript func(ctx *DynamicContext) error

type dynamicTransform struct {
	name   string
	script DynamicScript
}

// DynamicTransform wraps an arbitrary closure as a Transformation. It
// is never automatically reversible; pair it with ExplicitReversal
// when an inverse is needed.
func DynamicTransform(name string, script DynamicScript) Transformation {
	return &dynamicTransform{name: name, script: script}
}

func (d *dynamicTransform) Describe() string { return d.name }

func (d *dynamicTransform) CanReverse() bool { return false }

func (d *dynamicTransform) Reverse() (Transformation, error) {
	return nil, &NonReversibleError{Component: d.name, Reason: "dynamic transforms are reversible only via ExplicitReversal"}
}

func (d *dynamicTransform) Transform(w *Work) (Outcome, error) {
	ctx := &DynamicContext{work: w}
	if err := d.script(ctx); err != nil {
		return Outcome{}, err
	}
	if ctx.outcome != nil {
		return *ctx.outcome, nil
	}
	return Success, nil
}
