package transform_test

import (
	"testing"

	"github.com/grailbio/copybara/transform"
	"github.com/stretchr/testify/require"
)

type fakeTransform struct {
	outcome transform.Outcome
	ran     *bool
	name    string
}

func (f *fakeTransform) Describe() string { return f.name }
func (f *fakeTransform) CanReverse() bool { return true }
func (f *fakeTransform) Reverse() (transform.Transformation, error) { return f, nil }
func (f *fakeTransform) Transform(w *transform.Work) (transform.Outcome, error) {
	if f.ran != nil {
		*f.ran = true
	}
	return f.outcome, nil
}

// S3 — Sequence noop policy.
func TestScenarioS3SequenceNoopPolicy(t *testing.T) {
	dir := t.TempDir()

	t3ran := false
	children := func() []transform.Transformation {
		return []transform.Transformation{
			&fakeTransform{name: "t1", outcome: transform.Success},
			&fakeTransform{name: "t2", outcome: transform.Noop("t2 matched nothing")},
			&fakeTransform{name: "t3", outcome: transform.Success, ran: &t3ran},
		}
	}

	seq := transform.Sequence(transform.NoopIfAnyNoop, children()...)
	outcome, err := seq.Transform(newWork(dir))
	require.NoError(t, err)
	require.Equal(t, transform.StatusNoop, outcome.Status)
	require.False(t, t3ran, "t3 must not run once t2 noops under NOOP_IF_ANY_NOOP")

	t3ran = false
	seq = transform.Sequence(transform.IgnoreNoop, children()...)
	outcome, err = seq.Transform(newWork(dir))
	require.NoError(t, err)
	require.Equal(t, transform.StatusSuccess, outcome.Status)
	require.True(t, t3ran, "t3 must run under IGNORE_NOOP")
}

func TestSequenceNoopIfAllNoop(t *testing.T) {
	dir := t.TempDir()
	allNoop := []transform.Transformation{
		&fakeTransform{name: "a", outcome: transform.Noop("x")},
		&fakeTransform{name: "b", outcome: transform.Noop("y")},
	}
	seq := transform.Sequence(transform.NoopIfAllNoop, allNoop...)
	outcome, err := seq.Transform(newWork(dir))
	require.NoError(t, err)
	require.Equal(t, transform.StatusNoop, outcome.Status)

	mixed := []transform.Transformation{
		&fakeTransform{name: "a", outcome: transform.Noop("x")},
		&fakeTransform{name: "b", outcome: transform.Success},
	}
	seq = transform.Sequence(transform.NoopIfAllNoop, mixed...)
	outcome, err = seq.Transform(newWork(dir))
	require.NoError(t, err)
	require.Equal(t, transform.StatusSuccess, outcome.Status)
}

func TestSequenceFailIfAnyNoop(t *testing.T) {
	dir := t.TempDir()
	seq := transform.Sequence(transform.FailIfAnyNoop,
		&fakeTransform{name: "a", outcome: transform.Success},
		&fakeTransform{name: "b", outcome: transform.Noop("nothing matched")},
	)
	_, err := seq.Transform(newWork(dir))
	var void *transform.VoidOperationError
	require.ErrorAs(t, err, &void)
}

func TestSequenceReverseOrder(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.before", "")

	mv1, err := transform.Move("a.before", "a.mid")
	require.NoError(t, err)
	mv2, err := transform.Move("a.mid", "a.after")
	require.NoError(t, err)

	seq := transform.Sequence(transform.IgnoreNoop, mv1, mv2)
	_, err = seq.Transform(newWork(dir))
	require.NoError(t, err)
	require.True(t, exists(dir, "a.after"))

	rev, err := seq.Reverse()
	require.NoError(t, err)
	_, err = rev.Transform(newWork(dir))
	require.NoError(t, err)
	require.True(t, exists(dir, "a.before"))
}

func TestSequenceNestedPolicyDoesNotLeak(t *testing.T) {
	dir := t.TempDir()
	inner := transform.Sequence(transform.IgnoreNoop,
		&fakeTransform{name: "inner-noop", outcome: transform.Noop("x")},
	)
	outer := transform.Sequence(transform.FailIfAnyNoop, inner)
	// inner IGNORE_NOOP absorbs its own child's noop and reports success,
	// so the outer FAIL_IF_ANY_NOOP never observes a noop to fail on.
	outcome, err := outer.Transform(newWork(dir))
	require.NoError(t, err)
	require.Equal(t, transform.StatusSuccess, outcome.Status)
}
