package transform_test

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/grailbio/copybara/glob"
	"github.com/grailbio/copybara/transform"
	"github.com/stretchr/testify/require"
)

func TestRenameBasenameAndSuffix(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a/BUILD", "x")
	writeFile(t, dir, "b/BUILD.bazel", "y")

	r := transform.Rename("BUILD", "BUILD.bazel", transform.WithSuffix(true))
	outcome, err := r.Transform(newWork(dir))
	require.NoError(t, err)
	require.Equal(t, transform.StatusSuccess, outcome.Status)
	require.True(t, exists(dir, "a/BUILD.bazel"))

	rev, err := r.Reverse()
	require.NoError(t, err)
	_, err = rev.Transform(newWork(dir))
	require.NoError(t, err)
	require.True(t, exists(dir, "a/BUILD"))
}

func TestRenameNoopWhenNoMatch(t *testing.T) {
	dir := t.TempDir()
	r := transform.Rename("nope", "whatever")
	outcome, err := r.Transform(newWork(dir))
	require.NoError(t, err)
	require.Equal(t, transform.StatusNoop, outcome.Status)
}

func TestRemoveOnlyViaExplicitReversal(t *testing.T) {
	dir := t.TempDir()
	g, err := glob.Leaf([]string{"gen/**"}, nil)
	require.NoError(t, err)

	rm := transform.Remove(g)
	require.False(t, rm.CanReverse())
	_, err = rm.Reverse()
	var nonRev *transform.NonReversibleError
	require.ErrorAs(t, err, &nonRev)

	// Paired with a forward generator via ExplicitReversal.
	gen := transform.DynamicTransform("generate", func(ctx *transform.DynamicContext) error {
		return writeGenerated(ctx.CheckoutDir())
	})
	er := transform.ExplicitReversal(gen, rm)
	require.True(t, er.CanReverse())
	_, err = er.Transform(newWork(dir))
	require.NoError(t, err)
	require.True(t, exists(dir, "gen/out.txt"))

	rev, err := er.Reverse()
	require.NoError(t, err)
	_, err = rev.Transform(newWork(dir))
	require.NoError(t, err)
	require.False(t, exists(dir, "gen/out.txt"))
}

func writeGenerated(dir string) error {
	path := filepath.Join(dir, "gen/out.txt")
	if err := os.MkdirAll(filepath.Dir(path), 0o777); err != nil {
		return err
	}
	return os.WriteFile(path, []byte("generated"), 0o644)
}

func TestTodoReplaceModes(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "f.go", "// TODO(alice, bob): fix\n// FIXME(carol): later\n")

	mapping := transform.MapMapping{"alice": "alice2", "bob": "bob2"}
	tr, err := transform.TodoReplace([]string{"TODO", "FIXME"}, transform.MapOrIgnore, transform.WithTodoMapping(mapping))
	require.NoError(t, err)
	outcome, err := tr.Transform(newWork(dir))
	require.NoError(t, err)
	require.Equal(t, transform.StatusSuccess, outcome.Status)
	content := readFile(t, dir, "f.go")
	require.Contains(t, content, "TODO(alice2, bob2)")
	require.Contains(t, content, "FIXME(carol)") // carol untouched under MAP_OR_IGNORE

	rev, err := tr.Reverse()
	require.NoError(t, err)
	_, err = rev.Transform(newWork(dir))
	require.NoError(t, err)
	require.Contains(t, readFile(t, dir, "f.go"), "TODO(alice, bob)")
}

func TestTodoReplaceScrubNames(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "f.go", "// TODO(alice): fix\n")
	tr, err := transform.TodoReplace([]string{"TODO"}, transform.ScrubNames)
	require.NoError(t, err)
	require.False(t, tr.CanReverse())
	_, err = tr.Transform(newWork(dir))
	require.NoError(t, err)
	require.Equal(t, "// TODO: fix\n", readFile(t, dir, "f.go"))
}

func TestFilterReplaceMapping(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "f.txt", "build with bazel and blaze\n")
	mapping := transform.MapMapping{"bazel": "BAZEL", "blaze": "BLAZE"}
	fr := transform.FilterReplace(regexp.MustCompile(`\w+`), mapping)
	outcome, err := fr.Transform(newWork(dir))
	require.NoError(t, err)
	require.Equal(t, transform.StatusSuccess, outcome.Status)
	require.Equal(t, "build with BAZEL and BLAZE\n", readFile(t, dir, "f.txt"))

	rev, err := fr.Reverse()
	require.NoError(t, err)
	_, err = rev.Transform(newWork(dir))
	require.NoError(t, err)
	require.Equal(t, "build with bazel and blaze\n", readFile(t, dir, "f.txt"))
}

func TestDynamicTransformDefaultSuccess(t *testing.T) {
	dir := t.TempDir()
	d := transform.DynamicTransform("noop-script", func(ctx *transform.DynamicContext) error {
		return nil
	})
	outcome, err := d.Transform(newWork(dir))
	require.NoError(t, err)
	require.Equal(t, transform.StatusSuccess, outcome.Status)
	require.False(t, d.CanReverse())
}

func TestDynamicTransformNoop(t *testing.T) {
	dir := t.TempDir()
	d := transform.DynamicTransform("checks-glob", func(ctx *transform.DynamicContext) error {
		ctx.Noop("nothing to do")
		return nil
	})
	outcome, err := d.Transform(newWork(dir))
	require.NoError(t, err)
	require.Equal(t, transform.StatusNoop, outcome.Status)
}
