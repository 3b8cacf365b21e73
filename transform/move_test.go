package transform_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/grailbio/copybara/transform"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	path := filepath.Join(dir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o777))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func readFile(t *testing.T, dir, rel string) string {
	t.Helper()
	b, err := os.ReadFile(filepath.Join(dir, rel))
	require.NoError(t, err)
	return string(b)
}

func exists(dir, rel string) bool {
	_, err := os.Lstat(filepath.Join(dir, rel))
	return err == nil
}

func newWork(dir string) *transform.Work {
	return &transform.Work{CheckoutDir: dir, Labels: map[string][]string{}}
}

// S1 — Move + reverse.
func TestScenarioS1MoveAndReverse(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "one.before", "")

	mv, err := transform.Move("one.before", "folder/one.after")
	require.NoError(t, err)

	outcome, err := mv.Transform(newWork(dir))
	require.NoError(t, err)
	require.Equal(t, transform.StatusSuccess, outcome.Status)
	require.True(t, exists(dir, "folder/one.after"))
	require.False(t, exists(dir, "one.before"))

	rev, err := mv.Reverse()
	require.NoError(t, err)
	outcome, err = rev.Transform(newWork(dir))
	require.NoError(t, err)
	require.Equal(t, transform.StatusSuccess, outcome.Status)
	require.True(t, exists(dir, "one.before"))
	require.False(t, exists(dir, "folder/one.after"))
}

func TestMoveDirectoryMerge(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "src/a.txt", "a")
	writeFile(t, dir, "src/sub/b.txt", "b")
	writeFile(t, dir, "dst/existing.txt", "keep")

	mv, err := transform.Move("src", "dst")
	require.NoError(t, err)
	_, err = mv.Transform(newWork(dir))
	require.NoError(t, err)

	require.Equal(t, "a", readFile(t, dir, "dst/a.txt"))
	require.Equal(t, "b", readFile(t, dir, "dst/sub/b.txt"))
	require.Equal(t, "keep", readFile(t, dir, "dst/existing.txt"))
	require.False(t, exists(dir, "src"))
}

func TestMoveToRootRequiresDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "file.txt", "x")
	mv, err := transform.Move("file.txt", "")
	require.NoError(t, err)
	_, err = mv.Transform(newWork(dir))
	require.Error(t, err)
}

func TestMoveMissingSourceNoopOrFail(t *testing.T) {
	dir := t.TempDir()
	mv, err := transform.Move("missing", "dest")
	require.NoError(t, err)

	w := newWork(dir)
	_, err = mv.Transform(w)
	var notExist *transform.SourceDoesNotExistError
	require.ErrorAs(t, err, &notExist)

	w2 := newWork(dir)
	w2.IgnoreNoop = true
	outcome, err := mv.Transform(w2)
	require.NoError(t, err)
	require.Equal(t, transform.StatusNoop, outcome.Status)
}

func TestCopyLeavesSourceIntact(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "hello")
	cp, err := transform.Copy("a.txt", "b.txt")
	require.NoError(t, err)
	_, err = cp.Transform(newWork(dir))
	require.NoError(t, err)
	require.True(t, exists(dir, "a.txt"))
	require.Equal(t, "hello", readFile(t, dir, "b.txt"))
	require.False(t, cp.CanReverse())
}

func TestMoveOverwriteNotReversible(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "x")
	writeFile(t, dir, "b.txt", "y")
	mv, err := transform.Move("a.txt", "b.txt", transform.WithOverwrite(true))
	require.NoError(t, err)
	require.False(t, mv.CanReverse())
	_, err = mv.Reverse()
	var nonRev *transform.NonReversibleError
	require.ErrorAs(t, err, &nonRev)
}

func TestMoveRegexGroups(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "proto/v1/user.proto", "x")
	writeFile(t, dir, "proto/v2/user.proto", "y")

	mv, err := transform.Move("proto/${version}/${name}", "gen/${version}/${name}",
		transform.WithRegexGroups(map[string]string{"version": "v[0-9]+", "name": "[a-z_.]+"}))
	require.NoError(t, err)
	_, err = mv.Transform(newWork(dir))
	require.NoError(t, err)
	require.True(t, exists(dir, "gen/v1/user.proto"))
	require.True(t, exists(dir, "gen/v2/user.proto"))
}
