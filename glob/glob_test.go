package glob_test

import (
	"testing"

	"github.com/grailbio/copybara/glob"
	"github.com/stretchr/testify/require"
)

func mustLeaf(t *testing.T, include, exclude []string) glob.Glob {
	t.Helper()
	g, err := glob.Leaf(include, exclude)
	require.NoError(t, err)
	return g
}

func TestLeafMatches(t *testing.T) {
	g := mustLeaf(t, []string{"foo/**"}, []string{"foo/bar/**"})
	require.True(t, g.Matches("foo/a.txt"))
	require.True(t, g.Matches("foo/a/b.txt"))
	require.False(t, g.Matches("foo/bar/c.txt"))
	require.False(t, g.Matches("other/a.txt"))
}

func TestLeafBraceAndClass(t *testing.T) {
	g := mustLeaf(t, []string{"src/*.{go,java}"}, nil)
	require.True(t, g.Matches("src/main.go"))
	require.True(t, g.Matches("src/Main.java"))
	require.False(t, g.Matches("src/sub/main.go"))
}

func TestEmptyPatternInvalid(t *testing.T) {
	_, err := glob.Leaf([]string{""}, nil)
	require.Error(t, err)
	var invalid *glob.InvalidGlobError
	require.ErrorAs(t, err, &invalid)
}

func TestUnbalancedBracketsInvalid(t *testing.T) {
	_, err := glob.Leaf([]string{"foo/[abc"}, nil)
	require.Error(t, err)
}

func TestCanonicalization(t *testing.T) {
	a, err := glob.Leaf([]string{"b/**", "a/**"}, []string{"z", "y"})
	require.NoError(t, err)
	b, err := glob.Leaf([]string{"a/**", "b/**"}, []string{"y", "z"})
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestUnionFlattensAndMatches(t *testing.T) {
	a := mustLeaf(t, []string{"a/**"}, nil)
	b := mustLeaf(t, []string{"b/**"}, nil)
	c := mustLeaf(t, []string{"c/**"}, nil)
	ab, err := glob.Union(a, b)
	require.NoError(t, err)
	abc, err := glob.Union(ab, c)
	require.NoError(t, err)
	require.True(t, abc.Matches("a/1"))
	require.True(t, abc.Matches("b/1"))
	require.True(t, abc.Matches("c/1"))
	require.False(t, abc.Matches("d/1"))
	require.ElementsMatch(t, []string{"a", "b", "c"}, abc.Roots())
}

func TestUnionWithNilFails(t *testing.T) {
	a := mustLeaf(t, []string{"a/**"}, nil)
	_, err := glob.Union(a, nil)
	require.Error(t, err)
	var comp *glob.InvalidCompositionError
	require.ErrorAs(t, err, &comp)
}

func TestDifference(t *testing.T) {
	a := mustLeaf(t, []string{"**"}, nil)
	b := mustLeaf(t, []string{"vendor/**"}, nil)
	d, err := glob.Difference(a, b)
	require.NoError(t, err)
	require.True(t, d.Matches("main.go"))
	require.False(t, d.Matches("vendor/x.go"))
}

func TestDifferenceChainFlattens(t *testing.T) {
	a := mustLeaf(t, []string{"**"}, nil)
	b := mustLeaf(t, []string{"vendor/**"}, nil)
	c := mustLeaf(t, []string{"node_modules/**"}, nil)
	d1, err := glob.Difference(a, b)
	require.NoError(t, err)
	d2, err := glob.Difference(d1, c)
	require.NoError(t, err)
	require.False(t, d2.Matches("vendor/x"))
	require.False(t, d2.Matches("node_modules/x"))
	require.True(t, d2.Matches("main.go"))
}

func TestRootsMinimal(t *testing.T) {
	g := mustLeaf(t, []string{"foo/**", "foo/bar/**"}, nil)
	require.Equal(t, []string{"foo"}, g.Roots())
}

func TestRootsRepoRootOnDoubleStar(t *testing.T) {
	g := mustLeaf(t, []string{"**"}, nil)
	require.Equal(t, []string{""}, g.Roots())
}

func TestTipsWithoutExcludes(t *testing.T) {
	g := mustLeaf(t, []string{"foo/**"}, nil)
	require.Equal(t, []string{"foo"}, g.Tips())
}

func TestTipsEmptyWithExcludes(t *testing.T) {
	g := mustLeaf(t, []string{"foo/**"}, []string{"foo/bar/**"})
	require.Empty(t, g.Tips())
}

func TestMatchesPureFunctionOfPath(t *testing.T) {
	// Matches must not depend on filesystem state: calling it twice with
	// the same path yields the same result regardless of anything else.
	g := mustLeaf(t, []string{"a/**"}, nil)
	for i := 0; i < 3; i++ {
		require.True(t, g.Matches("a/b/c"))
	}
}
