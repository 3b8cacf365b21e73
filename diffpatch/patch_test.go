package diffpatch_test

import (
	"testing"

	"github.com/grailbio/copybara/diffpatch"
	"github.com/grailbio/copybara/glob"
	"github.com/stretchr/testify/require"
)

func TestSelectBackendExcludesForceGitApply(t *testing.T) {
	b := diffpatch.SelectBackend(true, true, "2.7.6")
	require.Equal(t, diffpatch.BackendGitApply, b)
}

func TestSelectBackendPrefersGNUPatchWhenNewEnough(t *testing.T) {
	b := diffpatch.SelectBackend(false, true, "2.7.6")
	require.Equal(t, diffpatch.BackendGNUPatch, b)
}

func TestSelectBackendFallsBackOnOldGNUPatch(t *testing.T) {
	b := diffpatch.SelectBackend(false, true, "2.6.1")
	require.Equal(t, diffpatch.BackendGitApply, b)
}

func TestSelectBackendDefaultsToGitApply(t *testing.T) {
	b := diffpatch.SelectBackend(false, false, "2.7.6")
	require.Equal(t, diffpatch.BackendGitApply, b)
}

func TestApplyEmptyDiffIsNoop(t *testing.T) {
	dir := tempDir(t)
	err := diffpatch.Apply(dir, []byte("   \n"), diffpatch.ApplyOptions{Backend: diffpatch.BackendGitApply})
	require.NoError(t, err)
}

func TestApplyWithExcludedPatternsFilteringEverythingIsNoop(t *testing.T) {
	raw := "diff --git keep.txt keep.txt\nindex 0000001..0000002 100644\n--- keep.txt\n+++ keep.txt\n" +
		"@@ -1 +1 @@\n-before\n+after\n"
	gAll, err := glob.Leaf([]string{"keep.txt"}, nil)
	require.NoError(t, err)

	dir := tempDir(t)
	// Excluding every path in the diff leaves an empty payload, which
	// short-circuits before any subprocess is invoked — this also
	// exercises the ExcludedPatterns->BackendGitApply override, since a
	// GNU-patch request is forced back to git apply internally.
	err = diffpatch.Apply(dir, []byte(raw), diffpatch.ApplyOptions{Backend: diffpatch.BackendGNUPatch, ExcludedPatterns: gAll})
	require.NoError(t, err)
}
