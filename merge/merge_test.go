package merge_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/grailbio/copybara/merge"
	"github.com/stretchr/testify/require"
)

func TestMergeImportToolNonConflicting(t *testing.T) {
	parent := tempDir(t)
	baseline := filepath.Join(parent, "baseline")
	origin := filepath.Join(parent, "origin")
	destination := filepath.Join(parent, "destination")

	writeFile(t, baseline, "f.txt", "alpha\nbeta\ngamma\n")
	writeFile(t, origin, "f.txt", "ALPHA\nbeta\ngamma\n")
	writeFile(t, destination, "f.txt", "alpha\nbeta\nGAMMA\n")

	results, err := merge.MergeImportTool(baseline, origin, destination, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.False(t, results[0].Conflict)

	merged, err := os.ReadFile(filepath.Join(origin, "f.txt"))
	require.NoError(t, err)
	require.Equal(t, "ALPHA\nbeta\nGAMMA\n", string(merged))
}

func TestMergeImportToolConflicting(t *testing.T) {
	parent := tempDir(t)
	baseline := filepath.Join(parent, "baseline")
	origin := filepath.Join(parent, "origin")
	destination := filepath.Join(parent, "destination")

	writeFile(t, baseline, "f.txt", "alpha\n")
	writeFile(t, origin, "f.txt", "ORIGIN-CHANGE\n")
	writeFile(t, destination, "f.txt", "DEST-CHANGE\n")

	_, err := merge.MergeImportTool(baseline, origin, destination, nil)
	require.Error(t, err)
	var conflictErr *merge.ConflictError
	require.ErrorAs(t, err, &conflictErr)
	require.Contains(t, conflictErr.Paths, "f.txt")
}

// TestMergeImportToolConflictMarkerOrientation pins scenario S6: origin's
// content is "mine" and must appear above the "=======" separator, with
// destination's content ("yours") below it.
func TestMergeImportToolConflictMarkerOrientation(t *testing.T) {
	parent := tempDir(t)
	baseline := filepath.Join(parent, "baseline")
	origin := filepath.Join(parent, "origin")
	destination := filepath.Join(parent, "destination")

	writeFile(t, baseline, "f.txt", "a\n")
	writeFile(t, origin, "f.txt", "a\nleft\n")
	writeFile(t, destination, "f.txt", "a\nright\n")

	_, err := merge.MergeImportTool(baseline, origin, destination, nil)
	require.Error(t, err)
	var conflictErr *merge.ConflictError
	require.ErrorAs(t, err, &conflictErr)

	merged, err := os.ReadFile(filepath.Join(origin, "f.txt"))
	require.NoError(t, err)
	require.Equal(t, "a\n<<<<<<<\nleft\n=======\nright\n>>>>>>>\n", string(merged))
}

func TestMergeImportToolOriginOnlyAdd(t *testing.T) {
	parent := tempDir(t)
	baseline := filepath.Join(parent, "baseline")
	origin := filepath.Join(parent, "origin")
	destination := filepath.Join(parent, "destination")
	require.NoError(t, os.MkdirAll(baseline, 0o777))
	require.NoError(t, os.MkdirAll(destination, 0o777))
	writeFile(t, origin, "new.txt", "brand new from origin\n")

	results, err := merge.MergeImportTool(baseline, origin, destination, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	content, err := os.ReadFile(filepath.Join(origin, "new.txt"))
	require.NoError(t, err)
	require.Equal(t, "brand new from origin\n", string(content))
}

func TestMergeImportToolRemovedOnOriginDeletesUnconditionally(t *testing.T) {
	parent := tempDir(t)
	baseline := filepath.Join(parent, "baseline")
	origin := filepath.Join(parent, "origin")
	destination := filepath.Join(parent, "destination")

	writeFile(t, baseline, "gone.txt", "alpha\n")
	require.NoError(t, os.MkdirAll(origin, 0o777))
	// Destination has hand-edited the file since baseline; origin's
	// removal still wins unconditionally.
	writeFile(t, destination, "gone.txt", "alpha\nedited\n")

	results, err := merge.MergeImportTool(baseline, origin, destination, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Nil(t, results[0].Merged)
	_, err = os.Stat(filepath.Join(origin, "gone.txt"))
	require.True(t, os.IsNotExist(err))
}

func TestMergeImportToolBinaryInputSkipsAndLeavesOriginUntouched(t *testing.T) {
	parent := tempDir(t)
	baseline := filepath.Join(parent, "baseline")
	origin := filepath.Join(parent, "origin")
	destination := filepath.Join(parent, "destination")

	writeFile(t, baseline, "f.bin", "\x00\x01\x02base")
	writeFile(t, origin, "f.bin", "\x00\x01\x02origin-change")
	writeFile(t, destination, "f.bin", "\x00\x01\x02dest-change")

	results, err := merge.MergeImportTool(baseline, origin, destination, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.True(t, results[0].Skipped)
	require.False(t, results[0].Conflict)

	content, err := os.ReadFile(filepath.Join(origin, "f.bin"))
	require.NoError(t, err)
	require.Equal(t, "\x00\x01\x02origin-change", string(content))
}
