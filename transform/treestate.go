package transform

import (
	"os"
	"path/filepath"

	"github.com/grailbio/copybara/glob"
)

// TreeState caches the result of the last Find(glob) call made against
// a checkout. A Sequence validates or invalidates the cache around
// each child it runs, per the cache contract in the pipeline spec.
type TreeState struct {
	checkoutDir string

	cachedGlob  glob.Glob
	cachedFiles map[string]bool
	valid       bool

	usedThisStep     bool
	noChangeNotified bool
}

// NewTreeState returns an uncached TreeState rooted at checkoutDir.
func NewTreeState(checkoutDir string) *TreeState {
	return &TreeState{checkoutDir: checkoutDir}
}

// Find returns the set of checkout-relative paths matching g,
// reusing the last snapshot if it was taken for the structurally
// identical glob and is still valid.
func (ts *TreeState) Find(g glob.Glob) (map[string]bool, error) {
	ts.usedThisStep = true
	if ts.valid && ts.cachedGlob != nil && ts.cachedGlob.String() == g.String() {
		return ts.cachedFiles, nil
	}
	files, err := walkMatches(ts.checkoutDir, g)
	if err != nil {
		return nil, err
	}
	ts.cachedGlob = g
	ts.cachedFiles = files
	ts.valid = true
	return files, nil
}

// NotifyNoChange tells the TreeState that the transformation currently
// running did not alter any file the last Find() snapshot covers, so
// the snapshot may remain valid for the next step.
func (ts *TreeState) NotifyNoChange() {
	ts.noChangeNotified = true
}

// Invalidate drops any cached snapshot. Any transformation that
// mutates the tree without calling NotifyNoChange causes this
// implicitly, via settleAfterChild.
func (ts *TreeState) Invalidate() {
	ts.valid = false
	ts.cachedGlob = nil
	ts.cachedFiles = nil
}

// beginChild resets the per-child bookkeeping the Sequence reads after
// each child runs.
func (ts *TreeState) beginChild() {
	ts.usedThisStep = false
	ts.noChangeNotified = false
}

// settleAfterChild applies the cache contract: invalidate unless the
// child used the tree state and explicitly notified no-change.
func (ts *TreeState) settleAfterChild() {
	if !(ts.usedThisStep && ts.noChangeNotified) {
		ts.Invalidate()
	}
}

func (ts *TreeState) cached() bool { return ts.valid }

func walkMatches(root string, g glob.Glob) (map[string]bool, error) {
	matches := make(map[string]bool)
	roots := g.Roots()
	if len(roots) == 0 {
		roots = []string{""}
	}
	seen := make(map[string]bool)
	for _, r := range roots {
		start := filepath.Join(root, r)
		info, err := os.Lstat(start)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}
		if !info.IsDir() {
			rel, rerr := filepath.Rel(root, start)
			if rerr != nil {
				return nil, rerr
			}
			rel = filepath.ToSlash(rel)
			if !seen[rel] && g.Matches(rel) {
				matches[rel] = true
			}
			seen[rel] = true
			continue
		}
		err = filepath.Walk(start, func(p string, fi os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if fi.IsDir() {
				return nil
			}
			if fi.Mode()&os.ModeSymlink != 0 {
				// Traversal never follows symlinks; Roots()/Tips() exist
				// precisely so we don't have to.
				return nil
			}
			rel, rerr := filepath.Rel(root, p)
			if rerr != nil {
				return rerr
			}
			rel = filepath.ToSlash(rel)
			if seen[rel] {
				return nil
			}
			seen[rel] = true
			if g.Matches(rel) {
				matches[rel] = true
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return matches, nil
}
