package diffpatch

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/grailbio/copybara/glob"
)

// Backend selects which external tool applies a unified diff.
type Backend int

const (
	BackendGitApply Backend = iota
	BackendGNUPatch
)

func (b Backend) String() string {
	if b == BackendGNUPatch {
		return "patch"
	}
	return "git apply"
}

// SelectBackend implements the backend-selection policy: excludes in
// the destination glob force "git apply" (GNU patch has no concept of
// a path exclusion list), an explicit preference for GNU patch is
// honored whenever its version is new enough to accept "git diff"
// output unmodified (2.7+, which added --no-prefix-aware fuzzy
// matching for the unified format Copybara emits), and otherwise the
// safer "git apply" is used.
func SelectBackend(hasExcludes, preferGNUPatch bool, gnuPatchVersion string) Backend {
	if hasExcludes {
		return BackendGitApply
	}
	if preferGNUPatch && gnuPatchVersionAtLeast(gnuPatchVersion, 2, 7) {
		return BackendGNUPatch
	}
	return BackendGitApply
}

func gnuPatchVersionAtLeast(version string, major, minor int) bool {
	fields := strings.SplitN(strings.TrimSpace(version), ".", 3)
	if len(fields) < 2 {
		return false
	}
	maj, err1 := strconv.Atoi(fields[0])
	min, err2 := strconv.Atoi(fields[1])
	if err1 != nil || err2 != nil {
		return false
	}
	if maj != major {
		return maj > major
	}
	return min >= minor
}

// ApplyOptions configures Apply.
type ApplyOptions struct {
	Backend Backend
	Reverse bool
	Env     []string
	Fuzz    int // patch(1) -F context fuzz; ignored for git apply

	// ExcludedPatterns, when non-nil, is used to pre-filter diffBytes
	// (via FilterDiff) so that any per-file hunk matching the glob is
	// dropped before the backend ever sees it. GNU patch has no
	// equivalent exclusion mechanism, which is why SelectBackend and
	// Apply both force BackendGitApply whenever this is set.
	ExcludedPatterns glob.Glob
}

// Apply applies diffBytes (as produced by Diff) to root using the
// selected backend. An empty diff is a no-op: neither backend is
// invoked and nil is returned, matching the rest of the catalog's
// treatment of no-op input.
//
// When opts.ExcludedPatterns is set, the diff is first filtered down
// (via FilterDiff) to exclude any per-file hunk matching the glob,
// and the backend is forced to BackendGitApply regardless of
// opts.Backend — GNU patch has no path-exclusion mechanism, so
// SelectBackend already steers callers away from it, but Apply
// enforces the same rule defensively.
func Apply(root string, diffBytes []byte, opts ApplyOptions) error {
	if opts.ExcludedPatterns != nil {
		filtered, err := FilterDiff(diffBytes, func(path string) bool {
			return !opts.ExcludedPatterns.Matches(path)
		})
		if err != nil {
			return err
		}
		diffBytes = []byte(filtered)
		opts.Backend = BackendGitApply
	}
	if len(strings.TrimSpace(string(diffBytes))) == 0 {
		return nil
	}
	switch opts.Backend {
	case BackendGNUPatch:
		return applyWithGNUPatch(root, diffBytes, opts)
	default:
		return applyWithGitApply(root, diffBytes, opts)
	}
}

// ApplyDestinationPatch applies diffBytes with git's --3way merge
// fallback enabled, for the case where the destination tree has
// drifted slightly from the baseline the patch was computed against
// (e.g. a previous import tool run touched whitespace nearby) and a
// strict context match would otherwise fail outright.
func ApplyDestinationPatch(root string, diffBytes []byte, opts ApplyOptions) error {
	if len(strings.TrimSpace(string(diffBytes))) == 0 {
		return nil
	}
	args := []string{"apply", "--3way", "--whitespace=nowarn"}
	if opts.Reverse {
		args = append(args, "-R")
	}
	args = append(args, "-")
	_, err := run(root, "git", opts.Env, diffBytes, args...)
	if err != nil {
		return fmt.Errorf("diffpatch: git apply --3way failed in %s: %w", root, err)
	}
	return nil
}

func applyWithGitApply(root string, diffBytes []byte, opts ApplyOptions) error {
	args := []string{"apply", "--whitespace=nowarn"}
	if opts.Reverse {
		args = append(args, "-R")
	}
	args = append(args, "-")
	_, err := run(root, "git", opts.Env, diffBytes, args...)
	if err != nil {
		return fmt.Errorf("diffpatch: git apply failed in %s: %w", root, err)
	}
	return nil
}

func applyWithGNUPatch(root string, diffBytes []byte, opts ApplyOptions) error {
	args := []string{"-p1", "--no-backup-if-mismatch"}
	if opts.Reverse {
		args = append(args, "-R")
	}
	if opts.Fuzz > 0 {
		args = append(args, "-F", strconv.Itoa(opts.Fuzz))
	}
	_, err := run(root, "patch", opts.Env, diffBytes, args...)
	if err != nil {
		return fmt.Errorf("diffpatch: patch failed in %s: %w", root, err)
	}
	return nil
}
