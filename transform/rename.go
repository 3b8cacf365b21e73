package transform

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// renameOp renames every file whose basename equals (or, if Suffix,
// ends with) Before to the corresponding After.
type renameOp struct {
	before, after string
	suffix        bool
	overwrite     bool
}

// RenameOption configures Rename.
type RenameOption func(*renameOp)

// WithSuffix matches basenames ending with before, rather than equal
// to it, preserving the differing prefix in the renamed basename.
func WithSuffix(suffix bool) RenameOption { return func(r *renameOp) { r.suffix = suffix } }

// WithRenameOverwrite allows Rename to clobber an existing destination.
func WithRenameOverwrite(overwrite bool) RenameOption {
	return func(r *renameOp) { r.overwrite = overwrite }
}

// Rename renames every file with basename before (or, with
// WithSuffix, ending in before) to after.
func Rename(before, after string, opts ...RenameOption) Transformation {
	r := &renameOp{before: before, after: after}
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *renameOp) Describe() string {
	return fmt.Sprintf("rename(%s -> %s, suffix=%v)", r.before, r.after, r.suffix)
}

func (r *renameOp) CanReverse() bool { return !r.overwrite }

func (r *renameOp) Reverse() (Transformation, error) {
	if r.overwrite {
		return nil, &NonReversibleError{Component: "rename", Reason: "overwrite=true discards the prior destination contents"}
	}
	return Rename(r.after, r.before, WithSuffix(r.suffix)), nil
}

func (r *renameOp) destBasename(base string) (string, bool) {
	if r.suffix {
		if !strings.HasSuffix(base, r.before) {
			return "", false
		}
		return strings.TrimSuffix(base, r.before) + r.after, true
	}
	if base != r.before {
		return "", false
	}
	return r.after, true
}

func (r *renameOp) Transform(w *Work) (Outcome, error) {
	var matches []string
	err := filepath.Walk(w.CheckoutDir, func(p string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() || fi.Mode()&os.ModeSymlink != 0 {
			return nil
		}
		if _, ok := r.destBasename(filepath.Base(p)); ok {
			matches = append(matches, p)
		}
		return nil
	})
	if err != nil {
		return Outcome{}, err
	}
	if len(matches) == 0 {
		return Noop(fmt.Sprintf("no file has basename %q", r.before)), nil
	}
	sort.Strings(matches)
	for _, p := range matches {
		newBase, _ := r.destBasename(filepath.Base(p))
		dest := filepath.Join(filepath.Dir(p), newBase)
		if err := placeFile(p, dest, r.overwrite, false); err != nil {
			return Outcome{}, err
		}
	}
	w.Tree().Invalidate()
	return Success, nil
}
