package transform

import (
	"fmt"
	"os"
	"regexp"
	"sort"

	"github.com/grailbio/copybara/glob"
)

// verifyMatchOp asserts every selected file matches (or does not
// match) a regex. It never mutates the tree and is its own inverse.
type verifyMatchOp struct {
	re            *regexp.Regexp
	verifyNoMatch bool
	paths         glob.Glob
}

// VerifyMatchOption configures VerifyMatch.
type VerifyMatchOption func(*verifyMatchOp)

// WithVerifyNoMatch flips the assertion to "must not match".
func WithVerifyNoMatch(noMatch bool) VerifyMatchOption {
	return func(v *verifyMatchOp) { v.verifyNoMatch = noMatch }
}

// WithVerifyPaths restricts VerifyMatch to files matched by g.
func WithVerifyPaths(g glob.Glob) VerifyMatchOption { return func(v *verifyMatchOp) { v.paths = g } }

// VerifyMatch asserts that re matches (or, with WithVerifyNoMatch,
// does not match) every file selected by paths.
func VerifyMatch(re *regexp.Regexp, opts ...VerifyMatchOption) Transformation {
	v := &verifyMatchOp{re: re}
	for _, o := range opts {
		o(v)
	}
	return v
}

func (v *verifyMatchOp) Describe() string { return fmt.Sprintf("verify_match(%s)", v.re) }

func (v *verifyMatchOp) CanReverse() bool { return true }

func (v *verifyMatchOp) Reverse() (Transformation, error) { return v, nil }

func (v *verifyMatchOp) selection(w *Work) (map[string]bool, error) {
	if v.paths != nil {
		return w.Tree().Find(v.paths)
	}
	all, err := glob.Leaf([]string{"**"}, nil)
	if err != nil {
		return nil, err
	}
	return w.Tree().Find(all)
}

func (v *verifyMatchOp) Transform(w *Work) (Outcome, error) {
	files, err := v.selection(w)
	if err != nil {
		return Outcome{}, err
	}
	var rels []string
	for rel := range files {
		rels = append(rels, rel)
	}
	sort.Strings(rels)
	for _, rel := range rels {
		path := w.CheckoutDir + "/" + rel
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return Outcome{}, err
		}
		matched := v.re.Match(content)
		if matched == v.verifyNoMatch {
			reason := "expected match"
			if v.verifyNoMatch {
				reason = "expected no match"
			}
			return Outcome{}, &ValidationError{Component: "verify_match", Operand: rel, Reason: reason}
		}
	}
	w.Tree().NotifyNoChange()
	return Success, nil
}
