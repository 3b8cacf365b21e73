package transform

import (
	"fmt"
	"os"
	"regexp"
	"sort"

	"github.com/grailbio/copybara/glob"
)

// replaceOp is the template-based Replace transformation.
type replaceOp struct {
	beforeRaw, afterRaw       string
	beforeTokens, afterTokens []templateToken
	regexGroups               map[string]string
	paths                     glob.Glob
	multiline                 bool
	firstOnly                 bool
	re                        *regexp.Regexp
}

// ReplaceOption configures Replace.
type ReplaceOption func(*replaceOp)

// WithReplacePaths restricts Replace to files matched by g; nil means
// every file in the checkout.
func WithReplacePaths(g glob.Glob) ReplaceOption { return func(r *replaceOp) { r.paths = g } }

// WithMultiline compiles the underlying regex with "(?m)", so "^"/"$"
// match at line boundaries rather than only at the string's ends.
func WithMultiline(multiline bool) ReplaceOption { return func(r *replaceOp) { r.multiline = multiline } }

// WithFirstOnly replaces only the first match per file instead of all
// of them.
func WithFirstOnly(firstOnly bool) ReplaceOption { return func(r *replaceOp) { r.firstOnly = firstOnly } }

// Replace returns a template-based find/replace transformation. Every
// named group interpolated in before must be registered in
// regexGroups and must also be used in after, and vice versa.
func Replace(before, after string, regexGroups map[string]string, opts ...ReplaceOption) (Transformation, error) {
	r := &replaceOp{beforeRaw: before, afterRaw: after, regexGroups: regexGroups}
	for _, o := range opts {
		o(r)
	}
	bt, err := parseTemplate("replace", before)
	if err != nil {
		return nil, err
	}
	at, err := parseTemplate("replace", after)
	if err != nil {
		return nil, err
	}
	if err := validateGroupSymmetry("replace", bt, at, regexGroups, false); err != nil {
		return nil, err
	}
	r.beforeTokens, r.afterTokens = bt, at
	re, err := compileTemplateRegex("replace", bt, regexGroups, r.multiline)
	if err != nil {
		return nil, err
	}
	r.re = re
	return r, nil
}

func (r *replaceOp) Describe() string {
	return fmt.Sprintf("replace(%s -> %s)", r.beforeRaw, r.afterRaw)
}

func (r *replaceOp) CanReverse() bool { return true }

func (r *replaceOp) Reverse() (Transformation, error) {
	var opts []ReplaceOption
	if r.paths != nil {
		opts = append(opts, WithReplacePaths(r.paths))
	}
	opts = append(opts, WithMultiline(r.multiline), WithFirstOnly(r.firstOnly))
	return Replace(r.afterRaw, r.beforeRaw, r.regexGroups, opts...)
}

func (r *replaceOp) selection(w *Work) (map[string]bool, error) {
	if r.paths != nil {
		return w.Tree().Find(r.paths)
	}
	all, err := glob.Leaf([]string{"**"}, nil)
	if err != nil {
		return nil, err
	}
	return w.Tree().Find(all)
}

func (r *replaceOp) Transform(w *Work) (Outcome, error) {
	files, err := r.selection(w)
	if err != nil {
		return Outcome{}, err
	}
	var rels []string
	for rel := range files {
		rels = append(rels, rel)
	}
	sort.Strings(rels)

	totalMatches := 0
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
		n := 0
		replaceFn := func(match []byte) []byte {
			n++
			sub := r.re.FindSubmatch(match)
			groups := make(map[string]string)
			for i, name := range r.re.SubexpNames() {
				if i == 0 || name == "" || i >= len(sub) {
					continue
				}
				groups[name] = string(sub[i])
			}
			out, rerr := renderTemplate(r.afterTokens, groups)
			if rerr != nil {
				return match
			}
			return []byte(out)
		}
		var newContent []byte
		if r.firstOnly {
			loc := r.re.FindIndex(content)
			if loc == nil {
				continue
			}
			replaced := replaceFn(content[loc[0]:loc[1]])
			newContent = append(append(append([]byte{}, content[:loc[0]]...), replaced...), content[loc[1]:]...)
		} else {
			newContent = r.re.ReplaceAllFunc(content, replaceFn)
		}
		if n == 0 {
			continue
		}
		totalMatches += n
		if err := os.WriteFile(path, newContent, info.Mode()); err != nil {
			return Outcome{}, err
		}
	}
	if totalMatches == 0 {
		w.Tree().NotifyNoChange()
		return Noop("before pattern matched no file"), nil
	}
	w.Tree().Invalidate()
	return Success, nil
}
