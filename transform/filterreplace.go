package transform

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"regexp"
	"sort"

	"github.com/grailbio/copybara/glob"
)

// LineMapper maps a captured token to a replacement. ok=false leaves
// the token untouched.
type LineMapper interface {
	Map(token string) (string, bool)
}

// ReversibleLineMapper is a LineMapper that can produce its own
// inverse; required for FilterReplace to be reversible.
type ReversibleLineMapper interface {
	LineMapper
	ReverseMapper() (LineMapper, error)
}

// MapMapping is a finite-map LineMapper. It is reversible iff the
// mapping is injective (no two keys share a value).
type MapMapping map[string]string

func (m MapMapping) Map(token string) (string, bool) {
	v, ok := m[token]
	return v, ok
}

func (m MapMapping) ReverseMapper() (LineMapper, error) {
	rev := make(MapMapping, len(m))
	for k, v := range m {
		if existing, ok := rev[v]; ok && existing != k {
			return nil, &NonReversibleError{Component: "mapping", Reason: fmt.Sprintf("value %q maps from both %q and %q", v, existing, k)}
		}
		rev[v] = k
	}
	return rev, nil
}

type filterReplaceOp struct {
	re          *regexp.Regexp
	reverseRe   *regexp.Regexp
	mapping     LineMapper
	group       int
	paths       glob.Glob
}

// FilterReplaceOption configures FilterReplace.
type FilterReplaceOption func(*filterReplaceOp)

// WithGroup selects which capture group of re is handed to mapping;
// 0 (the default) is the whole match.
func WithGroup(idx int) FilterReplaceOption { return func(f *filterReplaceOp) { f.group = idx } }

// WithReverseRegex supplies the regex to use on reverse, when it
// differs from the forward regex (e.g. because mapping changes token
// length).
func WithReverseRegex(re *regexp.Regexp) FilterReplaceOption {
	return func(f *filterReplaceOp) { f.reverseRe = re }
}

// WithFilterPaths restricts FilterReplace to files matched by g.
func WithFilterPaths(g glob.Glob) FilterReplaceOption { return func(f *filterReplaceOp) { f.paths = g } }

// FilterReplace rewrites, in every selected file, each regex match's
// captured group by applying mapping to it.
func FilterReplace(re *regexp.Regexp, mapping LineMapper, opts ...FilterReplaceOption) Transformation {
	f := &filterReplaceOp{re: re, mapping: mapping}
	for _, o := range opts {
		o(f)
	}
	return f
}

func (f *filterReplaceOp) Describe() string { return fmt.Sprintf("filter_replace(%s)", f.re) }

func (f *filterReplaceOp) CanReverse() bool {
	_, ok := f.mapping.(ReversibleLineMapper)
	return ok
}

func (f *filterReplaceOp) Reverse() (Transformation, error) {
	rm, ok := f.mapping.(ReversibleLineMapper)
	if !ok {
		return nil, &NonReversibleError{Component: "filter_replace", Reason: "mapping does not provide a reverse"}
	}
	reverseMapping, err := rm.ReverseMapper()
	if err != nil {
		return nil, err
	}
	re := f.re
	if f.reverseRe != nil {
		re = f.reverseRe
	}
	var opts []FilterReplaceOption
	opts = append(opts, WithGroup(f.group))
	if f.reverseRe != nil {
		opts = append(opts, WithReverseRegex(f.re))
	}
	if f.paths != nil {
		opts = append(opts, WithFilterPaths(f.paths))
	}
	return FilterReplace(re, reverseMapping, opts...), nil
}

func (f *filterReplaceOp) selection(w *Work) (map[string]bool, error) {
	if f.paths != nil {
		return w.Tree().Find(f.paths)
	}
	all, err := glob.Leaf([]string{"**"}, nil)
	if err != nil {
		return nil, err
	}
	return w.Tree().Find(all)
}

func (f *filterReplaceOp) Transform(w *Work) (Outcome, error) {
	files, err := f.selection(w)
	if err != nil {
		return Outcome{}, err
	}
	var rels []string
	for rel := range files {
		rels = append(rels, rel)
	}
	sort.Strings(rels)

	total := 0
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
		var out bytes.Buffer
		scanner := bufio.NewScanner(bytes.NewReader(content))
		scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
		first := true
		nFile := 0
		for scanner.Scan() {
			if !first {
				out.WriteByte('\n')
			}
			first = false
			line := scanner.Bytes()
			replaced := f.re.ReplaceAllFunc(line, func(match []byte) []byte {
				sub := f.re.FindSubmatch(match)
				idx := f.group
				if idx < 0 || idx >= len(sub) {
					return match
				}
				token := string(sub[idx])
				mapped, ok := f.mapping.Map(token)
				if !ok {
					return match
				}
				nFile++
				if idx == 0 {
					return []byte(mapped)
				}
				return bytes.Replace(match, sub[idx], []byte(mapped), 1)
			})
			out.Write(replaced)
		}
		if len(content) > 0 && content[len(content)-1] == '\n' {
			out.WriteByte('\n')
		}
		total += nFile
		if nFile > 0 {
			if err := os.WriteFile(path, out.Bytes(), info.Mode()); err != nil {
				return Outcome{}, err
			}
		}
	}
	if total == 0 {
		return Noop("regex matched no tokens"), nil
	}
	w.Tree().Invalidate()
	return Success, nil
}
