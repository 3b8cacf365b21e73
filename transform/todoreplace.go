package transform

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/grailbio/copybara/glob"
)

// TodoMode selects how TodoReplace rewrites a tag's user list.
type TodoMode int

const (
	// MapOrIgnore maps each user through mapping; users absent from
	// mapping are left untouched.
	MapOrIgnore TodoMode = iota
	// MapOrFail maps each user through mapping; a user absent from
	// mapping (and not matched by the ignore regex) is a hard failure.
	MapOrFail
	// MapOrDefault maps each user through mapping, substituting
	// Default for any user absent from mapping.
	MapOrDefault
	// UseDefault replaces the entire user list with Default.
	UseDefault
	// ScrubNames drops the parenthesized user list entirely.
	ScrubNames
)

type todoReplaceOp struct {
	tags    []string
	mode    TodoMode
	mapping MapMapping
	def     string
	ignore  *regexp.Regexp
	paths   glob.Glob
	re      *regexp.Regexp
}

// TodoReplaceOption configures TodoReplace.
type TodoReplaceOption func(*todoReplaceOp)

// WithTodoMapping supplies the user-name mapping for MapOrIgnore,
// MapOrFail, and MapOrDefault.
func WithTodoMapping(mapping MapMapping) TodoReplaceOption {
	return func(t *todoReplaceOp) { t.mapping = mapping }
}

// WithTodoDefault supplies the replacement for MapOrDefault/UseDefault.
func WithTodoDefault(def string) TodoReplaceOption { return func(t *todoReplaceOp) { t.def = def } }

// WithTodoIgnore exempts user tokens matching re from mapping/failure.
func WithTodoIgnore(re *regexp.Regexp) TodoReplaceOption {
	return func(t *todoReplaceOp) { t.ignore = re }
}

// WithTodoPaths restricts TodoReplace to files matched by g.
func WithTodoPaths(g glob.Glob) TodoReplaceOption { return func(t *todoReplaceOp) { t.paths = g } }

// TodoReplace rewrites "TAG(user1, user2, ...): ..." markers for each
// tag in tags, per mode.
func TodoReplace(tags []string, mode TodoMode, opts ...TodoReplaceOption) (Transformation, error) {
	t := &todoReplaceOp{tags: append([]string(nil), tags...), mode: mode}
	for _, o := range opts {
		o(t)
	}
	if (mode == MapOrIgnore || mode == MapOrFail || mode == MapOrDefault) && t.mapping == nil {
		return nil, &UserConfigError{Component: "todo_replace", Reason: "mode requires a mapping"}
	}
	if (mode == MapOrDefault || mode == UseDefault) && t.def == "" {
		return nil, &UserConfigError{Component: "todo_replace", Reason: "mode requires a default"}
	}
	escaped := make([]string, len(t.tags))
	for i, tag := range t.tags {
		escaped[i] = regexp.QuoteMeta(tag)
	}
	re, err := regexp.Compile(`(` + strings.Join(escaped, "|") + `)\(([^)]*)\)`)
	if err != nil {
		return nil, &UserConfigError{Component: "todo_replace", Reason: err.Error()}
	}
	t.re = re
	return t, nil
}

func (t *todoReplaceOp) Describe() string { return fmt.Sprintf("todo_replace(%v)", t.tags) }

func (t *todoReplaceOp) CanReverse() bool {
	if t.mode != MapOrIgnore && t.mode != MapOrFail {
		return false
	}
	_, err := t.mapping.ReverseMapper()
	return err == nil
}

func (t *todoReplaceOp) Reverse() (Transformation, error) {
	if !t.CanReverse() {
		return nil, &NonReversibleError{Component: "todo_replace", Reason: "mode discards information (default/scrub) or mapping is not bidirectional"}
	}
	rm, err := t.mapping.ReverseMapper()
	if err != nil {
		return nil, err
	}
	var opts []TodoReplaceOption
	opts = append(opts, WithTodoMapping(rm.(MapMapping)))
	if t.ignore != nil {
		opts = append(opts, WithTodoIgnore(t.ignore))
	}
	if t.paths != nil {
		opts = append(opts, WithTodoPaths(t.paths))
	}
	return TodoReplace(t.tags, t.mode, opts...)
}

func (t *todoReplaceOp) selection(w *Work) (map[string]bool, error) {
	if t.paths != nil {
		return w.Tree().Find(t.paths)
	}
	all, err := glob.Leaf([]string{"**"}, nil)
	if err != nil {
		return nil, err
	}
	return w.Tree().Find(all)
}

func (t *todoReplaceOp) rewriteUsers(users string) (string, error) {
	parts := strings.Split(users, ",")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	switch t.mode {
	case UseDefault:
		return t.def, nil
	case ScrubNames:
		return "", nil
	}
	out := make([]string, len(parts))
	for i, u := range parts {
		if t.ignore != nil && t.ignore.MatchString(u) {
			out[i] = u
			continue
		}
		mapped, ok := t.mapping.Map(u)
		switch {
		case ok:
			out[i] = mapped
		case t.mode == MapOrIgnore:
			out[i] = u
		case t.mode == MapOrDefault:
			out[i] = t.def
		default: // MapOrFail
			return "", &ValidationError{Component: "todo_replace", Operand: u, Reason: "no mapping and not covered by ignore"}
		}
	}
	return strings.Join(out, ", "), nil
}

func (t *todoReplaceOp) Transform(w *Work) (Outcome, error) {
	files, err := t.selection(w)
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
		var rewriteErr error
		n := 0
		out := t.re.ReplaceAllFunc(content, func(match []byte) []byte {
			sub := t.re.FindSubmatch(match)
			if sub == nil {
				return match
			}
			tag, users := string(sub[1]), string(sub[2])
			rewritten, err := t.rewriteUsers(users)
			if err != nil {
				if rewriteErr == nil {
					rewriteErr = err
				}
				return match
			}
			n++
			if t.mode == ScrubNames {
				return []byte(tag)
			}
			return []byte(tag + "(" + rewritten + ")")
		})
		if rewriteErr != nil {
			return Outcome{}, rewriteErr
		}
		if n > 0 {
			if err := os.WriteFile(path, out, info.Mode()); err != nil {
				return Outcome{}, err
			}
		}
		total += n
	}
	if total == 0 {
		return Noop("no tag markers found"), nil
	}
	w.Tree().Invalidate()
	return Success, nil
}
