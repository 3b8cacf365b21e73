// Package glob implements Copybara's path glob algebra: immutable
// include/exclude leaf patterns composed with union and difference,
// matched against checkout-relative paths with the shell-style grammar
// (*, **, ?, [...], {a,b}, backslash escapes).
//
// Matching itself is delegated to doublestar, which implements that
// grammar; this package owns composition, canonicalization, and the
// Roots/Tips prefix analysis that callers use to bound filesystem
// traversal without ever following a path outside what the glob can
// possibly match.
package glob

import (
	"fmt"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Glob is an immutable, composable path matcher. Implementations are
// Leaf, union, and difference; all are safe for concurrent use since
// none carries mutable state after construction.
type Glob interface {
	// Matches reports whether relPath (checkout-relative, normalized,
	// forward-slash separated) is selected by the glob.
	Matches(relPath string) bool

	// Roots returns the minimal antichain of directory prefixes under
	// which every possible match must live. A traversal that starts at
	// these roots and nowhere else cannot miss a match.
	Roots() []string

	// Tips returns the maximal antichain of directory prefixes under
	// which every path is guaranteed to match (no filtering needed
	// below a tip).
	Tips() []string

	fmt.Stringer
}

// InvalidGlobError reports a malformed pattern: empty string or
// unbalanced brackets.
type InvalidGlobError struct {
	Pattern string
	Reason  string
}

func (e *InvalidGlobError) Error() string {
	return fmt.Sprintf("invalid glob pattern %q: %s", e.Pattern, e.Reason)
}

// InvalidCompositionError reports an attempt to compose globs in a way
// the algebra forbids (currently: a nil operand).
type InvalidCompositionError struct {
	Op     string
	Reason string
}

func (e *InvalidCompositionError) Error() string {
	return fmt.Sprintf("invalid glob composition %s: %s", e.Op, e.Reason)
}

func validatePattern(p string) error {
	if p == "" {
		return &InvalidGlobError{Pattern: p, Reason: "empty pattern"}
	}
	if !doublestar.ValidatePattern(p) {
		return &InvalidGlobError{Pattern: p, Reason: "unbalanced brackets or malformed class"}
	}
	return nil
}

// Leaf returns a Glob matching any relative path that satisfies at
// least one include pattern and no exclude pattern. Both slices are
// sorted on construction so that structurally-sorted leaves compare
// equal via reflect.DeepEqual / testify's require.Equal.
func Leaf(include, exclude []string) (Glob, error) {
	if len(include) == 0 {
		return nil, &InvalidGlobError{Reason: "leaf requires at least one include pattern"}
	}
	inc := append([]string(nil), include...)
	exc := append([]string(nil), exclude...)
	for _, p := range inc {
		if err := validatePattern(p); err != nil {
			return nil, err
		}
	}
	for _, p := range exc {
		if err := validatePattern(p); err != nil {
			return nil, err
		}
	}
	sort.Strings(inc)
	sort.Strings(exc)
	return &leaf{include: inc, exclude: exc}, nil
}

type leaf struct {
	include, exclude []string
}

func (l *leaf) Matches(relPath string) bool {
	relPath = strings.TrimPrefix(relPath, "/")
	matched := false
	for _, p := range l.include {
		if ok, _ := doublestar.Match(p, relPath); ok {
			matched = true
			break
		}
	}
	if !matched {
		return false
	}
	for _, p := range l.exclude {
		if ok, _ := doublestar.Match(p, relPath); ok {
			return false
		}
	}
	return true
}

func (l *leaf) Roots() []string {
	roots := make([]string, 0, len(l.include))
	for _, p := range l.include {
		roots = append(roots, prefixBeforeMeta(p))
	}
	return minimalAntichain(roots)
}

func (l *leaf) Tips() []string {
	if len(l.exclude) > 0 {
		// A nonempty exclude list can, in principle, carve a hole out of
		// any prefix, so no tip is guaranteed unconditionally.
		return nil
	}
	tips := make([]string, 0, len(l.include))
	for _, p := range l.include {
		if t, ok := fullPrefix(p); ok {
			tips = append(tips, t)
		}
	}
	return maximalAntichain(tips)
}

func (l *leaf) String() string {
	return fmt.Sprintf("glob(include=%v, exclude=%v)", l.include, l.exclude)
}

// Union returns a Glob matching any path matched by a or b. Adjacent
// union nodes are flattened into a single n-ary node so repeated
// unions don't grow the tree's height.
func Union(a, b Glob) (Glob, error) {
	if a == nil || b == nil {
		return nil, &InvalidCompositionError{Op: "union", Reason: "operand is not a Glob"}
	}
	var children []Glob
	if u, ok := a.(*unionGlob); ok {
		children = append(children, u.children...)
	} else {
		children = append(children, a)
	}
	if u, ok := b.(*unionGlob); ok {
		children = append(children, u.children...)
	} else {
		children = append(children, b)
	}
	return &unionGlob{children: children}, nil
}

type unionGlob struct {
	children []Glob
}

func (u *unionGlob) Matches(relPath string) bool {
	for _, c := range u.children {
		if c.Matches(relPath) {
			return true
		}
	}
	return false
}

func (u *unionGlob) Roots() []string {
	var all []string
	for _, c := range u.children {
		all = append(all, c.Roots()...)
	}
	return minimalAntichain(all)
}

func (u *unionGlob) Tips() []string {
	var all []string
	for _, c := range u.children {
		all = append(all, c.Tips()...)
	}
	return maximalAntichain(all)
}

func (u *unionGlob) String() string {
	parts := make([]string, len(u.children))
	for i, c := range u.children {
		parts[i] = c.String()
	}
	return "union(" + strings.Join(parts, ", ") + ")"
}

// Difference returns a Glob matching paths matched by a but not by b.
// Chained differences are flattened using (a-b)-c = a-(b∪c), which
// keeps height bounded the same way Union does.
func Difference(a, b Glob) (Glob, error) {
	if a == nil || b == nil {
		return nil, &InvalidCompositionError{Op: "difference", Reason: "operand is not a Glob"}
	}
	if d, ok := a.(*differenceGlob); ok {
		merged, err := Union(d.subtrahend, b)
		if err != nil {
			return nil, err
		}
		return &differenceGlob{minuend: d.minuend, subtrahend: merged}, nil
	}
	return &differenceGlob{minuend: a, subtrahend: b}, nil
}

type differenceGlob struct {
	minuend, subtrahend Glob
}

func (d *differenceGlob) Matches(relPath string) bool {
	return d.minuend.Matches(relPath) && !d.subtrahend.Matches(relPath)
}

func (d *differenceGlob) Roots() []string {
	return d.minuend.Roots()
}

func (d *differenceGlob) Tips() []string {
	subRoots := d.subtrahend.Roots()
	var tips []string
	for _, t := range d.minuend.Tips() {
		if !anyPrefixOverlap(t, subRoots) {
			tips = append(tips, t)
		}
	}
	return maximalAntichain(tips)
}

func (d *differenceGlob) String() string {
	return fmt.Sprintf("difference(%s, %s)", d.minuend, d.subtrahend)
}

func anyPrefixOverlap(tip string, roots []string) bool {
	for _, r := range roots {
		if isPrefixOrEqual(tip, r) || isPrefixOrEqual(r, tip) {
			return true
		}
	}
	return false
}

// prefixBeforeMeta returns the directory prefix of p up to (but
// excluding) the first path component containing an unescaped meta
// character. A pattern starting with "**" yields "".
func prefixBeforeMeta(p string) string {
	comps := strings.Split(p, "/")
	var kept []string
	for _, c := range comps {
		if hasUnescapedMeta(c) {
			break
		}
		kept = append(kept, unescapeLiteral(c))
	}
	return strings.Join(kept, "/")
}

// fullPrefix reports the prefix before the first meta component and
// whether everything after that prefix is exactly "**" (i.e. the
// pattern unconditionally includes the whole subtree below it).
func fullPrefix(p string) (string, bool) {
	comps := strings.Split(p, "/")
	var kept []string
	i := 0
	for ; i < len(comps); i++ {
		if hasUnescapedMeta(comps[i]) {
			break
		}
		kept = append(kept, unescapeLiteral(comps[i]))
	}
	rest := comps[i:]
	if len(rest) == 1 && rest[0] == "**" {
		return strings.Join(kept, "/"), true
	}
	if len(rest) == 0 {
		// No meta at all: pattern names a single file, not a subtree.
		return "", false
	}
	return "", false
}

func hasUnescapedMeta(comp string) bool {
	escaped := false
	for _, r := range comp {
		if escaped {
			escaped = false
			continue
		}
		switch r {
		case '\\':
			escaped = true
		case '*', '?', '[', '{':
			return true
		}
	}
	return false
}

func unescapeLiteral(comp string) string {
	var b strings.Builder
	escaped := false
	for _, r := range comp {
		if escaped {
			b.WriteRune(r)
			escaped = false
			continue
		}
		if r == '\\' {
			escaped = true
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isPrefixOrEqual(p, ancestor string) bool {
	if ancestor == "" {
		return true
	}
	if p == ancestor {
		return true
	}
	return strings.HasPrefix(p, ancestor+"/")
}

// minimalAntichain drops any prefix that is a descendant of another
// prefix already in the set, and de-duplicates.
func minimalAntichain(prefixes []string) []string {
	uniq := dedupe(prefixes)
	sort.Strings(uniq)
	var out []string
	for _, p := range uniq {
		redundant := false
		for _, o := range out {
			if isPrefixOrEqual(p, o) {
				redundant = true
				break
			}
		}
		if !redundant {
			out = append(out, p)
		}
	}
	return out
}

// maximalAntichain drops any prefix that is an ancestor of another
// (more specific, still-covering) prefix already in the set.
func maximalAntichain(prefixes []string) []string {
	uniq := dedupe(prefixes)
	sort.Slice(uniq, func(i, j int) bool { return len(uniq[i]) > len(uniq[j]) })
	var out []string
	for _, p := range uniq {
		redundant := false
		for _, o := range out {
			if isPrefixOrEqual(o, p) {
				redundant = true
				break
			}
		}
		if !redundant {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

func dedupe(ss []string) []string {
	seen := make(map[string]bool, len(ss))
	var out []string
	for _, s := range ss {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
