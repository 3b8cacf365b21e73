package transform

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/grailbio/copybara/glob"
)

// moveCopy implements both Move and Copy: Copy is Move with
// keepSource=true, matching the catalog contract that Copy is "as
// Move but leaves the source intact".
type moveCopy struct {
	beforeRaw, afterRaw string
	paths               glob.Glob
	overwrite           bool
	regexGroups         map[string]string
	keepSource          bool

	beforeTokens, afterTokens []templateToken // only set when regexGroups != nil
}

// MoveOption configures Move/Copy.
type MoveOption func(*moveCopy)

// WithPaths restricts a regex-templated Move/Copy to files matched by
// g. Ignored for the plain before/after form.
func WithPaths(g glob.Glob) MoveOption { return func(m *moveCopy) { m.paths = g } }

// WithOverwrite allows the destination to be clobbered.
func WithOverwrite(overwrite bool) MoveOption { return func(m *moveCopy) { m.overwrite = overwrite } }

// WithRegexGroups switches Move/Copy into its regex-templated form:
// before/after are templates interpolated from named groups captured
// against each selected file's relative path.
func WithRegexGroups(groups map[string]string) MoveOption {
	return func(m *moveCopy) { m.regexGroups = groups }
}

func newMoveCopy(component, before, after string, keepSource bool, opts ...MoveOption) (*moveCopy, error) {
	m := &moveCopy{beforeRaw: before, afterRaw: after, keepSource: keepSource}
	for _, o := range opts {
		o(m)
	}
	if m.regexGroups != nil {
		bt, err := parseTemplate(component, before)
		if err != nil {
			return nil, err
		}
		at, err := parseTemplate(component, after)
		if err != nil {
			return nil, err
		}
		if err := validateGroupSymmetry(component, bt, at, m.regexGroups, false); err != nil {
			return nil, err
		}
		m.beforeTokens, m.afterTokens = bt, at
		return m, nil
	}
	if _, err := ValidateRelPath(component, before, false); err != nil {
		return nil, err
	}
	if _, err := ValidateRelPath(component, after, true); err != nil {
		return nil, err
	}
	return m, nil
}

// Move renames before to after. If both resolve to directories, the
// contents of before are merged into after. after="" moves before's
// contents to the checkout root and requires before to be a
// directory.
func Move(before, after string, opts ...MoveOption) (Transformation, error) {
	return newMoveCopy("move", before, after, false, opts...)
}

// Copy is Move without removing the source.
func Copy(before, after string, opts ...MoveOption) (Transformation, error) {
	return newMoveCopy("copy", before, after, true, opts...)
}

func (m *moveCopy) Describe() string {
	verb := "move"
	if m.keepSource {
		verb = "copy"
	}
	return fmt.Sprintf("%s(%s, %s)", verb, m.beforeRaw, m.afterRaw)
}

func (m *moveCopy) CanReverse() bool {
	if m.keepSource {
		return false
	}
	return !m.overwrite
}

func (m *moveCopy) Reverse() (Transformation, error) {
	component := "move"
	if m.keepSource {
		return nil, &NonReversibleError{Component: "copy", Reason: "copy is reversible only inside an explicit reversal block"}
	}
	if m.overwrite {
		return nil, &NonReversibleError{Component: component, Reason: "overwrite=true discards the original destination, so the source set cannot be recovered"}
	}
	opts := []MoveOption{}
	if m.paths != nil {
		opts = append(opts, WithPaths(m.paths))
	}
	if m.regexGroups != nil {
		opts = append(opts, WithRegexGroups(m.regexGroups))
	}
	return Move(m.afterRaw, m.beforeRaw, opts...)
}

func (m *moveCopy) Transform(w *Work) (Outcome, error) {
	if m.regexGroups != nil {
		return m.transformRegex(w)
	}
	return m.transformPlain(w)
}

func (m *moveCopy) transformPlain(w *Work) (Outcome, error) {
	w.Tree().Invalidate()
	srcPath := filepath.Join(w.CheckoutDir, m.beforeRaw)
	info, err := os.Lstat(srcPath)
	if err != nil {
		if os.IsNotExist(err) {
			if w.IgnoreNoop {
				return Noop(fmt.Sprintf("source %q does not exist", m.beforeRaw)), nil
			}
			return Outcome{}, &SourceDoesNotExistError{Path: m.beforeRaw}
		}
		return Outcome{}, err
	}

	if info.IsDir() {
		return m.transformDir(w, srcPath)
	}

	if m.afterRaw == "" {
		return Outcome{}, &UserConfigError{Component: "move", Operand: m.beforeRaw, Reason: "moving to the repo root requires before to be a directory"}
	}
	destPath, err := JoinSafe(w.CheckoutDir, m.afterRaw)
	if err != nil {
		return Outcome{}, err
	}
	if err := placeFile(srcPath, destPath, m.overwrite, m.keepSource); err != nil {
		return Outcome{}, err
	}
	return Success, nil
}

func (m *moveCopy) transformDir(w *Work, srcRoot string) (Outcome, error) {
	var destRoot string
	if m.afterRaw == "" {
		destRoot = w.CheckoutDir
	} else {
		var err error
		destRoot, err = JoinSafe(w.CheckoutDir, m.afterRaw)
		if err != nil {
			return Outcome{}, err
		}
		if fi, err := os.Lstat(destRoot); err == nil && !fi.IsDir() {
			if !m.overwrite {
				return Outcome{}, &ValidationError{Component: "move", Operand: m.afterRaw, Reason: "destination exists and is a file"}
			}
			if err := os.Remove(destRoot); err != nil {
				return Outcome{}, err
			}
		}
	}
	if err := os.MkdirAll(destRoot, 0o777); err != nil {
		return Outcome{}, err
	}

	var files []string
	err := filepath.Walk(srcRoot, func(p string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() || fi.Mode()&os.ModeSymlink != 0 {
			return nil
		}
		files = append(files, p)
		return nil
	})
	if err != nil {
		return Outcome{}, err
	}
	sort.Strings(files)
	for _, f := range files {
		rel, err := filepath.Rel(srcRoot, f)
		if err != nil {
			return Outcome{}, err
		}
		dest := filepath.Join(destRoot, rel)
		if destRoot != w.CheckoutDir && !withinRoot(w.CheckoutDir, dest) {
			return Outcome{}, &PathEscapeError{Path: rel}
		}
		if err := placeFile(f, dest, m.overwrite, m.keepSource); err != nil {
			return Outcome{}, err
		}
	}
	if !m.keepSource {
		removeEmptyDirs(srcRoot)
	}
	return Success, nil
}

func (m *moveCopy) transformRegex(w *Work) (Outcome, error) {
	w.Tree().Invalidate()
	p := m.paths
	if p == nil {
		var err error
		p, err = glob.Leaf([]string{"**"}, nil)
		if err != nil {
			return Outcome{}, err
		}
	}
	files, err := w.Tree().Find(p)
	if err != nil {
		return Outcome{}, err
	}
	re, err := compileTemplateRegex("move", m.beforeTokens, m.regexGroups, false)
	if err != nil {
		return Outcome{}, err
	}
	var rels []string
	for rel := range files {
		rels = append(rels, rel)
	}
	sort.Strings(rels)

	matched := 0
	for _, rel := range rels {
		sub := re.FindStringSubmatch(rel)
		if sub == nil {
			continue
		}
		matched++
		groups := namedSubmatches(re, sub)
		dest, err := renderTemplate(m.afterTokens, groups)
		if err != nil {
			return Outcome{}, err
		}
		destPath, err := JoinSafe(w.CheckoutDir, dest)
		if err != nil {
			return Outcome{}, err
		}
		srcPath := filepath.Join(w.CheckoutDir, rel)
		if destPath == srcPath {
			continue
		}
		if err := placeFile(srcPath, destPath, m.overwrite, m.keepSource); err != nil {
			return Outcome{}, err
		}
	}
	if matched == 0 {
		return Noop("no files matched the move/copy regex"), nil
	}
	return Success, nil
}

func withinRoot(root, p string) bool {
	return p == root || len(p) > len(root) && p[:len(root)+1] == root+string(filepath.Separator)
}

// placeFile moves or copies src onto dest, enforcing the
// overwrite policy and creating dest's parent directory.
func placeFile(src, dest string, overwrite, keepSource bool) error {
	if fi, err := os.Lstat(dest); err == nil {
		if fi.IsDir() {
			return &ValidationError{Component: "move", Operand: dest, Reason: "destination is a directory"}
		}
		if !overwrite {
			return &ValidationError{Component: "move", Operand: dest, Reason: "destination already exists"}
		}
		if err := os.Remove(dest); err != nil {
			return err
		}
	} else if !os.IsNotExist(err) {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o777); err != nil {
		return err
	}
	if keepSource {
		return copyFile(src, dest)
	}
	if err := os.Rename(src, dest); err != nil {
		// Cross-device moves can't use rename(2); fall back to copy+remove.
		if err := copyFile(src, dest); err != nil {
			return err
		}
		return os.Remove(src)
	}
	return nil
}

func copyFile(src, dest string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// removeEmptyDirs removes root and any directories under it that are
// empty, deepest first.
func removeEmptyDirs(root string) {
	var dirs []string
	_ = filepath.Walk(root, func(p string, fi os.FileInfo, err error) error {
		if err == nil && fi.IsDir() {
			dirs = append(dirs, p)
		}
		return nil
	})
	sort.Sort(sort.Reverse(sort.StringSlice(dirs)))
	for _, d := range dirs {
		_ = os.Remove(d) // no-op if not empty
	}
}
