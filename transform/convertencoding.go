package transform

import (
	"fmt"
	"os"
	"sort"

	"github.com/grailbio/copybara/glob"
	"golang.org/x/text/encoding/ianaindex"
)

// convertEncodingOp re-encodes selected files from one charset to
// another, byte for byte, without touching file structure.
type convertEncodingOp struct {
	before, after string
	paths         glob.Glob
}

// ConvertEncoding reads each file matched by paths as the before
// charset and rewrites it re-encoded as after (IANA charset names,
// e.g. "ISO-8859-1", "UTF-8", "Shift_JIS").
func ConvertEncoding(before, after string, paths glob.Glob) (Transformation, error) {
	if _, err := ianaindex.IANA.Encoding(before); err != nil {
		return nil, &UserConfigError{Component: "convert_encoding", Operand: before, Reason: "unknown charset"}
	}
	if _, err := ianaindex.IANA.Encoding(after); err != nil {
		return nil, &UserConfigError{Component: "convert_encoding", Operand: after, Reason: "unknown charset"}
	}
	return &convertEncodingOp{before: before, after: after, paths: paths}, nil
}

func (c *convertEncodingOp) Describe() string {
	return fmt.Sprintf("convert_encoding(%s -> %s)", c.before, c.after)
}

func (c *convertEncodingOp) CanReverse() bool { return true }

func (c *convertEncodingOp) Reverse() (Transformation, error) {
	return ConvertEncoding(c.after, c.before, c.paths)
}

func (c *convertEncodingOp) Transform(w *Work) (Outcome, error) {
	files, err := w.Tree().Find(c.paths)
	if err != nil {
		return Outcome{}, err
	}
	if len(files) == 0 {
		return Noop("no files matched"), nil
	}
	beforeEnc, err := ianaindex.IANA.Encoding(c.before)
	if err != nil {
		return Outcome{}, err
	}
	afterEnc, err := ianaindex.IANA.Encoding(c.after)
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
		raw, err := os.ReadFile(path)
		if err != nil {
			return Outcome{}, err
		}
		decoded, err := beforeEnc.NewDecoder().Bytes(raw)
		if err != nil {
			return Outcome{}, fmt.Errorf("convert_encoding: decode %s as %s: %w", rel, c.before, err)
		}
		encoded, err := afterEnc.NewEncoder().Bytes(decoded)
		if err != nil {
			return Outcome{}, fmt.Errorf("convert_encoding: encode %s as %s: %w", rel, c.after, err)
		}
		info, err := os.Stat(path)
		if err != nil {
			return Outcome{}, err
		}
		if err := os.WriteFile(path, encoded, info.Mode()); err != nil {
			return Outcome{}, err
		}
	}
	w.Tree().Invalidate()
	return Success, nil
}
