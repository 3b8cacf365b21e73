package transform

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/grailbio/copybara/glob"
)

// removeOp deletes every file matched by a Glob. It has no automatic
// inverse: the catalog requires Remove to appear only as the reverse
// half of an ExplicitReversal, paired with whatever forward
// transformation created the files.
type removeOp struct {
	g glob.Glob
}

// Remove returns a Transformation that deletes every file matching g.
func Remove(g glob.Glob) Transformation {
	return &removeOp{g: g}
}

func (r *removeOp) Describe() string { return fmt.Sprintf("remove(%s)", r.g) }

func (r *removeOp) CanReverse() bool { return false }

func (r *removeOp) Reverse() (Transformation, error) {
	return nil, &NonReversibleError{Component: "remove", Reason: "the forward transform must provide the counterpart via ExplicitReversal"}
}

func (r *removeOp) Transform(w *Work) (Outcome, error) {
	files, err := w.Tree().Find(r.g)
	if err != nil {
		return Outcome{}, err
	}
	if len(files) == 0 {
		return Noop("no files matched"), nil
	}
	var rels []string
	for rel := range files {
		rels = append(rels, rel)
	}
	sort.Strings(rels)
	for _, rel := range rels {
		if err := os.Remove(filepath.Join(w.CheckoutDir, rel)); err != nil && !os.IsNotExist(err) {
			return Outcome{}, err
		}
	}
	w.Tree().Invalidate()
	return Success, nil
}
