// Package console implements the write-only status sink that the
// transform package's Work.console() hands to every transformation:
// colorized success/noop/fail reporting, a size-capped passthrough for
// subprocess output, and a best-effort in-process diff preview for
// interactive use.
package console

import (
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/sergi/go-diff/diffmatchpatch"
)

// Console implements transform.Console, writing leveled, colorized
// lines to an underlying writer (typically os.Stderr).
type Console struct {
	out io.Writer

	successColor *color.Color
	noopColor    *color.Color
	failColor    *color.Color
	infoColor    *color.Color
}

// New returns a Console writing to out. Pass nil to default to
// os.Stderr.
func New(out io.Writer) *Console {
	if out == nil {
		out = os.Stderr
	}
	return &Console{
		out:          out,
		successColor: color.New(color.FgGreen),
		noopColor:    color.New(color.FgYellow),
		failColor:    color.New(color.FgRed, color.Bold),
		infoColor:    color.New(color.FgCyan),
	}
}

// Infof, Warnf and Errorf satisfy transform.Console, so a *Console can
// be passed directly as the sink a Work carries through a pipeline
// run.
func (c *Console) Infof(format string, args ...interface{}) {
	c.infoColor.Fprintf(c.out, format+"\n", args...)
}

func (c *Console) Warnf(format string, args ...interface{}) {
	c.noopColor.Fprintf(c.out, "warn: "+format+"\n", args...)
}

func (c *Console) Errorf(format string, args ...interface{}) {
	c.failColor.Fprintf(c.out, "error: "+format+"\n", args...)
}

func (c *Console) Success(msg string) { c.successColor.Fprintf(c.out, "ok: %s\n", msg) }
func (c *Console) Noop(msg string)    { c.noopColor.Fprintf(c.out, "noop: %s\n", msg) }
func (c *Console) Fail(msg string)    { c.failColor.Fprintf(c.out, "FAIL: %s\n", msg) }

// Progress reports a transfer in human-readable units, e.g. while
// copying large trees between checkouts.
func (c *Console) Progress(bytesDone, bytesTotal uint64) {
	fmt.Fprintf(c.out, "%s / %s\n", humanize.Bytes(bytesDone), humanize.Bytes(bytesTotal))
}

// PreviewDiff prints a short, colorized, character-level preview of the
// change between before and after for interactive review. This is
// never the patch applied to disk — that's always the unified diff
// the diffpatch package computes via the external git binary — it's
// purely a human-facing summary.
func (c *Console) PreviewDiff(label, before, after string) {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(before, after, false)
	c.infoColor.Fprintf(c.out, "--- %s ---\n", label)
	fmt.Fprintln(c.out, dmp.DiffPrettyText(diffs))
}
