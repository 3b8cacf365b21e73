// Package merge implements the three-way merge and destination-side
// patch application that let a migration incorporate changes made
// directly in the destination repository between two runs of the
// pipeline (an "import tool" merge), plus a content-consistency
// manifest used to detect such changes in the first place.
package merge

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/grailbio/base/log"
)

// Result reports the outcome of a three-way merge for a single file.
// A nil Merged with Conflict and Skipped both false means the file was
// deleted; Skipped means diff3 couldn't produce usable output (e.g. a
// binary input) and origin's copy was left untouched.
type Result struct {
	Path     string
	Conflict bool
	Skipped  bool
	Merged   []byte
}

// ConflictError reports that one or more files in a merge produced
// conflict markers.
type ConflictError struct {
	Paths []string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("merge conflicts in %d file(s): %v", len(e.Paths), e.Paths)
}

// MergeImportTool three-way merges, for every path present in any of
// the three trees, the version baseline (the last migration's
// destination output), origin (the newly transformed origin content)
// and destination (the current, possibly hand-edited destination
// content), writing the result into origin in place. It mirrors
// "copybara --import" semantics: changes made by humans directly in
// the destination since the last migration are merged into origin so
// the next migration run carries them forward rather than silently
// overwriting them.
//
// Uses the external diff3 tool in its "-m -E" mode (produce merged file,
// bracketing overlapping changes with markers and no base section),
// matching the conflict-marker format Git itself uses.
func MergeImportTool(baseline, origin, destination string, env []string) ([]Result, error) {
	paths, err := unionRelPaths(baseline, origin, destination)
	if err != nil {
		return nil, err
	}
	var (
		results   []Result
		conflicts []string
	)
	for _, rel := range paths {
		res, err := mergeOne(baseline, origin, destination, rel, env)
		if err != nil {
			return nil, err
		}
		results = append(results, res)
		if res.Conflict {
			conflicts = append(conflicts, rel)
		}
		if res.Skipped {
			continue
		}
		target := filepath.Join(origin, rel)
		if res.Merged == nil {
			if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
				return nil, err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o777); err != nil {
			return nil, err
		}
		if err := os.WriteFile(target, res.Merged, 0o644); err != nil {
			return nil, err
		}
	}
	if len(conflicts) > 0 {
		return results, &ConflictError{Paths: conflicts}
	}
	return results, nil
}

func mergeOne(baselineRoot, originRoot, destRoot, rel string, env []string) (Result, error) {
	basePath := filepath.Join(baselineRoot, rel)
	originPath := filepath.Join(originRoot, rel)
	destPath := filepath.Join(destRoot, rel)

	// diff3 requires all three inputs to exist; a missing baseline or
	// origin file means the path was added on only one side, which we
	// resolve by preferring the side that has content.
	baseExists := fileExists(basePath)
	originExists := fileExists(originPath)
	destExists := fileExists(destPath)

	if !baseExists {
		if originExists && !destExists {
			content, err := os.ReadFile(originPath)
			return Result{Path: rel, Merged: content}, err
		}
		if !originExists && destExists {
			content, err := os.ReadFile(destPath)
			return Result{Path: rel, Merged: content}, err
		}
	}
	if !originExists && baseExists {
		// Removed on the origin side: an intentional deletion, applied
		// unconditionally regardless of any edits made to destination.
		return Result{Path: rel, Merged: nil}, nil
	}

	cmd := exec.Command("diff3", "-m", "-E",
		pathOrEmpty(originPath, originExists),
		pathOrEmpty(basePath, baseExists),
		pathOrEmpty(destPath, destExists),
	)
	cmd.Env = env
	out, err := cmd.Output()
	log.Debug.Printf("diff3 -m %s: %s", rel, cmd.ProcessState)
	if err != nil {
		if ee, ok := err.(*exec.ExitError); ok {
			switch ee.ExitCode() {
			case 1:
				// Conflicting: diff3 still writes merged content with
				// <<<<<<< markers to stdout, each followed by the
				// argument path that produced that side; those labels
				// are stripped so callers see bare markers.
				return Result{Path: rel, Conflict: true, Merged: stripConflictLabels(out)}, nil
			case 2:
				log.Error.Printf("merge: diff3 %s: skipping, leaving origin's copy untouched", rel)
				return Result{Path: rel, Skipped: true}, nil
			default:
				return Result{}, fmt.Errorf("merge: diff3 %s: exit %d: %s", rel, ee.ExitCode(), string(ee.Stderr))
			}
		}
		return Result{}, fmt.Errorf("merge: diff3 %s: %w", rel, err)
	}
	return Result{Path: rel, Merged: out}, nil
}

// stripConflictLabels drops the trailing argument-path label diff3
// appends to each "<<<<<<<"/">>>>>>>" marker line, leaving the bare
// marker so merged output doesn't depend on the absolute temp paths
// the merge happened to run under.
func stripConflictLabels(b []byte) []byte {
	lines := bytes.Split(b, []byte("\n"))
	for i, line := range lines {
		switch {
		case bytes.HasPrefix(line, []byte("<<<<<<<")):
			lines[i] = []byte("<<<<<<<")
		case bytes.HasPrefix(line, []byte(">>>>>>>")):
			lines[i] = []byte(">>>>>>>")
		}
	}
	return bytes.Join(lines, []byte("\n"))
}

func pathOrEmpty(path string, exists bool) string {
	if exists {
		return path
	}
	return os.DevNull
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func unionRelPaths(roots ...string) ([]string, error) {
	seen := map[string]bool{}
	var ordered []string
	for _, root := range roots {
		err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				if os.IsNotExist(err) {
					return nil
				}
				return err
			}
			if info.IsDir() {
				return nil
			}
			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			if !seen[rel] {
				seen[rel] = true
				ordered = append(ordered, rel)
			}
			return nil
		})
		if err != nil && !os.IsNotExist(err) {
			return nil, err
		}
	}
	return ordered, nil
}
