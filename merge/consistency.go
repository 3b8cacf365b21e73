package merge

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/grailbio/copybara/diffpatch"
)

// HashAlgorithm identifies a supported content-hash function for a
// ConsistencyFile. Only sha256 is supported today; the field exists so
// the serialized format can grow without a version bump.
type HashAlgorithm string

const HashSHA256 HashAlgorithm = "sha256"

func (h HashAlgorithm) size() (int, error) {
	switch h {
	case HashSHA256:
		return sha256.Size * 2, nil // hex-encoded
	default:
		return 0, fmt.Errorf("merge: unsupported hash algorithm %q", h)
	}
}

const consistencyHeader = "# This file is generated by Copybara. Do not edit.\n"

// ConsistencyFile is a self-describing artifact recording, for every
// tracked file in a destination tree, its content hash, plus the
// hunked diff needed to reverse the import back to its baseline.
type ConsistencyFile struct {
	Version   int
	Algorithm HashAlgorithm
	Entries   []Entry
	DiffBytes []byte
}

// Entry is one path/hash pair, always normalized relative and
// forward-slash separated.
type Entry struct {
	Path string
	Hash string
}

// FullFileDiffError reports that a ConsistencyFile diff would have had
// to contain a whole-file add or delete, which the format forbids
// since it can't be safely reversed against arbitrary destination
// drift.
type FullFileDiffError struct {
	Path string
	Hint string
}

func (e *FullFileDiffError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("merge: full-file diff for %s: %s", e.Path, e.Hint)
	}
	return fmt.Sprintf("merge: full-file diff for %s", e.Path)
}

// Generate walks destination (never descending into symlinked
// directories, and skipping symlinks entirely), hashing every regular
// file for which keep returns true, then computes the baseline→
// destination diff and bundles it with the hash manifest. It refuses
// to produce a file whose diff contains a whole-file add or delete,
// since such a diff cannot be reversed without assuming content that
// isn't actually recorded anywhere in the manifest.
func Generate(baseline, destination string, algo HashAlgorithm, env []string, keep func(relPath string) bool) (*ConsistencyFile, error) {
	if _, err := algo.size(); err != nil {
		return nil, err
	}
	entries, err := hashTree(destination, algo, keep)
	if err != nil {
		return nil, err
	}
	diffBytes, err := diffpatch.Diff(baseline, destination, true, env)
	if err != nil {
		return nil, err
	}
	if err := rejectFullFileDiffs(diffBytes); err != nil {
		return nil, err
	}
	return &ConsistencyFile{Version: 1, Algorithm: algo, Entries: entries, DiffBytes: diffBytes}, nil
}

func hashTree(root string, algo HashAlgorithm, keep func(string) bool) ([]Entry, error) {
	var entries []Entry
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if path != root {
			if info.Mode()&os.ModeSymlink != 0 {
				return nil
			}
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if keep != nil && !keep(rel) {
			return nil
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		h := sha256.New()
		if _, err := io.Copy(h, f); err != nil {
			return err
		}
		entries = append(entries, Entry{Path: rel, Hash: hex.EncodeToString(h.Sum(nil))})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries, nil
}

func rejectFullFileDiffs(diffBytes []byte) error {
	lines := strings.Split(string(diffBytes), "\n")
	var currentPath string
	for _, line := range lines {
		if strings.HasPrefix(line, "diff --git ") {
			parts := strings.Fields(strings.TrimPrefix(line, "diff --git "))
			if len(parts) >= 1 {
				currentPath = parts[0]
			}
		}
		isNewFile := strings.HasPrefix(line, "new file mode")
		isDeletedFile := strings.HasPrefix(line, "deleted file mode")
		if isNewFile || isDeletedFile {
			return &FullFileDiffError{Path: currentPath, Hint: fullFileHint(currentPath)}
		}
	}
	return nil
}

func fullFileHint(path string) string {
	base := filepath.Base(path)
	switch {
	case strings.HasSuffix(base, ".orig"):
		return ".orig files may need to be cleaned up"
	case strings.HasPrefix(base, "."):
		return "dot files may not be tracked"
	default:
		return ""
	}
}

// Marshal serializes a ConsistencyFile to its on-disk form: a comment
// header, the algorithm identifier, the sorted "path hash" list, then
// a blank line and the raw diff bytes.
func (c *ConsistencyFile) Marshal() []byte {
	var b bytes.Buffer
	b.WriteString(consistencyHeader)
	fmt.Fprintf(&b, "version %d\n", c.Version)
	fmt.Fprintf(&b, "algorithm %s\n", c.Algorithm)
	for _, e := range c.Entries {
		fmt.Fprintf(&b, "%s %s\n", e.Path, e.Hash)
	}
	b.WriteString("\n")
	b.Write(c.DiffBytes)
	return b.Bytes()
}

// ParseConsistencyFile parses the serialized form, validating path
// normalization and hash shape against the algorithm the file itself
// declares.
func ParseConsistencyFile(data []byte) (*ConsistencyFile, error) {
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 32*1024*1024)

	cf := &ConsistencyFile{}
	var sawVersion, sawAlgo bool
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			break
		}
		if strings.HasPrefix(line, "#") {
			continue
		}
		switch {
		case strings.HasPrefix(line, "version "):
			_, err := fmt.Sscanf(line, "version %d", &cf.Version)
			if err != nil {
				return nil, &diffpatch.VerifyError{Reason: "malformed version line"}
			}
			sawVersion = true
		case strings.HasPrefix(line, "algorithm "):
			cf.Algorithm = HashAlgorithm(strings.TrimPrefix(line, "algorithm "))
			sawAlgo = true
		default:
			entry, err := parseEntryLine(line, cf.Algorithm)
			if err != nil {
				return nil, err
			}
			cf.Entries = append(cf.Entries, entry)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if !sawVersion || !sawAlgo {
		return nil, &diffpatch.VerifyError{Reason: "consistency file missing version or algorithm header"}
	}
	// Remaining bytes (after the blank separator line already
	// consumed) are the diff payload.
	rest := data[bytes.Index(data, []byte("\n\n"))+2:]
	cf.DiffBytes = rest
	return cf, nil
}

func parseEntryLine(line string, algo HashAlgorithm) (Entry, error) {
	fields := strings.Fields(line)
	if len(fields) != 2 {
		return Entry{}, &diffpatch.VerifyError{Reason: fmt.Sprintf("malformed entry line %q", line)}
	}
	path, hash := fields[0], fields[1]
	if err := validateManifestPath(path); err != nil {
		return Entry{}, err
	}
	wantLen, err := algo.size()
	if err != nil {
		return Entry{}, err
	}
	if len(hash) != wantLen {
		return Entry{}, &diffpatch.VerifyError{Reason: fmt.Sprintf("hash for %s has wrong length for %s", path, algo)}
	}
	if _, err := hex.DecodeString(hash); err != nil {
		return Entry{}, &diffpatch.VerifyError{Reason: fmt.Sprintf("hash for %s is not valid hex", path)}
	}
	return Entry{Path: path, Hash: hash}, nil
}

func validateManifestPath(path string) error {
	if strings.Contains(path, "\x00") {
		return &diffpatch.VerifyError{Reason: fmt.Sprintf("path %q contains NUL", path)}
	}
	for _, part := range strings.Split(path, "/") {
		if part == "." || part == ".." || part == "" {
			return &diffpatch.VerifyError{Reason: fmt.Sprintf("path %q has a %q component", path, part)}
		}
	}
	return nil
}

// ReversePatches applies the stored diff in reverse against dir,
// restoring the baseline content it was generated from.
func (c *ConsistencyFile) ReversePatches(dir string, env []string) error {
	return diffpatch.Apply(dir, c.DiffBytes, diffpatch.ApplyOptions{Backend: diffpatch.BackendGitApply, Reverse: true, Env: env})
}

// ValidationError reports a directory that doesn't match a
// ConsistencyFile's manifest.
type ValidationError struct {
	MissingFromDir      []string
	MissingFromManifest []string
	Changed             []string
}

func (e *ValidationError) Error() string {
	var parts []string
	if len(e.MissingFromDir) > 0 {
		parts = append(parts, fmt.Sprintf("missing from directory: %v", e.MissingFromDir))
	}
	if len(e.MissingFromManifest) > 0 {
		parts = append(parts, fmt.Sprintf("missing from manifest: %v", e.MissingFromManifest))
	}
	if len(e.Changed) > 0 {
		parts = append(parts, fmt.Sprintf("hash mismatch: %v", e.Changed))
	}
	return "merge: consistency check failed: " + strings.Join(parts, "; ")
}

// ValidateDirectory checks dirFiles (relPath -> present) against the
// manifest, hashing each manifest-listed file with hashGetter to
// detect drift since Generate ran.
func (c *ConsistencyFile) ValidateDirectory(dirFiles map[string]bool, hashGetter func(relPath string) (string, error)) error {
	var verr ValidationError
	manifest := map[string]string{}
	for _, e := range c.Entries {
		manifest[e.Path] = e.Hash
	}
	for path := range dirFiles {
		if _, ok := manifest[path]; !ok {
			verr.MissingFromManifest = append(verr.MissingFromManifest, path)
		}
	}
	for _, e := range c.Entries {
		if !dirFiles[e.Path] {
			verr.MissingFromDir = append(verr.MissingFromDir, e.Path)
			continue
		}
		got, err := hashGetter(e.Path)
		if err != nil {
			return err
		}
		if got != e.Hash {
			verr.Changed = append(verr.Changed, e.Path)
		}
	}
	if len(verr.MissingFromDir) > 0 || len(verr.MissingFromManifest) > 0 || len(verr.Changed) > 0 {
		sort.Strings(verr.MissingFromDir)
		sort.Strings(verr.MissingFromManifest)
		sort.Strings(verr.Changed)
		return &verr
	}
	return nil
}
