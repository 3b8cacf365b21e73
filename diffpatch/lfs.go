package diffpatch

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/grailbio/base/digest"
	"github.com/grailbio/base/log"
)

// MaybeContainsLFSPointer coarsely scans diffBytes for the "oid sha256:"
// line that every LFS pointer file declares. A negative result is
// conclusive: the diff definitely touches no LFS object. A positive
// result only means CarryLFSObjects is worth attempting.
func MaybeContainsLFSPointer(diffBytes []byte) bool {
	return bytes.Contains(diffBytes, []byte("oid sha256:"))
}

// ListLFSPointers returns paths, relative to root, of files in root
// that git-lfs tracks as pointers.
func ListLFSPointers(root string, env []string) ([]string, error) {
	out, err := run(root, "git", env, nil, "lfs", "ls-files")
	if err != nil {
		return nil, fmt.Errorf("diffpatch: list lfs pointers in %s: %w", root, err)
	}
	var pointers []string
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 3 {
			return nil, &VerifyError{Reason: fmt.Sprintf("malformed git lfs ls-files output %q", line)}
		}
		pointers = append(pointers, fields[2])
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return pointers, nil
}

// CarryLFSObjects copies the LFS objects referenced by the pointer
// files at the given paths (relative to srcRoot) from srcRoot's LFS
// object store into dstRoot's, so that a checkout produced purely by
// applying a diff still has the large-object content available
// locally instead of a dangling pointer. Objects already present at
// the destination are left untouched.
func CarryLFSObjects(srcRoot, dstRoot string, pointerPaths []string, env []string) error {
	for _, p := range pointerPaths {
		if err := carryOne(srcRoot, dstRoot, p, env); err != nil {
			return fmt.Errorf("diffpatch: carry lfs object %s: %w", p, err)
		}
	}
	return nil
}

func carryOne(srcRoot, dstRoot, pointerPath string, env []string) error {
	raw, err := os.ReadFile(filepath.Join(srcRoot, pointerPath))
	if err != nil {
		return err
	}
	oid, err := pointerOID(raw)
	if err != nil {
		return err
	}
	objPath := filepath.Join(dstRoot, ".git", "lfs", "objects", oid[:2], oid[2:4], oid)
	if _, err := os.Stat(objPath); err == nil {
		log.Debug.Printf("lfs object %s already present at %s", oid[:7], dstRoot)
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(objPath), 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(objPath), ".lfs-smudge-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	smudgeEnv := append(append([]string{}, env...), "GIT_LFS_SKIP_SMUDGE=0")
	out, err := run(srcRoot, "git", smudgeEnv, raw, "lfs", "smudge")
	if err != nil {
		tmp.Close()
		return err
	}
	if _, err := tmp.Write(out); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	log.Debug.Printf("copying lfs object %s for pointer %s", oid[:7], pointerPath)
	return os.Rename(tmpName, objPath)
}

func pointerOID(raw []byte) (string, error) {
	sc := bufio.NewScanner(bytes.NewReader(raw))
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "oid ") {
			continue
		}
		id, err := digest.Parse(strings.TrimSpace(strings.TrimPrefix(line, "oid ")))
		if err != nil {
			return "", fmt.Errorf("pointer file has malformed oid: %w", err)
		}
		return id.Hex(), nil
	}
	if err := sc.Err(); err != nil {
		return "", err
	}
	return "", fmt.Errorf("pointer file is missing oid")
}
