package transform

import (
	"path"
	"strings"
)

// ValidateRelPath normalizes and validates p as a checkout-relative
// path. It rejects absolute paths and any "." or ".." component.
// allowEmpty permits the empty string (used by Move/Copy's after=""
// repo-root case); all other callers should pass false.
func ValidateRelPath(component, p string, allowEmpty bool) (string, error) {
	if p == "" {
		if allowEmpty {
			return "", nil
		}
		return "", &UserConfigError{Component: component, Operand: p, Reason: "path must not be empty"}
	}
	if strings.HasPrefix(p, "/") {
		return "", &UserConfigError{Component: component, Operand: p, Reason: "path must be relative"}
	}
	clean := path.Clean(p)
	if clean == "." {
		return "", &UserConfigError{Component: component, Operand: p, Reason: "path must not be empty"}
	}
	for _, part := range strings.Split(p, "/") {
		if part == ".." || part == "." {
			return "", &UserConfigError{Component: component, Operand: p, Reason: "path must not contain '.' or '..' components"}
		}
	}
	return clean, nil
}

// JoinSafe joins root and rel, then verifies the result is still
// contained in root. Computed destinations (post-template-expansion)
// must be re-validated this way.
func JoinSafe(root, rel string) (string, error) {
	if rel == "" {
		return root, nil
	}
	clean, err := ValidateRelPath("path", rel, true)
	if err != nil {
		return "", err
	}
	if clean == "" {
		return root, nil
	}
	joined := path.Join(root, clean)
	if joined != root && !strings.HasPrefix(joined, root+"/") {
		return "", &PathEscapeError{Path: rel}
	}
	return joined, nil
}
