// Package checkout manages the lifecycle of checkout directories: an
// owned, mutable filesystem subtree that a migration run transforms
// in place, with exclusive-owner locking so two runs never collide on
// the same directory.
package checkout

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/grailbio/base/flock"
	"github.com/grailbio/base/log"
)

// Checkout is an owned, locked directory handed to a migration run.
// Close must be called to release the lock, whether or not the run
// succeeded.
type Checkout struct {
	Root string
	lock *flock.T
}

// Close releases the checkout's exclusive lock. It does not remove
// the directory; ownership of the content beyond the lock's lifetime
// belongs to the caller.
func (c *Checkout) Close() error {
	return c.lock.Unlock()
}

// OutputDirFactory mints checkout directories under Base, either
// fresh per call (ReuseOutputDirs=false, the default) or by reusing a
// single named directory across calls, in which case prior contents
// are left intact for the workflow to overwrite.
type OutputDirFactory struct {
	Base            string
	ReuseOutputDirs bool
	reusedName      string
}

// NewOutputDirFactory returns a factory rooted at base, creating base
// if it does not already exist.
func NewOutputDirFactory(base string, reuse bool) (*OutputDirFactory, error) {
	if err := os.MkdirAll(base, 0o777); err != nil {
		return nil, fmt.Errorf("checkout: create output dir base %s: %w", base, err)
	}
	return &OutputDirFactory{Base: base, ReuseOutputDirs: reuse}, nil
}

// Fresh mints a new checkout directory, naming it uniquely with a
// UUIDv4 suffix so concurrent invocations of the same workflow never
// collide — unless ReuseOutputDirs is set, in which case the factory
// instead reuses the single directory name it minted on its first
// call.
func (f *OutputDirFactory) Fresh(ctx context.Context) (*Checkout, error) {
	name := f.reusedName
	if name == "" {
		name = uuid.NewString()
		if f.ReuseOutputDirs {
			f.reusedName = name
		}
	}
	root := filepath.Join(f.Base, name)
	if err := os.MkdirAll(root, 0o777); err != nil {
		return nil, fmt.Errorf("checkout: mkdir %s: %w", root, err)
	}
	lock := flock.New(root + ".lock")
	if err := lock.Lock(ctx); err != nil {
		return nil, fmt.Errorf("checkout: lock %s: %w", root, err)
	}
	log.Debug.Printf("checkout: minted %s (reuse=%v)", root, f.ReuseOutputDirs)
	return &Checkout{Root: root, lock: lock}, nil
}

// RunHook invokes a caller-supplied relative path to an executable
// inside the checkout root, with the checkout as its working
// directory. hookPath must be relative and must resolve inside root;
// violating either is an InvalidHookPathError. A non-zero exit is
// reported as a HookFailureError carrying the exit code.
func RunHook(root, hookPath string, env []string) error {
	if filepath.IsAbs(hookPath) {
		return &InvalidHookPathError{Path: hookPath, Reason: "must be relative"}
	}
	resolved := filepath.Join(root, hookPath)
	relBack, err := filepath.Rel(root, resolved)
	if err != nil || relBack == ".." || strings.HasPrefix(relBack, "../") {
		return &InvalidHookPathError{Path: hookPath, Reason: "escapes checkout root"}
	}
	cmd := execCommand(resolved)
	cmd.Dir = root
	if env != nil {
		cmd.Env = env
	}
	if err := cmd.Run(); err != nil {
		exitCode := -1
		if ee, ok := asExitError(err); ok {
			exitCode = ee
		}
		return &HookFailureError{Path: hookPath, ExitCode: exitCode}
	}
	return nil
}

// InvalidHookPathError reports a checkout hook path that is absolute
// or escapes the checkout root.
type InvalidHookPathError struct {
	Path   string
	Reason string
}

func (e *InvalidHookPathError) Error() string {
	return fmt.Sprintf("checkout: invalid hook path %q: %s", e.Path, e.Reason)
}

// HookFailureError reports a checkout hook that exited non-zero.
type HookFailureError struct {
	Path     string
	ExitCode int
}

func (e *HookFailureError) Error() string {
	return fmt.Sprintf("checkout: hook %q failed with exit code %d", e.Path, e.ExitCode)
}
