package diffpatch

import (
	"bytes"
	"os/exec"

	"github.com/grailbio/base/log"
)

// run invokes tool with args in dir, feeding stdin (if non-nil) and
// capturing stdout/stderr. Grounded in grit/git/repo.go's gitIO: pin
// the working directory to the operand, pass the caller's env
// explicitly, and surface captured stderr verbatim on failure.
func run(dir, tool string, env []string, stdin []byte, args ...string) ([]byte, error) {
	cmd := exec.Command(tool, args...)
	cmd.Dir = dir
	if env != nil {
		cmd.Env = env
	}
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	log.Debug.Printf("%s: %s %v", dir, tool, args)
	err := cmd.Run()
	if err != nil {
		exitCode := -1
		if ee, ok := err.(*exec.ExitError); ok {
			exitCode = ee.ExitCode()
		}
		return stdout.Bytes(), &SubprocessError{Tool: tool, Args: args, ExitCode: exitCode, Stderr: stderr.String()}
	}
	return stdout.Bytes(), nil
}

// runAllowExit is like run but treats any exit code in okExits as
// success, returning the actual exit code alongside stdout so callers
// like diff3 (0=merged, 1=conflict, 2=binary) can branch on it.
func runAllowExit(dir, tool string, env []string, stdin []byte, okExits []int, args ...string) ([]byte, int, error) {
	cmd := exec.Command(tool, args...)
	cmd.Dir = dir
	if env != nil {
		cmd.Env = env
	}
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	log.Debug.Printf("%s: %s %v", dir, tool, args)
	err := cmd.Run()
	exitCode := 0
	if err != nil {
		ee, ok := err.(*exec.ExitError)
		if !ok {
			return stdout.Bytes(), -1, err
		}
		exitCode = ee.ExitCode()
	}
	for _, ok := range okExits {
		if exitCode == ok {
			return stdout.Bytes(), exitCode, nil
		}
	}
	return stdout.Bytes(), exitCode, &SubprocessError{Tool: tool, Args: args, ExitCode: exitCode, Stderr: stderr.String()}
}
