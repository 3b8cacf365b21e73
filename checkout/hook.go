package checkout

import "os/exec"

func execCommand(path string) *exec.Cmd {
	return exec.Command(path)
}

func asExitError(err error) (int, bool) {
	ee, ok := err.(*exec.ExitError)
	if !ok {
		return 0, false
	}
	return ee.ExitCode(), true
}
