//go:build unix

package doc2md

import (
	"os/exec"
	"syscall"
)

// isolateProcess starts the office launcher in its own process group so a
// timeout kills the helpers it spawns along with it.
func isolateProcess(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
