//go:build !unix

package doc2md

import "os/exec"

// isolateProcess relies on exec's default Cancel; WaitDelay bounds the wait
// for helpers that outlive the launcher.
func isolateProcess(cmd *exec.Cmd) {}
