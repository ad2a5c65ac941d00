//go:build unix

package main

import (
	"os/exec"
	"syscall"
)

// daemonCommand builds the academyd process in its own session so it
// outlives the terminal that ran `academy start`.
func daemonCommand(path, dir string) *exec.Cmd {
	cmd := exec.Command(path)
	cmd.Dir = dir
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	return cmd
}
