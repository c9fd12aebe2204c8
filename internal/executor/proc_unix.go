//go:build !windows

package executor

import "syscall"

// processGroupAttr places the child in its own process group so that
// terminate can signal the whole group, not just the immediate child.
func processGroupAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true}
}

// signalGroup signals the process group led by pid.
func signalGroup(pid int, sig syscall.Signal) error {
	return syscall.Kill(-pid, sig)
}
