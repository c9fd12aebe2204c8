//go:build windows

package executor

import (
	"os"
	"syscall"
)

func findProcess(pid int) (*os.Process, error) {
	return os.FindProcess(pid)
}

// processGroupAttr has no process-group equivalent wired on Windows; the
// child is signalled directly instead.
func processGroupAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{}
}

// signalGroup on Windows terminates the process by pid; there is no POSIX
// signal delivery, so SIGTERM and SIGKILL both map to termination.
func signalGroup(pid int, sig syscall.Signal) error {
	p, err := findProcess(pid)
	if err != nil {
		return err
	}
	return p.Kill()
}
