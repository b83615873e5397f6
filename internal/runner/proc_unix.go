//go:build !windows

package runner

import (
	"os"
	"os/exec"
	"syscall"
)

func configureProc(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func terminateProc(cmd *exec.Cmd) {
	if cmd == nil || cmd.Process == nil {
		return
	}
	pid := cmd.Process.Pid
	if pid <= 0 {
		return
	}
	if pgid, err := syscall.Getpgid(pid); err == nil && pgid > 0 {
		// Negative PGID targets the full process group (shell + spawned children).
		_ = syscall.Kill(-pgid, syscall.SIGKILL)
		return
	}
	_ = cmd.Process.Kill()
}

func causeFromState(st *os.ProcessState) Cause {
	if ws, ok := st.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return Cause{Kind: CauseSignaled, Signal: int(ws.Signal())}
	}
	return Cause{Kind: CauseNormal, Code: st.ExitCode()}
}
