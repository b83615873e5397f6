//go:build windows

package runner

import (
	"os"
	"os/exec"
)

func configureProc(cmd *exec.Cmd) {}

func terminateProc(cmd *exec.Cmd) {
	if cmd == nil || cmd.Process == nil {
		return
	}
	_ = cmd.Process.Kill()
}

func causeFromState(st *os.ProcessState) Cause {
	return Cause{Kind: CauseNative, Code: st.ExitCode()}
}
