//go:build !windows

package render

import (
	"os/exec"
	"syscall"
)

// configureProcessGroup starts the renderer in a new process group so a
// timeout kills xvfb-run, Xvfb and wkhtmltopdf together.
func configureProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		// Negative pid targets the group; fall back to the leader alone.
		if err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL); err != nil {
			return cmd.Process.Kill()
		}
		return nil
	}
}
