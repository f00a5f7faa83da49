//go:build windows

package render

import "os/exec"

// configureProcessGroup kills only the direct child; there is no xvfb on Windows.
func configureProcessGroup(cmd *exec.Cmd) {
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return cmd.Process.Kill()
	}
}
