//go:build windows

package external

import (
	"os/exec"
	"syscall"
)

// hideWindow prevents the command from flashing a console window on
// Windows (ported from the teacher's exec_windows.go).
func hideWindow(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.HideWindow = true
}
