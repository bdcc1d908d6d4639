//go:build !windows

package external

import "os/exec"

// hideWindow is a no-op outside Windows; no console window to hide.
func hideWindow(cmd *exec.Cmd) {}
