//go:build !unix

package runner

import (
	"os"
	"os/exec"
)

// configureProcessGroup keeps the os/exec default, which kills only the
// direct child on cancellation.
func configureProcessGroup(*exec.Cmd) {}

func killProcessGroup(*exec.Cmd) {}

// killedBySignal cannot tell a kill from an exit here, so an elapsed
// deadline alone decides.
func killedBySignal(*os.ProcessState) bool { return true }
