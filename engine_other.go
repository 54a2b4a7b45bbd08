//go:build !unix

package webidkit

import "os/exec"

// configureProcess keeps exec.CommandContext's default kill of the engine
// process on platforms without process groups.
func configureProcess(cmd *exec.Cmd) {}
