package runner

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
)

// Executor runs pipeline commands in a shell with the inherited process
// environment.
type Executor struct {
	Dir string // working directory; empty means the process cwd
}

func NewExecutor(dir string) *Executor {
	return &Executor{Dir: dir}
}

// RunCommand executes a single command via "sh -c" and returns its
// combined stdout/stderr and exit code. A non-zero exit is returned as
// the error from exec; the caller decides what failure means.
func (e *Executor) RunCommand(ctx context.Context, command string) (string, int, error) {
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = e.Dir

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	exitCode := 0
	if err != nil {
		exitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
	}
	return out.String(), exitCode, err
}
