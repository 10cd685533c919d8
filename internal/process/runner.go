package process

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Command describes one external invocation.
type Command struct {
	Name  string
	Args  []string
	Dir   string // working directory; empty means the current one
	Stdin string
}

func (c Command) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Runner abstracts command execution to enable testing without real subprocesses.
type Runner interface {
	Run(ctx context.Context, cmd Command) (stdout string, stderr string, err error)
}

// ExecRunner implements Runner using os/exec. The child runs in its own
// process group so cancellation also kills anything it spawned.
type ExecRunner struct{}

var _ Runner = (*ExecRunner)(nil)

func (r *ExecRunner) Run(ctx context.Context, c Command) (string, string, error) {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	if c.Stdin != "" {
		cmd.Stdin = strings.NewReader(c.Stdin)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	setProcessGroup(cmd)
	cmd.Cancel = func() error {
		if cmd.Process != nil {
			KillProcessGroup(cmd.Process.Pid)
		}
		return nil
	}

	if err := cmd.Start(); err != nil {
		return "", "", fmt.Errorf("starting %s: %w", c.Name, err)
	}
	err := cmd.Wait()
	if ctxErr := ctx.Err(); ctxErr != nil && err != nil {
		err = fmt.Errorf("%s: %w", c.Name, ctxErr)
	}
	return stdout.String(), stderr.String(), err
}
