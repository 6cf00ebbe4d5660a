// Package proc runs the external tools the bootstrap orchestrates (nginx
// reload, the ACME helper, the vendored setup script). Commands are plain
// descriptors handed to a Runner so the pipeline can be tested without
// spawning real processes.
package proc

import (
	"context"
	"fmt"
	"os"
	"os/exec"
)

// Command describes a single subprocess invocation: argv, an environment
// overlay applied on top of the parent environment, and an optional
// working directory.
type Command struct {
	Name string
	Args []string
	Env  map[string]string
	Dir  string
}

// Runner executes commands. The process exit code is the sole
// success/failure signal: a non-zero exit surfaces as a non-nil error.
type Runner interface {
	Run(ctx context.Context, cmd Command) error
}

// ExecRunner is the real Runner backed by os/exec. The child inherits
// stdout/stderr so external tool output lands in the bootstrap log.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, c Command) error {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if len(c.Env) > 0 {
		env := os.Environ()
		for k, v := range c.Env {
			env = append(env, k+"="+v)
		}
		cmd.Env = env
	}
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("running %s: %w", c.Name, err)
	}
	return nil
}
