package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/sirupsen/logrus"
)

// Command is one invocation of an external tool
type Command struct {
	Name string
	Args []string
	Dir  string
	Env  []string
}

func (c Command) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// CommandResult carries the exit status and the combined stdout/stderr of a finished command
type CommandResult struct {
	ExitCode int
	Output   string
}

// CommandRunner runs external tools. A non-zero exit is reported in the result, not as an error; the error is
// reserved for commands that could not be started at all.
type CommandRunner interface {
	Run(ctx context.Context, cmd Command) (CommandResult, error)
}

type execRunner struct {
	logger  *logrus.Entry
	verbose bool
}

func NewExecRunner(logger *logrus.Entry, verbose bool) CommandRunner {
	return &execRunner{logger: logger, verbose: verbose}
}

func (r *execRunner) Run(ctx context.Context, cmd Command) (CommandResult, error) {
	var result CommandResult

	r.logger.Debugf("Running %s (in %s)", cmd, cmd.Dir)

	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Dir = cmd.Dir
	if len(cmd.Env) > 0 {
		c.Env = append(os.Environ(), cmd.Env...)
	}

	var output bytes.Buffer
	var sink io.Writer = &output
	if r.verbose {
		logWriter := r.logger.WithField("command", cmd.Name).WriterLevel(logrus.InfoLevel)
		defer logWriter.Close()
		sink = io.MultiWriter(&output, logWriter)
	}
	c.Stdout = sink
	c.Stderr = sink

	err := c.Run()
	result.Output = output.String()

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
		return result, nil
	}
	if err != nil {
		return result, err
	}
	return result, nil
}

// runChecked runs the command and turns a failed start or a non-zero exit into an externalCommandFailed error
func runChecked(ctx context.Context, runner CommandRunner, cmd Command) (CommandResult, error) {
	result, err := runner.Run(ctx, cmd)
	if err != nil {
		return result, newErrorf(externalCommandFailed, "%s could not be started: %s", cmd, err)
	}
	if result.ExitCode != 0 {
		return result, newErrorf(externalCommandFailed, "%s failed with exit code %d\n%s", cmd, result.ExitCode, strings.TrimSpace(result.Output))
	}
	return result, nil
}

// withToolchainPrefix wraps the command so it runs through bash after the prefix has set up the toolchain
func withToolchainPrefix(prefix string, cmd Command) Command {
	if prefix == "" {
		return cmd
	}

	quoted := make([]string, 0, len(cmd.Args)+1)
	quoted = append(quoted, shellQuote(cmd.Name))
	for _, arg := range cmd.Args {
		quoted = append(quoted, shellQuote(arg))
	}

	return Command{
		Name: "bash",
		Args: []string{"-c", fmt.Sprintf("%s && %s", prefix, strings.Join(quoted, " "))},
		Dir:  cmd.Dir,
		Env:  cmd.Env,
	}
}

func shellQuote(s string) string {
	if s != "" && strings.IndexFunc(s, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || strings.ContainsRune("-_./=:+,@%", r))
	}) == -1 {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
