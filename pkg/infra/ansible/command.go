package ansible

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Only the end of a failed command's output is kept; Ansible prints the
// failing task last.
const maxOutputTail = 4096

// ExitError is returned when a command exits non-zero
type ExitError struct {
	Command  string
	Output   []byte
	ExitCode int
	err      error
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%q exited with code %d: %s", e.Command, e.ExitCode, strings.TrimSpace(string(e.Output)))
}

func (e *ExitError) Unwrap() error {
	return e.err
}

// commandFunc runs name with args in dir and returns its standard output
type commandFunc func(ctx context.Context, dir string, env []string, name string, args ...string) ([]byte, error)

func execCommand(ctx context.Context, dir string, env []string, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), env...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		exitErr := &ExitError{
			Command:  cmd.String(),
			Output:   tail(append(stdout.Bytes(), stderr.Bytes()...), maxOutputTail),
			ExitCode: -1,
			err:      err,
		}
		var ee *exec.ExitError
		if errors.As(err, &ee) {
			exitErr.ExitCode = ee.ExitCode()
		}
		return stdout.Bytes(), exitErr
	}

	return stdout.Bytes(), nil
}

func tail(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[len(b)-n:]
}
