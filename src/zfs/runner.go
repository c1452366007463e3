package zfs

import (
	"fmt"
	"io"
	"os/exec"
	"strings"
)

// Runner executes backend commands. Keep it small and focused on the
// shapes of invocation this package actually needs so it stays fakeable
// in unit tests.
type Runner interface {
	// LookPath reports whether the named binary is available.
	LookPath(name string) error
	// Run executes the command and returns its combined output.
	Run(name string, args ...string) ([]byte, error)
	// RunWithOutput executes the command with stdout streamed to w.
	// Stderr is captured for diagnostics.
	RunWithOutput(w io.Writer, name string, args ...string) error
	// RunWithInput executes the command with stdin fed from r.
	RunWithInput(r io.Reader, name string, args ...string) error
}

// CommandError reports a failed backend command. Error() returns the
// backend's own diagnostic verbatim when one was produced, so callers
// see remediation hints (e.g. which newer snapshots block a rollback)
// exactly as the backend phrased them.
type CommandError struct {
	Command string
	Output  string
	Err     error
}

func (e *CommandError) Error() string {
	if e.Output != "" {
		return e.Output
	}
	return fmt.Sprintf("%s: %v", e.Command, e.Err)
}

func (e *CommandError) Unwrap() error { return e.Err }

// ExecRunner runs commands through os/exec.
type ExecRunner struct{}

func NewExecRunner() *ExecRunner { return &ExecRunner{} }

func (ExecRunner) LookPath(name string) error {
	_, err := exec.LookPath(name)
	return err
}

func (ExecRunner) Run(name string, args ...string) ([]byte, error) {
	out, err := exec.Command(name, args...).CombinedOutput()
	if err != nil {
		return out, &CommandError{
			Command: renderCommand(name, args),
			Output:  strings.TrimSpace(string(out)),
			Err:     err,
		}
	}
	return out, nil
}

func (ExecRunner) RunWithOutput(w io.Writer, name string, args ...string) error {
	var stderr strings.Builder
	cmd := exec.Command(name, args...)
	cmd.Stdout = w
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return &CommandError{
			Command: renderCommand(name, args),
			Output:  strings.TrimSpace(stderr.String()),
			Err:     err,
		}
	}
	return nil
}

func (ExecRunner) RunWithInput(r io.Reader, name string, args ...string) error {
	var stderr strings.Builder
	cmd := exec.Command(name, args...)
	cmd.Stdin = r
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return &CommandError{
			Command: renderCommand(name, args),
			Output:  strings.TrimSpace(stderr.String()),
			Err:     err,
		}
	}
	return nil
}

func renderCommand(name string, args []string) string {
	return strings.Join(append([]string{name}, args...), " ")
}
