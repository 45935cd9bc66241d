package converter

import (
	"bytes"
	"context"
	"os/exec"
)

// Result holds the outcome of an external tool invocation.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Transcoder runs an external audio tool.
type Transcoder interface {
	// Path returns the configured path or name of the tool.
	Path() string
	// Run executes the tool. A non-zero exit code is reported through
	// the Result, not as an error. Errors indicate that the tool could
	// not be started at all.
	Run(ctx context.Context, args ...string) (Result, error)
	// LookPath resolves the tool on the filesystem.
	LookPath() (string, error)
}

// ExecTranscoder runs the tool with os/exec.
type ExecTranscoder struct {
	path string
}

// NewExecTranscoder returns a Transcoder for the binary at path.
func NewExecTranscoder(path string) *ExecTranscoder {
	return &ExecTranscoder{path: path}
}

// Path returns the configured path of the tool.
func (t *ExecTranscoder) Path() string {
	return t.path
}

// LookPath resolves the tool with exec.LookPath.
func (t *ExecTranscoder) LookPath() (string, error) {
	return exec.LookPath(t.path)
}

// Run executes the tool and captures its output.
func (t *ExecTranscoder) Run(ctx context.Context, args ...string) (Result, error) {

	var stdout, stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, t.path, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	res := Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			res.ExitCode = exitErr.ExitCode()
			return res, nil
		}
		return res, err
	}

	return res, nil
}
