// Package render runs the external HTML to PDF renderer as a subprocess.
package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"pdfconvert/internal/config"
	"pdfconvert/internal/domain"
	"pdfconvert/internal/infra/logging"
)

// waitDelay bounds how long Wait keeps draining output pipes after the
// process exited or was killed. Grandchildren (Xvfb) may hold them open.
const waitDelay = 2 * time.Second

// Invocation is a fully resolved process description. Args are passed to
// the process as-is, never through a shell.
type Invocation struct {
	Command string
	Args    []string
	Timeout time.Duration
	Dir     string
}

func (i Invocation) String() string {
	return strings.Join(append([]string{i.Command}, i.Args...), " ")
}

// Invoker renders with wkhtmltopdf, wrapped in xvfb-run unless disabled.
type Invoker struct {
	cfg config.RendererConfig
}

// NewInvoker returns an invoker for the given renderer settings.
func NewInvoker(cfg config.RendererConfig) *Invoker {
	return &Invoker{cfg: cfg}
}

// Name identifies the engine in logs and stats.
func (inv *Invoker) Name() string {
	return config.EngineWkhtmltopdf
}

// Describe builds the invocation for one input/output pair.
func (inv *Invoker) Describe(inputPath, outputPath string) Invocation {
	renderer := []string{
		inv.cfg.BinaryPath,
		"--encoding", "utf-8",
		"--enable-local-file-access",
	}
	renderer = append(renderer, inv.cfg.ExtraArgs...)
	renderer = append(renderer, inputPath, outputPath)

	desc := Invocation{
		Timeout: inv.cfg.Timeout(),
		Dir:     filepath.Dir(inputPath),
	}
	if inv.cfg.DisableXvfb {
		desc.Command = renderer[0]
		desc.Args = renderer[1:]
		return desc
	}

	desc.Command = inv.cfg.XvfbRunPath
	desc.Args = append([]string{
		"--auto-servernum",
		"--server-args=-screen " + inv.cfg.XvfbScreen,
	}, renderer...)
	return desc
}

// Invoke renders inputPath into outputPath and reports what happened.
// It blocks until the renderer exits or the timeout kills it. Only failures
// to start the process are returned as errors.
func (inv *Invoker) Invoke(ctx context.Context, inputPath, outputPath string) (domain.RenderOutcome, error) {
	invocation := inv.Describe(inputPath, outputPath)
	logging.Debug("Running renderer", "command", invocation.String())

	outcome, err := Run(ctx, invocation)
	if err != nil {
		return outcome, err
	}
	outcome.ArtifactExists, outcome.ArtifactSize, err = StatArtifact(outputPath)
	if err != nil {
		return outcome, err
	}
	return outcome, nil
}

// Run executes the invocation in its own process group. When the timeout
// expires the whole group is killed and the outcome is marked TimedOut.
func Run(ctx context.Context, invocation Invocation) (domain.RenderOutcome, error) {
	if invocation.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, invocation.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, invocation.Command, invocation.Args...)
	cmd.Dir = invocation.Dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay
	configureProcessGroup(cmd)

	start := time.Now()
	err := cmd.Run()

	outcome := domain.RenderOutcome{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		outcome.ExitCode = 0
	case cmd.Process != nil && errors.Is(ctx.Err(), context.DeadlineExceeded):
		outcome.TimedOut = true
		outcome.ExitCode = -1
		logging.Warn("Renderer killed after timeout", "timeout", invocation.Timeout.String(), "command", invocation.Command)
	case errors.As(err, &exitErr):
		outcome.ExitCode = exitErr.ExitCode()
	case errors.Is(err, exec.ErrWaitDelay) && cmd.ProcessState != nil:
		outcome.ExitCode = cmd.ProcessState.ExitCode()
	default:
		return outcome, fmt.Errorf("run %s: %w", invocation.Command, err)
	}
	return outcome, nil
}

// StatArtifact reports whether the renderer left a file at path and its size.
func StatArtifact(path string) (bool, int64, error) {
	st, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, 0, nil
	}
	if err != nil {
		return false, 0, fmt.Errorf("stat output %s: %w", path, err)
	}
	if st.IsDir() {
		return false, 0, nil
	}
	return true, st.Size(), nil
}
