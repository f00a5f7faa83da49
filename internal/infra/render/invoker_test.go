package render

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdfconvert/internal/config"
	"pdfconvert/internal/testutil"
)

func scratchPair(t *testing.T, html string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	in := filepath.Join(dir, "in.html")
	out := filepath.Join(dir, "out.pdf")
	require.NoError(t, os.WriteFile(in, []byte(html), 0o600))
	require.NoError(t, os.WriteFile(out, nil, 0o600))
	return in, out
}

func TestDescribe_WrapsRendererInXvfb(t *testing.T) {
	inv := NewInvoker(config.RendererConfig{
		BinaryPath:  "wkhtmltopdf",
		XvfbRunPath: "xvfb-run",
		XvfbScreen:  "0 1024x768x24",
		ExtraArgs:   []string{"--page-size", "A4"},
		TimeoutSecs: 30,
	})

	got := inv.Describe("/tmp/a b.html", "/tmp/out.pdf")

	assert.Equal(t, "xvfb-run", got.Command)
	assert.Equal(t, []string{
		"--auto-servernum",
		"--server-args=-screen 0 1024x768x24",
		"wkhtmltopdf",
		"--encoding", "utf-8",
		"--enable-local-file-access",
		"--page-size", "A4",
		"/tmp/a b.html",
		"/tmp/out.pdf",
	}, got.Args)
	assert.Equal(t, 30*time.Second, got.Timeout)
	assert.Equal(t, "/tmp", got.Dir)
	assert.Equal(t, config.EngineWkhtmltopdf, inv.Name())
}

func TestDescribe_WithoutXvfb(t *testing.T) {
	inv := NewInvoker(config.RendererConfig{BinaryPath: "/opt/wkhtmltopdf", DisableXvfb: true, TimeoutSecs: 5})
	got := inv.Describe("in.html", "out.pdf")

	assert.Equal(t, "/opt/wkhtmltopdf", got.Command)
	assert.Equal(t, []string{"--encoding", "utf-8", "--enable-local-file-access", "in.html", "out.pdf"}, got.Args)
}

func TestInvoke_Success(t *testing.T) {
	cfg := testutil.RendererConfig(t, testutil.FakeRenderer(t, testutil.EchoPDF), 5)
	in, out := scratchPair(t, "<p>héllo</p>")

	outcome, err := NewInvoker(cfg).Invoke(context.Background(), in, out)
	require.NoError(t, err)

	assert.Equal(t, 0, outcome.ExitCode)
	assert.False(t, outcome.TimedOut)
	assert.True(t, outcome.ArtifactExists)
	assert.Positive(t, outcome.ArtifactSize)
	assert.Positive(t, outcome.Duration)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "%PDF-"))
	assert.Contains(t, string(data), "<p>héllo</p>")
}

func TestInvoke_ThroughXvfbWrapper(t *testing.T) {
	cfg := testutil.RendererConfig(t, testutil.FakeRenderer(t, testutil.ArgsToOutput), 5)
	cfg.DisableXvfb = false
	cfg.XvfbRunPath = testutil.FakeXvfbRun(t)
	in, out := scratchPair(t, "<p>x</p>")

	outcome, err := NewInvoker(cfg).Invoke(context.Background(), in, out)
	require.NoError(t, err)
	require.Equal(t, 0, outcome.ExitCode, outcome.Stderr)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Equal(t, []string{"--encoding", "utf-8", "--enable-local-file-access", in, out}, lines)
}

func TestInvoke_NonZeroExitCapturesStreams(t *testing.T) {
	cfg := testutil.RendererConfig(t, testutil.FakeRenderer(t, testutil.FailWithOutput), 5)
	in, out := scratchPair(t, "<p>x</p>")

	outcome, err := NewInvoker(cfg).Invoke(context.Background(), in, out)
	require.NoError(t, err)

	assert.Equal(t, 1, outcome.ExitCode)
	assert.Contains(t, outcome.Stderr, "Failed loading page")
	assert.Contains(t, outcome.Stdout, "Loading pages")
}

func TestInvoke_ArtifactStates(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		cfg := testutil.RendererConfig(t, testutil.FakeRenderer(t, testutil.EmptyOutput), 5)
		in, out := scratchPair(t, "<p>x</p>")
		outcome, err := NewInvoker(cfg).Invoke(context.Background(), in, out)
		require.NoError(t, err)
		assert.True(t, outcome.ArtifactExists)
		assert.Zero(t, outcome.ArtifactSize)
	})
	t.Run("removed", func(t *testing.T) {
		cfg := testutil.RendererConfig(t, testutil.FakeRenderer(t, testutil.RemoveOutput), 5)
		in, out := scratchPair(t, "<p>x</p>")
		outcome, err := NewInvoker(cfg).Invoke(context.Background(), in, out)
		require.NoError(t, err)
		assert.False(t, outcome.ArtifactExists)
	})
}

func TestInvoke_MissingBinaryIsAnError(t *testing.T) {
	cfg := testutil.RendererConfig(t, "/definitely/missing/wkhtmltopdf", 5)
	in, out := scratchPair(t, "<p>x</p>")

	_, err := NewInvoker(cfg).Invoke(context.Background(), in, out)
	assert.Error(t, err)
}

func TestRun_TimeoutKillsProcessGroup(t *testing.T) {
	bin := testutil.FakeRenderer(t, testutil.Hang)
	in, out := scratchPair(t, "<p>x</p>")

	start := time.Now()
	outcome, err := Run(context.Background(), Invocation{
		Command: bin,
		Args:    []string{in, out},
		Timeout: 200 * time.Millisecond,
	})
	require.NoError(t, err)

	assert.True(t, outcome.TimedOut)
	assert.Equal(t, -1, outcome.ExitCode)
	assert.Less(t, time.Since(start), 10*time.Second, "worker must not stay blocked on a hung renderer")
}

func TestStatArtifact(t *testing.T) {
	dir := t.TempDir()

	exists, size, err := StatArtifact(filepath.Join(dir, "missing.pdf"))
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Zero(t, size)

	exists, _, err = StatArtifact(dir)
	require.NoError(t, err)
	assert.False(t, exists, "a directory is not an artifact")

	p := filepath.Join(dir, "x.pdf")
	require.NoError(t, os.WriteFile(p, []byte("%PDF-"), 0o600))
	exists, size, err = StatArtifact(p)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.EqualValues(t, 5, size)
}
