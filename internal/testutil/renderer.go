// Package testutil provides fake renderer binaries for tests that exercise
// the real subprocess path without wkhtmltopdf installed.
package testutil

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"pdfconvert/internal/config"
)

// Scripts receive wkhtmltopdf-style arguments; the last two are the input
// and output paths.
const scriptHeader = `#!/bin/sh
in=""
out=""
for a in "$@"; do in="$out"; out="$a"; done
`

const (
	// EchoPDF writes a minimal PDF whose body embeds the input HTML.
	EchoPDF = `printf '%%PDF-1.4\n' > "$out"
cat "$in" >> "$out"
printf '\n%%%%EOF\n' >> "$out"
`
	// FailWithOutput exits non-zero after writing to both streams.
	FailWithOutput = `echo "Loading pages (1/6)"
echo "Error: Failed loading page file:///broken.html" >&2
exit 1
`
	// EmptyOutput exits zero without touching the pre-created output file.
	EmptyOutput = `exit 0
`
	// RemoveOutput exits zero after deleting the output file.
	RemoveOutput = `rm -f "$out"
exit 0
`
	// Hang never finishes on its own.
	Hang = `sleep 30
`
	// ArgsToOutput records the received arguments, one per line, as the artifact.
	ArgsToOutput = `printf '%s\n' "$@" > "$out"
`
)

// FakeRenderer writes an executable shell script into a temp dir and
// returns its path. The test is skipped where /bin/sh is unavailable.
func FakeRenderer(t testing.TB, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake renderers need /bin/sh")
	}
	p := filepath.Join(t.TempDir(), "fake-wkhtmltopdf")
	if err := os.WriteFile(p, []byte(scriptHeader+body), 0o755); err != nil {
		t.Fatalf("write fake renderer: %v", err)
	}
	return p
}

// FakeXvfbRun writes a wrapper that checks for xvfb-run's flags and execs the rest.
func FakeXvfbRun(t testing.TB) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake renderers need /bin/sh")
	}
	script := `#!/bin/sh
[ "$1" = "--auto-servernum" ] || { echo "missing --auto-servernum" >&2; exit 90; }
case "$2" in --server-args=*) ;; *) echo "missing --server-args" >&2; exit 91;; esac
shift 2
exec "$@"
`
	p := filepath.Join(t.TempDir(), "fake-xvfb-run")
	if err := os.WriteFile(p, []byte(script), 0o755); err != nil {
		t.Fatalf("write fake xvfb-run: %v", err)
	}
	return p
}

// RendererConfig returns renderer settings pointing at binary, without xvfb.
func RendererConfig(t testing.TB, binary string, timeoutSecs int) config.RendererConfig {
	t.Helper()
	return config.RendererConfig{
		Engine:      config.EngineWkhtmltopdf,
		BinaryPath:  binary,
		DisableXvfb: true,
		XvfbScreen:  "0 1024x768x24",
		TimeoutSecs: timeoutSecs,
		ScratchDir:  t.TempDir(),
	}
}
