// Package chrome renders scratch HTML files with a one-shot headless Chrome.
package chrome

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"pdfconvert/internal/config"
	"pdfconvert/internal/domain"
	"pdfconvert/internal/infra/logging"
	"pdfconvert/internal/infra/render"
)

// A4 in inches with the default margin.
const (
	paperWidth  = 8.27
	paperHeight = 11.69
	margin      = 0.4
)

// Engine starts a fresh Chrome for every render. Nothing is shared between calls.
type Engine struct {
	cfg config.RendererConfig
}

// NewEngine returns a Chrome engine for the given renderer settings.
func NewEngine(cfg config.RendererConfig) *Engine {
	return &Engine{cfg: cfg}
}

// Name identifies the engine in logs and stats.
func (e *Engine) Name() string {
	return config.EngineChrome
}

// Invoke prints inputPath to outputPath. A Chrome that cannot be started is
// reported as an error; anything that goes wrong after that becomes a
// non-zero outcome with the cause in Stderr.
func (e *Engine) Invoke(ctx context.Context, inputPath, outputPath string) (domain.RenderOutcome, error) {
	start := time.Now()

	if e.cfg.ChromePath != "" {
		if _, err := exec.LookPath(e.cfg.ChromePath); err != nil {
			return domain.RenderOutcome{}, fmt.Errorf("chrome binary %s: %w", e.cfg.ChromePath, err)
		}
	}

	profileDir, err := os.MkdirTemp(e.cfg.ScratchDir, "pdfconvert-chrome-*")
	if err != nil {
		return domain.RenderOutcome{}, fmt.Errorf("cannot create temp profile dir: %w", err)
	}
	defer os.RemoveAll(profileDir)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, e.allocatorOptions(profileDir)...)
	defer cancelAlloc()
	chromeCtx, cancelChrome := chromedp.NewContext(allocCtx)
	defer cancelChrome()
	chromeCtx, cancelTimeout := context.WithTimeout(chromeCtx, e.cfg.Timeout())
	defer cancelTimeout()

	pdf, runErr := printFile(chromeCtx, inputPath)
	outcome := domain.RenderOutcome{Duration: time.Since(start)}

	switch {
	case runErr == nil:
		if err := os.WriteFile(outputPath, pdf, 0o600); err != nil {
			return outcome, fmt.Errorf("write pdf: %w", err)
		}
	case errors.Is(chromeCtx.Err(), context.DeadlineExceeded):
		outcome.TimedOut = true
		outcome.ExitCode = -1
		logging.Warn("Chrome render timed out", "timeout_secs", e.cfg.TimeoutSecs)
	case errors.Is(runErr, exec.ErrNotFound) || errors.Is(runErr, fs.ErrNotExist) || errors.Is(runErr, fs.ErrPermission):
		return outcome, fmt.Errorf("start chrome: %w", runErr)
	default:
		outcome.ExitCode = 1
		outcome.Stderr = runErr.Error()
	}

	outcome.ArtifactExists, outcome.ArtifactSize, err = render.StatArtifact(outputPath)
	if err != nil {
		return outcome, err
	}
	return outcome, nil
}

func (e *Engine) allocatorOptions(profileDir string) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserDataDir(profileDir),
		// Force software rendering and avoid Vulkan/ANGLE issues in minimal container environments.
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-gpu-compositing", true),
		chromedp.Flag("disable-features", "Vulkan,UseSkiaRenderer"),
		chromedp.Flag("use-gl", "swiftshader"),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("allow-file-access-from-files", true),
	)
	if e.cfg.ChromePath != "" {
		opts = append(opts, chromedp.ExecPath(e.cfg.ChromePath))
	}
	if e.cfg.ChromeNoSandbox {
		opts = append(opts, chromedp.Flag("no-sandbox", true))
	}
	return opts
}

// printFile loads a local HTML file and prints it with backgrounds.
func printFile(ctx context.Context, inputPath string) ([]byte, error) {
	var pdf []byte
	err := chromedp.Run(ctx,
		chromedp.Navigate("file://"+inputPath),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			pdf, _, err = page.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(paperWidth).
				WithPaperHeight(paperHeight).
				WithMarginTop(margin).
				WithMarginBottom(margin).
				WithMarginLeft(margin).
				WithMarginRight(margin).
				Do(ctx)
			return err
		}),
	)
	return pdf, err
}
