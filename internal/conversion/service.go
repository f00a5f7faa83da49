// Package conversion runs one HTML to PDF conversion per request: stage the
// input, invoke the engine, classify what it left behind, clean up.
package conversion

import (
	"context"
	"os"
	"time"

	"pdfconvert/internal/domain"
	"pdfconvert/internal/infra/audit"
	"pdfconvert/internal/infra/logging"
	"pdfconvert/internal/infra/scratch"
)

const (
	auditTimeout   = 2 * time.Second
	htmlLogSnippet = 200
)

// Engine renders an input file into an output file.
type Engine interface {
	Name() string
	Invoke(ctx context.Context, inputPath, outputPath string) (domain.RenderOutcome, error)
}

// Service holds no per-request state and is safe for concurrent use.
type Service struct {
	scratch  *scratch.Manager
	engine   Engine
	recorder audit.Recorder
	stats    *Stats
}

// NewService wires the conversion pipeline. A nil recorder disables auditing.
func NewService(m *scratch.Manager, engine Engine, recorder audit.Recorder) *Service {
	if recorder == nil {
		recorder = audit.Nop{}
	}
	return &Service{
		scratch:  m,
		engine:   engine,
		recorder: recorder,
		stats:    newStats(),
	}
}

// Engine returns the configured engine.
func (s *Service) Engine() Engine {
	return s.engine
}

// Stats exposes the conversion counters.
func (s *Service) Stats() *Stats {
	return s.stats
}

// Convert renders req and always returns a result. Scratch files are
// released before it returns, including when it panics.
func (s *Service) Convert(ctx context.Context, requestID string, req domain.ConversionRequest) domain.ConversionResult {
	s.stats.begin()
	entry := audit.Entry{
		RequestID: requestID,
		Engine:    s.engine.Name(),
		HTMLBytes: len(req.HTML),
		At:        time.Now().UTC(),
	}

	var result domain.ConversionResult
	completed := false
	defer func() {
		if !completed {
			result.Kind = domain.KindInternalError
		}
		s.stats.end(result.Kind)
		entry.Kind = result.Kind
		entry.PDFBytes = result.Size
		entry.Duration = time.Since(entry.At)
		s.record(entry)
	}()

	result = s.convert(ctx, requestID, req, &entry)
	completed = true
	return result
}

func (s *Service) convert(ctx context.Context, requestID string, req domain.ConversionRequest, entry *audit.Entry) domain.ConversionResult {
	scope := s.scratch.NewScope()
	defer scope.Close()

	in, err := scope.Acquire(domain.ScratchInput)
	if err != nil {
		return internalFailure(requestID, "scratch.acquire", err)
	}
	out, err := scope.Acquire(domain.ScratchOutput)
	if err != nil {
		return internalFailure(requestID, "scratch.acquire", err)
	}

	logging.Debug("Staging HTML",
		"request_id", requestID,
		"input", in.Path,
		"output", out.Path,
		"html_snippet", snippet(req.HTML, htmlLogSnippet),
	)
	// Go strings are written byte for byte; JSON bodies are already UTF-8.
	if err := os.WriteFile(in.Path, []byte(req.HTML), 0o600); err != nil {
		return internalFailure(requestID, "scratch.write", err)
	}

	outcome, err := s.engine.Invoke(ctx, in.Path, out.Path)
	if err != nil {
		return internalFailure(requestID, "render.invoke", err)
	}
	entry.ExitCode = outcome.ExitCode

	logging.Info("Renderer finished",
		"request_id", requestID,
		"engine", s.engine.Name(),
		"exit_code", outcome.ExitCode,
		"timed_out", outcome.TimedOut,
		"artifact_size", outcome.ArtifactSize,
		"duration_ms", outcome.Duration.Milliseconds(),
		"stdout", outcome.Stdout,
		"stderr", outcome.Stderr,
	)

	result := Classify(outcome, out.Path)
	if !result.OK() {
		logging.Warn("PDF conversion failed", "request_id", requestID, "kind", string(result.Kind), "details", result.Details)
	}
	return result
}

func (s *Service) record(e audit.Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), auditTimeout)
	defer cancel()
	if err := s.recorder.Record(ctx, e); err != nil {
		logging.Warn("Failed to record conversion", "request_id", e.RequestID, "error", err)
	}
}

// internalFailure logs the full cause server side and hands the caller a generic message.
func internalFailure(requestID, op string, err error) domain.ConversionResult {
	err = domain.NewError(op, domain.KindInternalError, err)
	logging.Error("Unexpected internal error", "request_id", requestID, "op", op, "error", err)
	return domain.Failed(domain.KindInternalError, "An internal server error occurred", "", "")
}

func snippet(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
