package domain

import (
	"io"
	"time"
)

// ConversionRequest is the validated payload of one /convert call.
type ConversionRequest struct {
	HTML string
}

// ScratchKind tells input scratch files apart from output scratch files.
type ScratchKind int

const (
	ScratchInput ScratchKind = iota
	ScratchOutput
)

func (k ScratchKind) String() string {
	if k == ScratchOutput {
		return "output"
	}
	return "input"
}

// Ext is the file extension the renderer expects for the kind.
func (k ScratchKind) Ext() string {
	if k == ScratchOutput {
		return ".pdf"
	}
	return ".html"
}

// ScratchFile is a per-request temporary file. Its path is never reused.
type ScratchFile struct {
	Path string
	Kind ScratchKind
}

// RenderOutcome is what a single renderer run left behind. Stdout and Stderr
// are kept verbatim for diagnostics only.
type RenderOutcome struct {
	ExitCode       int
	Stdout         string
	Stderr         string
	ArtifactExists bool
	ArtifactSize   int64
	TimedOut       bool
	Duration       time.Duration
}

// ConversionResult is either a PDF payload or a classified failure.
// A successful result holds the rendered file open; the caller must close PDF.
type ConversionResult struct {
	PDF  io.ReadCloser
	Size int64

	Kind          ErrorKind
	Message       string
	Details       string
	CommandOutput string
}

// Succeeded wraps a rendered PDF of the given size.
func Succeeded(pdf io.ReadCloser, size int64) ConversionResult {
	return ConversionResult{PDF: pdf, Size: size}
}

// Failed builds a failure result.
func Failed(kind ErrorKind, message, details, commandOutput string) ConversionResult {
	return ConversionResult{
		Kind:          kind,
		Message:       message,
		Details:       details,
		CommandOutput: commandOutput,
	}
}

// OK reports whether the result carries a PDF.
func (r ConversionResult) OK() bool {
	return r.Kind == ""
}
