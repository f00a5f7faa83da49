package conversion

import (
	"fmt"
	"os"
	"time"

	"pdfconvert/internal/domain"
	"pdfconvert/internal/infra/logging"
)

// Classify turns a renderer outcome into a verdict. Rules apply in order:
// timeout, non-zero exit, missing or empty artifact, success. A zero exit
// code alone is not trusted because wkhtmltopdf can exit 0 without output.
func Classify(outcome domain.RenderOutcome, outputPath string) domain.ConversionResult {
	if outcome.TimedOut {
		return domain.Failed(domain.KindRenderTimeout,
			"PDF conversion timed out",
			fmt.Sprintf("renderer killed after %s", outcome.Duration.Round(time.Millisecond)),
			outcome.Stdout,
		)
	}

	if outcome.ExitCode != 0 {
		return domain.Failed(domain.KindRenderFailed,
			"PDF conversion failed",
			outcome.Stderr,
			outcome.Stdout,
		)
	}

	if !outcome.ArtifactExists || outcome.ArtifactSize == 0 {
		details := "Output file path: " + outputPath
		if outcome.Stderr != "" {
			details += "\n" + outcome.Stderr
		}
		return domain.Failed(domain.KindEmptyOutput,
			"PDF conversion command succeeded, but output file is missing or empty",
			details,
			outcome.Stdout,
		)
	}

	// The open descriptor outlives the scratch entry, so the PDF can be
	// streamed after the scope has removed the file.
	f, err := os.Open(outputPath)
	if err != nil {
		logging.Error("Failed to open rendered PDF", "path", outputPath, "error", err)
		return domain.Failed(domain.KindInternalError, "An internal server error occurred", "", "")
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		logging.Error("Failed to stat rendered PDF", "path", outputPath, "error", err)
		return domain.Failed(domain.KindInternalError, "An internal server error occurred", "", "")
	}
	return domain.Succeeded(f, st.Size())
}
