package handlers

import (
	"github.com/gofiber/fiber/v2"

	"pdfconvert/internal/config"
	"pdfconvert/internal/conversion"
	"pdfconvert/internal/domain"
	"pdfconvert/internal/infra/logging"
)

// DownloadName is the suggested attachment filename of every PDF.
const DownloadName = "converted.pdf"

// ErrorResponse is the JSON body of every non-200 response.
type ErrorResponse struct {
	Error         string `json:"error"`
	Kind          string `json:"kind,omitempty"`
	Details       string `json:"details,omitempty"`
	CommandOutput string `json:"command_output,omitempty"`
}

// ConvertHandler serves the conversion endpoints.
type ConvertHandler struct {
	Config  *config.Config
	Service *conversion.Service
}

// NewConvertHandler creates a handler around a shared conversion service.
func NewConvertHandler(cfg config.Config, svc *conversion.Service) *ConvertHandler {
	return &ConvertHandler{Config: &cfg, Service: svc}
}

// HandleConvert renders the "html" field of a JSON body into a PDF.
func (h *ConvertHandler) HandleConvert(c *fiber.Ctx) error {
	requestID := RequestID(c)
	logging.Info("Received conversion request", "request_id", requestID, "bytes", len(c.Body()))

	req, err := conversion.Parse(c.Body(), c.App().Config().JSONDecoder)
	if err != nil {
		kind := domain.KindOf(err)
		logging.Warn("Rejected conversion request", "request_id", requestID, "kind", string(kind), "error", err)
		return c.Status(statusFor(kind)).JSON(ErrorResponse{
			Error: err.Error(),
			Kind:  string(kind),
		})
	}

	result := h.Service.Convert(c.UserContext(), requestID, req)
	if !result.OK() {
		return c.Status(statusFor(result.Kind)).JSON(ErrorResponse{
			Error:         result.Message,
			Kind:          string(result.Kind),
			Details:       result.Details,
			CommandOutput: result.CommandOutput,
		})
	}

	logging.Info("PDF generated", "request_id", requestID, "bytes", result.Size)
	c.Attachment(DownloadName)
	c.Set(fiber.HeaderContentType, "application/pdf")
	// fasthttp closes the stream once the body is written.
	return c.SendStream(result.PDF, int(result.Size))
}

// HandleStats exposes renderer settings and conversion counters.
func (h *ConvertHandler) HandleStats(c *fiber.Ctx) error {
	snap := h.Service.Stats().Snapshot()
	return c.JSON(fiber.Map{
		"engine":       h.Service.Engine().Name(),
		"timeout_secs": h.Config.Renderer.TimeoutSecs,
		"in_flight":    snap.InFlight,
		"total":        snap.Total,
		"succeeded":    snap.Succeeded,
		"failures":     snap.Failures,
	})
}

// statusFor maps client kinds to 400 and everything else to 500.
func statusFor(kind domain.ErrorKind) int {
	if kind.IsClientError() {
		return fiber.StatusBadRequest
	}
	return fiber.StatusInternalServerError
}

// RequestID returns the id assigned by the requestid middleware, or the one the client sent.
func RequestID(c *fiber.Ctx) string {
	if id := c.GetRespHeader(fiber.HeaderXRequestID); id != "" {
		return id
	}
	return c.Get(fiber.HeaderXRequestID)
}
