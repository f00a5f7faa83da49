package conversion

import (
	"bytes"
	"encoding/json"
	"strings"

	"pdfconvert/internal/domain"
)

// Decoder is the shape of fiber's JSONUnmarshal, so the app's configured
// codec can be passed straight through.
type Decoder = func(data []byte, v any) error

// Parse validates a /convert body into a typed request. It never touches
// the filesystem, so rejected requests allocate nothing.
func Parse(body []byte, decode Decoder) (domain.ConversionRequest, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return domain.ConversionRequest{}, domain.ErrMissingField
	}

	var payload map[string]json.RawMessage
	if err := decode(body, &payload); err != nil || payload == nil {
		return domain.ConversionRequest{}, domain.ErrMissingField
	}

	raw, ok := payload["html"]
	if !ok {
		return domain.ConversionRequest{}, domain.ErrMissingField
	}
	var html *string
	if err := decode(raw, &html); err != nil {
		return domain.ConversionRequest{}, domain.ErrMissingField
	}
	if html == nil || strings.TrimSpace(*html) == "" {
		return domain.ConversionRequest{}, domain.ErrEmptyField
	}
	return domain.ConversionRequest{HTML: *html}, nil
}
