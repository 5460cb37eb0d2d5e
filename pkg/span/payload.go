package span

import (
	"encoding/json"

	"github.com/charmbracelet/log"
)

// LabelPayload is the wire shape of a labeling-service response.
type LabelPayload struct {
	Spans []Span            `json:"spans"`
	Meta  map[string]string `json:"meta,omitempty"`
}

// ParseLabelPayload validates a labeling response at the deserialization
// boundary. A malformed body or a structurally bad span is never fatal:
// the bad parts are dropped with a warning and the rest survive, so one
// broken span cannot take its siblings down with it.
func ParseLabelPayload(data []byte, textLen int) []Span {
	var payload LabelPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		log.Warnf("Malformed labeling payload, treating as empty: %v", err)
		return nil
	}
	return ValidateAll(payload.Spans, textLen)
}

// ValidateAll runs structural validation over each span, keeping the ones
// that pass and logging the ones that don't.
func ValidateAll(spans []Span, textLen int) []Span {
	valid := spans[:0:0]
	for i := range spans {
		s := spans[i]
		if err := s.Validate(textLen); err != nil {
			log.Warnf("Dropping span: %v", err)
			continue
		}
		valid = append(valid, s)
	}
	return valid
}
