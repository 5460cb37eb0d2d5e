package span

import (
	"strconv"

	"github.com/charmbracelet/log"
)

// Data-attribute names carried on every rendered highlight wrapper. Click
// handlers in the editor client rebuild the span from these without
// re-scanning the document.
const (
	AttrID         = "data-span-id"
	AttrCategory   = "data-span-category"
	AttrSource     = "data-span-source"
	AttrStart      = "data-span-start"
	AttrEnd        = "data-span-end"
	AttrQuote      = "data-span-quote"
	AttrLeftCtx    = "data-span-left-ctx"
	AttrRightCtx   = "data-span-right-ctx"
	AttrConfidence = "data-span-confidence"
	AttrIdemKey    = "data-span-idempotency-key"
	AttrValidated  = "data-span-validated"
)

// Attrs flattens the span into the highlight wrapper's data attributes.
func (s *Span) Attrs() map[string]string {
	return map[string]string{
		AttrID:         s.ID,
		AttrCategory:   s.Category,
		AttrSource:     s.Source,
		AttrStart:      strconv.Itoa(s.Start),
		AttrEnd:        strconv.Itoa(s.End),
		AttrQuote:      s.Quote,
		AttrLeftCtx:    s.LeftCtx,
		AttrRightCtx:   s.RightCtx,
		AttrConfidence: strconv.FormatFloat(s.Confidence, 'g', -1, 64),
		AttrIdemKey:    s.IdempotencyKey,
		AttrValidated:  strconv.FormatBool(s.ValidatorPass),
	}
}

// FromAttrs rebuilds a span from wrapper attributes, the inverse of Attrs.
// Numeric fields that fail to parse fall back to zero values with a
// warning; the id and quote always survive.
func FromAttrs(attrs map[string]string) Span {
	s := Span{
		ID:             attrs[AttrID],
		Category:       attrs[AttrCategory],
		Source:         attrs[AttrSource],
		Quote:          attrs[AttrQuote],
		LeftCtx:        attrs[AttrLeftCtx],
		RightCtx:       attrs[AttrRightCtx],
		IdempotencyKey: attrs[AttrIdemKey],
	}
	s.Start = parseIntAttr(attrs, AttrStart)
	s.End = parseIntAttr(attrs, AttrEnd)
	if v, err := strconv.ParseFloat(attrs[AttrConfidence], 64); err == nil {
		s.Confidence = v
	}
	s.ValidatorPass = attrs[AttrValidated] == "true"
	return s
}

func parseIntAttr(attrs map[string]string, key string) int {
	raw, ok := attrs[key]
	if !ok || raw == "" {
		return 0
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		log.Warnf("Bad %s attribute %q: %v", key, raw, err)
		return 0
	}
	return v
}
