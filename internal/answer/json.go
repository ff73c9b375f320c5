package answer

import "encoding/json"

// MarshalJSON encodes a span as a tagged object carrying only the field its
// kind uses, so Citation(0) keeps its index and Bold("") keeps its text.
func (s Span) MarshalJSON() ([]byte, error) {
	switch s.Kind {
	case SpanCitation:
		return json.Marshal(struct {
			Kind  SpanKind `json:"kind"`
			Index int      `json:"index"`
		}{s.Kind, s.Index})
	default:
		return json.Marshal(struct {
			Kind SpanKind `json:"kind"`
			Text string   `json:"text"`
		}{s.Kind, s.Text})
	}
}
