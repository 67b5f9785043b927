package disposition

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/linnemanlabs/sift/internal/feedback"
)

// defaultConfidence is used when the classifier omits a numeric confidence.
const defaultConfidence = 50

// response is the JSON object the classifier is asked to return. Older
// prompts used "classification" for the disposition; both are accepted.
type response struct {
	Disposition    string `json:"disposition"`
	Classification string `json:"classification"`
	Confidence     any    `json:"confidence"`
	Suggestion     string `json:"suggestion"`
	ConflictWith   string `json:"conflict_with"`
}

// ParseResponse extracts the first JSON object from a classifier reply,
// which may be wrapped in prose or markdown fences, and normalizes it.
// Unknown dispositions become needs_triage and confidence is clamped to
// [0,100]. A reply without a JSON object is a ClassificationError.
func ParseResponse(text string) (*feedback.Suggestion, error) {
	raw, ok := FirstJSONObject(text)
	if !ok {
		return nil, classErr(ReasonNoJSON, nil)
	}
	var r response
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return nil, classErr(ReasonMalformed, err)
	}

	d := feedback.Disposition(strings.ToLower(strings.TrimSpace(r.Disposition)))
	if d == "" {
		d = feedback.Disposition(strings.ToLower(strings.TrimSpace(r.Classification)))
	}
	if !d.Valid() {
		d = feedback.DispositionNeedsTriage
	}

	return &feedback.Suggestion{
		Disposition:  d,
		Confidence:   normalizeConfidence(r.Confidence),
		Text:         strings.TrimSpace(r.Suggestion),
		ConflictWith: strings.TrimSpace(r.ConflictWith),
		Source:       feedback.SourceLLM,
	}, nil
}

func normalizeConfidence(v any) int {
	f := float64(defaultConfidence)
	switch t := v.(type) {
	case float64:
		f = t
	case string:
		if p, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil {
			f = p
		}
	}
	if math.IsNaN(f) {
		f = defaultConfidence
	}
	return int(max(0, min(100, math.Round(f))))
}

// FirstJSONObject returns the first balanced {...} in text. Braces inside
// JSON strings are ignored; an unbalanced object is not returned.
func FirstJSONObject(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	for start >= 0 {
		if end, ok := matchBrace(text, start); ok {
			return text[start : end+1], true
		}
		next := strings.IndexByte(text[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", false
}

func matchBrace(text string, start int) (int, bool) {
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}
