package llm

import (
	"strconv"
	"strings"
)

const (
	responseMarker   = "RESPONSE:"
	reasoningMarker  = "REASONING:"
	confidenceMarker = "CONFIDENCE:"
)

// parseClassification reads REQUIRES_RESPONSE and REASON lines.
// ok is false when no verdict line is present.
func parseClassification(content string) (c Classification, ok bool) {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "0123456789.-*) "))
		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "requires_response":
			v := strings.ToLower(strings.TrimSpace(value))
			c.RequiresResponse = strings.HasPrefix(v, "y")
			ok = strings.HasPrefix(v, "y") || strings.HasPrefix(v, "n")
		case "reason":
			if r := strings.TrimSpace(value); r != "" {
				c.Reason = r
			}
		}
	}
	return c, ok
}

// parseCompletion splits a RESPONSE/REASONING/CONFIDENCE answer. A missing or
// unparseable score is reported as zero so the confidence gate always fails.
// Output without the RESPONSE marker keeps only the text before any other
// marker and is likewise unscored.
func parseCompletion(content string) Completion {
	out := Completion{Unscored: true}

	_, after, hasResponse := strings.Cut(content, responseMarker)
	if !hasResponse {
		after = content
	}
	body, _, _ := strings.Cut(after, reasoningMarker)
	body, _, _ = strings.Cut(body, confidenceMarker)
	out.Body = strings.TrimSpace(body)

	if _, after, found := strings.Cut(content, reasoningMarker); found {
		reasoning, _, _ := strings.Cut(after, confidenceMarker)
		out.Reasoning = strings.TrimSpace(reasoning)
	}

	if !hasResponse {
		return out
	}

	if _, after, found := strings.Cut(content, confidenceMarker); found {
		if fields := strings.Fields(after); len(fields) > 0 {
			if v, err := strconv.ParseFloat(strings.TrimRight(fields[0], ".,"), 64); err == nil {
				out.Confidence = clamp(v)
				out.Unscored = false
			}
		}
	}
	return out
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
