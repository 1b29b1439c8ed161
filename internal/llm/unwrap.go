package llm

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var errEmptyOutput = errors.New("empty output")

// UnwrapJSON strips surrounding whitespace and a single leading/trailing
// markdown code fence (``` or ```json) from model text, then checks that what
// is left is exactly one valid JSON value. It returns the bare JSON bytes.
// Any text outside the fence, or invalid JSON inside it, is an error.
func UnwrapJSON(text string) ([]byte, error) {
	s := strings.TrimSpace(text)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		// Drop an info string such as "json" up to the end of the fence line.
		if nl := strings.IndexByte(s, '\n'); nl >= 0 && !strings.ContainsAny(s[:nl], "{[\"") {
			s = s[nl+1:]
		} else {
			s = strings.TrimPrefix(s, "json")
		}
		s = strings.TrimSpace(s)
		s = strings.TrimSuffix(s, "```")
		s = strings.TrimSpace(s)
	}
	if s == "" {
		return nil, errEmptyOutput
	}

	dec := json.NewDecoder(strings.NewReader(s))
	var v json.RawMessage
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	if rest := strings.TrimSpace(s[dec.InputOffset():]); rest != "" {
		return nil, errors.New("trailing data after json value")
	}
	return bytes.TrimSpace(v), nil
}
