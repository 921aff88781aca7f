package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// resultEnvelope is the claude CLI print-mode output shape: the model text
// (or a ready JSON list) sits under "result".
type resultEnvelope struct {
	Type   string          `json:"type"`
	Result json.RawMessage `json:"result"`
}

// payloadText unwraps the CLI envelope when present. Custom commands answer
// with bare JSON and pass through untouched.
func payloadText(stdout string) string {
	s := strings.TrimSpace(stdout)
	var env resultEnvelope
	if err := json.Unmarshal([]byte(s), &env); err == nil && env.Type == "result" && len(env.Result) > 0 {
		if env.Result[0] == '"' {
			var inner string
			if err := json.Unmarshal(env.Result, &inner); err == nil {
				return inner
			}
		}
		return string(env.Result)
	}
	return s
}

// jsonArray finds the JSON array in the payload. Model output often wraps
// the array in prose or code fences, so a failed direct parse retries on the
// outermost bracketed span.
func jsonArray(payload string) ([]json.RawMessage, error) {
	s := strings.TrimSpace(payload)
	var items []json.RawMessage
	if err := json.Unmarshal([]byte(s), &items); err == nil {
		return items, nil
	}
	start := strings.IndexByte(s, '[')
	end := strings.LastIndexByte(s, ']')
	if start < 0 || end <= start {
		return nil, errors.New("no JSON array in output")
	}
	if err := json.Unmarshal([]byte(s[start:end+1]), &items); err != nil {
		return nil, fmt.Errorf("parse output array: %w", err)
	}
	return items, nil
}
