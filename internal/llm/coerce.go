package llm

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNotObject is the fallback reason for payloads that are valid JSON
// but not an object.
var ErrNotObject = errors.New("response is not a JSON object")

// Result is the outcome of coercing model text into T.
// Fallback is set when Value came from the default instead of the model.
type Result[T any] struct {
	Value    T
	Fallback bool
	Reason   error
}

// Coerce parses raw as a JSON object into T and runs validate on it.
// Any parse or validation failure yields defaultFn() with Fallback set.
// It never fails and never panics.
func Coerce[T any](raw string, defaultFn func() T, validate func(*T) error) Result[T] {
	payload := stripCodeFence(strings.TrimSpace(raw))

	if !isJSONObject(payload) {
		return Result[T]{Value: defaultFn(), Fallback: true, Reason: ErrNotObject}
	}

	var v T
	if err := json.Unmarshal([]byte(payload), &v); err != nil {
		return Result[T]{Value: defaultFn(), Fallback: true, Reason: fmt.Errorf("parse: %w", err)}
	}
	if validate != nil {
		if err := validate(&v); err != nil {
			return Result[T]{Value: defaultFn(), Fallback: true, Reason: fmt.Errorf("validate: %w", err)}
		}
	}
	return Result[T]{Value: v}
}

// stripCodeFence removes one surrounding ``` or ```json fence.
func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") || !strings.HasSuffix(s, "```") || len(s) < 6 {
		return s
	}
	inner := strings.TrimSuffix(strings.TrimPrefix(s, "```"), "```")
	if nl := strings.IndexByte(inner, '\n'); nl >= 0 && !strings.ContainsAny(inner[:nl], "{[\"") {
		inner = inner[nl+1:]
	}
	return strings.TrimSpace(inner)
}

func isJSONObject(s string) bool {
	b := []byte(s)
	return len(b) > 0 && b[0] == '{' && json.Valid(bytes.TrimSpace(b))
}
