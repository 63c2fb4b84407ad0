package command

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Result is the terminal JSON value a one-shot backend process printed.
type Result struct {
	// Command is the backend command name, e.g. "authenticate".
	Command string

	// Status is the "status" field of the payload.
	Status string

	// Message is the "message" field of the payload, if any.
	Message string

	// Payload is the raw terminal object. Callers decode command-specific
	// fields with Decode.
	Payload json.RawMessage

	Duration time.Duration
}

// Succeeded reports whether the backend declared success. A payload with
// only a boolean "success" field is normalised into Status when parsed.
func (r *Result) Succeeded() bool {
	return r != nil && r.Status == "success"
}

// Decode unmarshals the payload into v.
func (r *Result) Decode(v interface{}) error {
	if err := json.Unmarshal(r.Payload, v); err != nil {
		return fmt.Errorf("decode %s result: %w", r.Command, err)
	}
	return nil
}

type envelope struct {
	Status  string `json:"status"`
	Success *bool  `json:"success"`
	Message string `json:"message"`
}

// parseTerminal returns the last JSON object in out. An object may span
// several lines; text between objects (progress, stray prints) is skipped.
func parseTerminal(command string, out []byte) (*Result, bool) {
	var last *Result

	rest := out
	for len(rest) > 0 {
		line, next := cutLine(rest)
		trimmed := bytes.TrimSpace(line)
		if len(trimmed) == 0 || trimmed[0] != '{' {
			rest = next
			continue
		}

		start := rest[bytes.IndexByte(rest, '{'):]
		dec := json.NewDecoder(bytes.NewReader(start))
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			rest = next
			continue
		}
		rest = start[dec.InputOffset():]

		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			continue
		}
		status := env.Status
		if status == "" && env.Success != nil {
			if *env.Success {
				status = "success"
			} else {
				status = "error"
			}
		}
		last = &Result{
			Command: command,
			Status:  status,
			Message: env.Message,
			Payload: raw,
		}
	}
	return last, last != nil
}

func cutLine(b []byte) (line, rest []byte) {
	if i := bytes.IndexByte(b, '\n'); i >= 0 {
		return b[:i], b[i+1:]
	}
	return b, nil
}
