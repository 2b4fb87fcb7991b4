package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// Envelope status values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Pagination is the pagination block of a list response. It is passed
// through to callers unchanged.
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

// Envelope is the wrapper every API response uses.
type Envelope struct {
	Status     string          `json:"status"`
	Message    string          `json:"message,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
	Pagination *Pagination     `json:"pagination,omitempty"`
}

// decodeEnvelope parses a success body. Bodies that are not an envelope
// (no status and no data member) are treated as a bare payload.
func decodeEnvelope(body []byte) (*Envelope, error) {
	if len(strings.TrimSpace(string(body))) == 0 {
		return &Envelope{Status: StatusSuccess}, nil
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("response is not valid JSON")
	}

	parsed := gjson.ParseBytes(body)
	if !parsed.IsObject() || (!parsed.Get("status").Exists() && !parsed.Get("data").Exists()) {
		return &Envelope{Status: StatusSuccess, Data: json.RawMessage(body)}, nil
	}

	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Status == "" {
		env.Status = StatusSuccess
	}
	return &env, nil
}

// Decode unmarshals the data member into out. A nil out or an absent data
// member is not an error.
func (e *Envelope) Decode(out any) error {
	if out == nil || len(e.Data) == 0 || string(e.Data) == "null" {
		return nil
	}
	if raw, ok := out.(*json.RawMessage); ok {
		*raw = append((*raw)[:0], e.Data...)
		return nil
	}
	if err := json.Unmarshal(e.Data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// errorMessage extracts the most specific human readable message from an
// error body: message, then error (string or object), then a fallback.
func errorMessage(body []byte, fallback string) string {
	if gjson.ValidBytes(body) {
		parsed := gjson.ParseBytes(body)
		for _, path := range []string{"message", "error.message", "error", "data.message"} {
			if v := parsed.Get(path); v.Type == gjson.String && v.String() != "" {
				return v.String()
			}
		}
	}
	return fallback
}

// requestIDFrom extracts a server supplied request id from the body or headers.
func requestIDFrom(resp *http.Response, body []byte) string {
	if gjson.ValidBytes(body) {
		if v := gjson.GetBytes(body, "requestId"); v.Exists() {
			return v.String()
		}
		if v := gjson.GetBytes(body, "request_id"); v.Exists() {
			return v.String()
		}
	}
	return resp.Header.Get("X-Request-ID")
}

// parseRetryAfter parses a Retry-After header given either as delta-seconds
// or as an HTTP-date.
func parseRetryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(value); err == nil {
		if d := t.Sub(now); d > 0 {
			return d.Round(time.Second)
		}
	}
	return 0
}
