package api

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"
)

func newResponse(status int, body string, header http.Header) *http.Response {
	if header == nil {
		header = http.Header{}
	}
	return &http.Response{
		StatusCode: status,
		Header:     header,
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func TestParseErrorResponse_Message(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"message member", `{"status":"error","message":"title is required"}`, "title is required"},
		{"error string", `{"error":"bad input"}`, "bad input"},
		{"error object", `{"error":{"message":"nested"}}`, "nested"},
		{"message wins over error", `{"message":"first","error":"second"}`, "first"},
		{"empty body", ``, "Unprocessable Entity"},
		{"not JSON", `<html>oops</html>`, "Unprocessable Entity"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := parseErrorResponse(newResponse(422, tt.body, nil), time.Now())
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected *APIError, got %T", err)
			}
			if apiErr.Message != tt.want {
				t.Errorf("Message = %q, want %q", apiErr.Message, tt.want)
			}
			if !errors.Is(err, ErrClient) {
				t.Error("422 should match ErrClient")
			}
		})
	}
}

func TestParseErrorResponse_RequestID(t *testing.T) {
	h := http.Header{}
	h.Set("X-Request-ID", "hdr-1")

	err := parseErrorResponse(newResponse(500, `{"message":"boom"}`, h), time.Now())
	if got := err.(*APIError).RequestID; got != "hdr-1" {
		t.Errorf("RequestID = %q, want hdr-1", got)
	}

	err = parseErrorResponse(newResponse(500, `{"message":"boom","requestId":"body-1"}`, h), time.Now())
	if got := err.(*APIError).RequestID; got != "body-1" {
		t.Errorf("RequestID = %q, want body-1", got)
	}
}

func TestParseErrorResponse_RetryAfter(t *testing.T) {
	h := http.Header{}
	h.Set("Retry-After", "30")

	err := parseErrorResponse(newResponse(429, `{"message":"slow down"}`, h), time.Now())
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if got := err.(*APIError).RetryAfter; got != 30*time.Second {
		t.Errorf("RetryAfter = %v, want 30s", got)
	}

	// Only 429 carries the hint.
	err = parseErrorResponse(newResponse(503, ``, h), time.Now())
	if got := err.(*APIError).RetryAfter; got != 0 {
		t.Errorf("RetryAfter on 503 = %v, want 0", got)
	}
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)

	tests := []struct {
		name  string
		value string
		want  time.Duration
	}{
		{"empty", "", 0},
		{"seconds", "30", 30 * time.Second},
		{"padded seconds", " 5 ", 5 * time.Second},
		{"negative", "-3", 0},
		{"http date", now.Add(90 * time.Second).Format(http.TimeFormat), 90 * time.Second},
		{"past date", now.Add(-time.Minute).Format(http.TimeFormat), 0},
		{"garbage", "soon", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseRetryAfter(tt.value, now); got != tt.want {
				t.Errorf("parseRetryAfter(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestDecodeEnvelope(t *testing.T) {
	t.Run("envelope with pagination", func(t *testing.T) {
		env, err := decodeEnvelope([]byte(`{"status":"success","data":[{"id":"p1"}],"pagination":{"page":2,"limit":10,"total":25,"pages":3}}`))
		if err != nil {
			t.Fatalf("decodeEnvelope() error = %v", err)
		}
		if string(env.Data) != `[{"id":"p1"}]` {
			t.Errorf("Data = %s", env.Data)
		}
		want := Pagination{Page: 2, Limit: 10, Total: 25, Pages: 3}
		if env.Pagination == nil || *env.Pagination != want {
			t.Errorf("Pagination = %+v, want %+v", env.Pagination, want)
		}
	})

	t.Run("bare payload", func(t *testing.T) {
		env, err := decodeEnvelope([]byte(`{"id":"u1","username":"ada"}`))
		if err != nil {
			t.Fatalf("decodeEnvelope() error = %v", err)
		}
		if env.Status != StatusSuccess || string(env.Data) != `{"id":"u1","username":"ada"}` {
			t.Errorf("env = %+v", env)
		}
	})

	t.Run("bare array", func(t *testing.T) {
		env, err := decodeEnvelope([]byte(`[1,2,3]`))
		if err != nil {
			t.Fatalf("decodeEnvelope() error = %v", err)
		}
		if string(env.Data) != `[1,2,3]` {
			t.Errorf("Data = %s", env.Data)
		}
	})

	t.Run("empty body", func(t *testing.T) {
		env, err := decodeEnvelope(nil)
		if err != nil || env.Status != StatusSuccess || env.Data != nil {
			t.Errorf("decodeEnvelope(nil) = %+v, %v", env, err)
		}
	})

	t.Run("invalid JSON", func(t *testing.T) {
		if _, err := decodeEnvelope([]byte(`{"status":`)); err == nil {
			t.Error("expected error for invalid JSON")
		}
	})
}

func TestEnvelope_Decode(t *testing.T) {
	env := &Envelope{Data: []byte(`{"id":"p1","title":"hello"}`)}

	var out struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	}
	if err := env.Decode(&out); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if out.ID != "p1" || out.Title != "hello" {
		t.Errorf("Decode() = %+v", out)
	}

	if err := env.Decode(nil); err != nil {
		t.Errorf("Decode(nil) error = %v", err)
	}
	if err := (&Envelope{Data: []byte("null")}).Decode(&out); err != nil {
		t.Errorf("Decode of null data error = %v", err)
	}

	var wrongType []string
	if err := env.Decode(&wrongType); err == nil {
		t.Error("expected error decoding an object into a slice")
	}
}
