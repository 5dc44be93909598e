package utils

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

type echoResponse struct {
	Value string `json:"value"`
}

// TestDoPostSync_SendsHeadersAndDecodes verifies headers, bearer auth, and
// response decoding.
func TestDoPostSync_SendsHeadersAndDecodes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if request.Header.Get("Authorization") != "Bearer secret" {
			t.Errorf("missing bearer token, got %q", request.Header.Get("Authorization"))
		}
		if request.Header.Get("X-Custom") != "yes" {
			t.Errorf("missing custom header")
		}
		_, _ = io.WriteString(writer, `{"value":"ok"}`)
	}))
	defer server.Close()

	_, decoded, err := DoPostSync[echoResponse](context.Background(), nil, server.URL, "secret", map[string]string{"a": "b"}, HeaderOption{Key: "X-Custom", Value: "yes"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decoded.Value != "ok" {
		t.Errorf("expected ok, got %q", decoded.Value)
	}
}

// TestDoPostSync_StatusError verifies that non-2xx answers become an
// *HTTPStatusError carrying the status code.
func TestDoPostSync_StatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, _ *http.Request) {
		writer.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(writer, `{"error":"slow down"}`)
	}))
	defer server.Close()

	_, _, err := DoPostSync[echoResponse](context.Background(), server.Client(), server.URL, "", nil)
	if StatusCodeOf(err) != http.StatusTooManyRequests {
		t.Fatalf("expected status 429 in error, got %v", err)
	}
}

// TestDoPostStream_LeavesBodyOpen verifies the streaming variant returns the
// unread body and sets the event-stream Accept header.
func TestDoPostStream_LeavesBodyOpen(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if request.Header.Get("Accept") != "text/event-stream" {
			t.Errorf("expected event-stream accept header")
		}
		_, _ = io.WriteString(writer, "data: hi\n\n")
	}))
	defer server.Close()

	response, err := DoPostStream(context.Background(), server.Client(), server.URL, "", struct{}{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer CloseWithLog(response.Body)

	payload, err := NewSSEScanner(response.Body).Next()
	if err != nil || payload != "hi" {
		t.Fatalf("expected payload hi, got %q (%v)", payload, err)
	}
}

func TestTruncateString(t *testing.T) {
	if got := TruncateString("héllo world", 5, "..."); got != "héllo..." {
		t.Errorf("unexpected truncation: %q", got)
	}
	if got := TruncateString("short", 10, "..."); got != "short" {
		t.Errorf("expected unchanged string, got %q", got)
	}
}

func TestDecodeLenient(t *testing.T) {
	type item struct {
		Name string `json:"name"`
	}
	items, err := DecodeLenient[[]item]([]byte(`[{name: 'a'}, {"name": "b"},]`))
	if err != nil {
		t.Fatalf("expected repaired decode, got %v", err)
	}
	if len(items) != 2 || items[0].Name != "a" || items[1].Name != "b" {
		t.Fatalf("unexpected items: %+v", items)
	}
}
