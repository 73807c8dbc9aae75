package checker

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/http/httptrace"
	"strings"
	"testing"
	"time"
)

// TestClient_ConnectionReuse verifies that sequential requests to the same
// host reuse pooled connections.
func TestClient_ConnectionReuse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	client := NewClient()
	defer client.Close()

	var reusedCount int
	trace := &httptrace.ClientTrace{
		GotConn: func(info httptrace.GotConnInfo) {
			if info.Reused {
				reusedCount++
			}
		},
	}

	const numRequests = 5
	for i := 0; i < numRequests; i++ {
		ctx := httptrace.WithClientTrace(context.Background(), trace)
		resp := client.Fetch(ctx, Request{URL: server.URL, Timeout: 5 * time.Second})
		if resp.Error != nil {
			t.Fatalf("request %d failed: %v", i, resp.Error)
		}
	}

	expectedMinReuse := numRequests - 2 // allow some tolerance
	if reusedCount < expectedMinReuse {
		t.Errorf("expected at least %d reused connections, got %d out of %d requests",
			expectedMinReuse, reusedCount, numRequests)
	}
}

// TestClient_SendsRequestDescriptor verifies method, headers and body reach the server.
func TestClient_SendsRequestDescriptor(t *testing.T) {
	var gotMethod, gotAuth, gotBody, gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotAuth = r.Header.Get("Authorization")
		gotUA = r.Header.Get("User-Agent")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	resp := NewClient().Fetch(context.Background(), Request{
		Method:  http.MethodPost,
		URL:     server.URL,
		Headers: map[string]string{"Authorization": "Bearer t"},
		Body:    `{"q":1}`,
		Timeout: 5 * time.Second,
	})

	if resp.Error != nil {
		t.Fatalf("Fetch() error = %v", resp.Error)
	}
	if resp.StatusCode != http.StatusAccepted {
		t.Errorf("StatusCode = %d, want 202", resp.StatusCode)
	}
	if gotMethod != http.MethodPost || gotAuth != "Bearer t" || gotBody != `{"q":1}` {
		t.Errorf("server saw method=%q auth=%q body=%q", gotMethod, gotAuth, gotBody)
	}
	if gotUA != userAgent {
		t.Errorf("User-Agent = %q, want %q", gotUA, userAgent)
	}
}

// TestClient_Timings verifies a fresh connection reports a full breakdown.
func TestClient_Timings(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(10 * time.Millisecond)
		_, _ = w.Write([]byte(strings.Repeat("x", 1024)))
	}))
	defer server.Close()

	resp := NewClient().Fetch(context.Background(), Request{URL: server.URL, Timeout: 5 * time.Second})
	if resp.Error != nil {
		t.Fatalf("Fetch() error = %v", resp.Error)
	}

	tm := resp.Timings
	if !tm.Connect.Valid {
		t.Error("Connect phase should be measured on a fresh connection")
	}
	if !tm.TTFB.Valid || tm.TTFB.Duration < 10*time.Millisecond {
		t.Errorf("TTFB = %+v, want at least 10ms", tm.TTFB)
	}
	if !tm.Download.Valid {
		t.Error("Download phase should be measured")
	}
	if tm.Total < tm.TTFB.Duration {
		t.Errorf("Total %v shorter than TTFB %v", tm.Total, tm.TTFB.Duration)
	}
	// httptest listens on an IP literal, so there is no DNS lookup
	if tm.DNS.Valid {
		t.Errorf("DNS = %+v, want unmeasured for an IP literal", tm.DNS)
	}
}

// TestClient_ConnectionRefused verifies transport errors are captured, not returned.
func TestClient_ConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	resp := NewClient().Fetch(context.Background(), Request{URL: url, Timeout: 5 * time.Second})
	if resp.Error == nil {
		t.Fatal("expected an error for a closed server")
	}
	if !strings.HasPrefix(resp.Error.Error(), "request failed:") {
		t.Errorf("Error = %q, want request failed prefix", resp.Error)
	}
	if resp.Timings.TTFB.Valid {
		t.Error("TTFB should be unmeasured when no response arrived")
	}
}

// TestClient_InvalidURL verifies request construction errors are captured.
func TestClient_InvalidURL(t *testing.T) {
	resp := NewClient().Fetch(context.Background(), Request{URL: "http://[::1", Timeout: time.Second})
	if resp.Error == nil || !strings.Contains(resp.Error.Error(), "failed to create request") {
		t.Errorf("Error = %v, want request creation error", resp.Error)
	}
}

// TestClient_Close verifies that Close is safe to call and idempotent.
func TestClient_Close(t *testing.T) {
	client := NewClient()
	client.Close()
	client.Close()
}

// TestClient_Close_NilClient verifies that Close handles nil receiver safely.
func TestClient_Close_NilClient(t *testing.T) {
	var client *Client
	client.Close()
}
