package requests

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPTransport_Execute(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "v", r.Header.Get("X-Test"))
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, `{"a":1}`, string(body))

		w.Header().Set("X-Reply", "yes")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("missing"))
	}))
	defer server.Close()

	tr := NewHTTPTransport(HTTPTransportConfig{Timeout: 5 * time.Second})
	raw, err := tr.Execute(context.Background(), server.URL, &TransportOptions{
		Method:         http.MethodPut,
		Headers:        map[string]string{"X-Test": "v"},
		Body:           []byte(`{"a":1}`),
		ContentType:    "application/json",
		MuteExceptions: true,
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, raw.StatusCode)
	assert.Equal(t, "missing", string(raw.Body))
	assert.Equal(t, "yes", raw.Headers.Get("X-Reply"))
}

func TestHTTPTransport_ConnectionFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	tr := NewHTTPTransport(HTTPTransportConfig{Timeout: time.Second})
	_, err := tr.Execute(context.Background(), url, &TransportOptions{Method: http.MethodGet})
	assert.Error(t, err)
}

func TestHTTPTransport_RateLimiter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	tr := NewHTTPTransport(HTTPTransportConfig{RequestsPerSecond: 10})

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := tr.Execute(context.Background(), server.URL, &TransportOptions{Method: http.MethodGet})
		require.NoError(t, err)
	}
	// Burst of 1 at 10/s spaces three calls at least ~200ms apart in total
	assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	rt := &recordingTransport{responses: []*RawResponse{
		{StatusCode: http.StatusTooManyRequests, Headers: http.Header{}},
		{StatusCode: http.StatusOK, Headers: http.Header{}, Body: []byte("{}")},
	}}
	svc := New(WithTransport(rt), WithMetrics(m))

	req, err := svc.Get(Target{URL: "https://api.example.com"}, RequestOptions{})
	require.NoError(t, err)
	_, err = req.SendWithRetry(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("GET", "429")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("GET", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rateLimited))

	// A nil recorder is a no-op
	var none *Metrics
	none.observeRequest("GET", 200)
	none.observeRateLimit()
	none.observeLookup(true)
}
