package server

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/delta94/cvmaker/internal/config"
)

func postReport(f *fixture, body, remote string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, ReportClientErrorPath, strings.NewReader(body))
	req.Header.Set("Content-Type", "text/plain")
	if remote != "" {
		req.RemoteAddr = remote
	}
	return f.do(req)
}

func TestReportClientError(t *testing.T) {
	f := newFixture(t, nil)

	rec := postReport(f, "boom", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())

	logs := f.logs.String()
	assert.Contains(t, logs, `"message":"client_error"`)
	assert.Contains(t, logs, `"report":"boom"`)
}

func TestReportClientErrorLogsEveryReportByDefault(t *testing.T) {
	f := newFixture(t, nil)
	require.Zero(t, f.cfg.Server.ClientErrorRate)

	const reports = 8
	require.Greater(t, reports, f.cfg.Server.ClientErrorBurst)
	for i := 0; i < reports; i++ {
		rec := postReport(f, "boom", "203.0.113.9:5000")
		assert.Equal(t, http.StatusNoContent, rec.Code)
	}

	assert.Equal(t, reports, strings.Count(f.logs.String(), `"report":"boom"`))
}

func TestReportClientErrorRateLimited(t *testing.T) {
	f := newFixture(t, nil, func(cfg *config.Config, _ *Options) {
		cfg.Server.ClientErrorRate = 0.001
		cfg.Server.ClientErrorBurst = 2
	})

	for i := 0; i < 4; i++ {
		rec := postReport(f, "flood", "203.0.113.9:5000")
		assert.Equal(t, http.StatusNoContent, rec.Code, "dropped reports still answer 204")
	}
	rec := postReport(f, "other client", "198.51.100.1:6000")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	logs := f.logs.String()
	assert.Equal(t, 2, strings.Count(logs, `"report":"flood"`))
	assert.Equal(t, 1, strings.Count(logs, `"report":"other client"`))

	metrics := f.get(f.cfg.Metrics.Path).Body.String()
	assert.Contains(t, metrics, `cvmaker_client_error_reports_total{outcome="logged"} 3`)
	assert.Contains(t, metrics, `cvmaker_client_error_reports_total{outcome="dropped"} 2`)
}

func TestReporterTruncatesLongBodies(t *testing.T) {
	var buf bytes.Buffer
	rp := NewReporter(ReporterConfig{Limit: 4}, zerolog.New(&buf))

	req := httptest.NewRequest(http.MethodPost, ReportClientErrorPath, strings.NewReader("boom boom boom"))
	rec := httptest.NewRecorder()
	rp.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Contains(t, buf.String(), `"report":"boom"`)
	assert.Contains(t, buf.String(), `"truncated":true`)
}

func TestReporterPrunesIdleClients(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	rp := NewReporter(ReporterConfig{
		Rate:  1,
		Burst: 1,
		Now:   func() time.Time { return now },
	}, zerolog.Nop())

	for i := 0; i < maxTrackedClients; i++ {
		require.True(t, rp.allow("client-"+strconv.Itoa(i)))
	}
	assert.Equal(t, maxTrackedClients, rp.trackedClients())

	now = now.Add(clientIdleTTL + time.Minute)
	assert.True(t, rp.allow("newcomer"))
	assert.Equal(t, 1, rp.trackedClients())
}

func TestClientKey(t *testing.T) {
	tests := []struct {
		remote string
		want   string
	}{
		{"192.0.2.1:1234", "192.0.2.1"},
		{"[2001:db8::1]:443", "2001:db8::1"},
		{"[fe80::1%eth0]:80", "fe80::1"},
		{"192.0.2.7", "192.0.2.7"},
		{"", "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.remote, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", nil)
			req.RemoteAddr = tt.remote
			assert.Equal(t, tt.want, clientKey(req))
		})
	}
}
