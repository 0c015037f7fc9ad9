package server

import (
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// ReportClientErrorPath receives error reports from the browser.
const ReportClientErrorPath = "/logs/report-client-error"

// Report outcomes passed to ReporterConfig.OnReport.
const (
	ReportLogged  = "logged"
	ReportDropped = "dropped"
)

const (
	maxTrackedClients = 10000
	clientIdleTTL     = 10 * time.Minute
)

// ReporterConfig configures the client error report endpoint.
type ReporterConfig struct {
	// Limit caps the logged body in bytes. Longer bodies are truncated.
	Limit int64

	// Rate is the sustained number of logged reports per second per client.
	// Zero disables rate limiting.
	Rate float64

	// Burst is the number of reports a client may send at once.
	Burst int

	// OnReport is called with ReportLogged or ReportDropped for every report.
	OnReport func(outcome string)

	// Now overrides the clock. Used by tests.
	Now func() time.Time
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Reporter logs client-side error reports. It always answers 204 so a
// misbehaving page cannot learn whether its reports are being dropped.
type Reporter struct {
	cfg    ReporterConfig
	logger zerolog.Logger

	mu      sync.Mutex
	clients map[string]*clientLimiter
}

// NewReporter creates a Reporter.
func NewReporter(cfg ReporterConfig, logger zerolog.Logger) *Reporter {
	if cfg.Limit <= 0 {
		cfg.Limit = 16 << 10
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.OnReport == nil {
		cfg.OnReport = func(string) {}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Reporter{
		cfg:     cfg,
		logger:  logger.With().Str("component", "client_errors").Logger(),
		clients: make(map[string]*clientLimiter),
	}
}

// ServeHTTP implements http.Handler.
func (rp *Reporter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	defer w.WriteHeader(http.StatusNoContent)

	key := clientKey(r)
	if !rp.allow(key) {
		rp.cfg.OnReport(ReportDropped)
		return
	}

	body, truncated, err := readLimited(r.Body, rp.cfg.Limit)
	if err != nil {
		rp.logger.Debug().Err(err).Str("client", key).Msg("client error report unreadable")
	}

	rp.logger.Error().
		Str("client", key).
		Str("user_agent", r.UserAgent()).
		Str("referer", r.Referer()).
		Bool("truncated", truncated).
		Str("report", body).
		Msg("client_error")
	rp.cfg.OnReport(ReportLogged)
}

func (rp *Reporter) allow(key string) bool {
	if rp.cfg.Rate <= 0 {
		return true
	}
	now := rp.cfg.Now()

	rp.mu.Lock()
	defer rp.mu.Unlock()

	cl, ok := rp.clients[key]
	if !ok {
		if len(rp.clients) >= maxTrackedClients {
			rp.pruneLocked(now)
		}
		cl = &clientLimiter{limiter: rate.NewLimiter(rate.Limit(rp.cfg.Rate), rp.cfg.Burst)}
		rp.clients[key] = cl
	}
	cl.lastSeen = now
	return cl.limiter.AllowN(now, 1)
}

// pruneLocked drops idle clients, or every client when none is idle.
func (rp *Reporter) pruneLocked(now time.Time) {
	for key, cl := range rp.clients {
		if now.Sub(cl.lastSeen) > clientIdleTTL {
			delete(rp.clients, key)
		}
	}
	if len(rp.clients) >= maxTrackedClients {
		rp.clients = make(map[string]*clientLimiter)
	}
}

// trackedClients returns the number of clients with a live limiter.
func (rp *Reporter) trackedClients() int {
	rp.mu.Lock()
	defer rp.mu.Unlock()
	return len(rp.clients)
}

func readLimited(body io.Reader, limit int64) (string, bool, error) {
	if body == nil {
		return "", false, nil
	}
	raw, err := io.ReadAll(io.LimitReader(body, limit+1))
	truncated := int64(len(raw)) > limit
	if truncated {
		raw = raw[:limit]
	}
	return string(raw), truncated, err
}

// clientKey identifies the reporting client by address. RemoteAddr has
// already been rewritten from forwarding headers by the real ip stage.
func clientKey(r *http.Request) string {
	host := strings.TrimSpace(r.RemoteAddr)
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.Trim(host, "[]")
	if zone := strings.Index(host, "%"); zone != -1 {
		host = host[:zone]
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.String()
	}
	if host == "" {
		return "unknown"
	}
	return host
}
