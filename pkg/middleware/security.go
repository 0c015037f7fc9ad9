package middleware

import (
	"net/http"
	"strconv"
	"time"
)

// SecurityPolicy is the static set of security headers sent on every response.
type SecurityPolicy struct {
	// FrameOptions is sent as X-Frame-Options. Default: SAMEORIGIN.
	FrameOptions string

	// ReferrerPolicy is sent as Referrer-Policy. Default: no-referrer.
	ReferrerPolicy string

	// HSTSMaxAge enables Strict-Transport-Security when positive.
	HSTSMaxAge time.Duration

	// HSTSIncludeSubdomains adds includeSubDomains to the HSTS header.
	HSTSIncludeSubdomains bool

	// ContentSecurityPolicy is sent verbatim when set.
	ContentSecurityPolicy string
}

// DefaultSecurityPolicy returns the policy applied when none is configured.
func DefaultSecurityPolicy() SecurityPolicy {
	return SecurityPolicy{
		FrameOptions:          "SAMEORIGIN",
		ReferrerPolicy:        "no-referrer",
		HSTSMaxAge:            180 * 24 * time.Hour,
		HSTSIncludeSubdomains: true,
	}
}

// Headers renders the policy into the header set to apply.
func (p SecurityPolicy) Headers() http.Header {
	h := http.Header{}
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("X-DNS-Prefetch-Control", "off")
	h.Set("X-Download-Options", "noopen")
	h.Set("X-Permitted-Cross-Domain-Policies", "none")
	h.Set("X-XSS-Protection", "0")
	h.Set("Cross-Origin-Opener-Policy", "same-origin")

	frame := p.FrameOptions
	if frame == "" {
		frame = "SAMEORIGIN"
	}
	h.Set("X-Frame-Options", frame)

	referrer := p.ReferrerPolicy
	if referrer == "" {
		referrer = "no-referrer"
	}
	h.Set("Referrer-Policy", referrer)

	if p.HSTSMaxAge > 0 {
		v := "max-age=" + strconv.FormatInt(int64(p.HSTSMaxAge/time.Second), 10)
		if p.HSTSIncludeSubdomains {
			v += "; includeSubDomains"
		}
		h.Set("Strict-Transport-Security", v)
	}
	if p.ContentSecurityPolicy != "" {
		h.Set("Content-Security-Policy", p.ContentSecurityPolicy)
	}
	return h
}

// SecurityHeaders applies policy to every response. The header set is
// computed once.
func SecurityHeaders(policy SecurityPolicy) Stage {
	headers := policy.Headers()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			dst := w.Header()
			for k, v := range headers {
				dst[k] = append([]string(nil), v...)
			}
			next.ServeHTTP(w, r)
		})
	}
}
