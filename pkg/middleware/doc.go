// Package middleware provides the net/http stages of the cvmaker request
// pipeline.
//
// Every stage has the shape func(http.Handler) http.Handler and may mutate
// the request or response, short-circuit by writing a response, or call the
// next handler. A stage that fails hands the error to Fail, which routes it
// to the single error handler installed at the root with Errors:
//
//	h := middleware.Chain(
//	    middleware.Errors(onError),
//	    middleware.Recover(),
//	    middleware.SecurityHeaders(policy),
//	    middleware.CookieParser(signer),
//	    middleware.MethodOverride(),
//	    middleware.BodyParser(1<<20),
//	)(router)
//
// # Observability
//
// RequestLogger attaches a request-scoped zerolog logger and logs one line
// per request. Metrics records Prometheus request counters and latency
// histograms against a caller-supplied registry. Tracing starts an
// OpenTelemetry server span per request using the global tracer provider:
//
//	m := middleware.NewMetrics(middleware.WithRegistry(reg))
//	h = middleware.Chain(m.Middleware(), middleware.Tracing())(h)
//
// None of the observability stages write a response.
package middleware
