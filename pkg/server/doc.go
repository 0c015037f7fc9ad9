// Package server assembles the request pipeline and runs the HTTP listener.
//
// An App owns the collaborators built at startup (session manager,
// authentication gate, render shell, metrics) and composes them into a
// single chi router. Two assemblies exist, selected by config.Mode:
//
//   - Production serves fingerprinted bundles from the static prefix.
//   - Development serves unbundled assets from the dev directory and
//     mounts the live reload endpoints.
//
// # Pipeline
//
// Every request passes the stages in this order:
//
//	error fallback root -> panic recovery
//	request id -> real ip -> request logger -> metrics -> tracing
//	compression -> security headers -> cookies -> method override
//	-> body parsing -> session -> authentication
//	-> route dispatch -> not-found fallback
//
// A stage fails by calling middleware.Fail, which hands the error to the
// root error fallback. Internal error detail is never written to the client.
//
// # Routes
//
// Application routes are registered by a Routes function:
//
//	func routes(app *server.App, r chi.Router, cfg *config.Config) error {
//	    r.Get("/", func(w http.ResponseWriter, r *http.Request) {
//	        app.Render(w, r, map[string]any{"page": "home"})
//	    })
//	    return nil
//	}
package server
