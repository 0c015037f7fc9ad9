// Package routes is the default route table served by cvmaker.
//
// Page handlers hand serializable state to the render shell. The auth
// handlers expose the gate over JSON for the client application.
package routes

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/delta94/cvmaker/internal/config"
	"github.com/delta94/cvmaker/pkg/auth"
	"github.com/delta94/cvmaker/pkg/middleware"
	"github.com/delta94/cvmaker/pkg/server"
)

// TokenIssuer signs bearer tokens for an identity. *auth.TokenStrategy
// implements it.
type TokenIssuer interface {
	Issue(id *auth.Identity) (string, error)
}

// Options configures the route table.
type Options struct {
	// Tokens enables POST /auth/token when set.
	Tokens TokenIssuer
}

// New returns the route table.
func New(opts Options) server.Routes {
	return func(app *server.App, r chi.Router, cfg *config.Config) error {
		h := &handlers{app: app, tokens: opts.Tokens}

		r.Get("/", h.index)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", h.login)
			r.Post("/logout", h.logout)
			r.With(auth.Require).Get("/me", h.me)
			if h.tokens != nil {
				r.With(auth.Require).Post("/token", h.token)
			}
		})
		return nil
	}
}

type handlers struct {
	app    *server.App
	tokens TokenIssuer
}

// PageState is the initial state handed to the client application.
type PageState struct {
	Page string         `json:"page"`
	User *auth.Identity `json:"user"`
}

func (h *handlers) index(w http.ResponseWriter, r *http.Request) {
	state := PageState{Page: "home"}
	if id, ok := auth.FromContext(r.Context()); ok {
		state.User = id
	}
	h.app.Render(w, r, state)
}

func (h *handlers) login(w http.ResponseWriter, r *http.Request) {
	id, err := h.app.Gate().Login(r)
	if err != nil {
		failAuth(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, id)
}

func (h *handlers) logout(w http.ResponseWriter, r *http.Request) {
	if err := h.app.Gate().Logout(r); err != nil {
		middleware.Fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) me(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())
	writeJSON(w, http.StatusOK, id)
}

type tokenResponse struct {
	Token string `json:"token"`
	Type  string `json:"token_type"`
}

func (h *handlers) token(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())
	signed, err := h.tokens.Issue(id)
	if err != nil {
		middleware.Fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{Token: signed, Type: "Bearer"})
}

func failAuth(w http.ResponseWriter, r *http.Request, err error) {
	if code, ok := auth.StatusCode(err); ok {
		err = middleware.WithStatus(code, err)
	}
	middleware.Fail(w, r, err)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
