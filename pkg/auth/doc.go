// Package auth is the authentication gate of the request pipeline.
//
// A Gate holds an ordered chain of Strategy values. Each strategy inspects the
// request for the credentials it understands:
//
//   - PasswordStrategy reads username and password from a parsed form or JSON
//     body and verifies them against argon2id hashes from a UserStore.
//   - TokenStrategy reads an "Authorization: Bearer" header and verifies an
//     HS256 JWT.
//
// A strategy that finds none of its credentials returns ErrNoCredentials and
// the gate moves on. Any other error is a failed attempt.
//
// # Pipeline Stage
//
// Gate.Middleware restores the Identity stored in the session and attaches it
// to the request context. Stateless strategies (bearer tokens) are consulted
// when the session carries no identity. The stage never ends a request:
// anonymous requests pass through with no identity attached.
//
//	id, ok := auth.FromContext(r.Context())
//
// Handlers that need an identity wrap themselves with Require, which answers
// 401 through the error fallback:
//
//	r.With(auth.Require).Get("/auth/me", me)
//
// # Login and Logout
//
// Gate.Login runs the strategy chain against the request, regenerates the
// session id and stores the identity in the session. On failure nothing is
// attached and no response is written; the caller decides the status.
//
//	id, err := gate.Login(r)
//	if err != nil {
//	    middleware.Fail(w, r, middleware.WithStatus(http.StatusUnauthorized, err))
//	    return
//	}
//
// Gate.Logout removes the identity from the session.
package auth
