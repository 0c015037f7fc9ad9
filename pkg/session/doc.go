// Package session binds a signed session-id cookie to a document in a
// persistent store.
//
// # Stores
//
// A Store persists one opaque document per session id with a server-side
// expiry:
//
//	store := session.NewMemoryStore()
//	// or
//	store := session.NewRedisStore(redis.NewClient(&redis.Options{Addr: addr}))
//	// or
//	store := session.NewSQLStore(db, session.WithSQLTableName("user_sessions"))
//
// OpenStore builds the configured backend and verifies it is reachable,
// returning a *StoreInitError so startup can fail loudly.
//
// # Manager
//
// The Manager loads the session named by the request cookie and saves it
// back with a refreshed expiry before the response is written:
//
//	mgr := session.NewManager(store, signer, session.ManagerConfig{
//	    CookieName: "cvmaker.sid",
//	    MaxAge:     30 * 24 * time.Hour,
//	}, logger)
//	handler = mgr.Middleware()(handler)
//
// A missing, unsigned, tampered or unknown cookie yields a fresh empty
// session. Store failures are logged and the request continues with an
// in-memory session; they never fail the response.
package session
