package config

import (
	"fmt"
	"strings"
)

// ValidationError reports a configuration field with an invalid value.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: invalid %s: %s", e.Field, e.Reason)
}

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// Validate checks the configuration and returns the first problem found as a
// *ValidationError.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return invalid("port", "must be between 0 and 65535, got %d", c.Port)
	}

	s := c.Session
	if s.Name == "" {
		return invalid("session.name", "must not be empty")
	}
	if strings.ContainsAny(s.Name, " ;,=\t\r\n") {
		return invalid("session.name", "%q is not a valid cookie name", s.Name)
	}
	if s.Secret == "" {
		return invalid("session.secret", "must not be empty")
	}
	if c.Mode() == ModeProduction && len(s.Secret) < 16 {
		return invalid("session.secret", "must be at least 16 bytes outside development")
	}
	if s.Cookie.MaxAge <= 0 {
		return invalid("session.cookie.max_age", "must be positive")
	}
	if s.ClearInterval <= 0 {
		return invalid("session.clear_interval", "must be positive")
	}
	switch s.Cookie.SameSite {
	case "", "lax", "strict":
	case "none":
		if !s.Cookie.Secure {
			return invalid("session.cookie.same_site", "none requires session.cookie.secure")
		}
	default:
		return invalid("session.cookie.same_site", "unknown value %q", s.Cookie.SameSite)
	}

	switch s.Store {
	case StoreMemory:
	case StoreRedis:
		if s.Redis.Addr == "" {
			return invalid("session.redis.addr", "required for the redis store")
		}
	case StoreSQL:
		if c.Database.URL == "" {
			return invalid("database.url", "required for the sql store")
		}
		if !validIdentifier(c.Database.UserSession) {
			return invalid("database.user_session", "%q is not a valid table name", c.Database.UserSession)
		}
	default:
		return invalid("session.store", "unknown backend %q", s.Store)
	}

	if c.Mode() == ModeProduction && c.Assets.Manifest == "" {
		return invalid("assets.manifest", "required outside development")
	}

	for i, u := range c.Auth.Users {
		if u.Username == "" || u.PasswordHash == "" {
			return invalid(fmt.Sprintf("auth.users[%d]", i), "username and password_hash are required")
		}
	}

	switch c.Faults.Policy {
	case "continue", "exit":
	default:
		return invalid("faults.policy", "must be continue or exit, got %q", c.Faults.Policy)
	}

	switch strings.ToLower(c.Log.Format) {
	case "", "auto", "json", "console":
	default:
		return invalid("log.format", "unknown format %q", c.Log.Format)
	}

	if c.Server.BodyLimit <= 0 {
		return invalid("server.body_limit", "must be positive")
	}
	if c.Server.ClientErrorLimit <= 0 {
		return invalid("server.client_error_limit", "must be positive")
	}
	return nil
}

func validIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
