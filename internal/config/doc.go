// Package config provides configuration loading for the cvmaker server.
//
// Configuration is resolved once at startup, in order of increasing
// precedence: built-in defaults, the YAML file (cvmaker.yaml or --config),
// .env files, then environment variables. Every key can be set from the
// environment with the CVMAKER_ prefix (session.secret becomes
// CVMAKER_SESSION_SECRET). PORT, APP_ENV and ENABLE_ANALYTICS are also
// honored without the prefix.
//
// # Configuration File Structure
//
//	port: 3000
//	env: production
//	enable_analytics: true
//	session:
//	  name: cvmaker.sid
//	  secret: a-long-random-string
//	  store: sql
//	  clear_interval: 1h
//	  cookie:
//	    max_age: 720h
//	database:
//	  driver: postgres
//	  url: postgres://localhost/cvmaker?sslmode=disable
//	  user_session: user_sessions
//	assets:
//	  manifest: dist/manifest.json
//
// # Usage
//
//	cfg, err := config.Load(config.LoadOptions{})
//	if err != nil {
//	    return err
//	}
//	if err := cfg.Validate(); err != nil {
//	    return err
//	}
//
// The resulting Config is treated as immutable and passed down to the
// components that need it.
package config
