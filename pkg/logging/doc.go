// Package logging builds the zerolog loggers used across cvmaker.
//
// A single process logger is created at startup from the configuration and
// handed to every component at construction time. Components derive a child
// logger with a "component" field:
//
//	logger := logging.New(logging.Config{Level: "info", Format: "json"})
//	mgrLogger := logging.Component(logger, "session_manager")
//
// The request logger middleware stores a request-scoped logger in the request
// context; handlers retrieve it with FromContext.
package logging
