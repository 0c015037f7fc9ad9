package session

import (
	"encoding/json"
	"fmt"
	"time"
)

// document is the persisted JSON representation of a session.
type document struct {
	CreatedAt  time.Time                  `json:"created_at"`
	LastAccess time.Time                  `json:"last_access"`
	ExpiresAt  time.Time                  `json:"expires_at"`
	Values     map[string]json.RawMessage `json:"values,omitempty"`
	Version    int                        `json:"version"`
}

// CurrentSerializationVersion is the version written into every document.
// Increment when making breaking changes to the format.
const CurrentSerializationVersion = 1

func encode(sess *Session) ([]byte, error) {
	sess.mu.RLock()
	defer sess.mu.RUnlock()
	return json.Marshal(document{
		CreatedAt:  sess.CreatedAt,
		LastAccess: sess.LastAccess,
		ExpiresAt:  sess.ExpiresAt,
		Values:     sess.values,
		Version:    CurrentSerializationVersion,
	})
}

func decode(id string, data []byte) (*Session, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc.Version > CurrentSerializationVersion {
		return nil, fmt.Errorf("unsupported document version %d", doc.Version)
	}
	if doc.Values == nil {
		doc.Values = make(map[string]json.RawMessage)
	}
	return &Session{
		ID:         id,
		CreatedAt:  doc.CreatedAt,
		LastAccess: doc.LastAccess,
		ExpiresAt:  doc.ExpiresAt,
		values:     doc.Values,
	}, nil
}
