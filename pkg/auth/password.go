package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"

	"github.com/delta94/cvmaker/pkg/middleware"
)

const algorithmID = "argon2id"

// ErrInvalidHash is returned for a stored hash that is not an argon2id PHC string.
var ErrInvalidHash = errors.New("auth: invalid password hash")

// HashParams are the argon2id cost parameters.
type HashParams struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultHashParams returns the parameters used by HashPassword callers that
// have no reason to choose their own.
func DefaultHashParams() HashParams {
	return HashParams{
		Memory:      64 * 1024,
		Time:        3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// HashPassword returns password hashed as an argon2id PHC string:
//
//	$argon2id$v=19$m=65536,t=3,p=2$<salt>$<hash>
func HashPassword(password string, p HashParams) (string, error) {
	if password == "" {
		return "", errors.New("auth: empty password")
	}
	salt := make([]byte, p.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}
	key := argon2.IDKey([]byte(password), salt, p.Time, p.Memory, p.Parallelism, p.KeyLength)

	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithmID, argon2.Version, p.Memory, p.Time, p.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// VerifyPassword reports whether password matches encoded.
func VerifyPassword(password, encoded string) (bool, error) {
	p, salt, key, err := parseHash(encoded)
	if err != nil {
		return false, err
	}
	computed := argon2.IDKey([]byte(password), salt, p.Time, p.Memory, p.Parallelism, uint32(len(key)))
	return subtle.ConstantTimeCompare(computed, key) == 1, nil
}

func parseHash(encoded string) (HashParams, []byte, []byte, error) {
	var p HashParams
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != algorithmID {
		return p, nil, nil, ErrInvalidHash
	}
	if parts[2] != "v="+strconv.Itoa(argon2.Version) {
		return p, nil, nil, fmt.Errorf("%w: unsupported version %q", ErrInvalidHash, parts[2])
	}

	for _, kv := range strings.Split(parts[3], ",") {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			return p, nil, nil, ErrInvalidHash
		}
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil || n == 0 {
			return p, nil, nil, fmt.Errorf("%w: bad parameter %q", ErrInvalidHash, kv)
		}
		switch k {
		case "m":
			p.Memory = uint32(n)
		case "t":
			p.Time = uint32(n)
		case "p":
			if n > 255 {
				return p, nil, nil, fmt.Errorf("%w: bad parameter %q", ErrInvalidHash, kv)
			}
			p.Parallelism = uint8(n)
		default:
			return p, nil, nil, fmt.Errorf("%w: unknown parameter %q", ErrInvalidHash, k)
		}
	}
	if p.Memory == 0 || p.Time == 0 || p.Parallelism == 0 {
		return p, nil, nil, fmt.Errorf("%w: missing parameters", ErrInvalidHash)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) == 0 {
		return p, nil, nil, fmt.Errorf("%w: bad salt", ErrInvalidHash)
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return p, nil, nil, fmt.Errorf("%w: bad key", ErrInvalidHash)
	}
	p.SaltLength = uint32(len(salt))
	p.KeyLength = uint32(len(key))
	return p, salt, key, nil
}

// PasswordStrategy checks a username and password from the request body.
type PasswordStrategy struct {
	users UserStore
}

// NewPasswordStrategy creates a PasswordStrategy backed by users.
func NewPasswordStrategy(users UserStore) *PasswordStrategy {
	return &PasswordStrategy{users: users}
}

// Name implements Strategy.
func (s *PasswordStrategy) Name() string { return "password" }

// Authenticate implements Strategy.
func (s *PasswordStrategy) Authenticate(r *http.Request) (*Identity, error) {
	username, password := credentials(r)
	if username == "" && password == "" {
		return nil, ErrNoCredentials
	}
	if username == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.users.FindByUsername(r.Context(), username)
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	ok, err := VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}
	return user.Identity(), nil
}

func credentials(r *http.Request) (string, string) {
	if body := middleware.BodyFromContext(r.Context()); body != nil && body.Parsed() {
		return body.Value("username"), body.Value("password")
	}
	return "", ""
}

// ErrUserNotFound is returned by a UserStore for unknown usernames.
var ErrUserNotFound = errors.New("auth: user not found")

// User is an account known to a UserStore.
type User struct {
	ID           string
	Username     string
	PasswordHash string
	Name         string
	Email        string
	Roles        []string
}

// Identity returns the identity for u.
func (u *User) Identity() *Identity {
	return &Identity{
		ID:    u.ID,
		Name:  u.Name,
		Email: u.Email,
		Roles: append([]string(nil), u.Roles...),
	}
}

// UserStore looks up accounts by username.
type UserStore interface {
	FindByUsername(ctx context.Context, username string) (*User, error)
}

// StaticUsers is a UserStore over a fixed list, usually from configuration.
type StaticUsers struct {
	byName map[string]User
}

// NewStaticUsers indexes users by lowercased username. Users without an ID
// use their username.
func NewStaticUsers(users ...User) *StaticUsers {
	s := &StaticUsers{byName: make(map[string]User, len(users))}
	for _, u := range users {
		if u.ID == "" {
			u.ID = u.Username
		}
		s.byName[strings.ToLower(u.Username)] = u
	}
	return s
}

// FindByUsername implements UserStore.
func (s *StaticUsers) FindByUsername(_ context.Context, username string) (*User, error) {
	u, ok := s.byName[strings.ToLower(username)]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &u, nil
}

// Len returns the number of users.
func (s *StaticUsers) Len() int {
	return len(s.byName)
}
