package auth

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/logista/realtime-bridge/server/internal/config"
)

// AnonymousSender is used when a connection names no sender.
const AnonymousSender = "anonymous"

var (
	// ErrUnauthenticated means the request carried no valid credentials.
	ErrUnauthenticated = errors.New("auth: unauthenticated")

	// ErrForbidden means the credentials do not allow the requested channel.
	ErrForbidden = errors.New("auth: channel not permitted")
)

// Identity is who a connection claims to be and where it wants to go.
type Identity struct {
	Sender  string
	Channel string

	// Verified is set when Sender comes from a checked credential rather
	// than caller-supplied text.
	Verified bool
}

// Resolver derives an Identity from an upgrade request.
type Resolver interface {
	Resolve(r *http.Request) (Identity, error)
}

// New returns the Resolver for cfg.Mode.
func New(cfg config.AuthConfig, defaultChannel string) (Resolver, error) {
	switch cfg.Mode {
	case config.AuthNone, "":
		return QueryResolver{DefaultChannel: defaultChannel}, nil
	case config.AuthJWT:
		secret := cfg.Secret()
		if secret == "" {
			return nil, fmt.Errorf("auth: jwt mode: empty secret in $%s", cfg.SecretEnv)
		}
		return NewTokenResolver([]byte(secret), cfg.Issuer, defaultChannel), nil
	default:
		return nil, fmt.Errorf("auth: unknown mode %q", cfg.Mode)
	}
}

// QueryResolver takes identity from the sender and channel query parameters
// without any verification.
type QueryResolver struct {
	DefaultChannel string
}

// Resolve implements Resolver. It never fails.
func (q QueryResolver) Resolve(r *http.Request) (Identity, error) {
	return Identity{
		Sender:  queryOr(r, "sender", AnonymousSender),
		Channel: queryOr(r, "channel", q.DefaultChannel),
	}, nil
}

// queryOr returns the named query parameter, or fallback when it is absent.
// A parameter present with an empty value is returned as "".
func queryOr(r *http.Request, key, fallback string) string {
	q := r.URL.Query()
	if !q.Has(key) {
		return fallback
	}
	return q.Get(key)
}
