package auth

import (
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/logista/realtime-bridge/pkg/token"
)

// TokenResolver verifies HS256 identity tokens.
type TokenResolver struct {
	secret         []byte
	issuer         string
	defaultChannel string
	now            func() time.Time // injectable for deterministic tests
}

// NewTokenResolver creates a TokenResolver. An empty issuer disables the
// iss check.
func NewTokenResolver(secret []byte, issuer, defaultChannel string) *TokenResolver {
	return &TokenResolver{
		secret:         secret,
		issuer:         issuer,
		defaultChannel: defaultChannel,
		now:            time.Now,
	}
}

// Resolve implements Resolver. The sender query parameter is ignored.
func (t *TokenResolver) Resolve(r *http.Request) (Identity, error) {
	raw := tokenFrom(r)
	if raw == "" {
		return Identity{}, fmt.Errorf("%w: no token", ErrUnauthenticated)
	}
	claims, err := token.Verify(raw, t.secret, t.issuer, t.now)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}

	sender := claims.Identity()
	if sender == "" {
		sender = AnonymousSender
	}

	fallback := t.defaultChannel
	if len(claims.Channels) > 0 {
		fallback = claims.Channels[0]
	}
	channel := queryOr(r, "channel", fallback)
	if len(claims.Channels) > 0 && !slices.Contains(claims.Channels, channel) {
		return Identity{}, fmt.Errorf("%w: %q", ErrForbidden, channel)
	}
	return Identity{Sender: sender, Channel: channel, Verified: true}, nil
}

// tokenFrom reads the token query parameter, falling back to a bearer header.
func tokenFrom(r *http.Request) string {
	if tok := r.URL.Query().Get("token"); tok != "" {
		return tok
	}
	h := r.Header.Get("Authorization")
	if after, ok := strings.CutPrefix(h, "Bearer "); ok {
		return strings.TrimSpace(after)
	}
	return ""
}
