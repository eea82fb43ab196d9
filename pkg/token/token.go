package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultSecretEnv is the environment variable that conventionally holds the
// signing secret.
const DefaultSecretEnv = "WS_JWT_SECRET"

// ErrInvalid wraps every verification failure.
var ErrInvalid = errors.New("token: invalid")

// Claims is the payload of a bridge identity token.
type Claims struct {
	Sender   string   `json:"sender,omitempty"`
	Channels []string `json:"channels,omitempty"`
	jwt.RegisteredClaims
}

// Mint signs a token for sender, valid for ttl from now. A non-positive ttl
// produces a token without expiry. channels, if non-empty, lists the only
// channels the token may join.
func Mint(secret []byte, issuer, sender string, channels []string, ttl time.Duration, now time.Time) (string, error) {
	claims := Claims{
		Sender:   sender,
		Channels: channels,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   issuer,
			Subject:  sender,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("token: sign: %w", err)
	}
	return s, nil
}

// Verify parses raw and checks its signature, algorithm and expiry against
// now. A non-empty issuer must match the iss claim.
func Verify(raw string, secret []byte, issuer string, now func() time.Time) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	}
	if now != nil {
		opts = append(opts, jwt.WithTimeFunc(now))
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return claims, nil
}

// Identity returns the sender the token speaks for: the sender claim, or sub
// when that is empty.
func (c *Claims) Identity() string {
	if c.Sender != "" {
		return c.Sender
	}
	return c.Subject
}
