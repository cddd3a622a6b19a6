package oauth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const defaultStateTTL = 10 * time.Minute

var ErrInvalidState = errors.New("invalid oauth state")

// StateSigner carries the originating app endpoint through the provider
// redirect as a short-lived signed token.
type StateSigner struct {
	Secret []byte
	TTL    time.Duration
	Now    func() time.Time
}

type stateClaims struct {
	AppEndpoint string `json:"app_endpoint"`
	jwt.RegisteredClaims
}

func (s StateSigner) Sign(appEndpoint string) (string, error) {
	ttl := s.TTL
	if ttl == 0 {
		ttl = defaultStateTTL
	}
	now := s.now()
	claims := stateClaims{
		AppEndpoint: appEndpoint,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.Secret)
}

func (s StateSigner) Verify(state string) (string, error) {
	parsed, err := jwt.ParseWithClaims(state, &stateClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidState
		}
		return s.Secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return "", ErrInvalidState
	}
	claims, ok := parsed.Claims.(*stateClaims)
	if !ok || !parsed.Valid || claims.AppEndpoint == "" {
		return "", ErrInvalidState
	}
	return claims.AppEndpoint, nil
}

func (s StateSigner) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}
