// Package token mints and validates the signed bearer tokens used across
// the application: short-lived access tokens, long-lived refresh tokens,
// single-purpose email tokens and opaque mail-tracking tokens.  All tokens
// are HS256 JWTs signed with one shared secret; access and refresh tokens
// carry a scope claim that keeps the two kinds from being used in each
// other's place.
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Scope values embedded in access and refresh tokens.  A decoded token is
// only accepted when its scope matches what the caller expects.
const (
	ScopeAccess  = "access_token"
	ScopeRefresh = "refresh_token"
)

var (
	// ErrInvalidToken covers malformed tokens, bad signatures and tokens
	// signed with an unexpected method.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken is returned for a well-formed, correctly signed
	// token whose exp claim lies in the past.
	ErrExpiredToken = errors.New("expired token")
	// ErrWrongScope is returned when a validly signed, unexpired token
	// carries a scope other than the one the operation requires.
	ErrWrongScope = errors.New("wrong token scope")
)

// Refresh bundles a refresh token string with its expiry so callers can
// persist both in the session store.
type Refresh struct {
	Token string
	Exp   time.Time
}

// Service issues and decodes tokens.  It is constructed once from
// configuration and shared by handlers and middleware; it holds no mutable
// state.
type Service struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// New returns a Service signing with secret.  accessTTLMin and
// refreshTTLDays mirror the ACCESS_TOKEN_TTL_MIN / REFRESH_TOKEN_TTL_DAYS
// configuration values.
func New(secret string, accessTTLMin, refreshTTLDays int) *Service {
	return &Service{
		secret:     []byte(secret),
		accessTTL:  time.Duration(accessTTLMin) * time.Minute,
		refreshTTL: time.Duration(refreshTTLDays) * 24 * time.Hour,
	}
}

// IssueAccess returns a signed access token for subject (the user's
// email).  Claims: sub, iat, exp, scope=access_token and a fresh jti.
func (s *Service) IssueAccess(subject string) (string, error) {
	return s.sign(jwt.MapClaims{
		"sub":   subject,
		"iat":   time.Now().UTC().Unix(),
		"exp":   time.Now().UTC().Add(s.accessTTL).Unix(),
		"scope": ScopeAccess,
		"jti":   uuid.NewString(),
	})
}

// IssueRefresh returns a signed refresh token for subject along with its
// expiry timestamp.  The expiry is also persisted in the session store so
// it is returned explicitly rather than re-parsed from the token.
func (s *Service) IssueRefresh(subject string) (Refresh, error) {
	exp := time.Now().UTC().Add(s.refreshTTL)
	signed, err := s.sign(jwt.MapClaims{
		"sub":   subject,
		"iat":   time.Now().UTC().Unix(),
		"exp":   exp.Unix(),
		"scope": ScopeRefresh,
		"jti":   uuid.NewString(),
	})
	if err != nil {
		return Refresh{}, err
	}
	return Refresh{Token: signed, Exp: exp}, nil
}

// IssueEmail returns a token for out-of-band email flows (address
// verification, password reset).  It carries no scope claim: the token
// travels over a single-purpose channel and is never accepted as an
// access or refresh token because those decoders demand a scope match.
func (s *Service) IssueEmail(subject string) (string, error) {
	return s.sign(jwt.MapClaims{
		"sub": subject,
		"iat": time.Now().UTC().Unix(),
		"exp": time.Now().UTC().Add(7 * 24 * time.Hour).Unix(),
	})
}

// IssueTracking returns a token embedding only a letter id, used in the
// open-tracking pixel URL of outgoing mail.
func (s *Service) IssueTracking(letterID string) (string, error) {
	return s.sign(jwt.MapClaims{"mail_id": letterID})
}

// Decode verifies signature and expiry, then checks the scope claim
// against expectedScope, and returns the subject.  Scope checking is an
// independent second guard: a validly signed, unexpired access token is
// still rejected where a refresh token is required.
func (s *Service) Decode(raw, expectedScope string) (string, error) {
	claims, err := s.parse(raw)
	if err != nil {
		return "", err
	}
	if scope, _ := claims["scope"].(string); scope != expectedScope {
		return "", ErrWrongScope
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return "", ErrInvalidToken
	}
	return sub, nil
}

// DecodeEmail validates an email token and returns its subject.  Expiry
// failures are not distinguished here; any failure means the emailed link
// is no longer usable.
func (s *Service) DecodeEmail(raw string) (string, error) {
	claims, err := s.parse(raw)
	if err != nil {
		return "", ErrInvalidToken
	}
	// API tokens carry a scope claim; they are never valid in email links.
	if _, scoped := claims["scope"]; scoped {
		return "", ErrInvalidToken
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return "", ErrInvalidToken
	}
	return sub, nil
}

// DecodeTracking extracts the letter id from a tracking token.  Decoding
// failures are swallowed and an empty id is returned: a tracking pixel
// must never surface an error to the mail client loading it.
func (s *Service) DecodeTracking(raw string) string {
	claims, err := s.parse(raw)
	if err != nil {
		return ""
	}
	id, _ := claims["mail_id"].(string)
	return id
}

// parse verifies the signature (HS256 only) and expiry and returns the
// claims map.
func (s *Service) parse(raw string) (jwt.MapClaims, error) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok || !tok.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// sign serializes claims into an HS256 JWT.
func (s *Service) sign(claims jwt.MapClaims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}
