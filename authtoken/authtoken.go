// Package authtoken issues and validates the bearer tokens carried on
// inter-agent and tool-server calls. Claim shape and signing follow a
// JWTService pattern generalized to the full registered claim set and
// to either HMAC or RSA signing.
package authtoken

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrRevoked is returned when a token's jti has been blacklisted.
var ErrRevoked = errors.New("authtoken: token revoked")

// ErrInvalidToken wraps any parse or signature failure.
var ErrInvalidToken = errors.New("authtoken: invalid token")

// ErrNotBeforeReady is returned when nbf has not yet elapsed.
var ErrNotBeforeReady = errors.New("authtoken: token not yet valid")

// Claims is the registered claim set: {sub,name,iss,aud,exp,iat,nbf,
// jti,typ,roles,custom}.
type Claims struct {
	Name   string         `json:"name,omitempty"`
	Typ    string         `json:"typ,omitempty"`
	Roles  []string       `json:"roles,omitempty"`
	Custom map[string]any `json:"custom,omitempty"`
	jwt.RegisteredClaims
}

// RefreshPolicy selects how a near-expiry token is renewed. Go has no
// sum types, so the three variants are expressed as distinct structs
// implementing a marker method, matched by type switch.
type RefreshPolicy interface {
	isRefreshPolicy()
}

// RefreshDisabled means expired tokens are never renewed; callers must
// re-authenticate.
type RefreshDisabled struct{}

func (RefreshDisabled) isRefreshPolicy() {}

// RefreshManual means the caller must explicitly request a renewal via
// Service.Refresh.
type RefreshManual struct{}

func (RefreshManual) isRefreshPolicy() {}

// RefreshAutomatic marks a token as due for renewal once it is within
// WindowMinutes of expiring, as reported by Service.ShouldAutoRefresh.
// Validate does not renew tokens itself; renewal is a Service.Refresh
// call.
type RefreshAutomatic struct {
	WindowMinutes int
}

func (RefreshAutomatic) isRefreshPolicy() {}

// SigningKey abstracts over an HMAC secret or an RSA key pair.
type SigningKey struct {
	method jwt.SigningMethod
	sign   any // []byte for HMAC, *rsa.PrivateKey for RSA
	verify any // []byte for HMAC, *rsa.PublicKey for RSA
}

// HMACKey builds a SigningKey using HS256.
func HMACKey(secret []byte) SigningKey {
	return SigningKey{method: jwt.SigningMethodHS256, sign: secret, verify: secret}
}

// RSAKey builds a SigningKey using RS256.
func RSAKey(priv *rsa.PrivateKey, pub *rsa.PublicKey) SigningKey {
	return SigningKey{method: jwt.SigningMethodRS256, sign: priv, verify: pub}
}

// Service issues and validates tokens under one SigningKey and
// RefreshPolicy, tracking revoked jtis in memory.
type Service struct {
	key    SigningKey
	issuer string
	policy RefreshPolicy
	ttl    time.Duration

	mu      sync.RWMutex
	revoked map[string]time.Time // jti -> original expiry, for eviction
}

// NewService constructs a Service. ttl is the lifetime of freshly
// issued tokens.
func NewService(key SigningKey, issuer string, ttl time.Duration, policy RefreshPolicy) *Service {
	if policy == nil {
		policy = RefreshDisabled{}
	}
	return &Service{
		key:     key,
		issuer:  issuer,
		ttl:     ttl,
		policy:  policy,
		revoked: make(map[string]time.Time),
	}
}

// IssueOption customizes a single Issue call.
type IssueOption func(*Claims)

// WithRoles sets the roles claim.
func WithRoles(roles ...string) IssueOption {
	return func(c *Claims) { c.Roles = roles }
}

// WithCustom sets a custom claim entry.
func WithCustom(key string, value any) IssueOption {
	return func(c *Claims) {
		if c.Custom == nil {
			c.Custom = make(map[string]any)
		}
		c.Custom[key] = value
	}
}

// WithAudience sets the aud claim.
func WithAudience(aud ...string) IssueOption {
	return func(c *Claims) { c.Audience = aud }
}

// WithNotBefore delays validity until t.
func WithNotBefore(t time.Time) IssueOption {
	return func(c *Claims) { c.NotBefore = jwt.NewNumericDate(t) }
}

// Issue mints a signed token for subject sub with token type typ
// ("access", "refresh", ...).
func (s *Service) Issue(sub, name, typ string, jti string, opts ...IssueOption) (string, error) {
	if sub == "" {
		return "", errors.New("authtoken: subject required")
	}
	now := time.Now()
	claims := Claims{
		Name: name,
		Typ:  typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			Issuer:    s.issuer,
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	for _, opt := range opts {
		opt(&claims)
	}

	token := jwt.NewWithClaims(s.key.method, claims)
	return token.SignedString(s.key.sign)
}

// Validate parses raw, checks the signature, nbf ≤ now < exp, and
// that the jti has not been revoked.
func (s *Service) Validate(raw string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != s.key.method {
			return nil, fmt.Errorf("authtoken: unexpected signing method %v", t.Header["alg"])
		}
		return s.key.verify, nil
	}, jwt.WithIssuer(s.issuer))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenNotValidYet) {
			return nil, ErrNotBeforeReady
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}

	if s.isRevoked(claims.ID) {
		return nil, ErrRevoked
	}
	return claims, nil
}

// ShouldAutoRefresh reports whether claims should be renewed under an
// Automatic refresh policy, i.e. within the configured window of exp.
func (s *Service) ShouldAutoRefresh(claims *Claims) bool {
	auto, ok := s.policy.(RefreshAutomatic)
	if !ok || claims.ExpiresAt == nil {
		return false
	}
	window := time.Duration(auto.WindowMinutes) * time.Minute
	return time.Until(claims.ExpiresAt.Time) <= window
}

// Refresh re-issues a token from a still-valid (or freshly-expired)
// claims set, carrying roles and custom claims forward under a new
// jti. Refresh is rejected under RefreshDisabled.
func (s *Service) Refresh(claims *Claims, newJTI string) (string, error) {
	if _, ok := s.policy.(RefreshDisabled); ok {
		return "", errors.New("authtoken: refresh disabled")
	}
	opts := []IssueOption{WithAudience(claims.Audience...)}
	if len(claims.Roles) > 0 {
		opts = append(opts, WithRoles(claims.Roles...))
	}
	for k, v := range claims.Custom {
		opts = append(opts, WithCustom(k, v))
	}
	return s.Issue(claims.Subject, claims.Name, claims.Typ, newJTI, opts...)
}

// Revoke blacklists jti until its original expiry. Calling Validate
// with a token carrying this jti subsequently returns ErrRevoked.
func (s *Service) Revoke(jti string, expiry time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked[jti] = expiry
}

func (s *Service) isRevoked(jti string) bool {
	if jti == "" {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.revoked[jti]
	return ok
}

// EvictExpiredRevocations drops blacklist entries whose original
// expiry has passed, keeping the revocation set bounded.
func (s *Service) EvictExpiredRevocations(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for jti, exp := range s.revoked {
		if now.After(exp) {
			delete(s.revoked, jti)
		}
	}
}
