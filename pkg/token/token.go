// Package token issues and verifies signed bearer tokens and keeps a
// store-backed revocation list so individual tokens, or every token held
// by a subject, can be invalidated before they expire.
package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fusebox/fusebox/pkg/cache"
)

// DefaultTTL is how long issued tokens are valid when Config.TTL is zero.
const DefaultTTL = 1 * time.Hour

// Predefined token errors.
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
	ErrTokenRevoked = errors.New("token revoked")
)

// Claims are the claims carried by issued tokens.
type Claims struct {
	jwt.RegisteredClaims

	// Tenant is the tenant the token was issued for.
	Tenant string `json:"tid,omitempty"`
}

// Config holds configuration for the token service.
type Config struct {
	// SigningKey is the secret key used to sign and verify tokens.
	SigningKey []byte

	// Issuer is the issuer claim stamped on issued tokens and required
	// during verification.
	Issuer string

	// Audience is the audience claim stamped on issued tokens and
	// required during verification.
	Audience string

	// TTL is how long issued tokens are valid.
	// Default: 1 hour.
	TTL time.Duration

	// Store backs the revocation list. If nil, Revoke and RevokeAll
	// fail and Verify skips the revocation check.
	Store cache.Store

	// Logger records revocation events and store failures.
	Logger zerolog.Logger
}

// Service issues, verifies, and revokes bearer tokens.
type Service struct {
	signingKey []byte
	issuer     string
	audience   string
	ttl        time.Duration
	store      cache.Store
	logger     zerolog.Logger
	nowFn      func() time.Time
}

// New creates a token service from cfg, applying defaults to zero fields.
func New(cfg Config) *Service {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{
		signingKey: cfg.SigningKey,
		issuer:     cfg.Issuer,
		audience:   cfg.Audience,
		ttl:        ttl,
		store:      cfg.Store,
		logger:     cfg.Logger,
		nowFn:      time.Now,
	}
}

// Issue creates a signed token for the given subject and tenant and
// returns it together with its expiry time.
func (s *Service) Issue(subject, tenant string) (string, time.Time, error) {
	now := s.nowFn()
	expiresAt := now.Add(s.ttl)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   subject,
			Audience:  jwt.ClaimStrings{s.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			NotBefore: jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
		Tenant: tenant,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify validates a token's signature, standard claims, and revocation
// status, and returns its claims.
func (s *Service) Verify(ctx context.Context, tokenString string) (*Claims, error) {
	claims, err := s.parse(tokenString)
	if err != nil {
		return nil, err
	}
	if err := s.checkRevoked(ctx, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// Revoke invalidates a single token for the remainder of its lifetime.
// Revoking an already revoked token is a no-op.
func (s *Service) Revoke(ctx context.Context, tokenString string) error {
	if s.store == nil {
		return errors.New("revocation store not configured")
	}

	claims, err := s.parse(tokenString)
	if err != nil {
		return err
	}

	// The entry only needs to outlive the token itself.
	remaining := claims.ExpiresAt.Time.Sub(s.nowFn())
	if err := s.store.Set(ctx, revokedTokenKey(claims.ID), []byte("1"), remaining); err != nil {
		return fmt.Errorf("storing revocation: %w", err)
	}

	s.logger.Info().
		Str("subject", claims.Subject).
		Str("token_id", claims.ID).
		Msg("token revoked")
	return nil
}

// RevokeAll invalidates every token issued to subject before now.
// Tokens issued afterwards verify normally.
func (s *Service) RevokeAll(ctx context.Context, subject string) error {
	if s.store == nil {
		return errors.New("revocation store not configured")
	}

	now := s.nowFn()
	value := []byte(now.Format(time.RFC3339Nano))
	if err := s.store.Set(ctx, revokedSubjectKey(subject), value, s.ttl); err != nil {
		return fmt.Errorf("storing revocation: %w", err)
	}

	s.logger.Info().Str("subject", subject).Msg("all tokens revoked for subject")
	return nil
}

// SetClock overrides the service's time source. Test use only.
func (s *Service) SetClock(now func() time.Time) {
	s.nowFn = now
}

func (s *Service) parse(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		// Validate signing method
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.signingKey, nil
	}, jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return s.nowFn() }),
	)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %s", ErrInvalidToken, err.Error())
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// checkRevoked is best effort. A store outage must not lock every caller
// out, so lookups that fail are logged and the token is accepted.
func (s *Service) checkRevoked(ctx context.Context, claims *Claims) error {
	if s.store == nil {
		return nil
	}

	if _, found, err := s.store.Get(ctx, revokedTokenKey(claims.ID)); err != nil {
		s.logger.Warn().Err(err).Msg("revocation check failed, accepting token")
	} else if found {
		return ErrTokenRevoked
	}

	value, found, err := s.store.Get(ctx, revokedSubjectKey(claims.Subject))
	if err != nil {
		s.logger.Warn().Err(err).Msg("revocation check failed, accepting token")
		return nil
	}
	if !found {
		return nil
	}

	revokedAt, err := time.Parse(time.RFC3339Nano, string(value))
	if err != nil {
		s.logger.Warn().Err(err).Msg("revocation entry corrupt, accepting token")
		return nil
	}

	// IssuedAt has second precision, so a token minted in the same second
	// as the revocation counts as revoked.
	if claims.IssuedAt != nil && !claims.IssuedAt.Time.After(revokedAt) {
		return ErrTokenRevoked
	}
	return nil
}

func revokedTokenKey(id string) string {
	return "token:revoked:" + id
}

func revokedSubjectKey(subject string) string {
	return "token:revoked-subject:" + subject
}
