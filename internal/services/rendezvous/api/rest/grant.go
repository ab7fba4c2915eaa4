package rest

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/louisbranch/duet.space/internal/platform/errors"
)

// Environment variables configuring pair grant verification.
const (
	EnvPairGrantIssuer    = "DUET_SPACE_PAIR_GRANT_ISSUER"
	EnvPairGrantAudience  = "DUET_SPACE_PAIR_GRANT_AUDIENCE"
	EnvPairGrantPublicKey = "DUET_SPACE_PAIR_GRANT_PUBLIC_KEY"
)

// pairGrantEnv holds raw env values before post-parse validation.
type pairGrantEnv struct {
	Issuer    string `env:"DUET_SPACE_PAIR_GRANT_ISSUER"`
	Audience  string `env:"DUET_SPACE_PAIR_GRANT_AUDIENCE"`
	PublicKey string `env:"DUET_SPACE_PAIR_GRANT_PUBLIC_KEY"`
}

// PairGrantConfig defines how pair grants are verified.
type PairGrantConfig struct {
	Issuer   string
	Audience string
	Key      ed25519.PublicKey
	Now      func() time.Time
}

// VerifyGrant validates a raw grant against the configured issuer, audience,
// and key.
func (c PairGrantConfig) VerifyGrant(grant string) (PairGrantClaims, error) {
	return ValidatePairGrant(grant, c)
}

// PairGrantClaims captures validated pair grant claims. A pair grant is the
// bearer credential the account service mints for one member of a pair.
type PairGrantClaims struct {
	Issuer    string
	Audience  []string
	ExpiresAt time.Time
	NotBefore time.Time
	IssuedAt  time.Time
	JWTID     string
	UserID    string
	PairID    string
}

// pairGrantClaims is the internal claims type used for JWT parsing.
type pairGrantClaims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id"`
	PairID string `json:"pair_id"`
}

// LoadPairGrantConfigFromEnv reads pair grant verification configuration.
func LoadPairGrantConfigFromEnv(now func() time.Time) (PairGrantConfig, error) {
	var raw pairGrantEnv
	if err := env.Parse(&raw); err != nil {
		return PairGrantConfig{}, fmt.Errorf("parse pair grant env: %w", err)
	}
	issuer := strings.TrimSpace(raw.Issuer)
	audience := strings.TrimSpace(raw.Audience)
	publicKey := strings.TrimSpace(raw.PublicKey)
	if issuer == "" {
		return PairGrantConfig{}, fmt.Errorf("%s is required", EnvPairGrantIssuer)
	}
	if audience == "" {
		return PairGrantConfig{}, fmt.Errorf("%s is required", EnvPairGrantAudience)
	}
	if publicKey == "" {
		return PairGrantConfig{}, fmt.Errorf("%s is required", EnvPairGrantPublicKey)
	}
	keyBytes, err := decodeBase64(publicKey)
	if err != nil {
		return PairGrantConfig{}, fmt.Errorf("decode pair grant public key: %w", err)
	}
	if len(keyBytes) != ed25519.PublicKeySize {
		return PairGrantConfig{}, fmt.Errorf("pair grant public key must be %d bytes", ed25519.PublicKeySize)
	}
	if now == nil {
		now = time.Now
	}
	return PairGrantConfig{
		Issuer:   issuer,
		Audience: audience,
		Key:      ed25519.PublicKey(keyBytes),
		Now:      now,
	}, nil
}

// ValidatePairGrant verifies a pair grant token and returns its claims.
func ValidatePairGrant(grant string, cfg PairGrantConfig) (PairGrantClaims, error) {
	grant = strings.TrimSpace(grant)
	if grant == "" {
		return PairGrantClaims{}, apperrors.New(apperrors.CodePairGrantInvalid, "pair grant is required")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Issuer == "" || cfg.Audience == "" || len(cfg.Key) != ed25519.PublicKeySize {
		return PairGrantClaims{}, errors.New("pair grant verifier is not configured")
	}

	var parsed pairGrantClaims
	_, err := jwt.ParseWithClaims(grant, &parsed, func(token *jwt.Token) (any, error) {
		return cfg.Key, nil
	},
		jwt.WithValidMethods([]string{"EdDSA"}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return PairGrantClaims{}, mapJWTError(err)
	}

	if parsed.Issuer == "" || parsed.Issuer != cfg.Issuer {
		return PairGrantClaims{}, apperrors.WithMetadata(
			apperrors.CodePairGrantMismatch,
			"pair grant issuer mismatch",
			map[string]string{"Field": "issuer"},
		)
	}
	if !audienceContains(parsed.Audience, cfg.Audience) {
		return PairGrantClaims{}, apperrors.WithMetadata(
			apperrors.CodePairGrantMismatch,
			"pair grant audience mismatch",
			map[string]string{"Field": "audience"},
		)
	}

	if parsed.ID == "" {
		return PairGrantClaims{}, apperrors.New(apperrors.CodePairGrantInvalid, "pair grant jti is required")
	}
	if parsed.ExpiresAt == nil {
		return PairGrantClaims{}, apperrors.New(apperrors.CodePairGrantInvalid, "pair grant exp is required")
	}

	now := cfg.Now().UTC()
	exp := parsed.ExpiresAt.Time.UTC()
	if !exp.After(now) {
		return PairGrantClaims{}, apperrors.New(apperrors.CodePairGrantExpired, "pair grant is expired")
	}
	if parsed.NotBefore != nil {
		nbf := parsed.NotBefore.Time.UTC()
		if now.Before(nbf) {
			return PairGrantClaims{}, apperrors.New(apperrors.CodePairGrantInvalid, "pair grant not active yet")
		}
	}

	if strings.TrimSpace(parsed.UserID) == "" {
		return PairGrantClaims{}, apperrors.New(apperrors.CodePairGrantInvalid, "pair grant user_id is required")
	}
	if strings.TrimSpace(parsed.PairID) == "" {
		return PairGrantClaims{}, apperrors.New(apperrors.CodePairGrantInvalid, "pair grant pair_id is required")
	}

	claims := PairGrantClaims{
		Issuer:    parsed.Issuer,
		Audience:  []string(parsed.Audience),
		ExpiresAt: exp,
		JWTID:     parsed.ID,
		UserID:    parsed.UserID,
		PairID:    parsed.PairID,
	}
	if parsed.NotBefore != nil {
		claims.NotBefore = parsed.NotBefore.Time.UTC()
	}
	if parsed.IssuedAt != nil {
		claims.IssuedAt = parsed.IssuedAt.Time.UTC()
	}
	return claims, nil
}

// mapJWTError translates jwt library errors to application errors.
func mapJWTError(err error) error {
	if errors.Is(err, jwt.ErrTokenSignatureInvalid) || errors.Is(err, jwt.ErrEd25519Verification) {
		return apperrors.New(apperrors.CodePairGrantInvalid, "pair grant signature is invalid")
	}
	if errors.Is(err, jwt.ErrTokenUnverifiable) {
		return apperrors.New(apperrors.CodePairGrantInvalid, "pair grant alg is invalid")
	}
	return apperrors.New(apperrors.CodePairGrantInvalid, "pair grant is invalid")
}

// audienceContains reports whether the audience list contains the given value.
func audienceContains(aud jwt.ClaimStrings, value string) bool {
	for _, item := range aud {
		if item == value {
			return true
		}
	}
	return false
}

func decodeBase64(value string) ([]byte, error) {
	if value == "" {
		return nil, errors.New("empty base64 value")
	}
	decoded, err := base64.RawStdEncoding.DecodeString(value)
	if err == nil {
		return decoded, nil
	}
	return base64.StdEncoding.DecodeString(value)
}
