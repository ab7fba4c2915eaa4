package rest

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"testing"
	"time"

	apperrors "github.com/louisbranch/duet.space/internal/platform/errors"
)

func TestLoadPairGrantConfigFromEnv(t *testing.T) {
	t.Setenv(EnvPairGrantIssuer, "")
	t.Setenv(EnvPairGrantAudience, "")
	t.Setenv(EnvPairGrantPublicKey, "")

	if _, err := LoadPairGrantConfigFromEnv(nil); err == nil {
		t.Fatal("expected error when env vars are missing")
	}

	pubKey, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	t.Setenv(EnvPairGrantIssuer, "issuer")
	t.Setenv(EnvPairGrantAudience, "rendezvous")
	t.Setenv(EnvPairGrantPublicKey, base64.RawStdEncoding.EncodeToString(pubKey))

	cfg, err := LoadPairGrantConfigFromEnv(nil)
	if err != nil {
		t.Fatalf("load pair grant config: %v", err)
	}
	if cfg.Issuer != "issuer" || cfg.Audience != "rendezvous" {
		t.Fatal("expected issuer and audience to be loaded")
	}
	if len(cfg.Key) != ed25519.PublicKeySize {
		t.Fatalf("expected public key size %d", ed25519.PublicKeySize)
	}
}

func TestValidatePairGrantSuccess(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	grant := signPairGrant(t, priv, map[string]any{
		"alg": "EdDSA",
		"typ": "JWT",
	}, map[string]any{
		"iss":     "issuer",
		"aud":     []string{"rendezvous", "secondary"},
		"exp":     now.Add(2 * time.Hour).Unix(),
		"iat":     now.Add(-time.Minute).Unix(),
		"jti":     "jti-1",
		"user_id": "user-1",
		"pair_id": "pair-1",
	})

	cfg := PairGrantConfig{Issuer: "issuer", Audience: "rendezvous", Key: pub, Now: func() time.Time { return now }}
	claims, err := ValidatePairGrant(grant, cfg)
	if err != nil {
		t.Fatalf("validate pair grant: %v", err)
	}
	if claims.UserID != "user-1" || claims.PairID != "pair-1" {
		t.Fatalf("claims = %+v", claims)
	}
	if !claims.ExpiresAt.Equal(time.Unix(now.Add(2*time.Hour).Unix(), 0).UTC()) {
		t.Fatal("expected expires at to match exp")
	}
}

func TestValidatePairGrantExpired(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	grant := signPairGrant(t, priv, map[string]any{"alg": "EdDSA"}, map[string]any{
		"iss":     "issuer",
		"aud":     "rendezvous",
		"exp":     now.Add(-time.Minute).Unix(),
		"jti":     "jti-1",
		"user_id": "user-1",
		"pair_id": "pair-1",
	})

	cfg := PairGrantConfig{Issuer: "issuer", Audience: "rendezvous", Key: pub, Now: func() time.Time { return now }}
	_, err = ValidatePairGrant(grant, cfg)
	if apperrors.CodeOf(err) != apperrors.CodePairGrantExpired {
		t.Fatalf("code = %s, want %s", apperrors.CodeOf(err), apperrors.CodePairGrantExpired)
	}
}

func TestValidatePairGrantIssuerMismatch(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	grant := signPairGrant(t, priv, map[string]any{"alg": "EdDSA"}, map[string]any{
		"iss":     "someone-else",
		"aud":     "rendezvous",
		"exp":     now.Add(time.Hour).Unix(),
		"jti":     "jti-1",
		"user_id": "user-1",
		"pair_id": "pair-1",
	})

	cfg := PairGrantConfig{Issuer: "issuer", Audience: "rendezvous", Key: pub, Now: func() time.Time { return now }}
	_, err = ValidatePairGrant(grant, cfg)
	if apperrors.CodeOf(err) != apperrors.CodePairGrantMismatch {
		t.Fatalf("code = %s, want %s", apperrors.CodeOf(err), apperrors.CodePairGrantMismatch)
	}
}

func TestValidatePairGrantMissingPairClaim(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	grant := signPairGrant(t, priv, map[string]any{"alg": "EdDSA"}, map[string]any{
		"iss":     "issuer",
		"aud":     "rendezvous",
		"exp":     now.Add(time.Hour).Unix(),
		"jti":     "jti-1",
		"user_id": "user-1",
	})

	cfg := PairGrantConfig{Issuer: "issuer", Audience: "rendezvous", Key: pub, Now: func() time.Time { return now }}
	_, err = ValidatePairGrant(grant, cfg)
	if apperrors.CodeOf(err) != apperrors.CodePairGrantInvalid {
		t.Fatalf("code = %s, want %s", apperrors.CodeOf(err), apperrors.CodePairGrantInvalid)
	}
}

func TestValidatePairGrantInvalidSignature(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	cfg := PairGrantConfig{Issuer: "issuer", Audience: "rendezvous", Key: pub, Now: time.Now}
	if _, err := ValidatePairGrant("invalid.token.parts", cfg); err == nil {
		t.Fatal("expected error for invalid pair grant")
	}
}

func signPairGrant(t *testing.T, privateKey ed25519.PrivateKey, header, payload map[string]any) string {
	t.Helper()

	headerJSON, err := json.Marshal(header)
	if err != nil {
		t.Fatalf("marshal header: %v", err)
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}

	encodedHeader := base64.RawURLEncoding.EncodeToString(headerJSON)
	encodedPayload := base64.RawURLEncoding.EncodeToString(payloadJSON)
	signingInput := encodedHeader + "." + encodedPayload
	signature := ed25519.Sign(privateKey, []byte(signingInput))
	encodedSig := base64.RawURLEncoding.EncodeToString(signature)
	return signingInput + "." + encodedSig
}
