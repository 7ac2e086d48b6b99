package security

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/99minutos/identity-service/internal/core/domain"
)

type fixedClock struct{ t time.Time }

func (c *fixedClock) Now() time.Time { return c.t }

func newTestIssuer(t *testing.T, clock *fixedClock) *JWTIssuer {
	t.Helper()
	iss, err := NewJWTIssuer(JWTConfig{
		Secret:     []byte("test-secret-test-secret-test-secret"),
		Issuer:     "identity-service",
		DefaultTTL: time.Hour,
		Clock:      clock,
	})
	if err != nil {
		t.Fatalf("NewJWTIssuer() error = %v", err)
	}
	return iss
}

func TestNewJWTIssuer_RequiresSecret(t *testing.T) {
	if _, err := NewJWTIssuer(JWTConfig{}); !errors.Is(err, ErrMissingSecret) {
		t.Fatalf("expected ErrMissingSecret, got %v", err)
	}
}

func TestJWTIssuer_RoundTrip(t *testing.T) {
	clock := &fixedClock{t: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	iss := newTestIssuer(t, clock)

	for _, ttl := range []time.Duration{time.Nanosecond, time.Second, 90 * time.Minute, 7 * 24 * time.Hour} {
		tok, err := iss.IssueWithTTL("id-1", domain.RoleAdmin, ttl)
		if err != nil {
			t.Fatalf("IssueWithTTL(%s) error = %v", ttl, err)
		}
		claims, err := iss.Verify(tok.Value)
		if err != nil {
			t.Fatalf("Verify() after IssueWithTTL(%s) error = %v", ttl, err)
		}
		if claims.IdentityID != "id-1" || claims.Role != domain.RoleAdmin {
			t.Fatalf("unexpected claims: %+v", claims)
		}
		if claims.ID == "" {
			t.Fatal("expected jti to be set")
		}
	}
}

func TestJWTIssuer_SubSecondClockStillValid(t *testing.T) {
	clock := &fixedClock{t: time.Date(2026, 1, 2, 3, 4, 5, 999_000_000, time.UTC)}
	iss := newTestIssuer(t, clock)

	tok, err := iss.IssueWithTTL("id-1", domain.RoleUser, time.Millisecond)
	if err != nil {
		t.Fatalf("IssueWithTTL() error = %v", err)
	}
	if _, err := iss.Verify(tok.Value); err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
}

func TestJWTIssuer_DefaultTTL(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	iss := newTestIssuer(t, &fixedClock{t: now})

	tok, err := iss.Issue("id-1", domain.RoleUser)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if !tok.ExpiresAt.Equal(now.Add(time.Hour)) {
		t.Fatalf("expected expiry %s, got %s", now.Add(time.Hour), tok.ExpiresAt)
	}
}

func TestJWTIssuer_ZeroTTLExpired(t *testing.T) {
	for _, now := range []time.Time{
		time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		time.Date(2026, 1, 2, 3, 4, 5, 500_000_000, time.UTC),
	} {
		iss := newTestIssuer(t, &fixedClock{t: now})
		tok, err := iss.IssueWithTTL("id-1", domain.RoleUser, 0)
		if err != nil {
			t.Fatalf("IssueWithTTL() error = %v", err)
		}
		if _, err := iss.Verify(tok.Value); !errors.Is(err, domain.ErrTokenExpired) {
			t.Fatalf("expected ErrTokenExpired, got %v", err)
		}
	}
}

func TestJWTIssuer_ExpiresWhenClockPassesExpiry(t *testing.T) {
	clock := &fixedClock{t: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	iss := newTestIssuer(t, clock)

	tok, _ := iss.IssueWithTTL("id-1", domain.RoleUser, time.Minute)
	clock.t = clock.t.Add(time.Minute)

	if _, err := iss.Verify(tok.Value); !errors.Is(err, domain.ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired at exp, got %v", err)
	}
}

func TestJWTIssuer_TamperedSignature(t *testing.T) {
	iss := newTestIssuer(t, &fixedClock{t: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)})
	tok, _ := iss.Issue("id-1", domain.RoleUser)

	parts := strings.Split(tok.Value, ".")
	sig, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		t.Fatalf("decode signature: %v", err)
	}
	sig[0] ^= 0x01
	parts[2] = base64.RawURLEncoding.EncodeToString(sig)

	if _, err := iss.Verify(strings.Join(parts, ".")); !errors.Is(err, domain.ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestJWTIssuer_EverySignatureCharacterBitFlip(t *testing.T) {
	const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"
	iss := newTestIssuer(t, &fixedClock{t: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)})

	for n := 0; n < 20; n++ {
		tok, err := iss.Issue(fmt.Sprintf("id-%d", n), domain.RoleUser)
		if err != nil {
			t.Fatalf("Issue: %v", err)
		}
		parts := strings.Split(tok.Value, ".")
		sig := []byte(parts[2])

		for i := range sig {
			idx := strings.IndexByte(alphabet, sig[i])
			if idx < 0 {
				t.Fatalf("unexpected signature character %q", sig[i])
			}
			tampered := append([]byte(nil), sig...)
			tampered[i] = alphabet[idx^1]

			forged := parts[0] + "." + parts[1] + "." + string(tampered)
			if _, err := iss.Verify(forged); !errors.Is(err, domain.ErrInvalidSignature) {
				t.Fatalf("token %d, char %d: expected ErrInvalidSignature, got %v", n, i, err)
			}
		}
	}
}

func TestJWTIssuer_SignatureCheckedBeforeExpiry(t *testing.T) {
	clock := &fixedClock{t: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	other, _ := NewJWTIssuer(JWTConfig{Secret: []byte("another-secret"), Issuer: "identity-service", Clock: clock})
	iss := newTestIssuer(t, clock)

	tok, _ := other.IssueWithTTL("id-1", domain.RoleUser, 0)
	_, err := iss.Verify(tok.Value)
	if !errors.Is(err, domain.ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
	if errors.Is(err, domain.ErrTokenExpired) {
		t.Fatal("expiry must not be reported for a token with a bad signature")
	}
}

func TestJWTIssuer_IndependentSecrets(t *testing.T) {
	clock := &fixedClock{t: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	a, _ := NewJWTIssuer(JWTConfig{Secret: []byte("secret-a"), Clock: clock})
	b, _ := NewJWTIssuer(JWTConfig{Secret: []byte("secret-b"), Clock: clock})

	tok, _ := a.Issue("id-1", domain.RoleUser)
	if _, err := a.Verify(tok.Value); err != nil {
		t.Fatalf("issuer should verify its own token: %v", err)
	}
	if _, err := b.Verify(tok.Value); !errors.Is(err, domain.ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature from other issuer, got %v", err)
	}
}

func TestJWTIssuer_RejectsOtherAlgorithms(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	iss := newTestIssuer(t, &fixedClock{t: now})

	claims := jwt.MapClaims{
		"sub":  "id-1",
		"role": "admin",
		"iss":  "identity-service",
		"iat":  now.Unix(),
		"exp":  now.Add(time.Hour).Unix(),
	}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}
	if _, err := iss.Verify(unsigned); !errors.Is(err, domain.ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature for alg=none, got %v", err)
	}

	hs512, _ := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("test-secret-test-secret-test-secret"))
	if _, err := iss.Verify(hs512); !errors.Is(err, domain.ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature for HS512, got %v", err)
	}
}

func TestJWTIssuer_Malformed(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	iss := newTestIssuer(t, &fixedClock{t: now})

	for _, raw := range []string{"", "not-a-token", "a.b.c"} {
		if _, err := iss.Verify(raw); !errors.Is(err, domain.ErrTokenMalformed) {
			t.Errorf("Verify(%q): expected ErrTokenMalformed, got %v", raw, err)
		}
	}

	noRole, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "id-1",
		"iss": "identity-service",
		"iat": now.Unix(),
		"exp": now.Add(time.Hour).Unix(),
	}).SignedString([]byte("test-secret-test-secret-test-secret"))
	if _, err := iss.Verify(noRole); !errors.Is(err, domain.ErrTokenMalformed) {
		t.Fatalf("expected ErrTokenMalformed for missing role, got %v", err)
	}

	noExp, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  "id-1",
		"role": "user",
		"iss":  "identity-service",
	}).SignedString([]byte("test-secret-test-secret-test-secret"))
	if _, err := iss.Verify(noExp); !errors.Is(err, domain.ErrTokenMalformed) {
		t.Fatalf("expected ErrTokenMalformed for missing exp, got %v", err)
	}
}
