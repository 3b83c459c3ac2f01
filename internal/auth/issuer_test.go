package auth

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwt"
)

// testClock is a settable time source shared by the issuer under test
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testConfig() Config {
	return Config{
		ClientID:      "ballot-app",
		ClientSecret:  "s3cret",
		AccessSecret:  []byte("access-secret-0123456789abcdef0123"),
		RefreshSecret: []byte("refresh-secret-0123456789abcdef012"),
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    7 * 24 * time.Hour,
		Issuer:        "evote-gateway",
	}
}

func newTestIssuer(t *testing.T, opts ...Option) (*Issuer, *testClock) {
	t.Helper()
	clock := &testClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	opts = append([]Option{WithClock(clock.Now)}, opts...)
	issuer, err := NewIssuer(testConfig(), opts...)
	if err != nil {
		t.Fatalf("NewIssuer() returned error: %v", err)
	}
	return issuer, clock
}

func TestNewIssuerRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"missing client id", func(c *Config) { c.ClientID = "" }},
		{"missing access secret", func(c *Config) { c.AccessSecret = nil }},
		{"identical secrets", func(c *Config) { c.RefreshSecret = c.AccessSecret }},
		{"zero access ttl", func(c *Config) { c.AccessTTL = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.modify(&cfg)
			if _, err := NewIssuer(cfg); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestIssue(t *testing.T) {
	issuer, clock := newTestIssuer(t)
	ctx := context.Background()

	t.Run("valid credentials", func(t *testing.T) {
		pair, err := issuer.Issue(ctx, "ballot-app", "s3cret")
		if err != nil {
			t.Fatalf("Issue() returned error: %v", err)
		}
		if pair.AccessToken == "" || pair.RefreshToken == "" {
			t.Fatal("expected both tokens to be set")
		}
		if pair.ExpiresIn != 900 {
			t.Errorf("ExpiresIn: got %d, want 900", pair.ExpiresIn)
		}
		if want := clock.Now().Add(15 * time.Minute); !pair.AccessExpiresAt.Equal(want) {
			t.Errorf("AccessExpiresAt: got %s, want %s", pair.AccessExpiresAt, want)
		}

		claims, err := issuer.VerifyAccessToken(ctx, pair.AccessToken)
		if err != nil {
			t.Fatalf("VerifyAccessToken() returned error: %v", err)
		}
		if claims.Subject != "ballot-app" {
			t.Errorf("Subject: got %q, want ballot-app", claims.Subject)
		}
		if claims.Use != TokenUseAccess {
			t.Errorf("Use: got %q, want access", claims.Use)
		}
	})

	t.Run("tokens carry distinct ids", func(t *testing.T) {
		a, _ := issuer.Issue(ctx, "ballot-app", "s3cret")
		b, _ := issuer.Issue(ctx, "ballot-app", "s3cret")
		ca, _ := issuer.VerifyAccessToken(ctx, a.AccessToken)
		cb, _ := issuer.VerifyAccessToken(ctx, b.AccessToken)
		if ca.TokenID == cb.TokenID {
			t.Error("expected unique jti values")
		}

		// issuing a new pair does not invalidate the earlier one
		if _, err := issuer.VerifyAccessToken(ctx, a.AccessToken); err != nil {
			t.Errorf("earlier token rejected: %v", err)
		}
	})

	errorTests := []struct {
		name     string
		id       string
		secret   string
		wantCode ErrorCode
	}{
		{"missing id", "", "s3cret", ErrCodeMissingCredentials},
		{"missing secret", "ballot-app", "", ErrCodeMissingCredentials},
		{"wrong secret", "ballot-app", "nope", ErrCodeInvalidCredentials},
		{"wrong id", "other-app", "s3cret", ErrCodeInvalidCredentials},
	}
	for _, tt := range errorTests {
		t.Run(tt.name, func(t *testing.T) {
			pair, err := issuer.Issue(ctx, tt.id, tt.secret)
			if err == nil {
				t.Fatal("expected an error")
			}
			if pair != nil {
				t.Error("expected no tokens on failure")
			}
			if !IsCode(err, tt.wantCode) {
				t.Errorf("expected code %s, got %v", tt.wantCode, err)
			}
		})
	}
}

func TestAccessTokenExpiry(t *testing.T) {
	issuer, clock := newTestIssuer(t)
	ctx := context.Background()

	pair, err := issuer.Issue(ctx, "ballot-app", "s3cret")
	if err != nil {
		t.Fatalf("Issue() returned error: %v", err)
	}

	clock.Advance(15*time.Minute - time.Second)
	if _, err := issuer.VerifyAccessToken(ctx, pair.AccessToken); err != nil {
		t.Fatalf("token rejected before expiry: %v", err)
	}

	clock.Advance(time.Second)
	_, err = issuer.VerifyAccessToken(ctx, pair.AccessToken)
	if !IsCode(err, ErrCodeInvalidAccessToken) {
		t.Fatalf("expected invalid access token at expiry, got %v", err)
	}
}

func TestVerifyAccessTokenRejects(t *testing.T) {
	issuer, _ := newTestIssuer(t)
	ctx := context.Background()

	pair, err := issuer.Issue(ctx, "ballot-app", "s3cret")
	if err != nil {
		t.Fatalf("Issue() returned error: %v", err)
	}

	// a token signed with a key the gateway does not use
	forged, err := jwt.NewBuilder().
		Issuer("evote-gateway").
		Subject("ballot-app").
		IssuedAt(time.Now()).
		Expiration(time.Now().Add(time.Hour)).
		JwtID("forged").
		Claim(tokenUseClaim, "access").
		Build()
	if err != nil {
		t.Fatalf("failed to build token: %v", err)
	}
	forgedSigned, err := jwt.Sign(forged, jwt.WithKey(jwa.HS256(), []byte("attacker-secret")))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}

	tests := []struct {
		name  string
		token string
	}{
		{"refresh token used as access token", pair.RefreshToken},
		{"malformed", "not.a.jwt"},
		{"forged signature", string(forgedSigned)},
		{"tampered payload", tamper(pair.AccessToken)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := issuer.VerifyAccessToken(ctx, tt.token)
			if !IsCode(err, ErrCodeInvalidAccessToken) {
				t.Errorf("expected %s, got %v", ErrCodeInvalidAccessToken, err)
			}
		})
	}

	t.Run("empty token", func(t *testing.T) {
		_, err := issuer.VerifyAccessToken(ctx, "")
		if !IsCode(err, ErrCodeMissingAccessToken) {
			t.Errorf("expected %s, got %v", ErrCodeMissingAccessToken, err)
		}
	})
}

// tamper flips a character in the payload segment of a compact JWS
func tamper(token string) string {
	parts := strings.Split(token, ".")
	if len(parts) != 3 || len(parts[1]) == 0 {
		return token
	}
	payload := []byte(parts[1])
	if payload[0] == 'A' {
		payload[0] = 'B'
	} else {
		payload[0] = 'A'
	}
	parts[1] = string(payload)
	return strings.Join(parts, ".")
}

func TestRefresh(t *testing.T) {
	issuer, clock := newTestIssuer(t)
	ctx := context.Background()

	pair, err := issuer.Issue(ctx, "ballot-app", "s3cret")
	if err != nil {
		t.Fatalf("Issue() returned error: %v", err)
	}

	t.Run("mints a new access token after the old one expired", func(t *testing.T) {
		clock.Advance(time.Hour)

		if _, err := issuer.VerifyAccessToken(ctx, pair.AccessToken); err == nil {
			t.Fatal("expected the original access token to have expired")
		}

		refreshed, err := issuer.Refresh(ctx, pair.RefreshToken)
		if err != nil {
			t.Fatalf("Refresh() returned error: %v", err)
		}
		if refreshed.RefreshToken != "" {
			t.Error("refresh should not return a new refresh token")
		}
		claims, err := issuer.VerifyAccessToken(ctx, refreshed.AccessToken)
		if err != nil {
			t.Fatalf("refreshed token rejected: %v", err)
		}
		if claims.Subject != "ballot-app" {
			t.Errorf("Subject: got %q", claims.Subject)
		}
	})

	t.Run("access token used as refresh token", func(t *testing.T) {
		fresh, _ := issuer.Issue(ctx, "ballot-app", "s3cret")
		_, err := issuer.Refresh(ctx, fresh.AccessToken)
		if !IsCode(err, ErrCodeInvalidRefreshToken) {
			t.Errorf("expected %s, got %v", ErrCodeInvalidRefreshToken, err)
		}
	})

	t.Run("missing refresh token", func(t *testing.T) {
		_, err := issuer.Refresh(ctx, "")
		if !IsCode(err, ErrCodeMissingRefreshToken) {
			t.Errorf("expected %s, got %v", ErrCodeMissingRefreshToken, err)
		}
	})

	t.Run("expired refresh token", func(t *testing.T) {
		clock.Advance(8 * 24 * time.Hour)
		_, err := issuer.Refresh(ctx, pair.RefreshToken)
		if !IsCode(err, ErrCodeInvalidRefreshToken) {
			t.Errorf("expected %s, got %v", ErrCodeInvalidRefreshToken, err)
		}
	})
}

func TestRevoke(t *testing.T) {
	denyList := NewMemoryDenyList()
	issuer, _ := newTestIssuer(t, WithDenyList(denyList))
	ctx := context.Background()

	pair, err := issuer.Issue(ctx, "ballot-app", "s3cret")
	if err != nil {
		t.Fatalf("Issue() returned error: %v", err)
	}

	if _, err := issuer.Revoke(ctx, pair.RefreshToken); err != nil {
		t.Fatalf("Revoke(refresh) returned error: %v", err)
	}
	if _, err := issuer.Refresh(ctx, pair.RefreshToken); !IsCode(err, ErrCodeInvalidRefreshToken) {
		t.Errorf("expected revoked refresh token to be rejected, got %v", err)
	}

	// the access token is independent of the refresh token
	if _, err := issuer.VerifyAccessToken(ctx, pair.AccessToken); err != nil {
		t.Fatalf("access token rejected: %v", err)
	}
	if _, err := issuer.Revoke(ctx, pair.AccessToken); err != nil {
		t.Fatalf("Revoke(access) returned error: %v", err)
	}
	if _, err := issuer.VerifyAccessToken(ctx, pair.AccessToken); !IsCode(err, ErrCodeInvalidAccessToken) {
		t.Errorf("expected revoked access token to be rejected, got %v", err)
	}

	if _, err := issuer.Revoke(ctx, "garbage"); !IsCode(err, ErrCodeInvalidToken) {
		t.Errorf("expected invalid token error, got %v", err)
	}
	if _, err := issuer.Revoke(ctx, ""); !IsCode(err, ErrCodeMissingToken) {
		t.Errorf("expected missing token error, got %v", err)
	}

	if denyList.Len() != 2 {
		t.Errorf("deny list size: got %d, want 2", denyList.Len())
	}
}

func TestRevokeWithoutDenyList(t *testing.T) {
	issuer, _ := newTestIssuer(t)
	if _, err := issuer.Revoke(context.Background(), "anything"); !IsCode(err, ErrCodeInternal) {
		t.Errorf("expected internal error, got %v", err)
	}
}

func TestSubjectFromContext(t *testing.T) {
	if got := SubjectFromContext(context.Background()); got != "" {
		t.Errorf("expected empty subject, got %q", got)
	}
	ctx := ContextWithClaims(context.Background(), &Claims{Subject: "ballot-app"})
	if got := SubjectFromContext(ctx); got != "ballot-app" {
		t.Errorf("got %q, want ballot-app", got)
	}
}
