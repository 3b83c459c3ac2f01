// issuer.go mints and verifies the gateway's bearer credentials.
//
// Two kinds of token are issued, both HS256 JWTs:
//   - access tokens (default 15 minutes) accepted by the protected /api routes
//   - refresh tokens (default 7 days) accepted only by the refresh endpoint to mint new access tokens
//
// Each kind is signed with its own secret and carries a token_use claim, so a leaked access
// secret cannot be used to forge refresh tokens (and vice versa) and a refresh token is never
// accepted where an access token is expected.
//
// Tokens are stateless: validity is a function of signature and expiry, plus an optional
// deny list keyed by the jti claim (see denylist.go). Issuing a new token never invalidates
// an earlier one.
package auth

import (
	"context"
	"crypto/subtle"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwt"
)

// TokenUse distinguishes access tokens from refresh tokens
type TokenUse string

const (
	TokenUseAccess  TokenUse = "access"
	TokenUseRefresh TokenUse = "refresh"
)

const (
	// tokenUseClaim is the private claim holding the TokenUse
	tokenUseClaim = "token_use"

	// appIDClaim duplicates the subject for clients that read appId from the token payload
	appIDClaim = "appId"
)

// Config holds the issuer settings (built from config.ServerEnvironment at startup)
type Config struct {
	ClientID      string
	ClientSecret  string
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
}

// Claims are the verified contents of a token.
type Claims struct {
	Subject   string
	TokenID   string
	Use       TokenUse
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenPair is returned by Issue and Refresh. RefreshToken is empty for refreshed credentials.
type TokenPair struct {
	AccessToken  string
	RefreshToken string

	// ExpiresIn is the access token lifetime in seconds
	ExpiresIn int

	AccessExpiresAt time.Time
}

// Issuer issues and verifies access and refresh tokens.
type Issuer struct {
	config   Config
	denyList DenyList
	now      func() time.Time
}

// Option configures an Issuer
type Option func(*Issuer)

// WithClock overrides the time source (used in tests)
func WithClock(now func() time.Time) Option {
	return func(i *Issuer) { i.now = now }
}

// WithDenyList enables revocation checks against the given deny list
func WithDenyList(d DenyList) Option {
	return func(i *Issuer) { i.denyList = d }
}

// NewIssuer creates an Issuer. The access and refresh secrets must be set and must differ.
func NewIssuer(cfg Config, opts ...Option) (*Issuer, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("client id and secret are required")
	}
	if len(cfg.AccessSecret) == 0 || len(cfg.RefreshSecret) == 0 {
		return nil, fmt.Errorf("access and refresh signing secrets are required")
	}
	if subtle.ConstantTimeCompare(cfg.AccessSecret, cfg.RefreshSecret) == 1 {
		return nil, fmt.Errorf("access and refresh signing secrets must be different")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, fmt.Errorf("token lifetimes must be greater than 0")
	}

	i := &Issuer{
		config: cfg,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// AccessTTL returns the configured access token lifetime
func (i *Issuer) AccessTTL() time.Duration { return i.config.AccessTTL }

// Issue checks the client credentials and returns a new access and refresh token.
func (i *Issuer) Issue(ctx context.Context, clientID, clientSecret string) (*TokenPair, error) {
	if clientID == "" || clientSecret == "" {
		return nil, newError(ErrCodeMissingCredentials, "missing credentials")
	}

	// evaluate both comparisons so the response time does not reveal which one failed
	idOK := subtle.ConstantTimeCompare([]byte(clientID), []byte(i.config.ClientID))
	secretOK := subtle.ConstantTimeCompare([]byte(clientSecret), []byte(i.config.ClientSecret))
	if idOK&secretOK != 1 {
		return nil, newError(ErrCodeInvalidCredentials, "invalid credentials")
	}

	now := i.now()

	accessToken, accessExp, err := i.sign(clientID, TokenUseAccess, now)
	if err != nil {
		return nil, err
	}
	refreshToken, _, err := i.sign(clientID, TokenUseRefresh, now)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:     accessToken,
		RefreshToken:    refreshToken,
		ExpiresIn:       int(i.config.AccessTTL.Seconds()),
		AccessExpiresAt: accessExp,
	}, nil
}

// Refresh verifies a refresh token and returns a new access token for the same subject.
// The refresh token itself stays valid until it expires (or is revoked).
func (i *Issuer) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if refreshToken == "" {
		return nil, newError(ErrCodeMissingRefreshToken, "refresh token required")
	}

	claims, err := i.verify(ctx, refreshToken, TokenUseRefresh)
	if err != nil {
		if IsCode(err, ErrCodeInternal) {
			return nil, err
		}
		return nil, wrapError(ErrCodeInvalidRefreshToken, err, "invalid refresh token")
	}

	accessToken, accessExp, err := i.sign(claims.Subject, TokenUseAccess, i.now())
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:     accessToken,
		ExpiresIn:       int(i.config.AccessTTL.Seconds()),
		AccessExpiresAt: accessExp,
	}, nil
}

// VerifyAccessToken verifies a bearer token presented to a protected route.
func (i *Issuer) VerifyAccessToken(ctx context.Context, token string) (*Claims, error) {
	if token == "" {
		return nil, NewMissingAccessTokenError()
	}

	claims, err := i.verify(ctx, token, TokenUseAccess)
	if err != nil {
		if IsCode(err, ErrCodeInternal) {
			return nil, err
		}
		return nil, wrapError(ErrCodeInvalidAccessToken, err, "invalid or expired token")
	}
	return claims, nil
}

// Revoke adds a valid access or refresh token to the deny list until it expires.
//
// Revoking requires a deny list (see WithDenyList).
func (i *Issuer) Revoke(ctx context.Context, token string) (*Claims, error) {
	if i.denyList == nil {
		return nil, newError(ErrCodeInternal, "token revocation is not configured")
	}
	if token == "" {
		return nil, newError(ErrCodeMissingToken, "token required")
	}

	claims, err := i.verify(ctx, token, TokenUseAccess)
	if err != nil && !IsCode(err, ErrCodeInternal) {
		claims, err = i.verify(ctx, token, TokenUseRefresh)
	}
	if err != nil {
		if IsCode(err, ErrCodeInternal) {
			return nil, err
		}
		return nil, wrapError(ErrCodeInvalidToken, err, "invalid token")
	}

	if err := i.denyList.Revoke(ctx, RevokedToken{
		TokenID:   claims.TokenID,
		Subject:   claims.Subject,
		ExpiresAt: claims.ExpiresAt,
	}); err != nil {
		return nil, wrapError(ErrCodeInternal, err, "failed to revoke token")
	}
	return claims, nil
}

func (i *Issuer) secret(use TokenUse) []byte {
	if use == TokenUseRefresh {
		return i.config.RefreshSecret
	}
	return i.config.AccessSecret
}

func (i *Issuer) ttl(use TokenUse) time.Duration {
	if use == TokenUseRefresh {
		return i.config.RefreshTTL
	}
	return i.config.AccessTTL
}

// sign builds and signs a token for the subject. Times are truncated to seconds to match the JWT NumericDate encoding.
func (i *Issuer) sign(subject string, use TokenUse, now time.Time) (string, time.Time, error) {
	issuedAt := now.Truncate(time.Second)
	expiresAt := issuedAt.Add(i.ttl(use))

	tok, err := jwt.NewBuilder().
		Issuer(i.config.Issuer).
		Subject(subject).
		IssuedAt(issuedAt).
		Expiration(expiresAt).
		JwtID(uuid.NewString()).
		Claim(tokenUseClaim, string(use)).
		Claim(appIDClaim, subject).
		Build()
	if err != nil {
		return "", time.Time{}, wrapError(ErrCodeInternal, err, "failed to build token")
	}

	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256(), i.secret(use)))
	if err != nil {
		return "", time.Time{}, wrapError(ErrCodeInternal, err, "failed to sign token")
	}
	return string(signed), expiresAt, nil
}

// verify checks the signature (with the key for the expected use), the registered claims, the token_use claim and the deny list.
//
// Errors other than ErrCodeInternal are plain errors describing why the token was rejected;
// callers wrap them with the code appropriate to the endpoint.
func (i *Issuer) verify(ctx context.Context, token string, use TokenUse) (*Claims, error) {
	now := i.now()

	opts := []jwt.ParseOption{
		jwt.WithKey(jwa.HS256(), i.secret(use)),
		jwt.WithValidate(true),
		jwt.WithClock(jwt.ClockFunc(i.now)),
	}
	if i.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(i.config.Issuer))
	}

	tok, err := jwt.Parse([]byte(token), opts...)
	if err != nil {
		return nil, fmt.Errorf("token rejected: %w", err)
	}

	var gotUse string
	if err := tok.Get(tokenUseClaim, &gotUse); err != nil || TokenUse(gotUse) != use {
		return nil, fmt.Errorf("token is not a %s token", use)
	}

	subject, ok := tok.Subject()
	if !ok || subject == "" {
		return nil, fmt.Errorf("token has no subject")
	}
	expiresAt, ok := tok.Expiration()
	if !ok {
		return nil, fmt.Errorf("token has no expiry")
	}
	// reject at the expiry instant, not one second after
	if !now.Before(expiresAt) {
		return nil, fmt.Errorf("token expired at %s", expiresAt.UTC().Format(time.RFC3339))
	}
	tokenID, ok := tok.JwtID()
	if !ok || tokenID == "" {
		return nil, fmt.Errorf("token has no id")
	}
	issuedAt, _ := tok.IssuedAt()

	if i.denyList != nil {
		revoked, err := i.denyList.IsRevoked(ctx, tokenID)
		if err != nil {
			return nil, wrapError(ErrCodeInternal, err, "failed to check token revocation")
		}
		if revoked {
			return nil, fmt.Errorf("token %s has been revoked", tokenID)
		}
	}

	return &Claims{
		Subject:   subject,
		TokenID:   tokenID,
		Use:       use,
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
	}, nil
}
