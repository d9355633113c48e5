package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	"github.com/makeasinger/autoedit/internal/config"
)

const discoveryTimeout = 30 * time.Second

// ErrAudience is returned for a token minted for another client.
var ErrAudience = errors.New("token audience does not include this service")

// Claims are the OIDC access token claims the API reads.
type Claims struct {
	UserID string   `json:"sub"`
	Email  string   `json:"email,omitempty"`
	Name   string   `json:"name,omitempty"`
	Roles  []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// JWKSVerifier checks RS/ES-signed tokens against an issuer's published keys.
type JWKSVerifier struct {
	keys     keyfunc.Keyfunc
	parser   *jwt.Parser
	audience string
}

// NewJWKSVerifier discovers the issuer's key set. The set keeps refreshing in
// the background until ctx ends, so pass the process context.
func NewJWKSVerifier(ctx context.Context, cfg *config.OIDCConfig) (*JWKSVerifier, error) {
	if cfg.Issuer == "" {
		return nil, errors.New("oidc issuer is required")
	}

	discoverCtx, cancel := context.WithTimeout(ctx, discoveryTimeout)
	defer cancel()
	jwksURL, err := discoverJWKSURL(discoverCtx, cfg.Issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to discover JWKS URL: %w", err)
	}

	keys, err := keyfunc.NewDefaultCtx(ctx, []string{jwksURL})
	if err != nil {
		return nil, fmt.Errorf("failed to load JWKS: %w", err)
	}

	return &JWKSVerifier{
		keys: keys,
		parser: jwt.NewParser(
			jwt.WithIssuer(cfg.Issuer),
			jwt.WithExpirationRequired(),
		),
		audience: cfg.ClientID,
	}, nil
}

func discoverJWKSURL(ctx context.Context, issuer string) (string, error) {
	url := strings.TrimSuffix(issuer, "/") + "/.well-known/openid-configuration"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("discovery endpoint returned status %d", resp.StatusCode)
	}

	var doc struct {
		JWKSURI string `json:"jwks_uri"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return "", fmt.Errorf("malformed discovery document: %w", err)
	}
	if doc.JWKSURI == "" {
		return "", errors.New("discovery document has no jwks_uri")
	}
	return doc.JWKSURI, nil
}

// Claims parses and checks a token: signature, issuer, expiry and, when a
// client id is configured, audience.
func (v *JWKSVerifier) Claims(tokenString string) (*Claims, error) {
	var claims Claims
	if _, err := v.parser.ParseWithClaims(tokenString, &claims, v.keys.Keyfunc); err != nil {
		return nil, err
	}
	if v.audience != "" {
		aud, err := claims.GetAudience()
		if err != nil || !slices.Contains(aud, v.audience) {
			return nil, ErrAudience
		}
	}
	return &claims, nil
}

// Verify implements TokenVerifier.
func (v *JWKSVerifier) Verify(tokenString string) (*Principal, error) {
	claims, err := v.Claims(tokenString)
	if err != nil {
		return nil, err
	}
	return &Principal{
		UserID: claims.UserID,
		Email:  claims.Email,
		Name:   claims.Name,
		Roles:  claims.Roles,
		Source: SourceOIDC,
	}, nil
}
