package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// LegacyIssuer is stamped on HMAC tokens minted by this service.
const LegacyIssuer = "autoedit-api"

// LegacyClaims are carried by HMAC tokens from `autoedit token` and older clients.
type LegacyClaims struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// ValidateLegacyToken checks an HS256/384/512 token against secret.
func ValidateLegacyToken(tokenString, secret string) (*LegacyClaims, error) {
	var claims LegacyClaims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}))
	if err != nil {
		return nil, err
	}
	if claims.UserID == "" {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return &claims, nil
}

// NewLegacyToken signs an HMAC token for userID. A zero ttl mints a token
// without expiry, which is only meant for local tooling.
func NewLegacyToken(userID, email, secret string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("hmac secret is empty")
	}
	now := time.Now()
	claims := LegacyClaims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   LegacyIssuer,
			Subject:  userID,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// HMACVerifier accepts tokens signed with a shared secret.
type HMACVerifier struct {
	secret string
}

func NewHMACVerifier(secret string) *HMACVerifier {
	return &HMACVerifier{secret: secret}
}

// Verify implements TokenVerifier.
func (v *HMACVerifier) Verify(tokenString string) (*Principal, error) {
	claims, err := ValidateLegacyToken(tokenString, v.secret)
	if err != nil {
		return nil, err
	}
	return &Principal{
		UserID: claims.UserID,
		Email:  claims.Email,
		Source: SourceHMAC,
	}, nil
}
