package middleware

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/makeasinger/autoedit/internal/auth"
	"github.com/makeasinger/autoedit/pkg/response"
)

const principalKey = "principal"

// ErrNoSecret is returned when minting a token without a configured secret.
var ErrNoSecret = errors.New("legacy jwt secret not configured")

// AuthMiddleware accepts a bearer token if any configured verifier does.
type AuthMiddleware struct {
	verifiers []auth.TokenVerifier
	secret    string
}

// NewAuthMiddleware tries the given verifiers in order (nil ones are skipped)
// and, when secret is set, HMAC tokens last.
func NewAuthMiddleware(secret string, verifiers ...auth.TokenVerifier) *AuthMiddleware {
	m := &AuthMiddleware{secret: secret}
	for _, v := range verifiers {
		if v != nil {
			m.verifiers = append(m.verifiers, v)
		}
	}
	if secret != "" {
		m.verifiers = append(m.verifiers, auth.NewHMACVerifier(secret))
	}
	return m
}

// Enabled reports whether any verifier is configured.
func (m *AuthMiddleware) Enabled() bool {
	return len(m.verifiers) > 0
}

func (m *AuthMiddleware) Authenticate() fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		if header == "" {
			return response.Unauthorized(c, "Missing authorization header")
		}
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "bearer") || token == "" {
			return response.Unauthorized(c, "Invalid authorization header format")
		}
		if !m.Enabled() {
			return response.Unauthorized(c, "Authentication not configured")
		}

		for _, v := range m.verifiers {
			p, err := v.Verify(token)
			if err != nil {
				continue
			}
			c.Locals(principalKey, p)
			return c.Next()
		}
		return response.Unauthorized(c, "Invalid or expired token")
	}
}

// GetPrincipal returns the caller set by Authenticate, or nil.
func GetPrincipal(c *fiber.Ctx) *auth.Principal {
	p, _ := c.Locals(principalKey).(*auth.Principal)
	return p
}

// GetUserID returns the caller's user id, or "" on unauthenticated routes.
func GetUserID(c *fiber.Ctx) string {
	if p := GetPrincipal(c); p != nil {
		return p.UserID
	}
	return ""
}

// GenerateToken creates a legacy HMAC token valid for ttl
func (m *AuthMiddleware) GenerateToken(userID, email string, ttl time.Duration) (string, error) {
	if m.secret == "" {
		return "", ErrNoSecret
	}
	return auth.NewLegacyToken(userID, email, m.secret, ttl)
}
