package auth

// Token sources recorded on a Principal.
const (
	SourceOIDC = "oidc"
	SourceHMAC = "hmac"
)

// Principal is the authenticated caller, whichever way its token was checked.
type Principal struct {
	UserID string
	Email  string
	Name   string
	Roles  []string
	Source string
}

// TokenVerifier turns a bearer token into a Principal.
type TokenVerifier interface {
	Verify(tokenString string) (*Principal, error)
}
