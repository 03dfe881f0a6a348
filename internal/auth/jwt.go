package auth

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const issuer = "payledger"

// TenantClaims are the claims carried by a bearer token. Subject holds the user
// id and Org the organization id.
type TenantClaims struct {
	Org string `json:"org"`
	jwt.RegisteredClaims
}

// Verifier validates ES256 bearer tokens against a single public key.
type Verifier struct {
	publicKey *ecdsa.PublicKey
}

// NewVerifier creates a verifier from a PEM-encoded ECDSA public key.
func NewVerifier(publicKeyPEM string) (*Verifier, error) {
	if publicKeyPEM == "" {
		return nil, errors.New("JWT public key not provided")
	}

	publicKey, err := jwt.ParseECPublicKeyFromPEM([]byte(publicKeyPEM))
	if err != nil {
		return nil, err
	}

	return &Verifier{publicKey: publicKey}, nil
}

// Verify checks the token signature and expiry and returns the tenant it names.
func (v *Verifier) Verify(tokenString string) (Tenant, error) {
	claims := &TenantClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodES256 {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.publicKey, nil
	},
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return Tenant{}, err
	}

	if !token.Valid {
		return Tenant{}, errors.New("invalid token")
	}

	userID, err := parseUUID("sub", claims.Subject)
	if err != nil {
		return Tenant{}, err
	}

	orgID, err := parseUUID("org", claims.Org)
	if err != nil {
		return Tenant{}, err
	}

	return Tenant{OrgID: orgID, UserID: userID}, nil
}

// extractBearerToken extracts the JWT from the Authorization header.
func extractBearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}

	return parts[1]
}

func parseUUID(claim, value string) (uuid.UUID, error) {
	if value == "" {
		return uuid.Nil, fmt.Errorf("missing %s claim", claim)
	}

	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s UUID: %w", claim, err)
	}

	return id, nil
}
