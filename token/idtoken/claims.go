package idtoken

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the verified identity carried by a Google ID token.
type Claims struct {
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
	GivenName     string
	FamilyName    string
	Picture       string
	Locale        string
	Issuer        string
	Audience      string
	IssuedAt      time.Time
	ExpiresAt     time.Time
}

type googleClaims struct {
	jwt.RegisteredClaims
	Email         string `json:"email"`
	EmailVerified any    `json:"email_verified"`
	Name          string `json:"name"`
	GivenName     string `json:"given_name"`
	FamilyName    string `json:"family_name"`
	Picture       string `json:"picture"`
	Locale        string `json:"locale"`
}

// emailVerified accepts the boolean Google sends today and the "true" string
// older tokens carried.
func (c *googleClaims) emailVerified() bool {
	switch v := c.EmailVerified.(type) {
	case bool:
		return v
	case string:
		return v == "true"
	}
	return false
}

func (c *googleClaims) toClaims(audience string) *Claims {
	out := &Claims{
		Subject:       c.Subject,
		Email:         c.Email,
		EmailVerified: c.emailVerified(),
		Name:          c.Name,
		GivenName:     c.GivenName,
		FamilyName:    c.FamilyName,
		Picture:       c.Picture,
		Locale:        c.Locale,
		Issuer:        c.Issuer,
		Audience:      audience,
	}
	if c.IssuedAt != nil {
		out.IssuedAt = c.IssuedAt.Time
	}
	if c.ExpiresAt != nil {
		out.ExpiresAt = c.ExpiresAt.Time
	}
	return out
}
