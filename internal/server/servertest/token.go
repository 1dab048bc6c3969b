// Package servertest issues bearer tokens for handler tests
package servertest

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"cafe-orders/internal/models"
)

// SignToken issues an HS256 token for identity valid for ttl, carrying the
// claims the auth service puts in real tokens.
func SignToken(identity models.Identity, key []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  identity.UserID.String(),
		"name": identity.Name,
		"iat":  now.Unix(),
		"exp":  now.Add(ttl).Unix(),
	}
	if identity.Phone != "" {
		claims["phone"] = identity.Phone
	}
	if identity.Email != "" {
		claims["email"] = identity.Email
	}
	if identity.IsAdmin {
		claims["admin"] = true
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
}
