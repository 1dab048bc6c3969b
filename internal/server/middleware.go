package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"cafe-orders/internal/apperr"
	"cafe-orders/internal/logger"
	"cafe-orders/internal/models"
)

const (
	HeaderRequestID = "X-Request-ID"

	requestIDKey = "request_id"
	identityKey  = "identity"
)

// Claims is the bearer token payload issued by the auth service
type Claims struct {
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty"`
	Admin bool   `json:"admin,omitempty"`
	jwt.RegisteredClaims
}

// RequestLogger tags each request with an id and logs its start and completion
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := c.GetHeader(HeaderRequestID)
		if requestID == "" {
			requestID = logger.GenerateRequestID()
		}
		c.Set(requestIDKey, requestID)
		c.Header(HeaderRequestID, requestID)

		path := c.Request.URL.Path
		log.Debug("request_started", fmt.Sprintf("%s %s", c.Request.Method, path), requestID, map[string]interface{}{
			"method":      c.Request.Method,
			"path":        path,
			"remote_addr": c.ClientIP(),
			"user_agent":  c.Request.UserAgent(),
		})

		c.Next()

		status := c.Writer.Status()
		log.Debug("request_completed", fmt.Sprintf("%s %s - %d", c.Request.Method, path, status), requestID, map[string]interface{}{
			"method":      c.Request.Method,
			"path":        path,
			"status_code": status,
			"duration_ms": time.Since(start).Milliseconds(),
		})
	}
}

// RequestID returns the id assigned by RequestLogger, if any
func RequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

// Authenticate verifies an HS256 bearer token and stores the caller identity
func Authenticate(secret string, log *logger.Logger) gin.HandlerFunc {
	key := []byte(secret)

	return func(c *gin.Context) {
		raw, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok {
			// websocket clients cannot set headers
			raw = c.Query("token")
		}
		if raw == "" {
			writeError(c, http.StatusUnauthorized, "unauthorized", "Authorization token required")
			return
		}

		identity, err := ParseToken(raw, key)
		if err != nil {
			log.Debug("auth_failed", "Rejected bearer token", RequestID(c), map[string]interface{}{
				"error": err.Error(),
			})
			writeError(c, http.StatusUnauthorized, "unauthorized", "Invalid or expired token")
			return
		}

		c.Set(identityKey, identity)
		c.Next()
	}
}

// RequireAdmin rejects callers without the admin flag
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := CurrentUser(c)
		if !ok || !identity.IsAdmin {
			writeError(c, http.StatusForbidden, apperr.KindForbidden, "Admin access required")
			return
		}
		c.Next()
	}
}

// CurrentUser returns the identity set by Authenticate
func CurrentUser(c *gin.Context) (models.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return models.Identity{}, false
	}
	identity, ok := v.(models.Identity)
	return identity, ok
}

// ParseToken validates raw against key and extracts the caller identity
func ParseToken(raw string, key []byte) (models.Identity, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return models.Identity{}, err
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return models.Identity{}, errors.New("token subject is not a user id")
	}

	return models.Identity{
		UserID:  userID,
		Name:    claims.Name,
		Phone:   claims.Phone,
		Email:   claims.Email,
		IsAdmin: claims.Admin,
	}, nil
}
