package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/jengzang/tour-geocompare/pkg/response"
)

// SubjectKey is the gin context key holding the authenticated token subject
const SubjectKey = "auth.subject"

var (
	errMissingToken = errors.New("missing bearer token")
	errNoExpiry     = errors.New("token without expiry")
)

// Auth middleware validates HS256 bearer tokens signed with secret
func Auth(secret string) gin.HandlerFunc {
	key := []byte(secret)
	return func(c *gin.Context) {
		subject, err := parseBearer(c.GetHeader("Authorization"), key)
		if err != nil {
			response.Abort(c, http.StatusUnauthorized, "Unauthorized: "+err.Error())
			return
		}
		c.Set(SubjectKey, subject)
		c.Next()
	}
}

// IssueToken signs a token for subject valid for ttl
func IssueToken(secret, subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func parseBearer(header string, key []byte) (string, error) {
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(raw) == "" {
		return "", errMissingToken
	}

	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(strings.TrimSpace(raw), &claims, func(t *jwt.Token) (interface{}, error) {
		return key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", fmt.Errorf("invalid token: %w", err)
	}
	if claims.ExpiresAt == nil {
		return "", errNoExpiry
	}
	return claims.Subject, nil
}
