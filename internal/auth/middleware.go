package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt"
)

// ScopeScheduler is the only scope issued today: permission to trigger
// scheduler passes.
const ScopeScheduler = "scheduler"

type Claims struct {
	Scope string `json:"scope"`
	jwt.StandardClaims
}

// GenerateToken signs a scheduler token. A zero ttl produces a token that
// never expires.
func GenerateToken(secret string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("scheduler secret is not configured")
	}

	now := time.Now()
	claims := Claims{
		Scope: ScopeScheduler,
		StandardClaims: jwt.StandardClaims{
			IssuedAt: now.Unix(),
			Subject:  "cron",
		},
	}
	if ttl > 0 {
		claims.ExpiresAt = now.Add(ttl).Unix()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ValidateToken parses and checks a scheduler token.
func ValidateToken(secret, token string) (*Claims, error) {
	claims := &Claims{}
	tkn, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	if !tkn.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.Scope != ScopeScheduler {
		return nil, fmt.Errorf("token scope %q not allowed", claims.Scope)
	}
	return claims, nil
}

// RequireSchedulerToken guards the cron endpoint. With an empty secret the
// endpoint stays open.
func RequireSchedulerToken(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}

		header := c.GetHeader("Authorization")
		if header == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization header required"})
			c.Abort()
			return
		}

		token := strings.TrimPrefix(header, "Bearer ")
		claims, err := ValidateToken(secret, token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			c.Abort()
			return
		}

		c.Set("token_subject", claims.Subject)
		c.Next()
	}
}
