// Package auth turns bearer JWTs into actors. Tokens are issued elsewhere;
// this package only verifies HS256 signatures and reads sub, role and outlets.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"orderhub/internal/order/domain/lifecycle"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const actorKey = "actor"

var (
	ErrMissingToken = errors.New("missing token")
	ErrInvalidToken = errors.New("invalid token")
)

type Claims struct {
	Role    string   `json:"role"`
	Outlets []string `json:"outlets,omitempty"`
	jwt.RegisteredClaims
}

// Sign issues a token. Used by tooling and tests. Staff and owners only
// act on the outlets listed.
func Sign(secret, subject string, role lifecycle.Role, ttl time.Duration, outlets ...string) (string, error) {
	now := time.Now()
	claims := Claims{
		Role:    string(role),
		Outlets: outlets,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// Parse validates a raw token and returns the actor it names.
func Parse(secret, raw string) (lifecycle.Actor, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return lifecycle.Actor{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	role := lifecycle.Role(claims.Role)
	if !role.Valid() {
		return lifecycle.Actor{}, fmt.Errorf("%w: unknown role %q", ErrInvalidToken, claims.Role)
	}
	if strings.TrimSpace(claims.Subject) == "" && role != lifecycle.RoleSystem {
		return lifecycle.Actor{}, fmt.Errorf("%w: subject missing", ErrInvalidToken)
	}
	return lifecycle.Actor{ID: claims.Subject, Role: role, Outlets: claims.Outlets}, nil
}

// FromHeader extracts the actor from an Authorization header value.
func FromHeader(secret, header string) (lifecycle.Actor, error) {
	raw := strings.TrimSpace(header)
	if raw == "" {
		return lifecycle.Actor{}, ErrMissingToken
	}
	parts := strings.Split(raw, " ")
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return lifecycle.Actor{}, fmt.Errorf("%w: format", ErrInvalidToken)
	}
	return Parse(secret, parts[1])
}

// Middleware resolves the caller. Requests without a token continue as an
// anonymous guest customer; a token that fails verification is rejected.
func Middleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, err := FromHeader(secret, c.GetHeader("Authorization"))
		if errors.Is(err, ErrMissingToken) && c.Query("token") != "" {
			actor, err = Parse(secret, c.Query("token"))
		}
		switch {
		case errors.Is(err, ErrMissingToken):
			actor = lifecycle.Actor{Role: lifecycle.RoleCustomer}
		case err != nil:
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Set(actorKey, actor)
		c.Next()
	}
}

// RequireUser rejects anonymous guests.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if actor := ActorFrom(c); actor.ID == "" && actor.Role != lifecycle.RoleSystem {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

// RequireRoles lets only the listed roles through.
func RequireRoles(roles ...lifecycle.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := ActorFrom(c)
		for _, r := range roles {
			if actor.Role == r {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	}
}

// ActorFrom returns the actor set by Middleware, or an anonymous guest.
func ActorFrom(c *gin.Context) lifecycle.Actor {
	if v, ok := c.Get(actorKey); ok {
		if actor, ok := v.(lifecycle.Actor); ok {
			return actor
		}
	}
	return lifecycle.Actor{Role: lifecycle.RoleCustomer}
}
