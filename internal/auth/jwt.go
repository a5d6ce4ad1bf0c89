package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"ticketflow/internal/model"
)

const userKey = "auth_user"

var ErrInvalidToken = errors.New("invalid token")

// Verifier checks HS256 access tokens issued by the identity provider.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

func (v *Verifier) Parse(raw string) (*model.AuthUser, error) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !tok.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}
	sub, _ := claims["sub"].(string)
	email, _ := claims["email"].(string)
	if sub == "" || email == "" {
		return nil, ErrInvalidToken
	}
	name, _ := claims["name"].(string)
	return &model.AuthUser{ID: sub, Email: email, Name: name}, nil
}

// Issue signs a token for u. The identity provider owns real issuance; this
// is used by local tooling and tests.
func (v *Verifier) Issue(u model.AuthUser, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"sub":   u.ID,
		"email": u.Email,
		"name":  u.Name,
		"iat":   now.Unix(),
		"exp":   now.Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// OptionalAuth lets anonymous requests through and attaches the verified
// user when a bearer token is present. A present but invalid token is 401.
func OptionalAuth(v *Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.Next()
			return
		}
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			abortUnauthorized(c)
			return
		}
		u, err := v.Parse(strings.TrimSpace(raw))
		if err != nil {
			abortUnauthorized(c)
			return
		}
		c.Set(userKey, u)
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error": model.ErrUnauthorized.Message,
		"code":  model.CodeUnauthorized,
	})
}

// UserFromContext returns the authenticated user, or nil for anonymous calls.
func UserFromContext(c *gin.Context) *model.AuthUser {
	v, ok := c.Get(userKey)
	if !ok {
		return nil
	}
	u, _ := v.(*model.AuthUser)
	return u
}
