package auth

import (
	"errors"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/aminrj/storedesk/pkg/model"
)

func secret() []byte {
	if s := os.Getenv("JWT_SECRET"); s != "" {
		return []byte(s)
	}
	return []byte("storedesk_dev_secret")
}

// Claims is the narrow contract with the identity provider: a verified
// identity id, its role, and display attributes for the UI.
type Claims struct {
	UserID string     `json:"user_id"`
	Role   model.Role `json:"role"`
	Name   string     `json:"name,omitempty"`
	Avatar string     `json:"avatar,omitempty"`
	jwt.RegisteredClaims
}

// Identity converts the claims into the model shape used everywhere else.
func (c *Claims) Identity() model.Identity {
	return model.Identity{ID: c.UserID, Role: c.Role, Name: c.Name, Avatar: c.Avatar}
}

type contextKey string

const UserKey contextKey = "user"

// GenerateToken mints a signed token for an identity.
func GenerateToken(id model.Identity) (string, error) {
	claims := &Claims{
		UserID: id.ID,
		Role:   id.Role,
		Name:   id.Name,
		Avatar: id.Avatar,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret())
}

// ValidateToken parses and validates a token.
func ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return secret(), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.UserID == "" {
		return nil, errors.New("token missing user id")
	}
	if claims.Role != model.RoleAdmin {
		claims.Role = model.RoleCustomer
	}
	return claims, nil
}
