package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type UserRole string

const (
	RoleOwner   UserRole = "OWNER"
	RoleManager UserRole = "MANAGER"
	RoleStaff   UserRole = "STAFF"
)

// Claims are issued by the backoffice login; this service only verifies them.
type Claims struct {
	UserID      string   `json:"userId"`
	Role        UserRole `json:"role"`
	LocationID  string   `json:"locationId"`
	Permissions []string `json:"permissions,omitempty"`
	jwt.RegisteredClaims
}

func ParseBearerToken(authHeader string) string {
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func VerifyAccessToken(tokenString string, secret string) (*Claims, error) {
	if tokenString == "" {
		return nil, errors.New("token required")
	}
	if secret == "" {
		return nil, errors.New("token verification disabled")
	}

	claims := &Claims{}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{"HS256"}))
	_, err := parser.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}

	if claims.ExpiresAt == nil || claims.ExpiresAt.Time.Before(time.Now()) {
		return nil, errors.New("token expired")
	}
	return claims, nil
}

// HasPermission reports whether the role or explicit grants cover perm.
// Owners and managers hold every permission.
func (c *Claims) HasPermission(perm StaffPermission) bool {
	if c.Role == RoleOwner || c.Role == RoleManager {
		return true
	}
	for _, p := range c.Permissions {
		if p == string(perm) {
			return true
		}
	}
	return false
}
