package auth

import (
	"errors"
	"fmt"
	"time"

	"dcspace-backend/internal/config"
	"dcspace-backend/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

// Claims identify the caller. Tokens are issued by the identity service;
// this backend only verifies them.
type Claims struct {
	UserID     string `json:"user_id"`
	Role       string `json:"role"`
	ProviderID string `json:"provider_id,omitempty"`
	jwt.RegisteredClaims
}

type JWTManager struct {
	cfg *config.Config
}

func NewJWTManager(cfg *config.Config) *JWTManager {
	return &JWTManager{cfg: cfg}
}

// GenerateToken signs a token for caller. Used by the token subcommand and
// tests.
func (j *JWTManager) GenerateToken(caller models.Caller) (string, error) {
	now := time.Now()
	expirationTime := now.Add(time.Duration(j.cfg.JWT.ExpirationHours) * time.Hour)

	claims := &Claims{
		UserID: caller.Identity(),
		Role:   caller.Role(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   caller.Identity(),
			ExpiresAt: jwt.NewNumericDate(expirationTime),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    j.cfg.JWT.Issuer,
		},
	}
	if p, ok := caller.(models.Provider); ok {
		claims.ProviderID = p.ProviderID
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(j.cfg.JWT.Secret))
}

// ValidateToken verifies a JWT token and returns the claims
func (j *JWTManager) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		// Verify signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return []byte(j.cfg.JWT.Secret), nil
	}, jwt.WithIssuer(j.cfg.JWT.Issuer))

	if err != nil {
		return nil, err
	}

	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	return claims, nil
}

// ToCaller maps verified claims onto the closed caller union.
func (c *Claims) ToCaller() (models.Caller, error) {
	if c.UserID == "" {
		return nil, errors.New("token has no user id")
	}
	switch c.Role {
	case models.RoleCustomer:
		return models.Customer{ID: c.UserID}, nil
	case models.RoleProvider:
		if c.ProviderID == "" {
			return nil, errors.New("provider token has no provider id")
		}
		return models.Provider{ID: c.UserID, ProviderID: c.ProviderID}, nil
	case models.RoleAdmin:
		return models.Admin{ID: c.UserID}, nil
	default:
		return nil, fmt.Errorf("unknown role %q", c.Role)
	}
}
