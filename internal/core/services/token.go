package services

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/shanialy/HRM/internal/core/domain"
)

// TokenService is the identity verifier: it mints the bearer tokens the
// login endpoint hands out and resolves them back to a principal during the
// gateway handshake.
type TokenService struct {
	secretKey []byte
	issuer    string
	ttl       time.Duration
}

func NewTokenService(secret string) *TokenService {
	return &TokenService{
		secretKey: []byte(secret),
		issuer:    "hrm-backend",
		ttl:       24 * time.Hour,
	}
}

func (s *TokenService) GenerateToken(user *domain.User) (string, error) {
	claims := jwt.MapClaims{
		"sub":        user.ID.String(),
		"role":       string(user.Role),
		"department": user.Department,
		"iat":        time.Now().Unix(),
		"exp":        time.Now().Add(s.ttl).Unix(),
		"iss":        s.issuer,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secretKey)
}

// VerifyToken parses and validates the JWT and yields the bound principal.
func (s *TokenService) VerifyToken(tokenStr string) (*domain.Principal, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secretKey, nil
	})
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("invalid claims")
	}
	sub, ok := claims["sub"].(string)
	if !ok {
		return nil, fmt.Errorf("subject not found in token")
	}
	id, err := uuid.Parse(sub)
	if err != nil {
		return nil, fmt.Errorf("invalid subject")
	}
	role, _ := claims["role"].(string)
	department, _ := claims["department"].(string)
	return &domain.Principal{
		ID:         id,
		Role:       domain.Role(role),
		Department: department,
	}, nil
}
