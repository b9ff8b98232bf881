package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/neuroboost/study-core/internal/config"
)

// DemoUserID owns every request that carries no token of its own.
const DemoUserID = "demo"

const csrfTokenType = "csrf"

// CSRFClaims are the claims of an anti-forgery token.
type CSRFClaims struct {
	jwt.RegisteredClaims
	TokenType string `json:"token_type"`
}

// CSRFService issues and validates signed anti-forgery tokens.
type CSRFService struct {
	secret []byte
	ttl    time.Duration
}

// NewCSRFService creates a new CSRFService.
func NewCSRFService(cfg *config.Config) *CSRFService {
	return &CSRFService{secret: []byte(cfg.CSRFSecret), ttl: cfg.CSRFTTL}
}

// TTL is the lifetime of issued tokens.
func (s *CSRFService) TTL() time.Duration { return s.ttl }

// Issue signs a token bound to userID.
func (s *CSRFService) Issue(userID string) (string, error) {
	now := time.Now()
	claims := CSRFClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
		TokenType: csrfTokenType,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Validate parses a token and checks its signature, expiry and type.
func (s *CSRFService) Validate(tokenStr string) (*CSRFClaims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &CSRFClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*CSRFClaims)
	if !ok || !token.Valid || claims.TokenType != csrfTokenType {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}
