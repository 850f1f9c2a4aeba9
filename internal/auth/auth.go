package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/Rahul2570089/mp4-2-mp3/internal/config"
	"github.com/Rahul2570089/mp4-2-mp3/internal/entities"
)

// ErrUnauthorized covers every credential failure. Callers get no detail
// about which part of the check failed.
var ErrUnauthorized = errors.New("unauthorized")

type Claims struct {
	Username string `json:"username"`
	Admin    bool   `json:"admin"`
	jwt.RegisteredClaims
}

type UserSource interface {
	GetUserByEmail(ctx context.Context, email string) (entities.User, error)
}

// Service issues and validates bearer tokens for the gateway.
type Service struct {
	users  UserSource
	secret []byte
	ttl    time.Duration
}

func New(users UserSource, cfg config.AuthConfig) *Service {
	ttlHours := cfg.TokenTTLHours
	if ttlHours <= 0 {
		ttlHours = 24
	}
	return &Service{
		users:  users,
		secret: []byte(cfg.JWTSecret),
		ttl:    time.Duration(ttlHours) * time.Hour,
	}
}

func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return "", ErrUnauthorized
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return "", ErrUnauthorized
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Username: user.Email,
		Admin:    user.IsAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	})

	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (s *Service) Validate(tokenString string) (Claims, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return Claims{}, ErrUnauthorized
	}
	return claims, nil
}
