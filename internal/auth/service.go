package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Somchit-cmd/adminawaylog/internal/config"
	"github.com/Somchit-cmd/adminawaylog/internal/userctx"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidToken       = errors.New("invalid token")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrLoginDisabled      = errors.New("admin login is disabled")
	ErrDevAuthDisabled    = errors.New("dev auth is disabled")
	ErrForbidden          = errors.New("admin role required")
)

const devSubject = "dev-admin"

// Service — выдача и проверка токенов администратора
type Service struct {
	config *config.Config
	now    func() time.Time
}

func NewService(cfg *config.Config) *Service {
	return &Service{config: cfg, now: time.Now}
}

// Login checks the configured admin credentials and issues a token.
func (s *Service) Login(ctx context.Context, email, password string) (*TokenResponse, error) {
	_ = ctx

	if s.config.AuthMode != config.AuthModeAdmin {
		return nil, ErrLoginDisabled
	}

	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" || email != s.config.AdminEmail {
		// keep timing roughly equal to the hash comparison
		_ = bcrypt.CompareHashAndPassword([]byte(s.config.AdminPasswordHash), []byte(password))
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(s.config.AdminPasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return s.issue(email, time.Duration(s.config.JWTTTLMinutes)*time.Minute)
}

// SignInDev — dev-авторизация, выдаёт admin JWT на 30 дней
func (s *Service) SignInDev(ctx context.Context) (*TokenResponse, error) {
	_ = ctx

	if s.config.AuthMode != config.AuthModeDev {
		return nil, ErrDevAuthDisabled
	}
	return s.issue(devSubject, 30*24*time.Hour)
}

func (s *Service) issue(subject string, ttl time.Duration) (*TokenResponse, error) {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	now := s.now()
	claims := Claims{
		Role: userctx.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    s.config.JWTIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.config.JWTSecret))
	if err != nil {
		return nil, fmt.Errorf("failed to sign JWT: %w", err)
	}

	return &TokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(ttl.Seconds()),
		Role:        userctx.RoleAdmin,
	}, nil
}

// VerifyJWT — проверка JWT токена
func (s *Service) VerifyJWT(tokenString string) (*Principal, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(s.config.JWTSecret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.config.JWTIssuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	if claims.Role != userctx.RoleAdmin {
		return nil, ErrForbidden
	}
	return &Principal{Subject: claims.Subject, Role: claims.Role}, nil
}
