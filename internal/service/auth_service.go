package service

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/reset980reset980/write0917/internal/models"
)

const (
	RoleTeacher = "teacher"
	issuer      = "write0917"
)

type TeacherClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type AuthService interface {
	LoginTeacher(password string) (*models.TokenResponse, error)
	VerifyToken(token string) error
}

type authService struct {
	password []byte
	secret   []byte
	ttl      time.Duration
	logger   zerolog.Logger
	now      func() time.Time
}

// NewAuthService signs tokens with secret. An empty secret is replaced by a
// random one, which invalidates issued tokens on every restart.
func NewAuthService(teacherPassword, secret string, ttl time.Duration, logger zerolog.Logger) (AuthService, error) {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("failed to generate jwt secret: %w", err)
		}
		logger.Warn().Msg("auth.jwt_secret is empty, using a random secret")
	}
	if teacherPassword == "" {
		logger.Warn().Msg("auth.teacher_password is empty, teacher login is disabled")
	}
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}

	return &authService{
		password: []byte(teacherPassword),
		secret:   key,
		ttl:      ttl,
		logger:   logger,
		now:      time.Now,
	}, nil
}

func (s *authService) LoginTeacher(password string) (*models.TokenResponse, error) {
	if len(s.password) == 0 {
		return nil, ErrTeacherAuthOff
	}
	if subtle.ConstantTimeCompare([]byte(password), s.password) != 1 {
		s.logger.Warn().Msg("Teacher login rejected")
		return nil, ErrInvalidPassword
	}

	now := s.now()
	expiresAt := now.Add(s.ttl)
	claims := TeacherClaims{
		Role: RoleTeacher,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	s.logger.Info().Msg("Teacher logged in")
	return &models.TokenResponse{Token: token, ExpiresAt: expiresAt.UTC()}, nil
}

func (s *authService) VerifyToken(tokenString string) error {
	claims := &TeacherClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	}, jwt.WithIssuer(issuer), jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid || claims.Role != RoleTeacher {
		return ErrInvalidToken
	}
	return nil
}
