package services

import (
	"log"

	"github.com/google/uuid"

	"libtrack/internal/config"
	"libtrack/internal/core/domain"
	"libtrack/internal/pkg/jwt"
	"libtrack/internal/pkg/password"
)

// AuthService authenticates the single patron. There is no user table;
// the password is checked against a bcrypt hash from the environment and
// the card number comes from the library configuration.
type AuthService struct {
	cfg *config.Config
}

// NewAuthService creates a new auth service
func NewAuthService(cfg *config.Config) *AuthService {
	return &AuthService{cfg: cfg}
}

// Login verifies the patron password and issues a token pair
func (s *AuthService) Login(pass string) (*domain.TokenPair, error) {
	if s.cfg.Patron.PasswordHash == "" {
		log.Println("⚠️ PATRON_PASSWORD_HASH not configured; login rejected")
		return nil, domain.ErrInvalidCredentials
	}
	if !password.Verify(pass, s.cfg.Patron.PasswordHash) {
		return nil, domain.ErrInvalidCredentials
	}

	tokens, err := s.generateTokens()
	if err != nil {
		return nil, err
	}

	log.Println("✅ Patron logged in")
	return tokens, nil
}

// Refresh issues a new token pair from a valid refresh token
func (s *AuthService) Refresh(refreshToken string) (*domain.TokenPair, error) {
	if _, err := jwt.ValidateRefreshToken(refreshToken, s.cfg.JWT.RefreshSecret); err != nil {
		return nil, err
	}
	return s.generateTokens()
}

// ValidateAccessToken validates an access token
func (s *AuthService) ValidateAccessToken(accessToken string) (*jwt.Claims, error) {
	return jwt.ValidateAccessToken(accessToken, s.cfg.JWT.Secret)
}

func (s *AuthService) generateTokens() (*domain.TokenPair, error) {
	cardNo := s.cfg.Library.CardNo

	accessToken, err := jwt.GenerateAccessToken(cardNo, s.cfg.JWT.Secret, s.cfg.JWT.AccessTokenMins)
	if err != nil {
		return nil, err
	}

	refreshToken, err := jwt.GenerateRefreshToken(cardNo, uuid.NewString(), s.cfg.JWT.RefreshSecret, s.cfg.JWT.RefreshTokenDays)
	if err != nil {
		return nil, err
	}

	return &domain.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}
