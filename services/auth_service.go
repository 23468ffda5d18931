package services

import (
	"comms-lab/auth"
	"comms-lab/domain"
	"comms-lab/errors"
	"comms-lab/infrastructure/storage"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"
)

type IAuthService interface {
	Login(username, password string) (Token, error)
	Register(username, displayName, password string) (Token, error)
	EnsureAdmin(username, password string) (domain.User, error)
}

type AuthService struct {
	log            *slog.Logger
	userRepository storage.IUserRepository
	tokens         *auth.TokenManager
}

type Token string

func (t Token) String() string {
	return string(t)
}

func NewAuthService(log *slog.Logger, repo storage.IUserRepository, tokens *auth.TokenManager) *AuthService {
	return &AuthService{log: log, userRepository: repo, tokens: tokens}
}

func (s *AuthService) Register(username, displayName, password string) (Token, error) {
	valReq := auth.RegisterRequest{
		Username:    strings.TrimSpace(username),
		DisplayName: strings.TrimSpace(displayName),
		Password:    password,
	}

	// Business rules are checked before any expensive cryptographic operation
	if err := auth.ValidateRegister(valReq); err != nil {
		return "", err
	}

	// Hashing stays in the service so the repository never sees plain passwords
	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		return "", fmt.Errorf("hashing failed: %w", err)
	}

	user, err := s.userRepository.CreateUser(valReq.Username, valReq.DisplayName, hashedPassword, []string{domain.RoleUser})
	if err != nil {
		return "", err
	}
	s.log.Info("User registered", "user_id", user.ID, "username", user.Username)

	token, err := s.tokens.Generate(user.ID, user.Roles)
	if err != nil {
		return "", errors.ErrTokenGeneration
	}
	return Token(token), nil
}

func (s *AuthService) Login(username, password string) (Token, error) {
	user, err := s.userRepository.GetByUsername(strings.TrimSpace(username))
	if err != nil {
		// Generic error to prevent user enumeration
		return "", errors.ErrInvalidCredentials
	}

	match, err := auth.ComparePassword(password, user.PasswordHash)
	if err != nil || !match {
		return "", errors.ErrInvalidCredentials
	}

	token, err := s.tokens.Generate(user.ID, user.Roles)
	if err != nil {
		return "", errors.ErrTokenGeneration
	}
	return Token(token), nil
}

// EnsureAdmin creates the bootstrap administrator on first start.
// An existing account with that username is left untouched.
func (s *AuthService) EnsureAdmin(username, password string) (domain.User, error) {
	existing, err := s.userRepository.GetByUsername(username)
	if err == nil {
		return existing, nil
	}
	if !stderrors.Is(err, errors.ErrNotFound) {
		return domain.User{}, err
	}

	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hashing failed: %w", err)
	}
	user, err := s.userRepository.CreateUser(username, "", hashedPassword, []string{domain.RoleUser, domain.RoleAdmin})
	if err != nil {
		return domain.User{}, err
	}
	s.log.Info("Bootstrap admin created", "user_id", user.ID, "username", username)
	return user, nil
}
