package services

import (
	"fmt"
	"time"

	"meowchat/auth"
	"meowchat/domain"
	"meowchat/errors"
	"meowchat/repositories"
)

type IAuthService interface {
	Register(username, email, password string) (Token, domain.Identity, error)
	Login(username, password string) (Token, domain.Identity, error)
}

type Token string

type AuthService struct {
	userRepository    repositories.IUserRepository
	secret            []byte
	authTokenDuration time.Duration
}

func NewAuthService(repo repositories.IUserRepository, secret []byte,
	authTokenDuration time.Duration) IAuthService {
	return &AuthService{
		userRepository:    repo,
		secret:            secret,
		authTokenDuration: authTokenDuration,
	}
}

// dummyHash keeps login latency flat when the username does not exist,
// to prevent account enumeration through timing.
var dummyHash, _ = auth.HashPassword("meowchat-timing-equalizer")

func (s *AuthService) Register(username, email, password string) (Token, domain.Identity, error) {
	valReq := auth.SignupRequest{
		Username: username,
		Email:    email,
		Password: password,
	}

	// 1. Validate business rules before any expensive cryptographic work.
	if err := auth.ValidateSignup(valReq); err != nil {
		return "", domain.Identity{}, fmt.Errorf("%w: %v", errors.ErrValidation, err)
	}

	// 2. Hash the password in the service layer so the repository never
	// sees a plain password.
	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		return "", domain.Identity{}, fmt.Errorf("hashing failed: %w", err)
	}

	// 3. Persist the account. Propagates ErrUserAlreadyExists when the
	// username or email is taken.
	user, err := s.userRepository.CreateUser(username, email, hashedPassword)
	if err != nil {
		return "", domain.Identity{}, err
	}

	identity := domain.Identity{ID: user.ID, Username: user.Username}

	// 4. Issue the initial session token.
	token, err := auth.GenerateToken(identity, s.secret, s.authTokenDuration)
	if err != nil {
		return "", domain.Identity{}, errors.ErrTokenGeneration
	}

	return Token(token), identity, nil
}

func (s *AuthService) Login(username, password string) (Token, domain.Identity, error) {
	user, err := s.userRepository.GetUserByUsername(username)
	if err != nil {
		// Burn a comparison anyway so a missing account costs the same
		// as a wrong password. Generic error to prevent enumeration.
		_, _ = auth.ComparePassword(password, dummyHash)
		return "", domain.Identity{}, errors.ErrInvalidCredentials
	}

	match, err := auth.ComparePassword(password, user.PasswordHash)
	if err != nil || !match {
		return "", domain.Identity{}, errors.ErrInvalidCredentials
	}

	identity := domain.Identity{ID: user.ID, Username: user.Username}

	token, err := auth.GenerateToken(identity, s.secret, s.authTokenDuration)
	if err != nil {
		return "", domain.Identity{}, errors.ErrTokenGeneration
	}

	return Token(token), identity, nil
}
