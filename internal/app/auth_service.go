package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"promptchat/internal/model"
	"promptchat/internal/pkg/jwtutil"
)

type AuthService struct {
	userStore     UserStore
	sessions      SessionTokenStore
	jwtSecret     string
	jwtExpiration time.Duration
}

type RegisterInput struct {
	Username string
	Password string
}

type LoginInput struct {
	Username string
	Password string
}

type AuthResult struct {
	Token   string
	TokenID string
	User    *model.User
}

func NewAuthService(userStore UserStore, sessions SessionTokenStore, jwtSecret string, jwtExpiration time.Duration) *AuthService {
	return &AuthService{
		userStore:     userStore,
		sessions:      sessions,
		jwtSecret:     jwtSecret,
		jwtExpiration: jwtExpiration,
	}
}

// Register creates a user with a bcrypt-hashed credential. The raw password
// is never stored. Username uniqueness is case-sensitive.
func (s *AuthService) Register(input RegisterInput) (*model.User, error) {
	username := strings.TrimSpace(input.Username)
	password := input.Password

	if username == "" || password == "" {
		return nil, ErrInvalidInput
	}

	existing, err := s.userStore.GetByUsername(username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrDuplicateUsername
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password failed: %w", err)
	}

	user := &model.User{
		Username:     username,
		PasswordHash: string(hash),
	}
	if err := s.userStore.Create(user); err != nil {
		return nil, err
	}
	return user, nil
}

// Login verifies credentials and establishes an authenticated session: the
// minted token's ID is marked live in the session store for the token
// lifetime. Unknown username and wrong password fail identically.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*AuthResult, error) {
	username := strings.TrimSpace(input.Username)
	password := input.Password
	if username == "" || password == "" {
		return nil, ErrInvalidInput
	}

	user, err := s.userStore.GetByUsername(username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidCredential
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredential
	}

	token, tokenID, err := jwtutil.GenerateToken(s.jwtSecret, s.jwtExpiration, user.ID, user.Username)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.Put(ctx, tokenID, user.ID, s.jwtExpiration); err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, TokenID: tokenID, User: user}, nil
}

// Logout revokes the session behind the token immediately. A token that no
// longer parses is treated as already anonymous.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	claims, err := jwtutil.ParseToken(s.jwtSecret, token)
	if err != nil {
		return nil
	}
	return s.sessions.Delete(ctx, claims.ID)
}

// ValidateSession checks both the token signature and that the session has
// not been revoked. Everything short of a live session is ErrUnauthorized.
func (s *AuthService) ValidateSession(ctx context.Context, token string) (*jwtutil.Claims, error) {
	claims, err := jwtutil.ParseToken(s.jwtSecret, token)
	if err != nil {
		return nil, ErrUnauthorized
	}
	live, err := s.sessions.Exists(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if !live {
		return nil, ErrUnauthorized
	}
	return claims, nil
}

func (s *AuthService) GetUserByID(id uint) (*model.User, error) {
	if id == 0 {
		return nil, ErrInvalidInput
	}
	return s.userStore.GetByID(id)
}
