package app

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"aria-chat/internal/identity"
	"aria-chat/internal/model"
	"aria-chat/internal/pkg/jwtutil"
)

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrEmailExists        = errors.New("email already exists")
	ErrInvalidCredential  = errors.New("invalid email or password")
	ErrRegistrationClosed = errors.New("registration is disabled")
)

type AdminUserStore interface {
	Create(ctx context.Context, user *model.AdminUser) error
	GetByEmail(ctx context.Context, email string) (*model.AdminUser, error)
	GetByID(ctx context.Context, id uint) (*model.AdminUser, error)
}

// AuthService manages local admin accounts.
type AuthService struct {
	users         AdminUserStore
	jwtSecret     string
	jwtExpiration time.Duration
	allowRegister bool
}

type RegisterInput struct {
	Email    string
	Name     string
	Password string
}

type LoginInput struct {
	Email    string
	Password string
}

type AuthResult struct {
	Token string
	User  *model.AdminUser
}

func NewAuthService(users AdminUserStore, jwtSecret string, jwtExpiration time.Duration, allowRegister bool) *AuthService {
	return &AuthService{
		users:         users,
		jwtSecret:     jwtSecret,
		jwtExpiration: jwtExpiration,
		allowRegister: allowRegister,
	}
}

func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	if !s.allowRegister {
		return nil, ErrRegistrationClosed
	}

	email := strings.TrimSpace(strings.ToLower(input.Email))
	name := strings.TrimSpace(input.Name)
	password := strings.TrimSpace(input.Password)
	if email == "" || len(password) < 8 {
		return nil, ErrInvalidInput
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, ErrInvalidInput
	}
	if name == "" {
		name = email
	}

	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password failed: %w", err)
	}

	user := &model.AdminUser{
		Email:        email,
		Name:         name,
		PasswordHash: string(hash),
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return s.issue(user)
}

func (s *AuthService) Login(ctx context.Context, input LoginInput) (*AuthResult, error) {
	email := strings.TrimSpace(strings.ToLower(input.Email))
	password := strings.TrimSpace(input.Password)
	if email == "" || password == "" {
		return nil, ErrInvalidInput
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidCredential
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredential
	}
	return s.issue(user)
}

func (s *AuthService) GetUserByID(ctx context.Context, id uint) (*model.AdminUser, error) {
	if id == 0 {
		return nil, ErrInvalidInput
	}
	return s.users.GetByID(ctx, id)
}

func (s *AuthService) issue(user *model.AdminUser) (*AuthResult, error) {
	token, err := jwtutil.GenerateToken(
		s.jwtSecret,
		s.jwtExpiration,
		identity.LocalIssuer,
		identity.LocalSubject(user.ID),
		user.Name,
		user.Email,
	)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, User: user}, nil
}
