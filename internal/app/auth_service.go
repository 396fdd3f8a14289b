package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"buildscope/internal/model"
	"buildscope/internal/pkg/jwtutil"
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrUsernameExists    = errors.New("username already exists")
	ErrEmailExists       = errors.New("email already exists")
	ErrInvalidCredential = errors.New("invalid username or password")
)

type UserStore interface {
	Create(ctx context.Context, user *model.User) error
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByID(ctx context.Context, id uint) (*model.User, error)
}

// ProjectCounter reports how many projects a user owns.
type ProjectCounter interface {
	CountByOwner(ctx context.Context, ownerID uint) (int64, error)
}

type AuthService struct {
	users     UserStore
	projects  ProjectCounter
	jwtSecret string
	tokenTTL  time.Duration
}

type RegisterInput struct {
	Username string
	Email    string
	Company  string
	Password string
}

// LoginInput identifies the account by username or, when it contains an
// "@", by email.
type LoginInput struct {
	Login    string
	Password string
}

type AuthResult struct {
	Token string
	User  *model.User
}

// Profile is the signed-in user with their project ownership summary.
type Profile struct {
	User         *model.User
	ProjectCount int64
}

func NewAuthService(users UserStore, projects ProjectCounter, jwtSecret string, tokenTTL time.Duration) *AuthService {
	return &AuthService{
		users:     users,
		projects:  projects,
		jwtSecret: jwtSecret,
		tokenTTL:  tokenTTL,
	}
}

func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	user := &model.User{
		Username: strings.TrimSpace(input.Username),
		Email:    normalizeEmail(input.Email),
		Company:  strings.TrimSpace(input.Company),
	}
	if user.Username == "" || user.Email == "" || len(input.Password) < 8 {
		return nil, ErrInvalidInput
	}

	if taken, err := s.users.GetByUsername(ctx, user.Username); err != nil {
		return nil, err
	} else if taken != nil {
		return nil, ErrUsernameExists
	}
	if taken, err := s.users.GetByEmail(ctx, user.Email); err != nil {
		return nil, err
	} else if taken != nil {
		return nil, ErrEmailExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password failed: %w", err)
	}
	user.PasswordHash = string(hash)
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return s.issue(user)
}

func (s *AuthService) Login(ctx context.Context, input LoginInput) (*AuthResult, error) {
	login := strings.TrimSpace(input.Login)
	if login == "" || input.Password == "" {
		return nil, ErrInvalidInput
	}

	var user *model.User
	var err error
	if strings.Contains(login, "@") {
		user, err = s.users.GetByEmail(ctx, normalizeEmail(login))
	} else {
		user, err = s.users.GetByUsername(ctx, login)
	}
	if err != nil {
		return nil, err
	}
	// Unknown accounts and wrong passwords are indistinguishable.
	if user == nil || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)) != nil {
		return nil, ErrInvalidCredential
	}
	return s.issue(user)
}

// Profile returns nil, nil when the account behind a valid token is gone.
func (s *AuthService) Profile(ctx context.Context, userID uint) (*Profile, error) {
	if userID == 0 {
		return nil, ErrInvalidInput
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil || user == nil {
		return nil, err
	}
	count, err := s.projects.CountByOwner(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &Profile{User: user, ProjectCount: count}, nil
}

func (s *AuthService) issue(user *model.User) (*AuthResult, error) {
	token, err := jwtutil.GenerateToken(s.jwtSecret, s.tokenTTL, user.ID, user.Username)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, User: user}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
