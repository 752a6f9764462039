package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"go.uber.org/zap"

	"teamboard/internal/model"
	"teamboard/internal/repository"
	"teamboard/pkg/rbac"
	"teamboard/pkg/util"
)

// AuthResult is returned by signup and login.
type AuthResult struct {
	model.Profile
	Token string `json:"token"`
}

type SignupInput struct {
	Name     string
	Email    string
	Password string
}

// UpdateProfileInput holds the provided fields; empty means leave as is.
type UpdateProfileInput struct {
	Name     string
	Email    string
	Avatar   *string
	Password string
}

type AuthService struct {
	users     UserStore
	jwtSecret string
	tokenTTL  time.Duration
	logger    *zap.Logger
}

func NewAuthService(users UserStore, jwtSecret string, tokenTTL time.Duration, logger *zap.Logger) *AuthService {
	return &AuthService{
		users:     users,
		jwtSecret: jwtSecret,
		tokenTTL:  tokenTTL,
		logger:    logger,
	}
}

// Signup creates a user and returns a session token.
func (s *AuthService) Signup(ctx context.Context, in SignupInput) (*AuthResult, error) {
	name := strings.TrimSpace(in.Name)
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if name == "" || email == "" || in.Password == "" {
		return nil, BadRequest("Please add all fields")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, BadRequest("Invalid email")
	}

	_, err := s.users.FindByEmail(ctx, email)
	switch {
	case err == nil:
		return nil, BadRequest("User already exists")
	case !errors.Is(err, repository.ErrNotFound):
		return nil, Internal("Server Error", err)
	}

	hash, err := util.HashPassword(in.Password)
	if err != nil {
		return nil, Internal("Server Error", err)
	}

	ts := now()
	u := &model.User{
		ID:           newID(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         rbac.RoleMember,
		CreatedAt:    ts,
		UpdatedAt:    ts,
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, BadRequest("User already exists")
		}
		return nil, Internal("Server Error", err)
	}

	s.logger.Info("User registered", zap.String("user_id", u.ID))
	return s.session(u)
}

// Login checks credentials and returns a session token.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	u, err := s.users.FindByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, Unauthorized("Invalid email or password")
		}
		return nil, Internal("Server Error", err)
	}
	if !util.CheckPassword(password, u.PasswordHash) {
		return nil, Unauthorized("Invalid email or password")
	}
	return s.session(u)
}

func (s *AuthService) session(u *model.User) (*AuthResult, error) {
	token, err := util.GenerateJWT(u.ID, s.jwtSecret, s.tokenTTL)
	if err != nil {
		return nil, Internal("Server Error", err)
	}
	return &AuthResult{Profile: u.Profile(), Token: token}, nil
}

// VerifyToken resolves a session token to its user id.
func (s *AuthService) VerifyToken(token string) (string, error) {
	return util.ParseJWT(token, s.jwtSecret)
}

func (s *AuthService) Profile(ctx context.Context, userID string) (*model.Profile, error) {
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, storeErr(err, "User not found")
	}
	p := u.Profile()
	return &p, nil
}

// UpdateProfile changes name, email, avatar and password. A changed email must
// not belong to someone else.
func (s *AuthService) UpdateProfile(ctx context.Context, userID string, in UpdateProfileInput) (*AuthResult, error) {
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, storeErr(err, "User not found")
	}

	if name := strings.TrimSpace(in.Name); name != "" {
		u.Name = name
	}
	if email := strings.ToLower(strings.TrimSpace(in.Email)); email != "" && email != u.Email {
		if _, err := mail.ParseAddress(email); err != nil {
			return nil, BadRequest("Invalid email")
		}
		u.Email = email
	}
	if in.Avatar != nil {
		u.Avatar = *in.Avatar
	}
	u.PasswordHash = ""
	if in.Password != "" {
		hash, err := util.HashPassword(in.Password)
		if err != nil {
			return nil, Internal("Server Error", err)
		}
		u.PasswordHash = hash
	}
	u.UpdatedAt = now()

	if err := s.users.UpdateProfile(ctx, u); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, BadRequest("Email already in use")
		}
		return nil, storeErr(err, "User not found")
	}
	return s.session(u)
}

// ListUsers returns every user's public summary.
func (s *AuthService) ListUsers(ctx context.Context) ([]model.UserSummary, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, Internal("Server Error", err)
	}
	out := make([]model.UserSummary, 0, len(users))
	for i := range users {
		out = append(out, users[i].Summary())
	}
	return out, nil
}
