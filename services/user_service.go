package services

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/IsaacStallan/vivify-wellness-platform-sub000/models"
	"github.com/IsaacStallan/vivify-wellness-platform-sub000/repository"
	"github.com/IsaacStallan/vivify-wellness-platform-sub000/utils"
)

var ErrInvalidCredentials = errors.New("invalid username or password")

type RegisterInput struct {
	Username    string      `json:"username" validate:"required,min=3,max=50,alphanum"`
	Password    string      `json:"password" validate:"required,min=6,max=72"`
	DisplayName string      `json:"displayName" validate:"max=80"`
	School      string      `json:"school" validate:"max=120"`
	Role        models.Role `json:"role" validate:"omitempty,oneof=student teacher"`
}

type LoginInput struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type ProfileInput struct {
	DisplayName *string `json:"displayName" validate:"omitempty,max=80"`
	School      *string `json:"school" validate:"omitempty,max=120"`
}

type AuthResult struct {
	Token string              `json:"token"`
	User  models.UserResponse `json:"user"`
}

type UserService struct {
	repo      repository.Repository
	cache     CacheInvalidator
	logger    *zap.Logger
	jwtSecret []byte
	jwtTTL    time.Duration
}

func NewUserService(repo repository.Repository, cache CacheInvalidator, logger *zap.Logger, jwtSecret string, jwtTTL time.Duration) *UserService {
	return &UserService{
		repo:      repo,
		cache:     cache,
		logger:    logger,
		jwtSecret: []byte(jwtSecret),
		jwtTTL:    jwtTTL,
	}
}

func (s *UserService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	in.Username = strings.TrimSpace(in.Username)
	if err := validateInput(in); err != nil {
		s.logger.Warn("register_validation_failed", zap.String("username", in.Username), zap.Error(err))
		return nil, err
	}
	if in.Role == "" {
		in.Role = models.RoleStudent
	}

	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		s.logger.Error("register_hash_failed", zap.Error(err))
		return nil, errors.Wrap(err, "hash password")
	}

	u := &models.User{
		Username:     in.Username,
		DisplayName:  strings.TrimSpace(in.DisplayName),
		PasswordHash: hash,
		Role:         in.Role,
		School:       strings.TrimSpace(in.School),
		IsActive:     true,
	}
	if err := s.repo.CreateUser(ctx, u); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			s.logger.Warn("register_user_exists", zap.String("username", in.Username))
		}
		return nil, err
	}

	s.logger.Info("register_success",
		zap.String("user_id", u.ID),
		zap.String("username", u.Username),
		zap.String("role", string(u.Role)),
	)
	return s.issue(u)
}

func (s *UserService) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	u, err := s.repo.GetUserByUsername(ctx, strings.TrimSpace(in.Username))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Warn("login_failed", zap.String("username", in.Username), zap.String("reason", "unknown_user"))
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !u.IsActive || !utils.CheckPasswordHash(in.Password, u.PasswordHash) {
		s.logger.Warn("login_failed", zap.String("username", in.Username), zap.String("reason", "bad_password"))
		return nil, ErrInvalidCredentials
	}
	s.logger.Info("login_success", zap.String("user_id", u.ID))
	return s.issue(u)
}

func (s *UserService) issue(u *models.User) (*AuthResult, error) {
	token, err := utils.GenerateToken(u.ID, u.Username, string(u.Role), s.jwtSecret, s.jwtTTL)
	if err != nil {
		s.logger.Error("token_generation_failed", zap.String("user_id", u.ID), zap.Error(err))
		return nil, errors.Wrap(err, "generate token")
	}
	return &AuthResult{Token: token, User: u.Response()}, nil
}

func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	return s.repo.GetUser(ctx, id)
}

// UpdateProfile changes display name and school; nil fields are left alone.
func (s *UserService) UpdateProfile(ctx context.Context, id string, in ProfileInput) (*models.User, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	u, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.DisplayName != nil {
		u.DisplayName = strings.TrimSpace(*in.DisplayName)
	}
	if in.School != nil {
		u.School = strings.TrimSpace(*in.School)
	}
	if err := s.repo.UpdateProfile(ctx, u); err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.InvalidateUser(ctx, id); err != nil {
			s.logger.Warn("cache_invalidate_failed", zap.String("user_id", id), zap.Error(err))
		}
	}
	s.logger.Info("profile_updated", zap.String("user_id", id))
	return u, nil
}

func (s *UserService) List(ctx context.Context, q repository.UserQuery) ([]models.User, error) {
	if q.Role != "" && !q.Role.Valid() {
		return nil, errors.Wrapf(ErrValidation, "unknown role %q", q.Role)
	}
	if q.SortBy == "" {
		q.SortBy = repository.SortNewest
	}
	return s.repo.ListUsers(ctx, q)
}

// SeedAdmin creates the admin account once. An existing user with the same
// name is left untouched.
func (s *UserService) SeedAdmin(ctx context.Context, username, password string) error {
	if username == "" || password == "" {
		return nil
	}
	if _, err := s.repo.GetUserByUsername(ctx, username); err == nil {
		return nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return err
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		return errors.Wrap(err, "hash admin password")
	}
	u := &models.User{
		Username:     username,
		DisplayName:  "Administrator",
		PasswordHash: hash,
		Role:         models.RoleAdmin,
		IsActive:     true,
	}
	if err := s.repo.CreateUser(ctx, u); err != nil && !errors.Is(err, repository.ErrConflict) {
		return err
	}
	s.logger.Info("admin_seeded", zap.String("username", username))
	return nil
}
