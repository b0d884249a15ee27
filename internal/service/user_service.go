package service

import (
	"bookstore-service/internal/config"
	"bookstore-service/internal/entity"
	"bookstore-service/internal/repository"
	"context"
	"errors"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
	"strings"
	"time"
)

// UserStore is the user repository.
type UserStore interface {
	GetUserByID(ctx context.Context, id int64) (*entity.User, error)
	GetUserByEmail(ctx context.Context, email string) (*entity.User, error)
	GetUsers(ctx context.Context) ([]*entity.User, error)
	CreateUser(ctx context.Context, user *entity.User) (*entity.User, error)
	UpdateUser(ctx context.Context, id int64, patch *entity.UserPatch) (*entity.User, error)
	DeleteUser(ctx context.Context, id int64) error
}

type UserService struct {
	repo UserStore
	cfg  config.AuthConfig
	now  func() time.Time
}

// NewUserService creates a new instance of UserService.
func NewUserService(repo UserStore, cfg config.AuthConfig) *UserService {
	return &UserService{repo: repo, cfg: cfg, now: time.Now}
}

// JwtCustomClaims are the claims of an issued access token.
type JwtCustomClaims struct {
	UserID int64  `json:"userId"`
	Name   string `json:"name"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// NewUser is the input of Register and CreateUser.
type NewUser struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
	Status   string `json:"status"`
}

type LoginResult struct {
	User  LoginUser `json:"user"`
	Token string    `json:"token"`
}

// maxPasswordLen is the longest input bcrypt accepts.
const maxPasswordLen = 72

type LoginUser struct {
	Name string `json:"name"`
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Register creates a CUSTOMER account and returns its id.
func (s *UserService) Register(ctx context.Context, name, email, password string) (int64, error) {
	user, err := s.CreateUser(ctx, &NewUser{Name: name, Email: email, Password: password, Role: entity.RoleCustomer})
	if err != nil {
		return 0, err
	}
	return user.ID, nil
}

// Login checks the credentials and issues a signed token. Unknown emails and
// wrong passwords are indistinguishable.
func (s *UserService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	if email == "" || password == "" {
		return nil, invalid("email and password are required")
	}

	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		logger.Error().Err(err).Msg("Error logging in user")
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	now := s.now()
	claims := &JwtCustomClaims{
		UserID: user.ID,
		Name:   user.Name,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.TokenTTL)),
		},
	}

	tkn := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	t, err := tkn.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		logger.Error().Err(err).Msg("Error signing token")
		return nil, err
	}

	return &LoginResult{User: LoginUser{Name: user.Name}, Token: t}, nil
}

func (s *UserService) ListUsers(ctx context.Context) ([]*entity.User, error) {
	users, err := s.repo.GetUsers(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("Error getting users")
		return nil, err
	}
	return users, nil
}

func (s *UserService) GetUser(ctx context.Context, id int64) (*entity.User, error) {
	user, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		logger.Error().Err(err).Msgf("Error getting user by ID %d", id)
		return nil, err
	}
	return user, nil
}

// CreateUser stores a new user. Role defaults to CUSTOMER and status to
// ACTIVE.
func (s *UserService) CreateUser(ctx context.Context, in *NewUser) (*entity.User, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	if in.Role == "" {
		in.Role = entity.RoleCustomer
	}
	if in.Status == "" {
		in.Status = entity.UserStatusActive
	}
	switch {
	case in.Name == "" || in.Email == "" || in.Password == "":
		return nil, invalid("All fields are required")
	case len(in.Password) > maxPasswordLen:
		return nil, invalid("password must be at most %d bytes", maxPasswordLen)
	case !strings.Contains(in.Email, "@"):
		return nil, invalid("invalid email address")
	case in.Role != entity.RoleCustomer && in.Role != entity.RoleSeller && in.Role != entity.RoleAdmin:
		return nil, invalid("unknown role %q", in.Role)
	case in.Status != entity.UserStatusActive && in.Status != entity.UserStatusInactive:
		return nil, invalid("unknown status %q", in.Status)
	}

	hash, err := hashPassword(in.Password)
	if err != nil {
		logger.Error().Err(err).Msg("Error hashing password")
		return nil, err
	}

	user, err := s.repo.CreateUser(ctx, &entity.User{
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         in.Role,
		Status:       in.Status,
		CreatedAt:    s.now().UTC().Truncate(time.Second),
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		logger.Error().Err(err).Msg("Error creating user")
		return nil, err
	}
	return user, nil
}

// UpdateUser applies patch. A new password is hashed before it is stored.
func (s *UserService) UpdateUser(ctx context.Context, id int64, patch *entity.UserPatch) (*entity.User, error) {
	if patch.IsEmpty() {
		return nil, invalid("No fields to update")
	}
	if patch.Password != nil {
		if *patch.Password == "" {
			return nil, invalid("password must not be empty")
		}
		if len(*patch.Password) > maxPasswordLen {
			return nil, invalid("password must be at most %d bytes", maxPasswordLen)
		}
		hash, err := hashPassword(*patch.Password)
		if err != nil {
			logger.Error().Err(err).Msg("Error hashing password")
			return nil, err
		}
		patch.PasswordHash = &hash
	}

	user, err := s.repo.UpdateUser(ctx, id, patch)
	if err != nil {
		var fieldErr *repository.InvalidFieldError
		switch {
		case errors.As(err, &fieldErr):
			return nil, invalid("%s", fieldErr.Error())
		case errors.Is(err, repository.ErrNotFound):
			return nil, ErrNotFound
		case errors.Is(err, repository.ErrDuplicate):
			return nil, ErrEmailTaken
		}
		logger.Error().Err(err).Msgf("Error updating user %d", id)
		return nil, err
	}
	return user, nil
}

func (s *UserService) DeleteUser(ctx context.Context, id int64) error {
	if err := s.repo.DeleteUser(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		logger.Error().Err(err).Msgf("Error deleting user %d", id)
		return err
	}
	return nil
}
