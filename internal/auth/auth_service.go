package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	autherrors "go-leave/internal/auth/errors"
	"go-leave/internal/balance"
	"go-leave/internal/domain"
	"go-leave/internal/shared/contextutil"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	tokenType         = "Bearer"
	minPasswordLength = 6
)

//go:generate mockgen -source=auth_service.go -destination=mock/auth_service_mock.go -package=mock
type Service interface {
	Register(ctx context.Context, req RegisterRequest) (AuthResponse, error)
	Login(ctx context.Context, email, password string) (AuthResponse, error)
	GetMe(ctx context.Context, userID string) (*UserResponse, error)
}

type Config struct {
	JWTSecret string
	TokenTTL  time.Duration
	// AdminBootstrapEmail registers with role ADMIN instead of USER.
	AdminBootstrapEmail string
	Now                 func() time.Time
}

type service struct {
	db     *gorm.DB
	repo   Repository
	ledger balance.Ledger
	cfg    Config
	logger *zap.Logger
}

func NewService(db *gorm.DB, repo Repository, ledger balance.Ledger, cfg Config, logger ...*zap.Logger) Service {
	l := zap.L().Named("auth.service")
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0].Named("auth.service")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 24 * time.Hour
	}
	return &service{db: db, repo: repo, ledger: ledger, cfg: cfg, logger: l}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *service) roleFor(email string) string {
	bootstrap := normalizeEmail(s.cfg.AdminBootstrapEmail)
	if bootstrap != "" && bootstrap == email {
		return domain.RoleAdmin
	}
	return domain.RoleUser
}

func (s *service) Register(ctx context.Context, req RegisterRequest) (AuthResponse, error) {
	logger := contextutil.GetLogger(ctx, s.logger)
	email := normalizeEmail(req.Email)
	logger.Debug("register requested", zap.String("email", email))

	if len(req.Password) < minPasswordLength {
		return AuthResponse{}, autherrors.ErrPasswordTooShort
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		logger.Error("register hash password failed", zap.Error(err))
		return AuthResponse{}, err
	}

	var phone *string
	if req.Phone != nil && strings.TrimSpace(*req.Phone) != "" {
		p := strings.TrimSpace(*req.Phone)
		phone = &p
	}

	user := &User{
		ID:       uuid.New(),
		Name:     strings.TrimSpace(req.Name),
		Email:    email,
		Phone:    phone,
		Password: string(hashed),
		Role:     s.roleFor(email),
	}
	year := s.cfg.Now().UTC().Year()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, user); err != nil {
			return mapRepositoryError(err)
		}
		return s.ledger.WithTx(tx).GrantDefaults(ctx, user.ID.String(), year)
	})
	if err != nil {
		if errors.Is(err, autherrors.ErrEmailAlreadyRegistered) || errors.Is(err, autherrors.ErrPhoneAlreadyRegistered) {
			logger.Warn("register conflict", zap.String("email", email), zap.Error(err))
		} else {
			logger.Error("register persist failed", zap.String("email", email), zap.Error(err))
		}
		return AuthResponse{}, err
	}

	resp, err := s.issueToken(*user)
	if err != nil {
		return AuthResponse{}, err
	}
	logger.Info("register success",
		zap.String("user_id", user.ID.String()),
		zap.String("role", user.Role),
	)
	return resp, nil
}

func (s *service) Login(ctx context.Context, email, password string) (AuthResponse, error) {
	logger := contextutil.GetLogger(ctx, s.logger)
	email = normalizeEmail(email)

	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Warn("login unknown email", zap.String("email", email))
			return AuthResponse{}, autherrors.ErrInvalidCredentials
		}
		logger.Error("login lookup failed", zap.Error(err))
		return AuthResponse{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		logger.Warn("login password mismatch", zap.String("user_id", user.ID.String()))
		return AuthResponse{}, autherrors.ErrInvalidCredentials
	}

	resp, err := s.issueToken(*user)
	if err != nil {
		return AuthResponse{}, err
	}
	logger.Info("login success", zap.String("user_id", user.ID.String()))
	return resp, nil
}

func (s *service) GetMe(ctx context.Context, userID string) (*UserResponse, error) {
	id, err := uuid.Parse(userID)
	if err != nil {
		return nil, autherrors.ErrInvalidUserID
	}

	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepositoryError(err)
	}

	resp := mapToUserResponse(*u)
	return &resp, nil
}

func (s *service) issueToken(user User) (AuthResponse, error) {
	expiresAt := s.cfg.Now().Add(s.cfg.TokenTTL)
	token, err := s.generateToken(user, expiresAt)
	if err != nil {
		s.logger.Error("sign access token failed", zap.String("user_id", user.ID.String()), zap.Error(err))
		return AuthResponse{}, autherrors.ErrTokenGenerationFailed
	}
	return AuthResponse{
		AccessToken: token,
		TokenType:   tokenType,
		ExpiresAt:   expiresAt.Unix(),
		User:        mapToUserResponse(user),
	}, nil
}

func (s *service) generateToken(user User, expiresAt time.Time) (string, error) {
	claims := jwt.MapClaims{
		"sub":   user.ID.String(),
		"email": user.Email,
		"role":  user.Role,
		"exp":   expiresAt.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.JWTSecret))
}
