package balance

import (
	"context"
	"errors"
	"fmt"
	"time"

	balanceerrors "go-leave/internal/balance/errors"
	"go-leave/internal/domain"
	"go-leave/internal/shared/contextutil"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

// Authorizer is the role check the service needs; rbac.Service satisfies it.
type Authorizer interface {
	RequireRole(caller domain.Caller, role string) error
}

//go:generate mockgen -source=balance_service.go -destination=mock/balance_service_mock.go -package=mock
type Service interface {
	GetMine(ctx context.Context, caller domain.Caller, year int) ([]BalanceResponse, error)
	GetByUser(ctx context.Context, caller domain.Caller, userID string, year int) ([]BalanceResponse, error)
	Override(ctx context.Context, caller domain.Caller, userID string, req OverrideBalanceRequest) (BalanceResponse, error)
}

type service struct {
	db     *gorm.DB
	repo   Repository
	authz  Authorizer
	sf     *singleflight.Group
	now    func() time.Time
	logger *zap.Logger
}

func NewService(db *gorm.DB, repo Repository, authz Authorizer, logger ...*zap.Logger) Service {
	return NewServiceWithClock(db, repo, authz, time.Now, logger...)
}

// NewServiceWithClock uses now to resolve the default year.
func NewServiceWithClock(db *gorm.DB, repo Repository, authz Authorizer, now func() time.Time, logger ...*zap.Logger) Service {
	l := zap.L().Named("balance.service")
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0].Named("balance.service")
	}
	return &service{
		db:     db,
		repo:   repo,
		authz:  authz,
		sf:     &singleflight.Group{},
		now:    now,
		logger: l,
	}
}

func (s *service) resolveYear(year int) int {
	if year == 0 {
		return s.now().UTC().Year()
	}
	return year
}

func (s *service) GetMine(ctx context.Context, caller domain.Caller, year int) ([]BalanceResponse, error) {
	year = s.resolveYear(year)
	key := fmt.Sprintf("balances:%s:%d", caller.UserID, year)

	v, err, shared := s.sf.Do(key, func() (any, error) {
		return s.repo.FindAllByUser(ctx, caller.UserID, year)
	})
	if err != nil {
		contextutil.GetLogger(ctx, s.logger).Error("get my balances failed",
			zap.String("user_id", caller.UserID),
			zap.Int("year", year),
			zap.Error(err),
		)
		return nil, err
	}
	if shared {
		s.logger.Debug("get my balances collapsed", zap.String("key", key))
	}

	return mapToListResponse(v.([]LeaveBalance)), nil
}

func (s *service) GetByUser(ctx context.Context, caller domain.Caller, userID string, year int) ([]BalanceResponse, error) {
	if err := s.authz.RequireRole(caller, domain.RoleAdmin); err != nil {
		return nil, err
	}
	if _, err := uuid.Parse(userID); err != nil {
		return nil, balanceerrors.ErrInvalidUserID
	}
	year = s.resolveYear(year)

	exists, err := s.repo.UserExists(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, balanceerrors.ErrUserNotFound
	}

	balances, err := s.repo.FindAllByUser(ctx, userID, year)
	if err != nil {
		return nil, err
	}
	return mapToListResponse(balances), nil
}

// Override sets the remaining days of one balance: total becomes used + days.
// A missing balance is created with nothing used.
func (s *service) Override(ctx context.Context, caller domain.Caller, userID string, req OverrideBalanceRequest) (BalanceResponse, error) {
	logger := contextutil.GetLogger(ctx, s.logger)
	logger.Debug("override balance requested",
		zap.String("actor_id", caller.UserID),
		zap.String("user_id", userID),
		zap.String("type", req.Type),
		zap.Int("year", req.Year),
	)

	if err := s.authz.RequireRole(caller, domain.RoleAdmin); err != nil {
		return BalanceResponse{}, err
	}

	uid, err := uuid.Parse(userID)
	if err != nil {
		return BalanceResponse{}, balanceerrors.ErrInvalidUserID
	}
	if !domain.IsValidLeaveType(req.Type) {
		return BalanceResponse{}, balanceerrors.ErrInvalidLeaveType
	}
	if req.Days == nil || *req.Days < 0 {
		return BalanceResponse{}, balanceerrors.ErrInvalidDays
	}
	if req.Year < 0 {
		return BalanceResponse{}, balanceerrors.ErrInvalidYear
	}
	year := s.resolveYear(req.Year)
	days := *req.Days

	var result LeaveBalance
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		qtx := s.repo.WithTx(tx)

		exists, err := qtx.UserExists(ctx, userID)
		if err != nil {
			return err
		}
		if !exists {
			return balanceerrors.ErrUserNotFound
		}

		b, err := qtx.FindByUserTypeYearForUpdate(ctx, userID, req.Type, year)
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			created := LeaveBalance{
				ID:     uuid.New(),
				UserID: uid,
				Type:   req.Type,
				Year:   year,
				Total:  days,
			}
			if err := qtx.Create(ctx, &created); err != nil {
				return mapRepositoryError(err)
			}
			result = created
			return nil
		}

		total := b.Used + days
		if err := qtx.UpdateTotal(ctx, b.ID, total); err != nil {
			return err
		}
		b.Total = total
		result = *b
		return nil
	})
	if err != nil {
		if errors.Is(err, balanceerrors.ErrUserNotFound) || errors.Is(err, balanceerrors.ErrBalanceAlreadyExists) {
			logger.Warn("override balance rejected", zap.String("user_id", userID), zap.Error(err))
		} else {
			logger.Error("override balance failed", zap.String("user_id", userID), zap.Error(err))
		}
		return BalanceResponse{}, err
	}

	s.sf.Forget(fmt.Sprintf("balances:%s:%d", userID, year))
	logger.Info("override balance success",
		zap.String("balance_id", result.ID.String()),
		zap.String("user_id", userID),
		zap.String("type", result.Type),
		zap.Int("year", result.Year),
		zap.Int("total", result.Total),
		zap.Int("used", result.Used),
	)
	return mapToResponse(result), nil
}
