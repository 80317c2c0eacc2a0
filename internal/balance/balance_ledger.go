package balance

import (
	"context"
	"errors"

	balanceerrors "go-leave/internal/balance/errors"
	"go-leave/internal/domain"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Ledger is the only writer of LeaveBalance.Used. Callers pass their own
// transaction through WithTx so the ledger mutation commits or rolls back with
// the surrounding request change.
//
//go:generate mockgen -source=balance_ledger.go -destination=mock/balance_ledger_mock.go -package=mock
type Ledger interface {
	WithTx(tx *gorm.DB) Ledger
	CheckAvailability(ctx context.Context, userID, leaveType string, year, days int) (*LeaveBalance, error)
	Debit(ctx context.Context, userID, leaveType string, year, days int) (*LeaveBalance, error)
	GrantDefaults(ctx context.Context, userID string, year int) error
}

// DefaultQuotas maps leave type to the total granted at registration.
type DefaultQuotas map[string]int

type ledger struct {
	repo     Repository
	defaults DefaultQuotas
	logger   *zap.Logger
}

func NewLedger(repo Repository, defaults DefaultQuotas, logger ...*zap.Logger) Ledger {
	l := zap.L().Named("balance.ledger")
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0].Named("balance.ledger")
	}
	return &ledger{repo: repo, defaults: defaults, logger: l}
}

func (l *ledger) WithTx(tx *gorm.DB) Ledger {
	return &ledger{repo: l.repo.WithTx(tx), defaults: l.defaults, logger: l.logger}
}

func (l *ledger) CheckAvailability(ctx context.Context, userID, leaveType string, year, days int) (*LeaveBalance, error) {
	b, err := l.repo.FindByUserTypeYear(ctx, userID, leaveType, year)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			l.logger.Warn("leave quota not found",
				zap.String("user_id", userID),
				zap.String("type", leaveType),
				zap.Int("year", year),
			)
			return nil, balanceerrors.ErrQuotaNotFound
		}
		l.logger.Error("check availability lookup failed", zap.Error(err))
		return nil, err
	}

	if b.Remaining() < days {
		l.logger.Warn("insufficient leave balance",
			zap.String("user_id", userID),
			zap.String("type", leaveType),
			zap.Int("year", year),
			zap.Int("remaining", b.Remaining()),
			zap.Int("requested", days),
		)
		return nil, balanceerrors.ErrInsufficientBalance
	}
	return b, nil
}

func (l *ledger) Debit(ctx context.Context, userID, leaveType string, year, days int) (*LeaveBalance, error) {
	b, err := l.repo.FindByUserTypeYearForUpdate(ctx, userID, leaveType, year)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			l.logger.Warn("debit quota not found",
				zap.String("user_id", userID),
				zap.String("type", leaveType),
				zap.Int("year", year),
			)
			return nil, balanceerrors.ErrQuotaNotFound
		}
		l.logger.Error("debit lock balance failed", zap.Error(err))
		return nil, err
	}

	if b.Remaining() < days {
		l.logger.Warn("debit insufficient balance",
			zap.String("balance_id", b.ID.String()),
			zap.Int("remaining", b.Remaining()),
			zap.Int("requested", days),
		)
		return nil, balanceerrors.ErrInsufficientBalance
	}

	affected, err := l.repo.IncrementUsed(ctx, b.ID, days)
	if err != nil {
		l.logger.Error("debit increment failed", zap.String("balance_id", b.ID.String()), zap.Error(err))
		return nil, err
	}
	if affected == 0 {
		return nil, balanceerrors.ErrInsufficientBalance
	}

	b.Used += days
	l.logger.Info("leave balance debited",
		zap.String("balance_id", b.ID.String()),
		zap.String("user_id", userID),
		zap.Int("days", days),
		zap.Int("used", b.Used),
		zap.Int("total", b.Total),
	)
	return b, nil
}

func (l *ledger) GrantDefaults(ctx context.Context, userID string, year int) error {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return balanceerrors.ErrInvalidUserID
	}

	balances := make([]LeaveBalance, 0, len(domain.LeaveTypes))
	for _, t := range domain.LeaveTypes {
		balances = append(balances, LeaveBalance{
			ID:     uuid.New(),
			UserID: uid,
			Type:   t,
			Year:   year,
			Total:  l.defaults[t],
		})
	}

	if err := l.repo.CreateBatch(ctx, balances); err != nil {
		l.logger.Error("grant default balances failed", zap.String("user_id", userID), zap.Error(err))
		return mapRepositoryError(err)
	}
	l.logger.Debug("default balances granted", zap.String("user_id", userID), zap.Int("year", year))
	return nil
}
