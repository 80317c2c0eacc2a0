package leave

import (
	"context"
	"errors"
	"time"

	"go-leave/internal/balance"
	"go-leave/internal/domain"
	leaveerrors "go-leave/internal/leave/errors"
	"go-leave/internal/rbac"
	"go-leave/internal/shared/apperror"
	"go-leave/internal/shared/contextutil"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Authorizer is the slice of rbac.Service the lifecycle depends on.
type Authorizer interface {
	Enforce(role, resource, action string) (bool, error)
	RequireRole(caller domain.Caller, role string) error
}

//go:generate mockgen -source=leave_service.go -destination=mock/leave_service_mock.go -package=mock
type Service interface {
	Create(ctx context.Context, caller domain.Caller, req CreateLeaveRequest) (LeaveResponse, error)
	GetAll(ctx context.Context, caller domain.Caller, filter ListLeaveFilter) ([]LeaveResponse, error)
	GetByID(ctx context.Context, caller domain.Caller, id string) (LeaveResponse, error)
	Approve(ctx context.Context, caller domain.Caller, id string, comment *string) (LeaveResponse, error)
	Reject(ctx context.Context, caller domain.Caller, id string, comment *string) (LeaveResponse, error)
}

type service struct {
	db      *gorm.DB
	repo    Repository
	ledger  balance.Ledger
	authz   Authorizer
	metrics *Metrics
	now     func() time.Time
	logger  *zap.Logger
}

func NewService(db *gorm.DB, repo Repository, ledger balance.Ledger, authz Authorizer, logger ...*zap.Logger) Service {
	return NewInstrumentedService(db, repo, ledger, authz, nil, time.Now, logger...)
}

// NewInstrumentedService records lifecycle counters on metrics and reads the
// current quota year from now.
func NewInstrumentedService(
	db *gorm.DB,
	repo Repository,
	ledger balance.Ledger,
	authz Authorizer,
	metrics *Metrics,
	now func() time.Time,
	logger ...*zap.Logger,
) Service {
	l := zap.L().Named("leave.service")
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0].Named("leave.service")
	}
	if now == nil {
		now = time.Now
	}
	return &service{
		db:      db,
		repo:    repo,
		ledger:  ledger,
		authz:   authz,
		metrics: metrics,
		now:     now,
		logger:  l,
	}
}

func parseDate(v string) (time.Time, error) {
	t, err := domain.ParseDate(v)
	if err != nil {
		return time.Time{}, leaveerrors.ErrInvalidDateFormat
	}
	return t, nil
}

func (s *service) Create(ctx context.Context, caller domain.Caller, req CreateLeaveRequest) (LeaveResponse, error) {
	logger := contextutil.GetLogger(ctx, s.logger)
	logger.Debug("create leave requested",
		zap.String("user_id", caller.UserID),
		zap.String("type", req.Type),
		zap.String("start_date", req.StartDate),
		zap.String("end_date", req.EndDate),
	)

	userID, err := uuid.Parse(caller.UserID)
	if err != nil {
		return LeaveResponse{}, leaveerrors.ErrInvalidUserID
	}
	if !domain.IsValidLeaveType(req.Type) {
		return LeaveResponse{}, leaveerrors.ErrInvalidLeaveType
	}
	if req.Reason == "" {
		return LeaveResponse{}, leaveerrors.ErrReasonRequired
	}

	startDate, err := parseDate(req.StartDate)
	if err != nil {
		return LeaveResponse{}, err
	}
	endDate, err := parseDate(req.EndDate)
	if err != nil {
		return LeaveResponse{}, err
	}
	totalDays, err := domain.InclusiveDays(startDate, endDate)
	if err != nil {
		logger.Warn("create leave invalid date range",
			zap.String("start_date", req.StartDate),
			zap.String("end_date", req.EndDate),
		)
		return LeaveResponse{}, leaveerrors.ErrInvalidDateRange
	}

	year := s.now().UTC().Year()
	l := &LeaveRequest{
		ID:        uuid.New(),
		UserID:    userID,
		Type:      req.Type,
		StartDate: domain.TruncateToDate(startDate),
		EndDate:   domain.TruncateToDate(endDate),
		TotalDays: totalDays,
		QuotaYear: year,
		Reason:    req.Reason,
		Proof:     req.Proof,
		Status:    domain.StatusPending,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.ledger.WithTx(tx).CheckAvailability(ctx, caller.UserID, req.Type, year, totalDays); err != nil {
			return err
		}
		return s.repo.WithTx(tx).Create(ctx, l)
	})
	if err != nil {
		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			logger.Warn("create leave rejected", zap.String("user_id", caller.UserID), zap.Error(err))
		} else {
			logger.Error("create leave persist failed", zap.String("user_id", caller.UserID), zap.Error(err))
		}
		return LeaveResponse{}, err
	}

	s.metrics.observeCreated(l.Type)
	logger.Info("create leave success",
		zap.String("leave_id", l.ID.String()),
		zap.String("user_id", caller.UserID),
		zap.Int("total_days", totalDays),
		zap.Int("quota_year", year),
	)
	return mapToResponse(*l), nil
}

func (s *service) GetAll(ctx context.Context, caller domain.Caller, filter ListLeaveFilter) ([]LeaveResponse, error) {
	if filter.Status != "" &&
		filter.Status != domain.StatusPending &&
		filter.Status != domain.StatusApproved &&
		filter.Status != domain.StatusRejected {
		return nil, leaveerrors.ErrInvalidStatus
	}

	canReadAll, err := s.authz.Enforce(caller.Role, rbac.ResourceLeave, rbac.ActionReadAll)
	if err != nil {
		return nil, err
	}

	var leaves []LeaveRequest
	if canReadAll {
		leaves, err = s.repo.FindAll(ctx, filter.Status)
	} else {
		leaves, err = s.repo.FindAllByUser(ctx, caller.UserID, filter.Status)
	}
	if err != nil {
		contextutil.GetLogger(ctx, s.logger).Error("list leaves failed", zap.Error(err))
		return nil, err
	}
	return mapToListResponse(leaves), nil
}

func (s *service) GetByID(ctx context.Context, caller domain.Caller, id string) (LeaveResponse, error) {
	if _, err := uuid.Parse(id); err != nil {
		return LeaveResponse{}, leaveerrors.ErrLeaveNotFound
	}

	l, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return LeaveResponse{}, leaveerrors.ErrLeaveNotFound
		}
		return LeaveResponse{}, err
	}

	if l.UserID.String() != caller.UserID {
		canReadAll, err := s.authz.Enforce(caller.Role, rbac.ResourceLeave, rbac.ActionReadAll)
		if err != nil {
			return LeaveResponse{}, err
		}
		if !canReadAll {
			s.logger.Warn("leave read forbidden",
				zap.String("leave_id", id),
				zap.String("user_id", caller.UserID),
			)
			return LeaveResponse{}, apperror.ErrForbidden
		}
	}
	return mapToResponse(*l), nil
}

func (s *service) Approve(ctx context.Context, caller domain.Caller, id string, comment *string) (LeaveResponse, error) {
	return s.decide(ctx, caller, id, domain.StatusApproved, comment)
}

func (s *service) Reject(ctx context.Context, caller domain.Caller, id string, comment *string) (LeaveResponse, error) {
	return s.decide(ctx, caller, id, domain.StatusRejected, comment)
}

// decide moves a PENDING request to target. Approval debits the owner's
// balance for the request's quota year inside the same transaction.
func (s *service) decide(ctx context.Context, caller domain.Caller, id, target string, comment *string) (LeaveResponse, error) {
	logger := contextutil.GetLogger(ctx, s.logger)
	logger.Debug("leave decision requested",
		zap.String("leave_id", id),
		zap.String("actor_id", caller.UserID),
		zap.String("target_status", target),
	)

	if err := s.authz.RequireRole(caller, domain.RoleAdmin); err != nil {
		return LeaveResponse{}, err
	}
	approverID, err := uuid.Parse(caller.UserID)
	if err != nil {
		return LeaveResponse{}, leaveerrors.ErrInvalidUserID
	}
	if _, err := uuid.Parse(id); err != nil {
		return LeaveResponse{}, leaveerrors.ErrLeaveNotFound
	}

	var decided LeaveRequest
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		qtx := s.repo.WithTx(tx)

		l, err := qtx.FindByIDForUpdate(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return leaveerrors.ErrLeaveNotFound
			}
			return err
		}
		if l.Status != domain.StatusPending {
			return leaveerrors.ErrAlreadyProcessed
		}

		if target == domain.StatusApproved {
			if _, err := s.ledger.WithTx(tx).Debit(ctx, l.UserID.String(), l.Type, l.QuotaYear, l.TotalDays); err != nil {
				return err
			}
		}

		decidedAt := s.now().UTC()
		affected, err := qtx.UpdateDecision(ctx, l.ID, target, approverID, comment, decidedAt)
		if err != nil {
			return err
		}
		if affected == 0 {
			return leaveerrors.ErrAlreadyProcessed
		}

		l.Status = target
		l.ApproverID = &approverID
		l.Comment = comment
		l.DecidedAt = &decidedAt
		decided = *l
		return nil
	})
	if err != nil {
		if errors.Is(err, leaveerrors.ErrAlreadyProcessed) {
			s.metrics.observeConflict()
		}
		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			logger.Warn("leave decision rejected",
				zap.String("leave_id", id),
				zap.String("target_status", target),
				zap.Error(err),
			)
		} else {
			logger.Error("leave decision failed",
				zap.String("leave_id", id),
				zap.String("target_status", target),
				zap.Error(err),
			)
		}
		return LeaveResponse{}, err
	}

	s.metrics.observeDecision(target)
	logger.Info("leave decision success",
		zap.String("leave_id", id),
		zap.String("actor_id", caller.UserID),
		zap.String("status", target),
	)
	return mapToResponse(decided), nil
}
