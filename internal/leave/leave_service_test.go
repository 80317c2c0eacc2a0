package leave_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"go-leave/internal/balance"
	balanceerrors "go-leave/internal/balance/errors"
	balancemock "go-leave/internal/balance/mock"
	"go-leave/internal/domain"
	"go-leave/internal/leave"
	leaveerrors "go-leave/internal/leave/errors"
	"go-leave/internal/rbac"
	"go-leave/internal/shared/apperror"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var fixedNow = time.Date(2024, 2, 10, 8, 30, 0, 0, time.UTC)

type leaveServiceDeps struct {
	sqlMock  sqlmock.Sqlmock
	db       *gorm.DB
	service  leave.Service
	repo     *memLeaveRepository
	balances *memBalanceRepository
	registry *prometheus.Registry
}

func newMockGormDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	assert.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{})
	assert.NoError(t, err)
	return db, mock
}

func newAuthorizer(t *testing.T) rbac.Service {
	t.Helper()
	enforcer, err := rbac.NewEnforcer()
	assert.NoError(t, err)
	return rbac.NewService(enforcer)
}

func setupLeaveServiceTest(t *testing.T) *leaveServiceDeps {
	t.Helper()

	db, mock := newMockGormDB(t)
	repo := newMemLeaveRepository()
	balances := newMemBalanceRepository()
	ledger := balance.NewLedger(balances, balance.DefaultQuotas{})
	reg := prometheus.NewRegistry()

	svc := leave.NewInstrumentedService(db, repo, ledger, newAuthorizer(t), leave.NewMetrics(reg), func() time.Time { return fixedNow })

	return &leaveServiceDeps{
		sqlMock:  mock,
		db:       db,
		service:  svc,
		repo:     repo,
		balances: balances,
		registry: reg,
	}
}

func expectTx(t *testing.T, mock sqlmock.Sqlmock, commit bool) {
	t.Helper()
	mock.ExpectBegin()
	if commit {
		mock.ExpectCommit()
	} else {
		mock.ExpectRollback()
	}
}

func strPtr(v string) *string {
	return &v
}

func TestLeaveService_Create(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New().String()
	caller := domain.Caller{UserID: userID, Role: domain.RoleUser}

	t.Run("success", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		deps.balances.seed(userID, domain.LeaveTypeAnnual, 2024, 12, 0)
		expectTx(t, deps.sqlMock, true)

		resp, err := deps.service.Create(ctx, caller, leave.CreateLeaveRequest{
			Type:      domain.LeaveTypeAnnual,
			StartDate: "2024-03-04",
			EndDate:   "2024-03-08",
			Reason:    "Family trip",
			Proof:     strPtr("https://files.example.com/ticket.pdf"),
		})

		assert.NoError(t, err)
		assert.Equal(t, 5, resp.TotalDays)
		assert.Equal(t, 2024, resp.QuotaYear)
		assert.Equal(t, domain.StatusPending, resp.Status)
		assert.Equal(t, "2024-03-04", resp.StartDate)
		assert.Equal(t, userID, resp.UserID)
		assert.Equal(t, 1, deps.repo.count())
		assert.Equal(t, 0, deps.balances.get(userID, domain.LeaveTypeAnnual, 2024).Used)
		assert.NoError(t, deps.sqlMock.ExpectationsWereMet())

		assert.Equal(t, float64(1), counterValue(t, deps.registry, "leave_requests_created_total"))
	})

	t.Run("single day with rfc3339 input", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		deps.balances.seed(userID, domain.LeaveTypeSick, 2024, 10, 0)
		expectTx(t, deps.sqlMock, true)

		resp, err := deps.service.Create(ctx, caller, leave.CreateLeaveRequest{
			Type:      domain.LeaveTypeSick,
			StartDate: "2024-03-04T09:00:00Z",
			EndDate:   "2024-03-04T17:00:00Z",
			Reason:    "Flu",
		})

		assert.NoError(t, err)
		assert.Equal(t, 1, resp.TotalDays)
	})

	t.Run("negative insufficient balance persists nothing", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		deps.balances.seed(userID, domain.LeaveTypeAnnual, 2024, 12, 9)
		expectTx(t, deps.sqlMock, false)

		_, err := deps.service.Create(ctx, caller, leave.CreateLeaveRequest{
			Type:      domain.LeaveTypeAnnual,
			StartDate: "2024-03-04",
			EndDate:   "2024-03-08",
			Reason:    "Trip",
		})

		assert.ErrorIs(t, err, balanceerrors.ErrInsufficientBalance)
		assert.Equal(t, 0, deps.repo.count())
		assert.NoError(t, deps.sqlMock.ExpectationsWereMet())
	})

	t.Run("negative quota not found", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		expectTx(t, deps.sqlMock, false)

		_, err := deps.service.Create(ctx, caller, leave.CreateLeaveRequest{
			Type:      domain.LeaveTypePersonal,
			StartDate: "2024-03-04",
			EndDate:   "2024-03-04",
			Reason:    "Errand",
		})

		assert.ErrorIs(t, err, balanceerrors.ErrQuotaNotFound)
		assert.Equal(t, 0, deps.repo.count())
	})

	t.Run("negative end before start", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)

		_, err := deps.service.Create(ctx, caller, leave.CreateLeaveRequest{
			Type:      domain.LeaveTypeAnnual,
			StartDate: "2024-03-08",
			EndDate:   "2024-03-04",
			Reason:    "Trip",
		})

		assert.ErrorIs(t, err, leaveerrors.ErrInvalidDateRange)
		assert.NoError(t, deps.sqlMock.ExpectationsWereMet())
	})

	t.Run("negative bad date format", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)

		_, err := deps.service.Create(ctx, caller, leave.CreateLeaveRequest{
			Type:      domain.LeaveTypeAnnual,
			StartDate: "04/03/2024",
			EndDate:   "2024-03-04",
			Reason:    "Trip",
		})

		assert.ErrorIs(t, err, leaveerrors.ErrInvalidDateFormat)
	})

	t.Run("negative unknown type", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)

		_, err := deps.service.Create(ctx, caller, leave.CreateLeaveRequest{
			Type:      "UNPAID",
			StartDate: "2024-03-04",
			EndDate:   "2024-03-04",
			Reason:    "Trip",
		})

		assert.ErrorIs(t, err, leaveerrors.ErrInvalidLeaveType)
	})

	t.Run("negative persist failure rolls back", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		deps.balances.seed(userID, domain.LeaveTypeAnnual, 2024, 12, 0)
		deps.repo.createErr = errors.New("insert failed")
		expectTx(t, deps.sqlMock, false)

		_, err := deps.service.Create(ctx, caller, leave.CreateLeaveRequest{
			Type:      domain.LeaveTypeAnnual,
			StartDate: "2024-03-04",
			EndDate:   "2024-03-04",
			Reason:    "Trip",
		})

		assert.EqualError(t, err, "insert failed")
		assert.NoError(t, deps.sqlMock.ExpectationsWereMet())
	})
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	assert.NoError(t, err)
	var total float64
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	return total
}

func seedPending(deps *leaveServiceDeps, userID, leaveType string, days int) leave.LeaveRequest {
	start := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	l := leave.LeaveRequest{
		ID:        uuid.New(),
		UserID:    uuid.MustParse(userID),
		Type:      leaveType,
		StartDate: start,
		EndDate:   start.AddDate(0, 0, days-1),
		TotalDays: days,
		QuotaYear: 2024,
		Reason:    "Holiday",
		Status:    domain.StatusPending,
	}
	deps.repo.put(l)
	return l
}

func TestLeaveService_Approve(t *testing.T) {
	ctx := context.Background()
	ownerID := uuid.New().String()
	admin := domain.Caller{UserID: uuid.New().String(), Role: domain.RoleAdmin}

	t.Run("success debits once", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		deps.balances.seed(ownerID, domain.LeaveTypeAnnual, 2024, 12, 0)
		l := seedPending(deps, ownerID, domain.LeaveTypeAnnual, 5)
		expectTx(t, deps.sqlMock, true)

		resp, err := deps.service.Approve(ctx, admin, l.ID.String(), strPtr("enjoy"))

		assert.NoError(t, err)
		assert.Equal(t, domain.StatusApproved, resp.Status)
		assert.Equal(t, admin.UserID, *resp.ApproverID)
		assert.Equal(t, "enjoy", *resp.Comment)
		assert.NotNil(t, resp.DecidedAt)
		assert.Equal(t, 5, deps.balances.get(ownerID, domain.LeaveTypeAnnual, 2024).Used)
		assert.NoError(t, deps.sqlMock.ExpectationsWereMet())
	})

	t.Run("negative non admin", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		deps.balances.seed(ownerID, domain.LeaveTypeAnnual, 2024, 12, 0)
		l := seedPending(deps, ownerID, domain.LeaveTypeAnnual, 5)

		_, err := deps.service.Approve(ctx, domain.Caller{UserID: ownerID, Role: domain.RoleUser}, l.ID.String(), nil)

		assert.ErrorIs(t, err, apperror.ErrForbidden)
		assert.Equal(t, 0, deps.balances.get(ownerID, domain.LeaveTypeAnnual, 2024).Used)
		assert.NoError(t, deps.sqlMock.ExpectationsWereMet())
	})

	t.Run("negative not found", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		expectTx(t, deps.sqlMock, false)

		_, err := deps.service.Approve(ctx, admin, uuid.New().String(), nil)

		assert.ErrorIs(t, err, leaveerrors.ErrLeaveNotFound)
		assert.NoError(t, deps.sqlMock.ExpectationsWereMet())
	})

	t.Run("negative balance shrank since creation", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		deps.balances.seed(ownerID, domain.LeaveTypeAnnual, 2024, 3, 0)
		l := seedPending(deps, ownerID, domain.LeaveTypeAnnual, 5)
		expectTx(t, deps.sqlMock, false)

		_, err := deps.service.Approve(ctx, admin, l.ID.String(), nil)

		assert.ErrorIs(t, err, balanceerrors.ErrInsufficientBalance)
		got, _ := deps.repo.FindByID(ctx, l.ID.String())
		assert.Equal(t, domain.StatusPending, got.Status)
	})

	t.Run("negative concurrent decision landed first", func(t *testing.T) {
		db, mock := newMockGormDB(t)
		ctrl := gomock.NewController(t)
		ledger := balancemock.NewMockLedger(ctrl)
		repo := newMemLeaveRepository()
		repo.staleDecision = true
		l := leave.LeaveRequest{
			ID:        uuid.New(),
			UserID:    uuid.MustParse(ownerID),
			Type:      domain.LeaveTypeSick,
			TotalDays: 2,
			QuotaYear: 2024,
			Status:    domain.StatusPending,
		}
		repo.put(l)

		ledger.EXPECT().WithTx(gomock.Any()).Return(ledger)
		ledger.EXPECT().
			Debit(gomock.Any(), ownerID, domain.LeaveTypeSick, 2024, 2).
			Return(&balance.LeaveBalance{Total: 10, Used: 2}, nil)
		expectTx(t, mock, false)

		svc := leave.NewService(db, repo, ledger, newAuthorizer(t))
		_, err := svc.Approve(ctx, admin, l.ID.String(), nil)

		assert.ErrorIs(t, err, leaveerrors.ErrAlreadyProcessed)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("negative ledger failure propagates", func(t *testing.T) {
		db, mock := newMockGormDB(t)
		ctrl := gomock.NewController(t)
		ledger := balancemock.NewMockLedger(ctrl)
		repo := newMemLeaveRepository()
		l := leave.LeaveRequest{
			ID:        uuid.New(),
			UserID:    uuid.MustParse(ownerID),
			Type:      domain.LeaveTypeAnnual,
			TotalDays: 1,
			QuotaYear: 2024,
			Status:    domain.StatusPending,
		}
		repo.put(l)

		ledger.EXPECT().WithTx(gomock.Any()).Return(ledger)
		ledger.EXPECT().
			Debit(gomock.Any(), ownerID, domain.LeaveTypeAnnual, 2024, 1).
			Return(nil, errors.New("lock timeout"))
		expectTx(t, mock, false)

		svc := leave.NewService(db, repo, ledger, newAuthorizer(t))
		_, err := svc.Approve(ctx, admin, l.ID.String(), nil)

		assert.EqualError(t, err, "lock timeout")
		got, _ := repo.FindByID(ctx, l.ID.String())
		assert.Equal(t, domain.StatusPending, got.Status)
	})
}

func TestLeaveService_Reject(t *testing.T) {
	ctx := context.Background()
	ownerID := uuid.New().String()
	admin := domain.Caller{UserID: uuid.New().String(), Role: domain.RoleAdmin}

	t.Run("success never touches ledger", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		deps.balances.seed(ownerID, domain.LeaveTypeAnnual, 2024, 12, 4)
		l := seedPending(deps, ownerID, domain.LeaveTypeAnnual, 5)
		expectTx(t, deps.sqlMock, true)

		resp, err := deps.service.Reject(ctx, admin, l.ID.String(), strPtr("busy season"))

		assert.NoError(t, err)
		assert.Equal(t, domain.StatusRejected, resp.Status)
		assert.Equal(t, "busy season", *resp.Comment)
		b := deps.balances.get(ownerID, domain.LeaveTypeAnnual, 2024)
		assert.Equal(t, 4, b.Used)
		assert.Equal(t, 12, b.Total)
	})

	t.Run("negative already approved", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		deps.balances.seed(ownerID, domain.LeaveTypeAnnual, 2024, 12, 0)
		l := seedPending(deps, ownerID, domain.LeaveTypeAnnual, 2)
		expectTx(t, deps.sqlMock, true)
		_, err := deps.service.Approve(ctx, admin, l.ID.String(), nil)
		assert.NoError(t, err)

		expectTx(t, deps.sqlMock, false)
		_, err = deps.service.Reject(ctx, admin, l.ID.String(), nil)

		assert.ErrorIs(t, err, leaveerrors.ErrAlreadyProcessed)
		assert.Equal(t, 2, deps.balances.get(ownerID, domain.LeaveTypeAnnual, 2024).Used)
		assert.Equal(t, float64(1), counterValue(t, deps.registry, "leave_requests_already_processed_total"))
		assert.NoError(t, deps.sqlMock.ExpectationsWereMet())
	})

	t.Run("negative non admin", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		l := seedPending(deps, ownerID, domain.LeaveTypeAnnual, 2)

		_, err := deps.service.Reject(ctx, domain.Caller{UserID: ownerID, Role: domain.RoleUser}, l.ID.String(), nil)

		assert.ErrorIs(t, err, apperror.ErrForbidden)
	})
}

func TestLeaveService_GetAll(t *testing.T) {
	ctx := context.Background()
	ownerID := uuid.New().String()
	otherID := uuid.New().String()

	deps := setupLeaveServiceTest(t)
	seedPending(deps, ownerID, domain.LeaveTypeAnnual, 1)
	seedPending(deps, otherID, domain.LeaveTypeSick, 2)
	decided := seedPending(deps, otherID, domain.LeaveTypeSick, 3)
	decided.Status = domain.StatusRejected
	deps.repo.put(decided)

	t.Run("user sees own requests", func(t *testing.T) {
		resp, err := deps.service.GetAll(ctx, domain.Caller{UserID: ownerID, Role: domain.RoleUser}, leave.ListLeaveFilter{})

		assert.NoError(t, err)
		assert.Len(t, resp, 1)
		assert.Equal(t, ownerID, resp[0].UserID)
	})

	t.Run("admin sees all", func(t *testing.T) {
		resp, err := deps.service.GetAll(ctx, domain.Caller{UserID: uuid.New().String(), Role: domain.RoleAdmin}, leave.ListLeaveFilter{})

		assert.NoError(t, err)
		assert.Len(t, resp, 3)
	})

	t.Run("admin filters pending", func(t *testing.T) {
		resp, err := deps.service.GetAll(ctx, domain.Caller{UserID: uuid.New().String(), Role: domain.RoleAdmin}, leave.ListLeaveFilter{Status: domain.StatusPending})

		assert.NoError(t, err)
		assert.Len(t, resp, 2)
	})

	t.Run("negative invalid status", func(t *testing.T) {
		_, err := deps.service.GetAll(ctx, domain.Caller{UserID: ownerID, Role: domain.RoleUser}, leave.ListLeaveFilter{Status: "CANCELLED"})

		assert.ErrorIs(t, err, leaveerrors.ErrInvalidStatus)
	})
}

func TestLeaveService_GetByID(t *testing.T) {
	ctx := context.Background()
	ownerID := uuid.New().String()

	deps := setupLeaveServiceTest(t)
	l := seedPending(deps, ownerID, domain.LeaveTypeAnnual, 1)

	t.Run("owner reads", func(t *testing.T) {
		resp, err := deps.service.GetByID(ctx, domain.Caller{UserID: ownerID, Role: domain.RoleUser}, l.ID.String())

		assert.NoError(t, err)
		assert.Equal(t, l.ID.String(), resp.ID)
	})

	t.Run("admin reads", func(t *testing.T) {
		_, err := deps.service.GetByID(ctx, domain.Caller{UserID: uuid.New().String(), Role: domain.RoleAdmin}, l.ID.String())

		assert.NoError(t, err)
	})

	t.Run("negative other user forbidden", func(t *testing.T) {
		_, err := deps.service.GetByID(ctx, domain.Caller{UserID: uuid.New().String(), Role: domain.RoleUser}, l.ID.String())

		assert.ErrorIs(t, err, apperror.ErrForbidden)
	})

	t.Run("negative not found", func(t *testing.T) {
		_, err := deps.service.GetByID(ctx, domain.Caller{UserID: ownerID, Role: domain.RoleUser}, uuid.New().String())

		assert.ErrorIs(t, err, leaveerrors.ErrLeaveNotFound)
	})
}
