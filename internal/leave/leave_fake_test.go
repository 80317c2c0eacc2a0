package leave_test

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go-leave/internal/balance"
	"go-leave/internal/domain"
	"go-leave/internal/leave"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type memLeaveRepository struct {
	mu     sync.Mutex
	leaves map[uuid.UUID]*leave.LeaveRequest

	createErr error
	// staleDecision makes UpdateDecision report zero rows, as when a concurrent
	// decision committed after the row was read.
	staleDecision bool
}

func newMemLeaveRepository() *memLeaveRepository {
	return &memLeaveRepository{leaves: map[uuid.UUID]*leave.LeaveRequest{}}
}

func (m *memLeaveRepository) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.leaves)
}

func (m *memLeaveRepository) put(l leave.LeaveRequest) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leaves[l.ID] = &l
}

func (m *memLeaveRepository) WithTx(tx *gorm.DB) leave.Repository {
	return m
}

func (m *memLeaveRepository) Create(ctx context.Context, l *leave.LeaveRequest) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *l
	cp.CreatedAt = time.Now()
	m.leaves[l.ID] = &cp
	return nil
}

func (m *memLeaveRepository) FindByID(ctx context.Context, id string) (*leave.LeaveRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, err
	}
	l, ok := m.leaves[uid]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *l
	return &cp, nil
}

func (m *memLeaveRepository) FindByIDForUpdate(ctx context.Context, id string) (*leave.LeaveRequest, error) {
	return m.FindByID(ctx, id)
}

func (m *memLeaveRepository) list(match func(l *leave.LeaveRequest) bool) []leave.LeaveRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []leave.LeaveRequest{}
	for _, l := range m.leaves {
		if match(l) {
			out = append(out, *l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out
}

func (m *memLeaveRepository) FindAll(ctx context.Context, status string) ([]leave.LeaveRequest, error) {
	return m.list(func(l *leave.LeaveRequest) bool {
		return status == "" || l.Status == status
	}), nil
}

func (m *memLeaveRepository) FindAllByUser(ctx context.Context, userID, status string) ([]leave.LeaveRequest, error) {
	return m.list(func(l *leave.LeaveRequest) bool {
		return l.UserID.String() == userID && (status == "" || l.Status == status)
	}), nil
}

func (m *memLeaveRepository) UpdateDecision(ctx context.Context, id uuid.UUID, status string, approverID uuid.UUID, comment *string, decidedAt time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.staleDecision {
		return 0, nil
	}
	l, ok := m.leaves[id]
	if !ok || l.Status != domain.StatusPending {
		return 0, nil
	}
	l.Status = status
	l.ApproverID = &approverID
	l.Comment = comment
	l.DecidedAt = &decidedAt
	return 1, nil
}

// memBalanceRepository backs a real balance.Ledger in lifecycle tests.
type memBalanceRepository struct {
	mu       sync.Mutex
	balances map[string]*balance.LeaveBalance
}

func newMemBalanceRepository() *memBalanceRepository {
	return &memBalanceRepository{balances: map[string]*balance.LeaveBalance{}}
}

func balanceKey(userID, leaveType string, year int) string {
	return fmt.Sprintf("%s|%s|%d", userID, leaveType, year)
}

func (m *memBalanceRepository) seed(userID, leaveType string, year, total, used int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[balanceKey(userID, leaveType, year)] = &balance.LeaveBalance{
		ID:     uuid.New(),
		UserID: uuid.MustParse(userID),
		Type:   leaveType,
		Year:   year,
		Total:  total,
		Used:   used,
	}
}

func (m *memBalanceRepository) get(userID, leaveType string, year int) balance.LeaveBalance {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.balances[balanceKey(userID, leaveType, year)]
}

func (m *memBalanceRepository) setTotal(userID, leaveType string, year, total int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[balanceKey(userID, leaveType, year)].Total = total
}

func (m *memBalanceRepository) WithTx(tx *gorm.DB) balance.Repository {
	return m
}

func (m *memBalanceRepository) CreateBatch(ctx context.Context, balances []balance.LeaveBalance) error {
	for i := range balances {
		_ = m.Create(ctx, &balances[i])
	}
	return nil
}

func (m *memBalanceRepository) Create(ctx context.Context, b *balance.LeaveBalance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *b
	m.balances[balanceKey(b.UserID.String(), b.Type, b.Year)] = &cp
	return nil
}

func (m *memBalanceRepository) FindByUserTypeYear(ctx context.Context, userID, leaveType string, year int) (*balance.LeaveBalance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.balances[balanceKey(userID, leaveType, year)]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *b
	return &cp, nil
}

func (m *memBalanceRepository) FindByUserTypeYearForUpdate(ctx context.Context, userID, leaveType string, year int) (*balance.LeaveBalance, error) {
	return m.FindByUserTypeYear(ctx, userID, leaveType, year)
}

func (m *memBalanceRepository) FindAllByUser(ctx context.Context, userID string, year int) ([]balance.LeaveBalance, error) {
	return nil, nil
}

func (m *memBalanceRepository) IncrementUsed(ctx context.Context, id uuid.UUID, days int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.balances {
		if b.ID == id && b.Used+days <= b.Total {
			b.Used += days
			return 1, nil
		}
	}
	return 0, nil
}

func (m *memBalanceRepository) UpdateTotal(ctx context.Context, id uuid.UUID, total int) error {
	return nil
}

func (m *memBalanceRepository) UserExists(ctx context.Context, userID string) (bool, error) {
	return true, nil
}
