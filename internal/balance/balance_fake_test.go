package balance_test

import (
	"context"
	"fmt"
	"sync"

	"go-leave/internal/balance"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// memRepository keeps balances in memory and honours the guarded increment.
type memRepository struct {
	mu       sync.Mutex
	balances map[string]*balance.LeaveBalance
	users    map[string]bool

	findAllCalls int
	findAllErr   error
	createErr    error
}

func newMemRepository() *memRepository {
	return &memRepository{
		balances: map[string]*balance.LeaveBalance{},
		users:    map[string]bool{},
	}
}

func balanceKey(userID, leaveType string, year int) string {
	return fmt.Sprintf("%s|%s|%d", userID, leaveType, year)
}

func (m *memRepository) seed(userID, leaveType string, year, total, used int) *balance.LeaveBalance {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := &balance.LeaveBalance{
		ID:     uuid.New(),
		UserID: uuid.MustParse(userID),
		Type:   leaveType,
		Year:   year,
		Total:  total,
		Used:   used,
	}
	m.balances[balanceKey(userID, leaveType, year)] = b
	m.users[userID] = true
	return b
}

func (m *memRepository) get(userID, leaveType string, year int) *balance.LeaveBalance {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.balances[balanceKey(userID, leaveType, year)]
	if !ok {
		return nil
	}
	cp := *b
	return &cp
}

func (m *memRepository) WithTx(tx *gorm.DB) balance.Repository {
	return m
}

func (m *memRepository) CreateBatch(ctx context.Context, balances []balance.LeaveBalance) error {
	for i := range balances {
		if err := m.Create(ctx, &balances[i]); err != nil {
			return err
		}
	}
	return nil
}

func (m *memRepository) Create(ctx context.Context, b *balance.LeaveBalance) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *b
	m.balances[balanceKey(b.UserID.String(), b.Type, b.Year)] = &cp
	return nil
}

func (m *memRepository) FindByUserTypeYear(ctx context.Context, userID, leaveType string, year int) (*balance.LeaveBalance, error) {
	if b := m.get(userID, leaveType, year); b != nil {
		return b, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memRepository) FindByUserTypeYearForUpdate(ctx context.Context, userID, leaveType string, year int) (*balance.LeaveBalance, error) {
	return m.FindByUserTypeYear(ctx, userID, leaveType, year)
}

func (m *memRepository) FindAllByUser(ctx context.Context, userID string, year int) ([]balance.LeaveBalance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.findAllCalls++
	if m.findAllErr != nil {
		return nil, m.findAllErr
	}
	var out []balance.LeaveBalance
	for _, b := range m.balances {
		if b.UserID.String() == userID && b.Year == year {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (m *memRepository) IncrementUsed(ctx context.Context, id uuid.UUID, days int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.balances {
		if b.ID == id {
			if b.Used+days > b.Total {
				return 0, nil
			}
			b.Used += days
			return 1, nil
		}
	}
	return 0, nil
}

func (m *memRepository) UpdateTotal(ctx context.Context, id uuid.UUID, total int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.balances {
		if b.ID == id && b.Used <= total {
			b.Total = total
		}
	}
	return nil
}

func (m *memRepository) UserExists(ctx context.Context, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[userID], nil
}
