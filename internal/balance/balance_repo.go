package balance

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

//go:generate mockgen -source=balance_repo.go -destination=mock/balance_repo_mock.go -package=mock
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateBatch(ctx context.Context, balances []LeaveBalance) error
	Create(ctx context.Context, b *LeaveBalance) error
	FindByUserTypeYear(ctx context.Context, userID, leaveType string, year int) (*LeaveBalance, error)
	FindByUserTypeYearForUpdate(ctx context.Context, userID, leaveType string, year int) (*LeaveBalance, error)
	FindAllByUser(ctx context.Context, userID string, year int) ([]LeaveBalance, error)
	IncrementUsed(ctx context.Context, id uuid.UUID, days int) (int64, error)
	UpdateTotal(ctx context.Context, id uuid.UUID, total int) error
	UserExists(ctx context.Context, userID string) (bool, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateBatch(ctx context.Context, balances []LeaveBalance) error {
	if len(balances) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&balances).Error
}

func (r *repository) Create(ctx context.Context, b *LeaveBalance) error {
	return r.db.WithContext(ctx).Create(b).Error
}

func (r *repository) FindByUserTypeYear(ctx context.Context, userID, leaveType string, year int) (*LeaveBalance, error) {
	var b LeaveBalance
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND type = ? AND year = ?", userID, leaveType, year).
		First(&b).Error
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *repository) FindByUserTypeYearForUpdate(ctx context.Context, userID, leaveType string, year int) (*LeaveBalance, error) {
	var b LeaveBalance
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ? AND type = ? AND year = ?", userID, leaveType, year).
		First(&b).Error
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *repository) FindAllByUser(ctx context.Context, userID string, year int) ([]LeaveBalance, error) {
	var balances []LeaveBalance
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND year = ?", userID, year).
		Order("type ASC").
		Find(&balances).Error
	return balances, err
}

// IncrementUsed adds days to used only while the result stays within total.
// Zero rows affected means the balance could not cover days.
func (r *repository) IncrementUsed(ctx context.Context, id uuid.UUID, days int) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&LeaveBalance{}).
		Where("id = ? AND used + ? <= total", id, days).
		Update("used", gorm.Expr("used + ?", days))
	return res.RowsAffected, res.Error
}

func (r *repository) UpdateTotal(ctx context.Context, id uuid.UUID, total int) error {
	return r.db.WithContext(ctx).
		Model(&LeaveBalance{}).
		Where("id = ? AND used <= ?", id, total).
		Update("total", total).Error
}

func (r *repository) UserExists(ctx context.Context, userID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Table("users").
		Where("id = ?", userID).
		Count(&count).Error
	return count > 0, err
}
