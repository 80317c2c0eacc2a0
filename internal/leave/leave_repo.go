package leave

import (
	"context"
	"time"

	"go-leave/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

//go:generate mockgen -source=leave_repo.go -destination=mock/leave_repo_mock.go -package=mock
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, l *LeaveRequest) error
	FindByID(ctx context.Context, id string) (*LeaveRequest, error)
	FindByIDForUpdate(ctx context.Context, id string) (*LeaveRequest, error)
	FindAll(ctx context.Context, status string) ([]LeaveRequest, error)
	FindAllByUser(ctx context.Context, userID, status string) ([]LeaveRequest, error)
	UpdateDecision(ctx context.Context, id uuid.UUID, status string, approverID uuid.UUID, comment *string, decidedAt time.Time) (int64, error)
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

func (r *repository) Create(ctx context.Context, l *LeaveRequest) error {
	return r.db.WithContext(ctx).Create(l).Error
}

func (r *repository) FindByID(ctx context.Context, id string) (*LeaveRequest, error) {
	var l LeaveRequest
	if err := r.db.WithContext(ctx).First(&l, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *repository) FindByIDForUpdate(ctx context.Context, id string) (*LeaveRequest, error) {
	var l LeaveRequest
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&l, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *repository) FindAll(ctx context.Context, status string) ([]LeaveRequest, error) {
	var leaves []LeaveRequest
	db := r.db.WithContext(ctx)
	if status != "" {
		db = db.Where("status = ?", status)
	}
	err := db.Order("created_at DESC").Find(&leaves).Error
	return leaves, err
}

func (r *repository) FindAllByUser(ctx context.Context, userID, status string) ([]LeaveRequest, error) {
	var leaves []LeaveRequest
	db := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if status != "" {
		db = db.Where("status = ?", status)
	}
	err := db.Order("created_at DESC").Find(&leaves).Error
	return leaves, err
}

// UpdateDecision only moves a PENDING request; zero rows affected means another
// decision already landed.
func (r *repository) UpdateDecision(
	ctx context.Context,
	id uuid.UUID,
	status string,
	approverID uuid.UUID,
	comment *string,
	decidedAt time.Time,
) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&LeaveRequest{}).
		Where("id = ? AND status = ?", id, domain.StatusPending).
		Updates(map[string]any{
			"status":      status,
			"approver_id": approverID,
			"comment":     comment,
			"decided_at":  decidedAt,
		})
	return res.RowsAffected, res.Error
}
