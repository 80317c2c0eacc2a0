package balance

import (
	"time"

	"github.com/google/uuid"
)

// LeaveBalance is the quota of one leave type for one user in one calendar year.
// Used never exceeds Total; rows are never deleted.
type LeaveBalance struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uq_leave_balance_user_type_year"`
	Type   string    `gorm:"type:varchar(20);not null;uniqueIndex:uq_leave_balance_user_type_year"`
	Year   int       `gorm:"type:int;not null;uniqueIndex:uq_leave_balance_user_type_year"`
	Total  int       `gorm:"type:int;not null;default:0"`
	Used   int       `gorm:"type:int;not null;default:0;check:chk_leave_balance_used,used <= total"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (LeaveBalance) TableName() string {
	return "leave_balances"
}

func (b LeaveBalance) Remaining() int {
	return b.Total - b.Used
}
