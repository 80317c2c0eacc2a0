package leave

import (
	"time"

	"github.com/google/uuid"
)

type LeaveRequest struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserID uuid.UUID `gorm:"type:uuid;not null;index:idx_leave_requests_user"`

	Type      string    `gorm:"type:varchar(20);not null"`
	StartDate time.Time `gorm:"type:date;not null"`
	EndDate   time.Time `gorm:"type:date;not null"`
	TotalDays int       `gorm:"type:int;not null"`
	QuotaYear int       `gorm:"type:int;not null"`
	Reason    string    `gorm:"type:text;not null"`
	Proof     *string   `gorm:"type:text"`

	Status     string     `gorm:"type:varchar(20);not null;default:'PENDING';index:idx_leave_requests_status"`
	ApproverID *uuid.UUID `gorm:"type:uuid"`
	Comment    *string    `gorm:"type:text"`
	DecidedAt  *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (LeaveRequest) TableName() string {
	return "leave_requests"
}
