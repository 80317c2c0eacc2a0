package domain

import (
	"errors"
	"time"
)

const (
	LeaveTypeAnnual   = "ANNUAL"
	LeaveTypeSick     = "SICK"
	LeaveTypePersonal = "PERSONAL"
)

const (
	StatusPending  = "PENDING"
	StatusApproved = "APPROVED"
	StatusRejected = "REJECTED"
)

const DateLayout = "2006-01-02"

var ErrInvalidDateRange = errors.New("end date is before start date")

// LeaveTypes lists every leave type a balance can be granted for.
var LeaveTypes = []string{LeaveTypeAnnual, LeaveTypeSick, LeaveTypePersonal}

func IsValidLeaveType(t string) bool {
	for _, lt := range LeaveTypes {
		if lt == t {
			return true
		}
	}
	return false
}

// TruncateToDate drops the time of day, keeping the calendar date in UTC.
func TruncateToDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// InclusiveDays counts calendar days from start to end, both included.
func InclusiveDays(start, end time.Time) (int, error) {
	s := TruncateToDate(start)
	e := TruncateToDate(end)
	if e.Before(s) {
		return 0, ErrInvalidDateRange
	}
	return int(e.Sub(s).Hours()/24) + 1, nil
}

// ParseDate accepts YYYY-MM-DD and RFC3339 values.
func ParseDate(v string) (time.Time, error) {
	if t, err := time.Parse(DateLayout, v); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, err
	}
	return TruncateToDate(t), nil
}
