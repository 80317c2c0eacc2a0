package leave

import (
	"time"

	"go-leave/internal/domain"
)

type CreateLeaveRequest struct {
	Type      string  `json:"type" binding:"required,oneof=ANNUAL SICK PERSONAL"`
	StartDate string  `json:"start_date" binding:"required"`
	EndDate   string  `json:"end_date" binding:"required"`
	Reason    string  `json:"reason" binding:"required,max=1000"`
	Proof     *string `json:"proof" binding:"omitempty,max=2048"`
}

type DecisionRequest struct {
	Comment *string `json:"comment" binding:"omitempty,max=1000"`
}

type ListLeaveFilter struct {
	Status string `form:"status" binding:"omitempty,oneof=PENDING APPROVED REJECTED"`
}

type LeaveResponse struct {
	ID         string  `json:"id"`
	UserID     string  `json:"user_id"`
	Type       string  `json:"type"`
	StartDate  string  `json:"start_date"`
	EndDate    string  `json:"end_date"`
	TotalDays  int     `json:"total_days"`
	QuotaYear  int     `json:"quota_year"`
	Reason     string  `json:"reason"`
	Proof      *string `json:"proof,omitempty"`
	Status     string  `json:"status"`
	ApproverID *string `json:"approver_id,omitempty"`
	Comment    *string `json:"comment,omitempty"`
	DecidedAt  *string `json:"decided_at,omitempty"`
	CreatedAt  string  `json:"created_at"`
}

func mapToResponse(l LeaveRequest) LeaveResponse {
	resp := LeaveResponse{
		ID:        l.ID.String(),
		UserID:    l.UserID.String(),
		Type:      l.Type,
		StartDate: l.StartDate.Format(domain.DateLayout),
		EndDate:   l.EndDate.Format(domain.DateLayout),
		TotalDays: l.TotalDays,
		QuotaYear: l.QuotaYear,
		Reason:    l.Reason,
		Proof:     l.Proof,
		Status:    l.Status,
		Comment:   l.Comment,
		CreatedAt: l.CreatedAt.UTC().Format(time.RFC3339),
	}
	if l.ApproverID != nil {
		v := l.ApproverID.String()
		resp.ApproverID = &v
	}
	if l.DecidedAt != nil {
		v := l.DecidedAt.UTC().Format(time.RFC3339)
		resp.DecidedAt = &v
	}
	return resp
}

func mapToListResponse(leaves []LeaveRequest) []LeaveResponse {
	resp := make([]LeaveResponse, 0, len(leaves))
	for _, l := range leaves {
		resp = append(resp, mapToResponse(l))
	}
	return resp
}
