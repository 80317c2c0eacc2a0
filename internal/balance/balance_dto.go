package balance

type OverrideBalanceRequest struct {
	Type string `json:"type" binding:"required,oneof=ANNUAL SICK PERSONAL"`
	Year int    `json:"year" binding:"omitempty,min=1970,max=9999"`
	Days *int   `json:"days" binding:"required,min=0"`
}

type BalanceResponse struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Type      string `json:"type"`
	Year      int    `json:"year"`
	Total     int    `json:"total"`
	Used      int    `json:"used"`
	Remaining int    `json:"remaining"`
	UpdatedAt string `json:"updated_at"`
}

func mapToResponse(b LeaveBalance) BalanceResponse {
	return BalanceResponse{
		ID:        b.ID.String(),
		UserID:    b.UserID.String(),
		Type:      b.Type,
		Year:      b.Year,
		Total:     b.Total,
		Used:      b.Used,
		Remaining: b.Remaining(),
		UpdatedAt: b.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}

func mapToListResponse(balances []LeaveBalance) []BalanceResponse {
	resp := make([]BalanceResponse, 0, len(balances))
	for _, b := range balances {
		resp = append(resp, mapToResponse(b))
	}
	return resp
}
