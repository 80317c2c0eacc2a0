package balance

import (
	"errors"

	balanceerrors "go-leave/internal/balance/errors"
	"go-leave/internal/shared/dberr"

	"gorm.io/gorm"
)

func mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return balanceerrors.ErrQuotaNotFound
	}
	if dberr.IsUniqueViolation(err, "uq_leave_balance_user_type_year") {
		return balanceerrors.ErrBalanceAlreadyExists
	}
	return err
}
