package auth

import (
	"errors"

	autherrors "go-leave/internal/auth/errors"
	"go-leave/internal/shared/dberr"

	"gorm.io/gorm"
)

func mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return autherrors.ErrUserNotFound
	}
	if dberr.IsUniqueViolation(err, "uq_users_email") {
		return autherrors.ErrEmailAlreadyRegistered
	}
	if dberr.IsUniqueViolation(err, "uq_users_phone") {
		return autherrors.ErrPhoneAlreadyRegistered
	}
	return err
}
