package balanceerrors

import (
	"net/http"

	"go-leave/internal/shared/apperror"
)

var (
	ErrQuotaNotFound = apperror.New(
		apperror.CodeQuotaNotFound,
		"no leave quota configured for this type and year",
		http.StatusNotFound,
	)
	ErrInsufficientBalance = apperror.New(
		apperror.CodeInsufficient,
		"insufficient leave balance",
		http.StatusConflict,
	)
	ErrInvalidUserID = apperror.New(
		apperror.CodeValidation,
		"invalid user id",
		http.StatusBadRequest,
	)
	ErrInvalidLeaveType = apperror.New(
		apperror.CodeValidation,
		"invalid leave type",
		http.StatusBadRequest,
	)
	ErrInvalidDays = apperror.New(
		apperror.CodeValidation,
		"days must be zero or greater",
		http.StatusBadRequest,
	)
	ErrInvalidYear = apperror.New(
		apperror.CodeValidation,
		"invalid year",
		http.StatusBadRequest,
	)
	ErrUserNotFound = apperror.New(
		apperror.CodeNotFound,
		"user not found",
		http.StatusNotFound,
	)
	ErrBalanceAlreadyExists = apperror.New(
		apperror.CodeConflict,
		"leave balance already exists",
		http.StatusConflict,
	)
)
