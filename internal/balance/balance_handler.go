package balance

import (
	"net/http"
	"strconv"

	"go-leave/internal/middleware"
	"go-leave/internal/shared/apperror"
	"go-leave/internal/shared/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handler struct {
	service Service
	logger  *zap.Logger
}

func NewHandler(service Service, logger ...*zap.Logger) *Handler {
	l := zap.L().Named("balance.handler")
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0].Named("balance.handler")
	}
	return &Handler{service: service, logger: l}
}

func (h *Handler) writeServiceError(c *gin.Context, err error) {
	httpErr := apperror.ToHTTP(err)
	h.logger.Warn("balance request failed",
		zap.String("method", c.Request.Method),
		zap.String("path", c.FullPath()),
		zap.Int("status", httpErr.Status),
		zap.String("code", httpErr.Code),
		zap.String("message", httpErr.Message),
	)
	response.Error(c, httpErr.Status, httpErr.Code, httpErr.Message, httpErr.Details)
}

// queryYear returns 0 when the year query parameter is absent.
func queryYear(c *gin.Context) (int, bool) {
	raw := c.Query("year")
	if raw == "" {
		return 0, true
	}
	year, err := strconv.Atoi(raw)
	if err != nil || year < 1 {
		return 0, false
	}
	return year, true
}

func (h *Handler) GetMine(c *gin.Context) {
	caller := middleware.CallerFromContext(c)
	year, ok := queryYear(c)
	if !ok {
		appErr := apperror.InvalidField("Year")
		response.Error(c, appErr.HTTPStatus, appErr.Code, appErr.Message, nil)
		return
	}

	resp, err := h.service.GetMine(c.Request.Context(), caller, year)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, resp, nil)
}

func (h *Handler) GetByUser(c *gin.Context) {
	caller := middleware.CallerFromContext(c)
	year, ok := queryYear(c)
	if !ok {
		appErr := apperror.InvalidField("Year")
		response.Error(c, appErr.HTTPStatus, appErr.Code, appErr.Message, nil)
		return
	}

	resp, err := h.service.GetByUser(c.Request.Context(), caller, c.Param("id"), year)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, resp, nil)
}

func (h *Handler) Override(c *gin.Context) {
	caller := middleware.CallerFromContext(c)
	userID := c.Param("id")
	h.logger.Debug("http override balance", zap.String("actor_id", caller.UserID), zap.String("user_id", userID))

	var req OverrideBalanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("http override balance validation failed", zap.Error(err))
		appErr := apperror.MapValidationError(err)
		response.Error(c, appErr.HTTPStatus, appErr.Code, appErr.Message, err.Error())
		return
	}

	resp, err := h.service.Override(c.Request.Context(), caller, userID, req)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, resp, nil)
}
