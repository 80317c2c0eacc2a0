package leave

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"go-leave/internal/middleware"
	"go-leave/internal/shared/apperror"
	"go-leave/internal/shared/response"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const idempotencyResultTTL = 24 * time.Hour

type Handler struct {
	service Service
	rdb     *redis.Client
	logger  *zap.Logger
}

func NewHandler(service Service, logger ...*zap.Logger) *Handler {
	return NewHandlerWithRedis(service, nil, logger...)
}

// NewHandlerWithRedis stores created requests under the idempotency cache key
// prepared by middleware.Idempotency.
func NewHandlerWithRedis(service Service, rdb *redis.Client, logger ...*zap.Logger) *Handler {
	l := zap.L().Named("leave.handler")
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0].Named("leave.handler")
	}
	return &Handler{service: service, rdb: rdb, logger: l}
}

func (h *Handler) writeServiceError(c *gin.Context, err error) {
	httpErr := apperror.ToHTTP(err)
	h.logger.Warn("leave request failed",
		zap.String("method", c.Request.Method),
		zap.String("path", c.FullPath()),
		zap.Int("status", httpErr.Status),
		zap.String("code", httpErr.Code),
		zap.String("message", httpErr.Message),
	)
	response.Error(c, httpErr.Status, httpErr.Code, httpErr.Message, httpErr.Details)
}

func (h *Handler) writeBindError(c *gin.Context, err error) {
	appErr := apperror.MapValidationError(err)
	response.Error(c, appErr.HTTPStatus, appErr.Code, appErr.Message, err.Error())
}

func (h *Handler) Create(c *gin.Context) {
	ctx := c.Request.Context()
	lockKey := c.GetString(middleware.ContextIdempotencyLockKey)
	cacheKey := c.GetString(middleware.ContextIdempotencyCacheKey)
	if h.rdb != nil && lockKey != "" {
		defer h.rdb.Del(ctx, lockKey)
	}

	caller := middleware.CallerFromContext(c)
	h.logger.Debug("http create leave", zap.String("user_id", caller.UserID))

	var req CreateLeaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("http create leave validation failed", zap.Error(err))
		h.writeBindError(c, err)
		return
	}

	resp, err := h.service.Create(ctx, caller, req)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	if h.rdb != nil && cacheKey != "" {
		if payload, marshalErr := json.Marshal(resp); marshalErr == nil {
			if setErr := h.rdb.Set(ctx, cacheKey, payload, idempotencyResultTTL).Err(); setErr != nil {
				h.logger.Warn("idempotency result not cached", zap.String("key", cacheKey), zap.Error(setErr))
			}
		}
	}

	response.Success(c, http.StatusCreated, resp, nil)
}

func (h *Handler) GetAll(c *gin.Context) {
	caller := middleware.CallerFromContext(c)

	var filter ListLeaveFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.writeBindError(c, err)
		return
	}

	resp, err := h.service.GetAll(c.Request.Context(), caller, filter)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))
	if pageSize < 1 {
		pageSize = 10
	}

	items, meta := response.Paginate(resp, page, pageSize)
	response.Success(c, http.StatusOK, items, &meta)
}

func (h *Handler) GetByID(c *gin.Context) {
	caller := middleware.CallerFromContext(c)

	resp, err := h.service.GetByID(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, resp, nil)
}

// bindDecision accepts an empty body as a decision without comment.
func (h *Handler) bindDecision(c *gin.Context) (DecisionRequest, bool) {
	var req DecisionRequest
	if c.Request.ContentLength == 0 {
		return req, true
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("http leave decision validation failed", zap.Error(err))
		h.writeBindError(c, err)
		return req, false
	}
	return req, true
}

func (h *Handler) Approve(c *gin.Context) {
	caller := middleware.CallerFromContext(c)
	req, ok := h.bindDecision(c)
	if !ok {
		return
	}

	resp, err := h.service.Approve(c.Request.Context(), caller, c.Param("id"), req.Comment)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, resp, nil)
}

func (h *Handler) Reject(c *gin.Context) {
	caller := middleware.CallerFromContext(c)
	req, ok := h.bindDecision(c)
	if !ok {
		return
	}

	resp, err := h.service.Reject(c.Request.Context(), caller, c.Param("id"), req.Comment)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, resp, nil)
}
