package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/medipredict/internal/risk"
	"github.com/medipredict/internal/service"
	"go.uber.org/zap"
)

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

func respondErrorDetail(c *gin.Context, status int, message string, err error) {
	c.JSON(status, gin.H{"error": message, "detail": err.Error()})
}

func bindJSON(c *gin.Context, dst interface{}, message string) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		respondError(c, http.StatusBadRequest, message)
		return false
	}
	return true
}

func parseUintParam(c *gin.Context, key string) (uint, error) {
	raw := c.Param(key)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return uint(id), nil
}

// handleServiceError 将服务层的哨兵错误映射为 HTTP 状态码，未识别的错误记录日志后返回 fallback
func (a *API) handleServiceError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, service.ErrUnauthenticated):
		respondError(c, http.StatusUnauthorized, "请先登录")
	case errors.Is(err, service.ErrInvalidCredentials):
		respondError(c, http.StatusUnauthorized, "用户名或密码错误")
	case errors.Is(err, service.ErrUsernameTaken):
		respondError(c, http.StatusConflict, "用户名已存在")
	case errors.Is(err, service.ErrValidation):
		respondErrorDetail(c, http.StatusBadRequest, "请求参数不合法", err)
	case errors.Is(err, service.ErrUserNotFound):
		respondError(c, http.StatusNotFound, "用户不存在")
	case errors.Is(err, service.ErrMedicationNotFound):
		respondError(c, http.StatusNotFound, "用药不存在")
	case errors.Is(err, service.ErrEstimatorNotFound):
		respondError(c, http.StatusNotFound, "模型不存在或已过期")
	case errors.Is(err, risk.ErrInvalidQuery):
		respondErrorDetail(c, http.StatusBadRequest, "查询参数不合法", err)
	case errors.Is(err, risk.ErrNotFitted), errors.Is(err, risk.ErrInsufficientData):
		respondError(c, http.StatusUnprocessableEntity, "数据不足，无法评估风险")
	default:
		a.logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		respondError(c, http.StatusInternalServerError, fallback)
	}
}
