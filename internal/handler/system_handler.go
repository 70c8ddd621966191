package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthCheck 命名依赖的就绪探测
type HealthCheck func(ctx context.Context) error

// SystemHandler 系统处理器
type SystemHandler struct {
	checks map[string]HealthCheck
}

// NewSystemHandler 创建系统处理器
func NewSystemHandler(checks map[string]HealthCheck) *SystemHandler {
	return &SystemHandler{checks: checks}
}

// Health 就绪检查
// GET /health
// 逐项探测依赖，任一失败整体降级为 503
func (h *SystemHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := "ok"
	components := gin.H{}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			status = "degraded"
			components[name] = err.Error()
			continue
		}
		components[name] = "ok"
	}

	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}

	c.JSON(code, gin.H{
		"status":     status,
		"components": components,
	})
}
