package handler

import (
	"errors"
	"net/http"

	"github.com/ashwinyue/todo-chat/internal/service/chat"
	"github.com/ashwinyue/todo-chat/internal/service/tasks"
	"github.com/gin-gonic/gin"
)

// SuccessResponse 成功响应
type SuccessResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
}

// ErrorResponse 错误响应
type ErrorResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// Success 成功响应 (200)
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, SuccessResponse{Success: true, Data: data})
}

// Created 创建成功响应 (201)
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, SuccessResponse{Success: true, Data: data})
}

// NoContent 无内容响应 (204)
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// BadRequest 400 错误响应
func BadRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Code: 400, Msg: msg})
}

// Unauthorized 401 错误响应
func Unauthorized(c *gin.Context, msg string) {
	c.JSON(http.StatusUnauthorized, ErrorResponse{Code: 401, Msg: msg})
}

// NotFound 404 错误响应
func NotFound(c *gin.Context, msg string) {
	c.JSON(http.StatusNotFound, ErrorResponse{Code: 404, Msg: msg})
}

// InternalServerError 500 错误响应
func InternalServerError(c *gin.Context, msg string) {
	c.JSON(http.StatusInternalServerError, ErrorResponse{Code: 500, Msg: msg})
}

// Error 根据错误类型返回相应的错误响应
func Error(c *gin.Context, err error) {
	if err == nil {
		return
	}

	switch {
	case errors.Is(err, tasks.ErrTaskNotFound),
		errors.Is(err, chat.ErrConversationNotFound):
		NotFound(c, err.Error())
	case errors.Is(err, tasks.ErrInvalidTitle),
		errors.Is(err, tasks.ErrInvalidDueDate),
		errors.Is(err, tasks.ErrInvalidStatus),
		errors.Is(err, tasks.ErrAmbiguousTitle),
		errors.Is(err, chat.ErrEmptyMessage):
		BadRequest(c, err.Error())
	default:
		InternalServerError(c, err.Error())
	}
}
