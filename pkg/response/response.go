// Package response 提供统一的 HTTP JSON 响应格式
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/ecommerce/pkg/contextx"
)

// Response 统一响应体
type Response struct {
	Code      int    `json:"code"`
	Message   string `json:"message"`
	Data      any    `json:"data,omitempty"`
	Reason    string `json:"reason,omitempty"`
	Detail    string `json:"detail,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// Success 返回成功响应
func Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Response{
		Code:      0,
		Message:   "success",
		Data:      data,
		RequestID: contextx.RequestID(c.Request.Context()),
	})
}

// Created 返回创建成功响应
func Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, Response{
		Code:      0,
		Message:   "created",
		Data:      data,
		RequestID: contextx.RequestID(c.Request.Context()),
	})
}

// ErrorWithStatus 返回错误响应
func ErrorWithStatus(c *gin.Context, status int, message, detail string) {
	ErrorWithReason(c, status, "", message, detail)
}

// ErrorWithReason 返回带机器可读原因码的错误响应
func ErrorWithReason(c *gin.Context, status int, reason, message, detail string) {
	c.AbortWithStatusJSON(status, Response{
		Code:      status,
		Message:   message,
		Reason:    reason,
		Detail:    detail,
		RequestID: contextx.RequestID(c.Request.Context()),
	})
}
