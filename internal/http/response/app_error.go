package response

import (
	"errors"

	"github.com/gin-gonic/gin"
)

// AppError 接口错误：业务码、消息键与本地化后的提示；Err 只进日志，不回传给客户端
type AppError struct {
	Code    int
	Key     string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	text := e.Message
	if text == "" {
		text = e.Key
	}
	if e.Err == nil {
		return text
	}
	return text + ": " + e.Err.Error()
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// ServerSide 5xx 类错误（本服务或上游故障）
func (e *AppError) ServerSide() bool {
	return e.Code >= CodeInternal
}

// Write 以统一信封写出
func (e *AppError) Write(c *gin.Context) {
	Error(c, e.Code, e.Message)
}

// WrapError 包装错误
func WrapError(code int, key, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Key:     key,
		Message: message,
		Err:     err,
	}
}

// AsAppError 从错误链中取出 AppError
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
