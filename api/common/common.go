package common

import (
	"net/http"

	"github.com/anoixa/menu-storage/storage"
	"github.com/gin-gonic/gin"
)

type Response struct {
	Status string      `json:"status"`
	Msg    string      `json:"msg"`
	Code   string      `json:"code,omitempty"`
	Data   interface{} `json:"data,omitempty"`
}

func Respond(c *gin.Context, httpStatus int, status string, message string, data interface{}) {
	c.JSON(httpStatus, Response{
		Status: status,
		Msg:    message,
		Data:   data,
	})
}

// RespondSuccess sends a success response with data.
func RespondSuccess(c *gin.Context, data interface{}) {
	Respond(c, http.StatusOK, "success", "", data)
}

// RespondSuccessMessage sends a success response with message and data.
func RespondSuccessMessage(c *gin.Context, message string, data interface{}) {
	Respond(c, http.StatusOK, "success", message, data)
}

// RespondError sends an error response with message.
func RespondError(c *gin.Context, httpStatus int, message string) {
	Respond(c, httpStatus, "error", message, nil)
}

// RespondErrorAbort sends an error response and stops the handler chain.
func RespondErrorAbort(c *gin.Context, httpStatus int, message string) {
	RespondError(c, httpStatus, message)
	c.Abort()
}

// RespondStorageError maps a storage error kind to an HTTP status and includes its code.
func RespondStorageError(c *gin.Context, err error) {
	c.JSON(StatusFor(storage.KindOf(err)), Response{
		Status: "error",
		Msg:    err.Error(),
		Code:   storage.CodeOf(err),
	})
}

// StatusFor 错误分类对应的 HTTP 状态码
func StatusFor(kind storage.ErrorKind) int {
	switch kind {
	case "":
		return http.StatusOK
	case storage.KindValidation:
		return http.StatusBadRequest
	case storage.KindConfiguration:
		return http.StatusConflict
	case storage.KindNotFound:
		return http.StatusNotFound
	case storage.KindTransport:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
