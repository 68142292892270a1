package handler

import (
	"errors"
	"net/http"

	"github.com/ogurasousui/user-service/internal/core/registration"
	"github.com/ogurasousui/user-service/internal/core/user"
)

const (
	codeValidation = "VALIDATION_ERROR"
	codeConflict   = "CONFLICT"
	codeNotFound   = "NOT_FOUND"
	codeExternal   = "EXTERNAL_SERVICE_ERROR"
	codeUnauth     = "UNAUTHORIZED"
	codeInternal   = "INTERNAL_ERROR"
)

type httpError struct {
	status  int
	code    string
	message string
}

// toHTTPError はドメインエラーを HTTP ステータスに変換します。内部エラーの詳細は返しません。
func toHTTPError(err error) httpError {
	switch {
	case user.IsValidationError(err), errors.Is(err, registration.ErrInvalidPassword):
		return httpError{status: http.StatusBadRequest, code: codeValidation, message: err.Error()}
	case errors.Is(err, user.ErrEmailAlreadyExists):
		return httpError{status: http.StatusConflict, code: codeConflict, message: "email already exists"}
	case errors.Is(err, user.ErrUserNotFound):
		return httpError{status: http.StatusNotFound, code: codeNotFound, message: "user not found"}
	case errors.Is(err, registration.ErrExternalService):
		return httpError{status: http.StatusBadGateway, code: codeExternal, message: "registration could not be completed, please retry"}
	default:
		return httpError{status: http.StatusInternalServerError, code: codeInternal, message: "internal server error"}
	}
}
