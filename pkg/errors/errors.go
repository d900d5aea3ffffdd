package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors shared by accessors, services and the HTTP responder.
var (
	ErrNotFound      = errors.New("resource not found")
	ErrInvalidInput  = errors.New("invalid input")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrForbidden     = errors.New("forbidden")
	ErrBusinessRule  = errors.New("business rule violation")
	ErrConflict      = errors.New("conflict")
	ErrInternal      = errors.New("internal error")
	ErrUnavailable   = errors.New("service unavailable")
	ErrInsufficient  = errors.New("insufficient stock")
	ErrInvalidFilter = errors.New("invalid filter")
)

// User-facing messages. The storefront is Vietnamese, so the client-visible
// text stays in that language.
const (
	MsgNotFound          = "Không tìm thấy dữ liệu với ID này"
	MsgForbidden         = "Bạn không có quyền để thực hiện"
	MsgUnauthorized      = "Bạn chưa đăng nhập"
	MsgInsufficientStock = "Số lượng hàng %s trong kho không đủ"
	MsgInternal          = "Đã có lỗi xảy ra"
)

// AppError is an error with a machine-readable code and an HTTP status.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NotFound creates a 404 error carrying the localized message.
func NotFound() *AppError {
	return &AppError{
		Code:    "NOT_FOUND",
		Message: MsgNotFound,
		Status:  http.StatusNotFound,
		Err:     ErrNotFound,
	}
}

// InvalidInput creates a 400 error.
func InvalidInput(message string) *AppError {
	return &AppError{
		Code:    "INVALID_INPUT",
		Message: message,
		Status:  http.StatusBadRequest,
		Err:     ErrInvalidInput,
	}
}

// Unauthorized creates a 401 error.
func Unauthorized(message string) *AppError {
	if message == "" {
		message = MsgUnauthorized
	}
	return &AppError{
		Code:    "UNAUTHORIZED",
		Message: message,
		Status:  http.StatusUnauthorized,
		Err:     ErrUnauthorized,
	}
}

// Forbidden creates a 403 error carrying the localized message.
func Forbidden() *AppError {
	return &AppError{
		Code:    "FORBIDDEN",
		Message: MsgForbidden,
		Status:  http.StatusForbidden,
		Err:     ErrForbidden,
	}
}

// BusinessRuleViolation creates a 422 error for a rejected domain operation.
func BusinessRuleViolation(message string, cause error) *AppError {
	if cause == nil {
		cause = ErrBusinessRule
	} else {
		cause = fmt.Errorf("%w: %w", ErrBusinessRule, cause)
	}
	return &AppError{
		Code:    "BUSINESS_RULE_VIOLATION",
		Message: message,
		Status:  http.StatusUnprocessableEntity,
		Err:     cause,
	}
}

// InsufficientStock reports that an item cannot cover the requested quantity.
// Long titles are cut to 40 characters.
func InsufficientStock(title string) *AppError {
	r := []rune(title)
	if len(r) > 40 {
		title = string(r[:40])
	}
	return BusinessRuleViolation(fmt.Sprintf(MsgInsufficientStock, title), ErrInsufficient)
}

// Internal creates a 500 error.
func Internal(err error) *AppError {
	return &AppError{
		Code:    "INTERNAL_ERROR",
		Message: MsgInternal,
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	return fmt.Errorf("%s: %w", message, err)
}

// HTTPStatus returns the HTTP status code for the given error.
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrInvalidFilter):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrBusinessRule), errors.Is(err, ErrInsufficient):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
