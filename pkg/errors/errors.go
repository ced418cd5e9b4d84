package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

const (
	CodeNotFound     = "NOT_FOUND"
	CodeValidation   = "VALIDATION_ERROR"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"
	CodeConflict     = "CONFLICT"
	CodeInternal     = "INTERNAL_ERROR"
	CodeBadRequest   = "BAD_REQUEST"
	CodeTimeout      = "TIMEOUT"
	CodeUnavailable  = "SERVICE_UNAVAILABLE"
	CodeInvalidInput = "INVALID_INPUT"

	CodeInvalidInterval       = "INVALID_INTERVAL"
	CodeInvalidCapacity       = "INVALID_CAPACITY"
	CodeInvalidRole           = "INVALID_ROLE"
	CodeScheduleConflict      = "SCHEDULE_CONFLICT"
	CodeTooSoonToBook         = "TOO_SOON_TO_BOOK"
	CodeSessionFull           = "SESSION_FULL"
	CodeAlreadyBooked         = "ALREADY_BOOKED"
	CodeHasActiveReservations = "HAS_ACTIVE_RESERVATIONS"
	CodeStoreUnavailable      = "STORE_UNAVAILABLE"
)

type AppError struct {
	Code       string         `json:"code"`
	Message    string         `json:"message"`
	HTTPStatus int            `json:"-"`
	Details    map[string]any `json:"details,omitempty"`
	Err        error          `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func (e *AppError) StatusCode() int {
	return e.HTTPStatus
}

func (e *AppError) ToJSON() []byte {
	response := ErrorResponse{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	}
	data, _ := json.Marshal(response)
	return data
}

type ErrorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func New(code, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

func Wrap(err error, code, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

func (e *AppError) WithDetails(details map[string]any) *AppError {
	e.Details = details
	return e
}

func NotFound(resource string) *AppError {
	return &AppError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
	}
}

func NotFoundWithID(resource, id string) *AppError {
	return &AppError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details: map[string]any{
			"resource": resource,
			"id":       id,
		},
	}
}

func Validation(message string, details map[string]any) *AppError {
	return &AppError{
		Code:       CodeValidation,
		Message:    message,
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    details,
	}
}

func InvalidInput(message string) *AppError {
	return &AppError{
		Code:       CodeInvalidInput,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

func Unauthorized(message string) *AppError {
	return &AppError{
		Code:       CodeUnauthorized,
		Message:    message,
		HTTPStatus: http.StatusUnauthorized,
	}
}

func Forbidden(message string) *AppError {
	return &AppError{
		Code:       CodeForbidden,
		Message:    message,
		HTTPStatus: http.StatusForbidden,
	}
}

func Conflict(message string) *AppError {
	return &AppError{
		Code:       CodeConflict,
		Message:    message,
		HTTPStatus: http.StatusConflict,
	}
}

func Internal(message string, err error) *AppError {
	return &AppError{
		Code:       CodeInternal,
		Message:    message,
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func Timeout(message string) *AppError {
	return &AppError{
		Code:       CodeTimeout,
		Message:    message,
		HTTPStatus: http.StatusGatewayTimeout,
	}
}

func Unavailable(service string) *AppError {
	return &AppError{
		Code:       CodeUnavailable,
		Message:    fmt.Sprintf("%s is temporarily unavailable", service),
		HTTPStatus: http.StatusServiceUnavailable,
	}
}

func InvalidInterval(startsAt, endsAt time.Time) *AppError {
	return &AppError{
		Code:       CodeInvalidInterval,
		Message:    "ends_at must be after starts_at",
		HTTPStatus: http.StatusUnprocessableEntity,
		Details: map[string]any{
			"starts_at": startsAt.Format(time.RFC3339),
			"ends_at":   endsAt.Format(time.RFC3339),
		},
	}
}

func InvalidCapacity(message string, details map[string]any) *AppError {
	return &AppError{
		Code:       CodeInvalidCapacity,
		Message:    message,
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    details,
	}
}

func InvalidRole(userID, role string) *AppError {
	return &AppError{
		Code:       CodeInvalidRole,
		Message:    "User is not an instructor",
		HTTPStatus: http.StatusUnprocessableEntity,
		Details: map[string]any{
			"user_id": userID,
			"role":    role,
		},
	}
}

// ScheduleConflict carries the conflicting session so the caller can pick another slot.
func ScheduleConflict(conflictingID string, startsAt, endsAt time.Time) *AppError {
	return &AppError{
		Code: CodeScheduleConflict,
		Message: fmt.Sprintf("Instructor already teaches a session between %s and %s",
			startsAt.Format(time.RFC3339), endsAt.Format(time.RFC3339)),
		HTTPStatus: http.StatusConflict,
		Details: map[string]any{
			"conflicting_session_id": conflictingID,
			"starts_at":              startsAt.Format(time.RFC3339),
			"ends_at":                endsAt.Format(time.RFC3339),
		},
	}
}

func TooSoonToBook(sessionID string, startsAt time.Time, cutoff time.Duration) *AppError {
	return &AppError{
		Code:       CodeTooSoonToBook,
		Message:    fmt.Sprintf("Reservations close %s before the session starts", cutoff),
		HTTPStatus: http.StatusUnprocessableEntity,
		Details: map[string]any{
			"session_id": sessionID,
			"starts_at":  startsAt.Format(time.RFC3339),
		},
	}
}

func SessionFull(sessionID string, capacity int) *AppError {
	return &AppError{
		Code:       CodeSessionFull,
		Message:    "Session is fully booked",
		HTTPStatus: http.StatusConflict,
		Details: map[string]any{
			"session_id": sessionID,
			"capacity":   capacity,
		},
	}
}

func AlreadyBooked(memberID, sessionID string) *AppError {
	return &AppError{
		Code:       CodeAlreadyBooked,
		Message:    "Member already holds a reservation for this session",
		HTTPStatus: http.StatusConflict,
		Details: map[string]any{
			"member_id":  memberID,
			"session_id": sessionID,
		},
	}
}

func HasActiveReservations(sessionID string, count int64) *AppError {
	return &AppError{
		Code:       CodeHasActiveReservations,
		Message:    "Session still has reservations",
		HTTPStatus: http.StatusConflict,
		Details: map[string]any{
			"session_id":   sessionID,
			"reservations": count,
		},
	}
}

// StoreUnavailable reports a transport or transaction failure at the persistence
// boundary. Callers may retry it with backoff.
func StoreUnavailable(message string, err error) *AppError {
	return &AppError{
		Code:       CodeStoreUnavailable,
		Message:    message,
		HTTPStatus: http.StatusServiceUnavailable,
		Err:        err,
	}
}

func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

func AsAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal("An unexpected error occurred", err)
}

// HasCode reports whether err is an AppError carrying code.
func HasCode(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}
