package promotion

import "net/http"

type ErrorCode string

const (
	ErrPromotionNotFound      ErrorCode = "PROMOTION_NOT_FOUND"
	ErrPromotionInactive      ErrorCode = "PROMOTION_INACTIVE"
	ErrPromotionNotApplicable ErrorCode = "PROMOTION_NOT_APPLICABLE"
	ErrPromotionGroupConflict ErrorCode = "PROMOTION_GROUP_CONFLICT"
	ErrRequiredAddonMissing   ErrorCode = "REQUIRED_ADDON_MISSING"
	ErrSnapshotUnavailable    ErrorCode = "SNAPSHOT_UNAVAILABLE"
	ErrAlreadyRedeemed        ErrorCode = "PROMOTION_ALREADY_REDEEMED"
	ErrMenuNotFound           ErrorCode = "MENU_NOT_FOUND"
)

type Error struct {
	Code       ErrorCode
	Message    string
	StatusCode int
	Details    map[string]any
}

func (e *Error) Error() string {
	return e.Message
}

func newError(code ErrorCode, message string, status int, details map[string]any) *Error {
	return &Error{Code: code, Message: message, StatusCode: status, Details: details}
}

func ValidationError(code ErrorCode, message string, details map[string]any) *Error {
	return newError(code, message, http.StatusBadRequest, details)
}

func NotFoundError(code ErrorCode, message string) *Error {
	return newError(code, message, http.StatusNotFound, nil)
}

func UnavailableError(message string) *Error {
	return newError(ErrSnapshotUnavailable, message, http.StatusServiceUnavailable, nil)
}

func ConflictError(code ErrorCode, message string, details map[string]any) *Error {
	return newError(code, message, http.StatusConflict, details)
}
