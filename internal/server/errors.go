package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	apikeydomain "github.com/smallbiznis/switchboard/internal/apikey/domain"
	auditdomain "github.com/smallbiznis/switchboard/internal/audit/domain"
	authdomain "github.com/smallbiznis/switchboard/internal/auth/domain"
	"github.com/smallbiznis/switchboard/internal/authorization"
	billingdomain "github.com/smallbiznis/switchboard/internal/billing/domain"
	calldomain "github.com/smallbiznis/switchboard/internal/call/domain"
	integrationdomain "github.com/smallbiznis/switchboard/internal/integration/domain"
	"github.com/smallbiznis/switchboard/internal/mightycall"
	orgdomain "github.com/smallbiznis/switchboard/internal/organization/domain"
	phonenumberdomain "github.com/smallbiznis/switchboard/internal/phonenumber/domain"
	reconciledomain "github.com/smallbiznis/switchboard/internal/reconcile/domain"
	recordingdomain "github.com/smallbiznis/switchboard/internal/recording/domain"
	supportdomain "github.com/smallbiznis/switchboard/internal/support/domain"
	userdomain "github.com/smallbiznis/switchboard/internal/user/domain"
	"github.com/smallbiznis/switchboard/pkg/db"
	"github.com/smallbiznis/switchboard/pkg/db/pagination"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

// errorResponse is the envelope of every failed request. Detail is only set
// for client errors.
type errorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrConflict           = errors.New("conflict")
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrRateLimited        = errors.New("rate_limited")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

var unauthorizedErrors = []error{
	ErrUnauthorized,
	authorization.ErrUnauthenticated,
	authdomain.ErrInvalidCredentials,
	authdomain.ErrInvalidSession,
	authdomain.ErrSessionNotFound,
	authdomain.ErrSessionExpired,
	authdomain.ErrSessionRevoked,
	apikeydomain.ErrInvalidKey,
}

var forbiddenErrors = []error{
	ErrForbidden,
	authorization.ErrForbidden,
	supportdomain.ErrNotMember,
}

var badRequestErrors = []error{
	ErrInvalidRequest,
	pagination.ErrInvalidPageToken,
	authorization.ErrInvalidOrganization,
	authorization.ErrInvalidObject,
	authorization.ErrInvalidAction,
	authdomain.ErrInvalidEmail,
	authdomain.ErrWeakPassword,
	authdomain.ErrInvalidGlobalRole,
	orgdomain.ErrInvalidUser,
	orgdomain.ErrInvalidOrganization,
	orgdomain.ErrInvalidName,
	orgdomain.ErrInvalidTimezone,
	orgdomain.ErrInvalidRole,
	orgdomain.ErrInvalidSLATarget,
	orgdomain.ErrInvalidEmail,
	orgdomain.ErrNotManager,
	userdomain.ErrInvalidUser,
	userdomain.ErrNotPlatformRole,
	calldomain.ErrInvalidOrganization,
	calldomain.ErrInvalidRange,
	calldomain.ErrInvalidDate,
	apikeydomain.ErrInvalidOrganization,
	apikeydomain.ErrInvalidScope,
	apikeydomain.ErrInvalidName,
	apikeydomain.ErrInvalidKeyID,
	auditdomain.ErrInvalidAction,
	auditdomain.ErrInvalidPageToken,
	integrationdomain.ErrInvalidOrganization,
	integrationdomain.ErrInvalidCredentials,
	phonenumberdomain.ErrMissingRequiredFields,
	supportdomain.ErrInvalidSubject,
	supportdomain.ErrInvalidMessage,
	supportdomain.ErrInvalidPriority,
	supportdomain.ErrInvalidStatus,
	supportdomain.ErrInvalidReason,
	supportdomain.ErrInvalidUser,
	supportdomain.ErrOrgRequired,
	supportdomain.ErrNoMembership,
	billingdomain.ErrInvalidOrganization,
	billingdomain.ErrInvalidName,
	billingdomain.ErrInvalidPrice,
	billingdomain.ErrInvalidCurrency,
	billingdomain.ErrInvalidInterval,
	billingdomain.ErrInvalidQuantity,
	billingdomain.ErrInvalidItems,
	billingdomain.ErrInvalidPeriod,
	billingdomain.ErrInvalidStatus,
	billingdomain.ErrInvalidPageToken,
	billingdomain.ErrPlanInactive,
	reconciledomain.ErrInvalidOrganization,
	reconciledomain.ErrInvalidDate,
	reconciledomain.ErrInvalidRange,
	reconciledomain.ErrUnknownResource,
}

var notFoundErrors = []error{
	ErrNotFound,
	gorm.ErrRecordNotFound,
	authdomain.ErrUserNotFound,
	userdomain.ErrUserNotFound,
	orgdomain.ErrNotFound,
	orgdomain.ErrMemberNotFound,
	phonenumberdomain.ErrNotFound,
	phonenumberdomain.ErrNotFoundForOrg,
	recordingdomain.ErrNotFound,
	recordingdomain.ErrNoURL,
	apikeydomain.ErrNotFound,
	integrationdomain.ErrNotFound,
	supportdomain.ErrNotFound,
	billingdomain.ErrPlanNotFound,
	billingdomain.ErrSubscriptionNotFound,
	billingdomain.ErrInvoiceNotFound,
}

var conflictErrors = []error{
	ErrConflict,
	authdomain.ErrUserExists,
	billingdomain.ErrSubscriptionExists,
	billingdomain.ErrAlreadyCancelled,
	billingdomain.ErrInvalidTransition,
}

// ErrorHandlingMiddleware renders the last handler error. exposeInternal adds
// the raw message to 5xx responses and is only enabled outside production.
func ErrorHandlingMiddleware(exposeInternal bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		if exposeInternal && status >= http.StatusInternalServerError {
			payload.Detail = lastErr.Err.Error()
		}
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, payload)
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request body")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorResponse) {
	if err == nil {
		return http.StatusInternalServerError, errorResponse{Error: "internal_error"}
	}

	if vErr := asValidationErrors(err); vErr != nil && len(vErr.Errors) > 0 {
		first := vErr.Errors[0]
		return http.StatusBadRequest, errorResponse{Error: first.Code, Detail: first.Message}
	}

	var fetchErr *recordingdomain.FetchError
	switch {
	case isAny(err, unauthorizedErrors):
		return http.StatusUnauthorized, errorResponse{Error: "unauthorized"}
	case isAny(err, forbiddenErrors):
		return http.StatusForbidden, errorResponse{Error: "forbidden"}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorResponse{Error: "rate_limited"}
	case errors.Is(err, reconciledomain.ErrNoPhoneNumbers):
		return http.StatusBadRequest, errorResponse{Error: reconciledomain.ErrNoPhoneNumbers.Error()}
	case isAny(err, badRequestErrors):
		return http.StatusBadRequest, errorResponse{Error: matchedCode(err, badRequestErrors)}
	case isAny(err, notFoundErrors):
		return http.StatusNotFound, errorResponse{Error: notFoundCode(err)}
	case isAny(err, conflictErrors):
		return http.StatusConflict, errorResponse{Error: matchedCode(err, conflictErrors)}
	case db.IsDuplicateKeyErr(err):
		return http.StatusConflict, errorResponse{Error: "conflict"}
	case mightycall.IsUpstream(err), errors.As(err, &fetchErr):
		return http.StatusBadGateway, errorResponse{Error: "upstream_fetch_failed"}
	case errors.Is(err, integrationdomain.ErrNotConfigured), errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable, errorResponse{Error: "service_unavailable"}
	default:
		return http.StatusInternalServerError, errorResponse{Error: "internal_error"}
	}
}

// classifyErrorForLog feeds the request logger with a coarse error type and
// the response code.
func classifyErrorForLog(err error) (string, string) {
	status, payload := mapError(err)
	switch {
	case status == http.StatusBadGateway:
		return "upstream", payload.Error
	case status >= http.StatusInternalServerError:
		return "internal", payload.Error
	default:
		return "client", payload.Error
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isAny(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func matchedCode(err error, targets []error) string {
	for _, target := range targets {
		if errors.Is(err, target) {
			return target.Error()
		}
	}
	return "invalid_request"
}

func notFoundCode(err error) string {
	if errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, ErrNotFound) {
		return "not_found"
	}
	return matchedCode(err, notFoundErrors)
}
