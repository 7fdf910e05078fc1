package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	membershipdomain "github.com/smallbiznis/fanvault/internal/membership/domain"
	messagedomain "github.com/smallbiznis/fanvault/internal/message/domain"
	paymentdomain "github.com/smallbiznis/fanvault/internal/payment/domain"
	plandomain "github.com/smallbiznis/fanvault/internal/plan/domain"
)

type errorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var ErrInvalidRequest = errors.New("invalid_request")

// ErrorHandlingMiddleware converts domain errors queued on the context into
// one JSON error response. Services never shape HTTP themselves.
func ErrorHandlingMiddleware() gin.HandlerFunc {
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
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func mapError(err error) (int, errorPayload) {
	switch {
	case isValidationError(err):
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: err.Error(),
		}
	case errors.Is(err, paymentdomain.ErrPaymentDeclined):
		return http.StatusPaymentRequired, errorPayload{
			Type:    "payment_declined",
			Message: err.Error(),
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: err.Error(),
		}
	case isConflictError(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: err.Error(),
		}
	case isInvalidStateError(err):
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    "invalid_state",
			Message: err.Error(),
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, plandomain.ErrInvalidCreator),
		errors.Is(err, plandomain.ErrInvalidPlan),
		errors.Is(err, plandomain.ErrInvalidName),
		errors.Is(err, plandomain.ErrInvalidPrice),
		errors.Is(err, plandomain.ErrInvalidCurrency),
		errors.Is(err, membershipdomain.ErrInvalidAccount),
		errors.Is(err, membershipdomain.ErrInvalidPlan),
		errors.Is(err, membershipdomain.ErrInvalidMembership),
		errors.Is(err, membershipdomain.ErrInvalidSourceToken),
		errors.Is(err, messagedomain.ErrInvalidSender),
		errors.Is(err, messagedomain.ErrInvalidRecipient),
		errors.Is(err, messagedomain.ErrInvalidPayer),
		errors.Is(err, messagedomain.ErrInvalidViewer),
		errors.Is(err, messagedomain.ErrInvalidMessage),
		errors.Is(err, messagedomain.ErrEmptyMessage),
		errors.Is(err, messagedomain.ErrInvalidPrice),
		errors.Is(err, paymentdomain.ErrInvalidAmount),
		errors.Is(err, paymentdomain.ErrInvalidAccount),
		errors.Is(err, paymentdomain.ErrInvalidTarget),
		errors.Is(err, paymentdomain.ErrInvalidSourceToken):
		return true
	}
	return false
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, plandomain.ErrPlanNotFound),
		errors.Is(err, membershipdomain.ErrMembershipNotFound),
		errors.Is(err, messagedomain.ErrMessageNotFound):
		return true
	}
	return false
}

func isConflictError(err error) bool {
	switch {
	case errors.Is(err, membershipdomain.ErrChargeInFlight),
		errors.Is(err, messagedomain.ErrUnlockInFlight):
		return true
	}
	return false
}

func isInvalidStateError(err error) bool {
	switch {
	case errors.Is(err, plandomain.ErrPlanInactive),
		errors.Is(err, membershipdomain.ErrInvalidTransition),
		errors.Is(err, membershipdomain.ErrAlreadySubscribed),
		errors.Is(err, membershipdomain.ErrSamePlan),
		errors.Is(err, messagedomain.ErrNotLocked),
		errors.Is(err, messagedomain.ErrAlreadyUnlocked):
		return true
	}
	return false
}
