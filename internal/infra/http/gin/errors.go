package ginserver

import (
	"context"
	"errors"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"staypay/internal/app/services/calculation"
)

// ErrorMapper maps failure codes to HTTP statuses.
type ErrorMapper struct {
	statuses      map[calculation.Code]int
	defaultStatus int
}

func NewErrorMapper() *ErrorMapper {
	return &ErrorMapper{
		statuses:      make(map[calculation.Code]int),
		defaultStatus: http.StatusInternalServerError,
	}
}

func (m *ErrorMapper) WithMapping(code calculation.Code, status int) *ErrorMapper {
	m.statuses[code] = status
	return m
}

func (m *ErrorMapper) WithDefault(status int) *ErrorMapper {
	m.defaultStatus = status
	return m
}

// Map returns the status and the user-visible failure of err.
func (m *ErrorMapper) Map(err error) (int, calculation.Failure) {
	if errors.Is(err, context.Canceled) {
		return http.StatusServiceUnavailable, calculation.Failure{Code: calculation.CodeTimeout, Message: "request cancelled"}
	}
	failure := calculation.Describe(err)
	if status, ok := m.statuses[failure.Code]; ok {
		return status, failure
	}
	return m.defaultStatus, failure
}

var defaultErrors = NewErrorMapper().
	WithMapping(calculation.CodeInvalidRange, http.StatusBadRequest).
	WithMapping(calculation.CodeInvalidRequest, http.StatusBadRequest).
	WithMapping(calculation.CodeInvalidPaymentOption, http.StatusBadRequest).
	WithMapping(calculation.CodeStartInPast, http.StatusUnprocessableEntity).
	WithMapping(calculation.CodeNoApplicableTier, http.StatusUnprocessableEntity).
	WithMapping(calculation.CodeOfferingNotFound, http.StatusNotFound).
	WithMapping(calculation.CodeBookingNotFound, http.StatusNotFound).
	WithMapping(calculation.CodeMilestoneNotFound, http.StatusNotFound).
	WithMapping(calculation.CodeMilestoneNotPayable, http.StatusConflict).
	WithMapping(calculation.CodeOverpaidAfterEdit, http.StatusConflict).
	WithMapping(calculation.CodeConcurrentUpdate, http.StatusConflict).
	WithMapping(calculation.CodePersistenceFailure, http.StatusServiceUnavailable).
	WithMapping(calculation.CodeTimeout, http.StatusGatewayTimeout).
	WithDefault(http.StatusInternalServerError)

func writeError(c *gin.Context, err error) {
	status, failure := defaultErrors.Map(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.JSON(status, gin.H{"error": failure})
}

func writeBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": calculation.Failure{Code: calculation.CodeInvalidRequest, Message: message}})
}
