// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// Sentinel errors for transport-level failures.
var (
	ErrBadRequest   = errors.New("malformed request")
	ErrUnauthorized = errors.New("unauthorized")
)

// StatusFor maps a ledger error kind to its HTTP status.
func StatusFor(err error) (int, string) {
	switch shared.KindOf(err) {
	case shared.KindValidation:
		return http.StatusBadRequest, "Validation Failed"
	case shared.KindUnbalanced:
		return http.StatusUnprocessableEntity, "Unbalanced Entry"
	case shared.KindPeriodClosed:
		return http.StatusConflict, "Period Closed"
	case shared.KindCrossTenant:
		return http.StatusForbidden, "Cross Tenant Violation"
	case shared.KindDuplicatePosting:
		return http.StatusConflict, "Duplicate Posting"
	case shared.KindPeriodAlreadyClosed:
		return http.StatusConflict, "Period Already Closed"
	case shared.KindOutOfOrderClose:
		return http.StatusConflict, "Out Of Order Close"
	case shared.KindAccountInUse:
		return http.StatusConflict, "Account In Use"
	case shared.KindNotFound:
		return http.StatusNotFound, "Not Found"
	}
	switch {
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, "Bad Request"
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, "Unauthorized"
	}
	return http.StatusInternalServerError, "Internal Error"
}

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	status, title := StatusFor(err)
	detail := ""
	if status != http.StatusInternalServerError {
		detail = err.Error()
	}
	ProblemWithCode(w, status, title, detail, string(shared.KindOf(err)))
}
