package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

func TestStatusForLedgerKinds(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{shared.Validation("lines", "required"), http.StatusBadRequest},
		{&shared.UnbalancedError{}, http.StatusUnprocessableEntity},
		{&shared.PeriodClosedError{}, http.StatusConflict},
		{&shared.CrossTenantError{}, http.StatusForbidden},
		{fmt.Errorf("wrap: %w", &shared.DuplicatePostingError{}), http.StatusConflict},
		{shared.NotFound("entry", 4), http.StatusNotFound},
		{shared.AccountInUse(2), http.StatusConflict},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		status, _ := StatusFor(tc.err)
		require.Equal(t, tc.status, status, tc.err.Error())
	}
}

func TestRespondErrorHidesInternalDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondError(rec, errors.New("pg: connection refused"))
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var body ProblemDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Empty(t, body.Detail)

	rec = httptest.NewRecorder()
	RespondError(rec, &shared.UnbalancedError{})
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, string(shared.KindUnbalanced), body.Code)
	require.NotEmpty(t, body.Detail)
}
