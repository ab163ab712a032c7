package httpx

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// ValidateStruct runs validator tags on dto and reports the first failing field as a ledger validation error.
func ValidateStruct(v *validator.Validate, dto any) error {
	err := v.Struct(dto)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return shared.Validation(strings.ToLower(fe.Namespace()), "failed %q", fe.Tag())
	}
	return shared.Validation("body", "%v", err)
}

// Int64Param reads a positive integer chi URL parameter.
func Int64Param(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, shared.Validation(name, "invalid id %q", raw)
	}
	return id, nil
}

// DateQuery parses a YYYY-MM-DD query parameter, returning fallback when absent.
func DateQuery(r *http.Request, name string, fallback time.Time) (time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return fallback, nil
	}
	return ParseDate(name, raw)
}

// ParseDate parses a YYYY-MM-DD value in UTC.
func ParseDate(field, raw string) (time.Time, error) {
	d, err := time.ParseInLocation(time.DateOnly, raw, time.UTC)
	if err != nil {
		return time.Time{}, shared.Validation(field, "expected YYYY-MM-DD, got %q", raw)
	}
	return d, nil
}

// IntQuery parses an integer query parameter with a fallback.
func IntQuery(r *http.Request, name string, fallback int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, shared.Validation(name, "%s", fmt.Sprintf("expected integer, got %q", raw))
	}
	return v, nil
}
