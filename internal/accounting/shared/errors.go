package shared

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Kind classifies ledger failures. Callers branch on the kind, never on the message.
type Kind string

const (
	KindValidation          Kind = "VALIDATION_ERROR"
	KindUnbalanced          Kind = "UNBALANCED_ENTRY"
	KindPeriodClosed        Kind = "PERIOD_CLOSED"
	KindCrossTenant         Kind = "CROSS_TENANT_VIOLATION"
	KindDuplicatePosting    Kind = "DUPLICATE_POSTING"
	KindPeriodAlreadyClosed Kind = "PERIOD_ALREADY_CLOSED"
	KindOutOfOrderClose     Kind = "OUT_OF_ORDER_CLOSE"
	KindAccountInUse        Kind = "ACCOUNT_IN_USE"
	KindNotFound            Kind = "NOT_FOUND"
)

// Error is the generic ledger error carrying a kind and the offending field.
type Error struct {
	Kind    Kind
	Field   string
	Message string
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("accounting: %s: %s", e.Field, e.Message)
	}
	return "accounting: " + e.Message
}

// Is matches any ledger error of the same kind.
func (e *Error) Is(target error) bool {
	return kindMatches(target, e.Kind)
}

// LedgerKind exposes the kind to KindOf.
func (e *Error) LedgerKind() Kind { return e.Kind }

var (
	// ErrValidation indicates malformed input.
	ErrValidation = &Error{Kind: KindValidation, Message: "invalid input"}
	// ErrUnbalanced indicates debit != credit.
	ErrUnbalanced = &Error{Kind: KindUnbalanced, Message: "journal lines must balance"}
	// ErrPeriodClosed indicates the transaction date falls in a closed month.
	ErrPeriodClosed = &Error{Kind: KindPeriodClosed, Message: "period is closed"}
	// ErrCrossTenant indicates a reference to another tenant's data.
	ErrCrossTenant = &Error{Kind: KindCrossTenant, Message: "cross-tenant reference"}
	// ErrDuplicatePosting indicates the reference binding is already posted.
	ErrDuplicatePosting = &Error{Kind: KindDuplicatePosting, Message: "source already posted"}
	// ErrPeriodAlreadyClosed indicates a repeated close.
	ErrPeriodAlreadyClosed = &Error{Kind: KindPeriodAlreadyClosed, Message: "period already closed"}
	// ErrOutOfOrderClose indicates an earlier month is still open.
	ErrOutOfOrderClose = &Error{Kind: KindOutOfOrderClose, Message: "earlier period still open"}
	// ErrAccountInUse indicates the account has posted lines.
	ErrAccountInUse = &Error{Kind: KindAccountInUse, Message: "account has postings"}
	// ErrNotFound indicates a missing account, entry or month.
	ErrNotFound = &Error{Kind: KindNotFound, Message: "not found"}
)

// Validation builds a validation error for a field.
func Validation(field, format string, args ...any) error {
	return &Error{Kind: KindValidation, Field: field, Message: fmt.Sprintf(format, args...)}
}

// NotFound builds a not found error for a resource.
func NotFound(resource string, id int64) error {
	return &Error{Kind: KindNotFound, Field: resource, Message: fmt.Sprintf("%d not found", id)}
}

// AccountInUse builds the error returned when deleting an account with postings.
func AccountInUse(accountID int64) error {
	return &Error{Kind: KindAccountInUse, Field: "account", Message: fmt.Sprintf("%d has posted lines", accountID)}
}

// UnbalancedError reports the totals of an entry that failed the balance check.
type UnbalancedError struct {
	Debit  decimal.Decimal
	Credit decimal.Decimal
}

func (e *UnbalancedError) Error() string {
	return fmt.Sprintf("accounting: journal lines must balance: debit %s credit %s", e.Debit.String(), e.Credit.String())
}

func (e *UnbalancedError) Is(target error) bool { return kindMatches(target, KindUnbalanced) }

func (e *UnbalancedError) LedgerKind() Kind { return KindUnbalanced }

// PeriodClosedError carries the rejected date and the boundary of the open period.
type PeriodClosedError struct {
	TenantID    int64
	Date        time.Time
	PeriodStart time.Time
	PeriodEnd   time.Time
	OpenFrom    time.Time
}

func (e *PeriodClosedError) Error() string {
	return fmt.Sprintf("accounting: period %s..%s is closed for %s, open from %s",
		e.PeriodStart.Format(time.DateOnly), e.PeriodEnd.Format(time.DateOnly),
		e.Date.Format(time.DateOnly), e.OpenFrom.Format(time.DateOnly))
}

func (e *PeriodClosedError) Is(target error) bool { return kindMatches(target, KindPeriodClosed) }

func (e *PeriodClosedError) LedgerKind() Kind { return KindPeriodClosed }

// CrossTenantError identifies the foreign resource.
type CrossTenantError struct {
	TenantID   int64
	OwnerID    int64
	Resource   string
	ResourceID int64
}

func (e *CrossTenantError) Error() string {
	return fmt.Sprintf("accounting: %s %d belongs to tenant %d, not %d", e.Resource, e.ResourceID, e.OwnerID, e.TenantID)
}

func (e *CrossTenantError) Is(target error) bool { return kindMatches(target, KindCrossTenant) }

func (e *CrossTenantError) LedgerKind() Kind { return KindCrossTenant }

// DuplicatePostingError points at the entry already holding the reference.
type DuplicatePostingError struct {
	TenantID  int64
	Kind      string
	SourceID  int64
	Qualifier string
	EntryID   int64
}

func (e *DuplicatePostingError) Error() string {
	ref := fmt.Sprintf("%s#%d", e.Kind, e.SourceID)
	if e.Qualifier != "" {
		ref += "/" + e.Qualifier
	}
	if e.EntryID > 0 {
		return fmt.Sprintf("accounting: %s already posted as entry %d", ref, e.EntryID)
	}
	return fmt.Sprintf("accounting: %s already posted", ref)
}

func (e *DuplicatePostingError) Is(target error) bool { return kindMatches(target, KindDuplicatePosting) }

func (e *DuplicatePostingError) LedgerKind() Kind { return KindDuplicatePosting }

// OutOfOrderCloseError reports the month that must be closed first.
type OutOfOrderCloseError struct {
	TenantID    int64
	Month       time.Time
	PendingFrom time.Time
}

func (e *OutOfOrderCloseError) Error() string {
	return fmt.Sprintf("accounting: cannot close %s while %s is open",
		e.Month.Format("2006-01"), e.PendingFrom.Format("2006-01"))
}

func (e *OutOfOrderCloseError) Is(target error) bool { return kindMatches(target, KindOutOfOrderClose) }

func (e *OutOfOrderCloseError) LedgerKind() Kind { return KindOutOfOrderClose }

type kinded interface {
	LedgerKind() Kind
}

func kindMatches(target error, kind Kind) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == kind
}

// KindOf returns the ledger kind of err, or "" when err is not a ledger error.
func KindOf(err error) Kind {
	var k kinded
	if errors.As(err, &k) {
		return k.LedgerKind()
	}
	return ""
}
