package references

import (
	"context"
	"strings"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// Lookup finds an entry already holding an exclusive binding.
type Lookup interface {
	EntryByReference(ctx context.Context, tenantID int64, b Binding) (int64, bool, error)
}

// Normalize validates the shape of b and returns it in canonical form.
func Normalize(b Binding) (Binding, error) {
	if b.Kind == "" {
		b.Kind = KindNone
	}
	if !b.Kind.Valid() {
		return Binding{}, shared.Validation("reference.kind", "unknown kind %q", b.Kind)
	}
	b.Qualifier = strings.TrimSpace(b.Qualifier)
	if len(b.Qualifier) > 64 {
		return Binding{}, shared.Validation("reference.qualifier", "longer than 64 characters")
	}
	switch {
	case b.Kind == KindNone && b.SourceID != 0:
		return Binding{}, shared.Validation("reference.source_id", "must be empty for kind %s", KindNone)
	case b.Kind != KindNone && b.SourceID <= 0:
		return Binding{}, shared.Validation("reference.source_id", "required for kind %s", b.Kind)
	}
	return b, nil
}

// Bind validates b and, for exclusive bindings, fails with DuplicatePosting
// when an entry of tenantID already holds it. Call it inside the posting
// transaction; the unique index catches concurrent binders.
func Bind(ctx context.Context, q Lookup, tenantID int64, b Binding) (Token, error) {
	b, err := Normalize(b)
	if err != nil {
		return Token{}, err
	}
	if b.Exclusive {
		entryID, found, err := q.EntryByReference(ctx, tenantID, b)
		if err != nil {
			return Token{}, err
		}
		if found {
			return Token{}, Duplicate(tenantID, b, entryID)
		}
	}
	return Token{TenantID: tenantID, Binding: b}, nil
}

// Duplicate builds the DuplicatePosting error for b.
func Duplicate(tenantID int64, b Binding, entryID int64) error {
	return &shared.DuplicatePostingError{
		TenantID:  tenantID,
		Kind:      string(b.Kind),
		SourceID:  b.SourceID,
		Qualifier: b.Qualifier,
		EntryID:   entryID,
	}
}
