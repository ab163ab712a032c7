package shared

const (
	defaultPerPage = 50
	maxPerPage     = 200
)

// Pagination describes one page of a ledger listing.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// NewPagination clamps the requested page and page size to 1..200 rows.
func NewPagination(page, perPage int) Pagination {
	if perPage <= 0 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	if page <= 0 {
		page = 1
	}
	return Pagination{Page: page, PerPage: perPage}
}

// Offset is the number of rows skipped before this page.
func (p Pagination) Offset() int {
	return (p.Page - 1) * p.PerPage
}

// WithTotal fills in the row count and derived page count.
func (p Pagination) WithTotal(total int) Pagination {
	p.Total = total
	p.TotalPages = 0
	if total > 0 {
		p.TotalPages = (total + p.PerPage - 1) / p.PerPage
	}
	return p
}
