package format

// Pagination is the page metadata of a paginated result. Totals are nil
// for simple pagination, which issues no count query.
type Pagination struct {
	Page         int    `json:"page"`
	MaxRows      int    `json:"maxRows"`
	TotalRecords *int64 `json:"totalRecords,omitempty"`
	TotalPages   *int64 `json:"totalPages,omitempty"`
}

// Paginated wraps formatted results with their page metadata.
type Paginated struct {
	Pagination Pagination `json:"pagination"`
	Results    any        `json:"results"`
}

// NewPagination builds page metadata with totals.
func NewPagination(page, maxRows int, total int64) Pagination {
	pages := TotalPages(total, maxRows)
	return Pagination{Page: page, MaxRows: maxRows, TotalRecords: &total, TotalPages: &pages}
}

// NewSimplePagination builds page metadata without totals.
func NewSimplePagination(page, maxRows int) Pagination {
	return Pagination{Page: page, MaxRows: maxRows}
}

// TotalPages is ceil(total / maxRows), or zero when either is not positive.
func TotalPages(total int64, maxRows int) int64 {
	if total <= 0 || maxRows <= 0 {
		return 0
	}
	rows := int64(maxRows)
	return (total + rows - 1) / rows
}

// Paginate wraps already formatted results.
func Paginate(results any, p Pagination) *Paginated {
	return &Paginated{Pagination: p, Results: results}
}
