package domain

// Page is one window of a paginated listing. TotalCount is the size of the
// full (filtered) result set, not of Items.
type Page[T any] struct {
	Items      []T `json:"items"`
	TotalCount int `json:"totalCount"`
}

// Paginate returns the [start, end) window of a 1-based page over total items.
// Pages past the end yield an empty window. Callers validate page and pageSize
// beforehand; non-positive values are clamped to 1.
func Paginate(total, page, pageSize int) (start, end int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 1
	}
	start = (page - 1) * pageSize
	if start > total || start < 0 {
		return total, total
	}
	end = start + pageSize
	if end > total || end < start {
		end = total
	}
	return start, end
}
