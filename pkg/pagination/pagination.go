package pagination

// DefaultPage is the page used when none (or an invalid one) is requested.
const DefaultPage = 1

// DefaultPageSize is the page size used when the requested size is not allowed.
const DefaultPageSize = 25

// AllowedPageSizes is the enumerated set of page sizes clients may request.
var AllowedPageSizes = []int{10, 25, 50, 100, 1000}

// Params holds normalized pagination parameters.
type Params struct {
	Page     int `json:"page"`
	PageSize int `json:"pageSize"`
}

// IsAllowedPageSize reports whether size is one of AllowedPageSizes.
func IsAllowedPageSize(size int) bool {
	for _, s := range AllowedPageSizes {
		if s == size {
			return true
		}
	}
	return false
}

// Normalize coerces page to at least 1 and replaces a page size outside the
// allow-list with DefaultPageSize. It never fails.
func Normalize(page, pageSize int) Params {
	if page < DefaultPage {
		page = DefaultPage
	}
	if !IsAllowedPageSize(pageSize) {
		pageSize = DefaultPageSize
	}
	return Params{Page: page, PageSize: pageSize}
}

// Window returns the [start, end) bounds of the page within a list of total
// items, clamped to [0, total]. Pages past the last one yield an empty
// window; the offset is only computed for pages that exist, so arbitrarily
// large page numbers cannot overflow.
func (p Params) Window(total int) (start, end int) {
	if total <= 0 || p.Page < 1 || p.PageSize <= 0 || p.Page > TotalPages(total, p.PageSize) {
		return max(total, 0), max(total, 0)
	}
	start = (p.Page - 1) * p.PageSize
	end = min(start+p.PageSize, total)
	return start, end
}

// TotalPages returns ceil(total / pageSize), or 0 when total is 0.
func TotalPages(total, pageSize int) int {
	if total <= 0 || pageSize <= 0 {
		return 0
	}
	pages := total / pageSize
	if total%pageSize > 0 {
		pages++
	}
	return pages
}
