package pagination

const (
	// DefaultLimit is the standard page size when a size is not provided.
	DefaultLimit = 25
	// MaxLimit caps how many rows any page query can request.
	MaxLimit = 100
)

// Params holds numbered page inputs from controllers or services. Pages start at 1.
type Params struct {
	Page int
	Size int
}

// Normalize clamps page and size into their accepted ranges.
func (p Params) Normalize() Params {
	page := p.Page
	if page < 1 {
		page = 1
	}
	return Params{Page: page, Size: NormalizeLimit(p.Size)}
}

// Offset returns the row offset of the normalized page.
func (p Params) Offset() int {
	n := p.Normalize()
	return (n.Page - 1) * n.Size
}

// NormalizeLimit enforces the configured default and maximum limits.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// LimitWithBuffer returns the normalization result plus one to detect the next page.
func LimitWithBuffer(limit int) int {
	return NormalizeLimit(limit) + 1
}

// Page is one numbered slice of an ordered result set.
type Page[T any] struct {
	Items   []T   `json:"items"`
	Page    int   `json:"page"`
	Size    int   `json:"size"`
	Total   int64 `json:"total"`
	HasNext bool  `json:"has_next"`
}

// NewPage assembles a page from rows fetched with LimitWithBuffer.
func NewPage[T any](params Params, rows []T, total int64) Page[T] {
	n := params.Normalize()
	hasNext := len(rows) > n.Size
	if hasNext {
		rows = rows[:n.Size]
	}
	if rows == nil {
		rows = []T{}
	}
	return Page[T]{Items: rows, Page: n.Page, Size: n.Size, Total: total, HasNext: hasNext}
}
