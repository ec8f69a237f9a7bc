package store

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Page is one zero-indexed page of a listing.
type Page[T any] struct {
	Items []T
	Page  int
	Size  int
	Total int
}

func (p Page[T]) TotalPages() int {
	if p.Size <= 0 || p.Total == 0 {
		return 0
	}
	return (p.Total + p.Size - 1) / p.Size
}

// NormalizePage clamps a requested page index and size to usable values.
func NormalizePage(page, size int) (int, int) {
	if page < 0 {
		page = 0
	}
	if size <= 0 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	return page, size
}
