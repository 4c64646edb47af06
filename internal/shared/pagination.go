package shared

import (
	"math"
	"net/url"
	"strconv"
)

const (
	// DefaultPage is used when the page query parameter is absent.
	DefaultPage = 1
	// DefaultLimit is used when the limit query parameter is absent.
	DefaultLimit = 20
	// MaxLimit caps page sizes requested by clients.
	MaxLimit = 200
)

// Pagination contains metadata for paginated listings.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// NewPagination computes pagination metadata.
func NewPagination(page, perPage, total int) Pagination {
	if perPage <= 0 {
		perPage = DefaultLimit
	}
	if page <= 0 {
		page = DefaultPage
	}
	totalPages := int(math.Ceil(float64(total) / float64(perPage)))
	return Pagination{Page: page, PerPage: perPage, Total: total, TotalPages: totalPages}
}

// ListFilters represents standard list query filters.
type ListFilters struct {
	Page    int
	Limit   int
	Search  string
	Status  string
	SortBy  string
	SortDir string
}

// Offset returns the row offset for the current page.
func (f ListFilters) Offset() int {
	if f.Page <= 1 {
		return 0
	}
	return (f.Page - 1) * f.Limit
}

// ParseListFilters reads page, limit, search, status, sort and dir from a query string.
func ParseListFilters(q url.Values) ListFilters {
	page, _ := strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = DefaultPage
	}
	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return ListFilters{
		Page:    page,
		Limit:   limit,
		Search:  q.Get("search"),
		Status:  q.Get("status"),
		SortBy:  q.Get("sort"),
		SortDir: q.Get("dir"),
	}
}

// SortDirection normalises a direction string into ASC or DESC.
func SortDirection(dir string, fallback string) string {
	switch dir {
	case "asc", "ASC":
		return "ASC"
	case "desc", "DESC":
		return "DESC"
	default:
		return fallback
	}
}
