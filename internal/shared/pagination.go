package shared

import (
	"fmt"
	"math"
	"strings"
)

const (
	// DefaultPageSize applies when the caller does not ask for a size.
	DefaultPageSize = 20
	// MaxPageSize caps the page size a caller may request.
	MaxPageSize = 200
	// MaxPage keeps (page-1)*MaxPageSize inside a 32-bit int.
	MaxPage = math.MaxInt32 / MaxPageSize
)

// Pagination contains metadata for paginated listings.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"size"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// NewPagination computes pagination metadata.
func NewPagination(page, perPage, total int) Pagination {
	page, perPage = NormalizePage(page, perPage)
	totalPages := int(math.Ceil(float64(total) / float64(perPage)))
	return Pagination{Page: page, PerPage: perPage, Total: total, TotalPages: totalPages}
}

// NormalizePage clamps page to >= 1 and perPage to [1, MaxPageSize].
func NormalizePage(page, perPage int) (int, int) {
	if perPage <= 0 {
		perPage = DefaultPageSize
	}
	if perPage > MaxPageSize {
		perPage = MaxPageSize
	}
	if page <= 0 {
		page = 1
	}
	return page, perPage
}

// ValidatePage rejects page numbers whose row offset cannot be represented.
func ValidatePage(page int) error {
	if page > MaxPage {
		return fmt.Errorf("%w: page must not exceed %d", ErrValidation, MaxPage)
	}
	return nil
}

// Offset returns the row offset of page for the given size. Pages past
// MaxPage are treated as MaxPage.
func Offset(page, perPage int) int {
	page, perPage = NormalizePage(page, perPage)
	page = min(page, MaxPage)
	return (page - 1) * perPage
}

// SortDirection is either ASC or DESC.
type SortDirection string

const (
	SortAsc  SortDirection = "ASC"
	SortDesc SortDirection = "DESC"
)

// ParseSortDirection defaults anything that is not "desc" to ascending.
func ParseSortDirection(raw string) SortDirection {
	if strings.EqualFold(strings.TrimSpace(raw), "desc") {
		return SortDesc
	}
	return SortAsc
}
