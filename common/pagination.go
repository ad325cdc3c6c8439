package common

import (
	"math"
	"strconv"

	"github.com/gin-gonic/gin"
)

const (
	// DefaultPerPage is used by public listings.
	DefaultPerPage = 20
	// AdminPerPage is used by admin management listings.
	AdminPerPage = 10
	// MaxPerPage caps any requested page size.
	MaxPerPage = 100

	maxPage = math.MaxInt/MaxPerPage + 1
)

// Pagination is a resolved page request. Skip and Take are derived from
// Page and PerPage.
type Pagination struct {
	Page    int
	PerPage int
	Skip    int
	Take    int
}

// Meta is the pagination block returned alongside list data.
type Meta struct {
	Total   int64 `json:"total"`
	Page    int   `json:"page"`
	PerPage int   `json:"per_page"`
	Skip    int   `json:"skip"`
	Take    int   `json:"take"`
}

// Page holds one page of items and its meta.
type Page[T any] struct {
	Items []T
	Meta  Meta
}

// NewPagination clamps perPage to [1, MaxPerPage] and page to at least 1.
// Page is also capped so Skip never overflows.
func NewPagination(page, perPage int) Pagination {
	page = min(max(page, 1), maxPage)
	perPage = min(max(perPage, 1), MaxPerPage)
	return Pagination{
		Page:    page,
		PerPage: perPage,
		Skip:    (page - 1) * perPage,
		Take:    perPage,
	}
}

// PaginationFromQuery reads page and per_page from the query string. Missing,
// zero or unparsable values fall back to page 1 and defaultPerPage.
func PaginationFromQuery(c *gin.Context, defaultPerPage int) Pagination {
	page := queryInt(c, "page", 1)
	perPage := queryInt(c, "per_page", defaultPerPage)
	return NewPagination(page, perPage)
}

func queryInt(c *gin.Context, key string, fallback int) int {
	n, err := strconv.Atoi(c.Query(key))
	if err != nil || n == 0 {
		return fallback
	}
	return n
}

// Meta builds the response meta for total items.
func (p Pagination) Meta(total int64) Meta {
	return Meta{Total: total, Page: p.Page, PerPage: p.PerPage, Skip: p.Skip, Take: p.Take}
}

// Paginate slices an in-memory list. Total is the length of the full list.
func Paginate[T any](items []T, p Pagination) Page[T] {
	total := len(items)
	start := p.Skip
	if start < 0 || start > total {
		start = total
	}
	end := start + min(max(p.Take, 0), total-start)
	out := make([]T, end-start)
	copy(out, items[start:end])
	return Page[T]{Items: out, Meta: p.Meta(int64(total))}
}
