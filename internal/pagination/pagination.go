package pagination

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

const (
	DefaultPage = 1

	// BooksPerPage is the page size of the catalog list.
	BooksPerPage = 12
	// LoansPerPage is the page size of a user's loan history.
	LoansPerPage = 10
)

// Params selects one page of a result set.
type Params struct {
	Page    int
	PerPage int
}

// New builds Params from a raw page query value. Invalid or non-positive
// values fall back to the first page. Pages are capped so the offset stays
// within a 32-bit SQL OFFSET.
func New(rawPage string, perPage int) Params {
	if perPage < 1 {
		perPage = 1
	}
	page, err := strconv.Atoi(strings.TrimSpace(rawPage))
	switch {
	case errors.Is(err, strconv.ErrRange) && page > 0:
		// Atoi saturates at MaxInt; the cap below applies.
	case err != nil || page < 1:
		page = DefaultPage
	}
	if last := MaxPage(perPage); page > last {
		page = last
	}
	return Params{Page: page, PerPage: perPage}
}

// MaxPage is the highest page New accepts for perPage.
func MaxPage(perPage int) int {
	return math.MaxInt32/perPage + 1
}

func (p Params) Limit() int  { return p.PerPage }
func (p Params) Offset() int { return (p.Page - 1) * p.PerPage }

// Meta describes the page returned to the client.
type Meta struct {
	Page       int   `json:"page"`
	PerPage    int   `json:"per_page"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
	HasPrev    bool  `json:"has_prev"`
	NextPage   *int  `json:"next_page,omitempty"`
	PrevPage   *int  `json:"prev_page,omitempty"`
}

// BuildMeta computes page navigation for total items.
func BuildMeta(total int64, p Params) Meta {
	totalPages := 0
	if total > 0 {
		totalPages = int((total + int64(p.PerPage) - 1) / int64(p.PerPage))
	}
	meta := Meta{
		Page:       p.Page,
		PerPage:    p.PerPage,
		Total:      total,
		TotalPages: totalPages,
		HasPrev:    p.Page > 1,
		HasNext:    totalPages > 0 && p.Page < totalPages,
	}
	if meta.HasPrev {
		prev := p.Page - 1
		meta.PrevPage = &prev
	}
	if meta.HasNext {
		next := p.Page + 1
		meta.NextPage = &next
	}
	return meta
}
