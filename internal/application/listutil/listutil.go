// Package listutil parses paging, sorting and filtering of list requests
// and carries them between the console, its API client and the directory.
package listutil

import (
	"net/url"
	"slices"
	"strconv"
)

// Query parameter names shared by the console and the directory.
const (
	ParamPage    = "page"
	ParamPerPage = "per_page"
	ParamSort    = "sort"
	ParamDir     = "dir"
	ParamSearch  = "q"
)

const (
	DefaultPerPage = 50
	MaxPerPage     = 200
)

// Query is one list request.
type Query struct {
	Page    int // 1-indexed
	PerPage int
	Sort    string
	Dir     string // "asc" or "desc"
	Search  string
	Filters map[string]string
}

// Parse reads a Query from URL values. Unknown sort columns and filter keys
// are dropped.
// POST: Page >= 1; 1 <= PerPage <= MaxPerPage; Dir is "asc" or "desc"
func Parse(q url.Values, sortable, filterKeys []string) Query {
	query := Query{
		Page:    atoiOr(q.Get(ParamPage), 1),
		PerPage: atoiOr(q.Get(ParamPerPage), DefaultPerPage),
		Sort:    q.Get(ParamSort),
		Dir:     q.Get(ParamDir),
		Search:  q.Get(ParamSearch),
		Filters: make(map[string]string),
	}
	if query.Page < 1 {
		query.Page = 1
	}
	if query.PerPage < 1 {
		query.PerPage = DefaultPerPage
	}
	query.PerPage = min(query.PerPage, MaxPerPage)
	if !slices.Contains(sortable, query.Sort) {
		query.Sort = ""
	}
	if query.Dir != "desc" {
		query.Dir = "asc"
	}
	for _, key := range filterKeys {
		if v := q.Get(key); v != "" {
			query.Filters[key] = v
		}
	}
	return query
}

// Offset returns the number of rows before the requested page.
func (q Query) Offset() int {
	return (q.Page - 1) * q.PerPage
}

// Values encodes the query so it can be forwarded. Defaults are omitted.
func (q Query) Values() url.Values {
	v := url.Values{}
	if q.Page > 1 {
		v.Set(ParamPage, strconv.Itoa(q.Page))
	}
	if q.PerPage > 0 && q.PerPage != DefaultPerPage {
		v.Set(ParamPerPage, strconv.Itoa(q.PerPage))
	}
	if q.Sort != "" {
		v.Set(ParamSort, q.Sort)
		v.Set(ParamDir, q.Dir)
	}
	if q.Search != "" {
		v.Set(ParamSearch, q.Search)
	}
	for key, value := range q.Filters {
		v.Set(key, value)
	}
	return v
}

// WithPage returns a copy of q pointing at another page.
func (q Query) WithPage(page int) Query {
	q.Page = page
	return q
}

// Page is the pagination metadata of a list response.
type Page struct {
	Number  int `json:"page"`
	PerPage int `json:"per_page"`
	Total   int `json:"total"`
	Pages   int `json:"pages"`
}

// NewPage computes pagination metadata.
// POST: Pages >= 1; Number is clamped to [1, Pages]
func NewPage(number, perPage, total int) Page {
	if perPage < 1 {
		perPage = DefaultPerPage
	}
	pages := max((total+perPage-1)/perPage, 1)
	return Page{
		Number:  min(max(number, 1), pages),
		PerPage: perPage,
		Total:   total,
		Pages:   pages,
	}
}

// HasPrev reports whether a previous page exists.
func (p Page) HasPrev() bool { return p.Number > 1 }

// HasNext reports whether a following page exists.
func (p Page) HasNext() bool { return p.Number < p.Pages }

func atoiOr(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}
