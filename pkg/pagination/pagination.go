// Package pagination turns list query parameters into bounded page requests
// and wraps query results with page metadata.
package pagination

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/JaimeStill/tawarruq/pkg/query"
)

// Query parameter names read by PageRequestFromQuery.
const (
	ParamPage     = "page"
	ParamPageSize = "pageSize"
	ParamSearch   = "search"
	ParamSort     = "sort"
)

// PageRequest selects one page of a listing. Search is a case-insensitive
// substring filter and Sort holds projected field names.
type PageRequest struct {
	Page     int               `json:"page"`
	PageSize int               `json:"pageSize"`
	Search   *string           `json:"search,omitempty"`
	Sort     []query.SortField `json:"-"`
}

// Normalize clamps Page to at least 1 and PageSize into [1, MaxPageSize],
// substituting DefaultPageSize when unset.
func (r *PageRequest) Normalize(cfg Config) {
	r.Page = max(r.Page, 1)
	if r.PageSize < 1 {
		r.PageSize = cfg.DefaultPageSize
	}
	r.PageSize = min(r.PageSize, cfg.MaxPageSize)
}

// Offset is the number of rows ahead of the requested page.
func (r *PageRequest) Offset() int {
	return (r.Page - 1) * r.PageSize
}

// PageRequestFromQuery reads page, pageSize, search, and sort from values.
// Unparseable numbers fall back to defaults.
func PageRequestFromQuery(values url.Values, cfg Config) PageRequest {
	req := PageRequest{
		Page:     atoi(values.Get(ParamPage)),
		PageSize: atoi(values.Get(ParamPageSize)),
		Sort:     query.ParseSortFields(values.Get(ParamSort)),
	}
	if s := strings.TrimSpace(values.Get(ParamSearch)); s != "" {
		req.Search = &s
	}
	req.Normalize(cfg)
	return req
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

// PageResult is one page of T plus the counts a client needs to walk the rest.
type PageResult[T any] struct {
	Data       []T `json:"data"`
	Total      int `json:"total"`
	Page       int `json:"page"`
	PageSize   int `json:"pageSize"`
	TotalPages int `json:"totalPages"`
}

// NewPageResult wraps data. An empty listing still reports one page and
// serializes Data as [] rather than null.
func NewPageResult[T any](data []T, total, page, pageSize int) PageResult[T] {
	if data == nil {
		data = make([]T, 0)
	}
	return PageResult[T]{
		Data:       data,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: TotalPages(total, pageSize),
	}
}

// TotalPages is ceil(total/pageSize), never less than 1.
func TotalPages(total, pageSize int) int {
	if pageSize < 1 || total <= pageSize {
		return 1
	}
	return (total + pageSize - 1) / pageSize
}
