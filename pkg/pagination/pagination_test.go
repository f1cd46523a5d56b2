package pagination_test

import (
	"encoding/json"
	"net/url"
	"strings"
	"testing"

	"github.com/JaimeStill/tawarruq/pkg/pagination"
	"github.com/JaimeStill/tawarruq/pkg/query"
)

func defaultConfig() pagination.Config {
	return pagination.Config{DefaultPageSize: 10, MaxPageSize: 100}
}

func TestConfigFinalize(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg := pagination.Config{}
		if err := cfg.Finalize(); err != nil {
			t.Fatalf("finalize failed: %v", err)
		}
		if cfg.DefaultPageSize != 20 || cfg.MaxPageSize != 100 {
			t.Errorf("got %+v, want {20 100}", cfg)
		}
	})

	t.Run("max only", func(t *testing.T) {
		cfg := pagination.Config{MaxPageSize: 10}
		if err := cfg.Finalize(); err == nil {
			t.Error("default 20 above max 10 should fail")
		}
	})

	t.Run("default exceeds max", func(t *testing.T) {
		cfg := pagination.Config{DefaultPageSize: 200, MaxPageSize: 100}
		err := cfg.Finalize()
		if err == nil || !strings.Contains(err.Error(), "cannot exceed") {
			t.Errorf("error = %v, want default/max violation", err)
		}
	})
}

func TestPageRequestNormalize(t *testing.T) {
	tests := []struct {
		name         string
		req          pagination.PageRequest
		wantPage     int
		wantPageSize int
		wantOffset   int
	}{
		{"zero values", pagination.PageRequest{}, 1, 10, 0},
		{"negative page", pagination.PageRequest{Page: -4, PageSize: 5}, 1, 5, 0},
		{"clamped size", pagination.PageRequest{Page: 2, PageSize: 500}, 2, 100, 100},
		{"preserved", pagination.PageRequest{Page: 3, PageSize: 25}, 3, 25, 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.req.Normalize(defaultConfig())
			if tt.req.Page != tt.wantPage {
				t.Errorf("Page = %d, want %d", tt.req.Page, tt.wantPage)
			}
			if tt.req.PageSize != tt.wantPageSize {
				t.Errorf("PageSize = %d, want %d", tt.req.PageSize, tt.wantPageSize)
			}
			if got := tt.req.Offset(); got != tt.wantOffset {
				t.Errorf("Offset() = %d, want %d", got, tt.wantOffset)
			}
		})
	}
}

func TestPageRequestFromQuery(t *testing.T) {
	values := url.Values{
		"page":     {"2"},
		"pageSize": {"15"},
		"search":   {"  aminah "},
		"sort":     {"customerName,-createdAt"},
	}

	req := pagination.PageRequestFromQuery(values, defaultConfig())

	if req.Page != 2 || req.PageSize != 15 {
		t.Errorf("page = %d size = %d, want 2 and 15", req.Page, req.PageSize)
	}
	if req.Search == nil || *req.Search != "aminah" {
		t.Errorf("Search = %v, want aminah", req.Search)
	}
	want := []query.SortField{{Field: "customerName"}, {Field: "createdAt", Descending: true}}
	if len(req.Sort) != len(want) {
		t.Fatalf("Sort = %v, want %v", req.Sort, want)
	}
	for i := range want {
		if req.Sort[i] != want[i] {
			t.Errorf("Sort[%d] = %v, want %v", i, req.Sort[i], want[i])
		}
	}

	empty := pagination.PageRequestFromQuery(url.Values{}, defaultConfig())
	if empty.Page != 1 || empty.PageSize != 10 || empty.Search != nil {
		t.Errorf("empty query = %+v", empty)
	}
}

func TestPageRequestFromQueryMalformed(t *testing.T) {
	values := url.Values{"page": {"two"}, "pageSize": {"-3"}, "search": {"   "}}
	req := pagination.PageRequestFromQuery(values, defaultConfig())
	if req.Page != 1 || req.PageSize != 10 || req.Search != nil || req.Sort != nil {
		t.Errorf("malformed query = %+v", req)
	}
}

func TestNewPageResult(t *testing.T) {
	tests := []struct {
		name           string
		total          int
		pageSize       int
		wantTotalPages int
	}{
		{"exact division", 100, 20, 5},
		{"remainder", 101, 20, 6},
		{"single page", 5, 20, 1},
		{"empty", 0, 20, 1},
		{"two of two", 3, 2, 2},
		{"zero size", 7, 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := pagination.NewPageResult([]string{"TXN"}, tt.total, 1, tt.pageSize)
			if result.TotalPages != tt.wantTotalPages {
				t.Errorf("TotalPages = %d, want %d", result.TotalPages, tt.wantTotalPages)
			}
		})
	}
}

func TestPageResultJSON(t *testing.T) {
	data, err := json.Marshal(pagination.NewPageResult[string](nil, 0, 1, 20))
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	want := `{"data":[],"total":0,"page":1,"pageSize":20,"totalPages":1}`
	if string(data) != want {
		t.Errorf("json = %s, want %s", data, want)
	}
}
