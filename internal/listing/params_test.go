package listing

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParams_Take(t *testing.T) {
	tests := []struct {
		pageSize int
		expected int
	}{
		{-5, 1},
		{0, 1},
		{1, 1},
		{10, 10},
		{100, 100},
		{101, 100},
		{5000, 100},
	}

	for _, tt := range tests {
		p := Params{PageSize: tt.pageSize}
		if got := p.Take(); got != tt.expected {
			t.Errorf("Take() with pageSize %d = %d, expected %d", tt.pageSize, got, tt.expected)
		}
	}
}

func TestParams_Skip(t *testing.T) {
	tests := []struct {
		page, pageSize, expected int
	}{
		{1, 10, 0},
		{0, 10, 0},
		{-3, 10, 0},
		{2, 10, 10},
		{3, 500, 200},
	}

	for _, tt := range tests {
		p := Params{Page: tt.page, PageSize: tt.pageSize}
		if got := p.Skip(); got != tt.expected {
			t.Errorf("Skip() page=%d size=%d = %d, expected %d", tt.page, tt.pageSize, got, tt.expected)
		}
	}
}

func TestParams_Descending(t *testing.T) {
	for dir, expected := range map[string]bool{"asc": false, "ASC": false, "desc": true, "": true, "sideways": true} {
		if got := (Params{SortDir: dir}).Descending(); got != expected {
			t.Errorf("Descending() for %q = %v, expected %v", dir, got, expected)
		}
	}
}

func TestNewParams(t *testing.T) {
	p := NewParams()
	if p.CurrentPage() != 1 || p.Take() != 10 || p.SortBy != "createdAt" || !p.Descending() {
		t.Errorf("NewParams() = %+v, expected page 1, size 10, createdAt desc", p)
	}
}

func TestPageCount(t *testing.T) {
	tests := []struct {
		total    int64
		take     int
		expected int
	}{
		{0, 10, 1},
		{1, 10, 1},
		{10, 10, 1},
		{11, 10, 2},
		{250, 100, 3},
	}

	for _, tt := range tests {
		if got := PageCount(tt.total, tt.take); got != tt.expected {
			t.Errorf("PageCount(%d, %d) = %d, expected %d", tt.total, tt.take, got, tt.expected)
		}
	}
}

func TestEmpty(t *testing.T) {
	page := Empty[string](Params{Page: 2, PageSize: 500})
	if page.Items == nil || len(page.Items) != 0 {
		t.Errorf("Items = %v, expected empty non-nil slice", page.Items)
	}
	if page.Pages != 1 {
		t.Errorf("Pages = %d, expected 1", page.Pages)
	}
	if page.PageSize != 100 {
		t.Errorf("PageSize = %d, expected 100", page.PageSize)
	}
	if page.Page != 2 {
		t.Errorf("Page = %d, expected 2", page.Page)
	}

	data, _ := json.Marshal(page)
	if string(data) != `{"items":[],"total":0,"page":2,"pageSize":100,"pages":0}` {
		t.Errorf("json = %s", data)
	}
}

func TestFilterValue_UnmarshalJSON(t *testing.T) {
	raw := `{
		"image": null,
		"role": ["STUDENT", "FACULTY"],
		"status": "ACTIVE",
		"verified": true,
		"createdAt": {"gte": "2024-01-01", "lte": "2024-12-31T23:59:59Z"},
		"updatedAt": {}
	}`

	filters, err := ParseFilters(raw)
	if err != nil {
		t.Fatalf("ParseFilters() error = %v", err)
	}

	if filters["image"].Kind != FilterNull {
		t.Errorf("image kind = %v, expected FilterNull", filters["image"].Kind)
	}

	role := filters["role"]
	if role.Kind != FilterIn || len(role.Values) != 2 || role.Values[0] != "STUDENT" {
		t.Errorf("role = %+v, expected IN [STUDENT FACULTY]", role)
	}

	if status := filters["status"]; status.Kind != FilterEq || status.Value != "ACTIVE" {
		t.Errorf("status = %+v, expected = ACTIVE", status)
	}

	if verified := filters["verified"]; verified.Kind != FilterEq || verified.Value != true {
		t.Errorf("verified = %+v, expected = true", verified)
	}

	created := filters["createdAt"]
	if created.Kind != FilterRange || created.Gte == nil || created.Lte == nil {
		t.Fatalf("createdAt = %+v, expected a range", created)
	}
	if !created.Gte.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("createdAt.gte = %v", created.Gte)
	}
	if !created.Lte.Equal(time.Date(2024, 12, 31, 23, 59, 59, 0, time.UTC)) {
		t.Errorf("createdAt.lte = %v", created.Lte)
	}

	if filters["updatedAt"].Kind != FilterNone {
		t.Errorf("empty range should be a no-op, got kind %v", filters["updatedAt"].Kind)
	}

	if _, ok := filters["missing"]; ok {
		t.Error("absent keys must not appear in filters")
	}
}

func TestParseFilters_Invalid(t *testing.T) {
	tests := []string{
		`not json`,
		`["a"]`,
		`{"createdAt": {"gte": "yesterday"}}`,
		`{"createdAt": {"gte": 12}}`,
	}

	for _, raw := range tests {
		if _, err := ParseFilters(raw); err == nil {
			t.Errorf("ParseFilters(%q) should return error", raw)
		}
	}
}

func TestParseFilters_Empty(t *testing.T) {
	filters, err := ParseFilters("  ")
	if err != nil || filters != nil {
		t.Errorf("ParseFilters(blank) = %v, %v; expected nil, nil", filters, err)
	}
}

func TestLikePattern(t *testing.T) {
	tests := map[string]string{
		"Ana":    "%ana%",
		"50%":    "%50!%%",
		"a_b":    "%a!_b%",
		"wow!":   "%wow!!%",
		"MiXeD ": "%mixed %",
	}
	for in, expected := range tests {
		if got := LikePattern(in); got != expected {
			t.Errorf("LikePattern(%q) = %q, expected %q", in, got, expected)
		}
	}
}
