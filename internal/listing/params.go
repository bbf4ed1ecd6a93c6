package listing

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
)

const (
	DefaultPage     = 1
	DefaultPageSize = 10
	MaxPageSize     = 100
	DefaultSortBy   = "createdAt"
	SortAsc         = "asc"
	SortDesc        = "desc"
)

// Params describes one page request against a list endpoint. Use NewParams
// for the defaults; a zero PageSize is clamped to 1 like any other value.
type Params struct {
	Page     int                    `form:"page,default=1" json:"page"`
	PageSize int                    `form:"pageSize,default=10" json:"pageSize"`
	Search   string                 `form:"search" json:"search"`
	Filters  map[string]FilterValue `form:"-" json:"filters"`
	SortBy   string                 `form:"sortBy,default=createdAt" json:"sortBy"`
	SortDir  string                 `form:"sortDir,default=desc" json:"sortDir"`
}

func NewParams() Params {
	return Params{
		Page:     DefaultPage,
		PageSize: DefaultPageSize,
		SortBy:   DefaultSortBy,
		SortDir:  SortDesc,
	}
}

// CurrentPage is the requested page, at least 1.
func (p Params) CurrentPage() int {
	if p.Page < 1 {
		return DefaultPage
	}
	return p.Page
}

// Take is the page size clamped into [1, MaxPageSize].
func (p Params) Take() int {
	if p.PageSize < 1 {
		return 1
	}
	if p.PageSize > MaxPageSize {
		return MaxPageSize
	}
	return p.PageSize
}

func (p Params) Skip() int {
	return (p.CurrentPage() - 1) * p.Take()
}

// Descending is true unless sortDir is exactly "asc".
func (p Params) Descending() bool {
	return !strings.EqualFold(p.SortDir, SortAsc)
}

// Page is the result of a list query.
type Page[T any] struct {
	Items    []T   `json:"items"`
	Total    int64 `json:"total"`
	Page     int   `json:"page"`
	PageSize int   `json:"pageSize"`
	Pages    int   `json:"pages"`
}

// NewPage fills in the pagination fields for items drawn with p.
func NewPage[T any](items []T, total int64, p Params) *Page[T] {
	if items == nil {
		items = []T{}
	}
	take := p.Take()
	return &Page[T]{
		Items:    items,
		Total:    total,
		Page:     p.CurrentPage(),
		PageSize: take,
		Pages:    PageCount(total, take),
	}
}

// Empty is the fail-closed result returned when a required scope is missing.
// It is shaped like a query that matched nothing.
func Empty[T any](p Params) *Page[T] {
	return &Page[T]{
		Items:    []T{},
		Total:    0,
		Page:     p.CurrentPage(),
		PageSize: p.Take(),
		Pages:    1,
	}
}

// PageCount is ceil(total/take), never less than 1.
func PageCount(total int64, take int) int {
	if take <= 0 || total <= 0 {
		return 1
	}
	return int(math.Ceil(float64(total) / float64(take)))
}

type FilterKind int

const (
	FilterNone FilterKind = iota
	FilterNull
	FilterIn
	FilterRange
	FilterEq
)

// FilterValue is one entry of the filters object. The JSON form decides the
// kind: null, an array, a {gte,lte} object or any other scalar.
type FilterValue struct {
	Kind   FilterKind
	Value  interface{}
	Values []interface{}
	Gte    *time.Time
	Lte    *time.Time
}

func Eq(v interface{}) FilterValue { return FilterValue{Kind: FilterEq, Value: v} }

func In(vs ...interface{}) FilterValue { return FilterValue{Kind: FilterIn, Values: vs} }

func IsNull() FilterValue { return FilterValue{Kind: FilterNull} }

// Between builds a date range filter; with both bounds nil it is a no-op.
func Between(gte, lte *time.Time) FilterValue {
	if gte == nil && lte == nil {
		return FilterValue{}
	}
	return FilterValue{Kind: FilterRange, Gte: gte, Lte: lte}
}

func (f *FilterValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		*f = FilterValue{}
		return nil
	}

	switch data[0] {
	case 'n':
		*f = IsNull()
		return nil
	case '[':
		var values []interface{}
		if err := json.Unmarshal(data, &values); err != nil {
			return err
		}
		*f = In(values...)
		return nil
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		gte, err := parseBound(obj["gte"])
		if err != nil {
			return fmt.Errorf("gte: %w", err)
		}
		lte, err := parseBound(obj["lte"])
		if err != nil {
			return fmt.Errorf("lte: %w", err)
		}
		*f = Between(gte, lte)
		return nil
	}

	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = Eq(v)
	return nil
}

var dateLayouts = []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"}

func parseBound(raw json.RawMessage) (*time.Time, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("expected a date string")
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("invalid date %q", s)
}

// ParseFilters decodes the filters query parameter. An empty string yields no filters.
func ParseFilters(raw string) (map[string]FilterValue, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	filters := map[string]FilterValue{}
	if err := json.Unmarshal([]byte(raw), &filters); err != nil {
		return nil, fmt.Errorf("invalid filters: %w", err)
	}
	return filters, nil
}
