package listing

import (
	"context"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SearchFunc narrows db to rows matching a search. pattern is already
// lower-cased, escaped with '!' and wrapped in '%'.
type SearchFunc func(db *gorm.DB, pattern string) *gorm.DB

// Spec declares what a list endpoint may filter, sort and search on.
type Spec struct {
	// Fields maps API field names to columns of the listed table.
	Fields map[string]string
	// DateFields are the API fields that accept {gte,lte} ranges.
	DateFields map[string]bool
	Search     SearchFunc
	Preloads   []string
}

// Column resolves an API field name. Unknown names report false.
func (s *Spec) Column(field string) (string, bool) {
	col, ok := s.Fields[field]
	return col, ok
}

func (s *Spec) sortColumn(field string) string {
	if col, ok := s.Column(field); ok {
		return col
	}
	if col, ok := s.Column(DefaultSortBy); ok {
		return col
	}
	return "created_at"
}

// SearchColumns builds a SearchFunc that ORs case-insensitive substring
// matches over columns of the listed table.
func SearchColumns(columns ...string) SearchFunc {
	return func(db *gorm.DB, pattern string) *gorm.DB {
		if len(columns) == 0 {
			return db
		}
		conds := make([]string, 0, len(columns))
		args := make([]interface{}, 0, len(columns))
		for _, col := range columns {
			conds = append(conds, LikeExpr(col))
			args = append(args, pattern)
		}
		return db.Where("("+strings.Join(conds, " OR ")+")", args...)
	}
}

// LikeExpr is the case-insensitive LIKE predicate used for searching col.
func LikeExpr(col string) string {
	return "LOWER(" + col + ") LIKE ? ESCAPE '!'"
}

// LikePattern lower-cases term, escapes LIKE wildcards and wraps it in '%'.
func LikePattern(term string) string {
	r := strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")
	return "%" + r.Replace(strings.ToLower(term)) + "%"
}

// Where applies the search term and filters of p to db.
func (s *Spec) Where(db *gorm.DB, p Params) *gorm.DB {
	if term := strings.TrimSpace(p.Search); term != "" && s.Search != nil {
		db = s.Search(db, LikePattern(term))
	}

	for field, f := range p.Filters {
		col, ok := s.Column(field)
		if !ok {
			continue
		}
		column := clause.Column{Table: clause.CurrentTable, Name: col}

		switch f.Kind {
		case FilterNull:
			db = db.Where(clause.Eq{Column: column, Value: nil})
		case FilterIn:
			db = db.Where(clause.IN{Column: column, Values: f.Values})
		case FilterEq:
			db = db.Where(clause.Eq{Column: column, Value: f.Value})
		case FilterRange:
			if !s.DateFields[field] {
				continue
			}
			if f.Gte != nil {
				db = db.Where(clause.Gte{Column: column, Value: *f.Gte})
			}
			if f.Lte != nil {
				db = db.Where(clause.Lte{Column: column, Value: *f.Lte})
			}
		}
	}
	return db
}

// Order applies the sort of p followed by the primary key, so identical
// requests see identical orderings.
func (s *Spec) Order(db *gorm.DB, p Params) *gorm.DB {
	return db.Order(clause.OrderByColumn{
		Column: clause.Column{Table: clause.CurrentTable, Name: s.sortColumn(p.SortBy)},
		Desc:   p.Descending(),
	}).Order(clause.OrderByColumn{
		Column: clause.Column{Table: clause.CurrentTable, Name: "id"},
		Desc:   p.Descending(),
	})
}

// List counts and fetches one page of T. scopes run before the search and
// filters and are typically used for mandatory scoping.
func List[T any](ctx context.Context, db *gorm.DB, spec *Spec, p Params, scopes ...func(*gorm.DB) *gorm.DB) (*Page[T], error) {
	base := func() *gorm.DB {
		q := db.WithContext(ctx).Model(new(T)).Scopes(scopes...)
		return spec.Where(q, p)
	}

	var total int64
	if err := base().Count(&total).Error; err != nil {
		return nil, err
	}

	items := make([]T, 0, p.Take())
	if total > 0 {
		q := base()
		for _, rel := range spec.Preloads {
			q = q.Preload(rel)
		}
		q = spec.Order(q, p).Offset(p.Skip()).Limit(p.Take())
		if err := q.Find(&items).Error; err != nil {
			return nil, err
		}
	}

	return NewPage(items, total, p), nil
}
