package query

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// predicate is a WHERE term written with ? placeholders.
type predicate struct {
	sql  string
	args []any
}

// Builder assembles SELECT statements over a ProjectionMap.
// Predicates are joined with AND and their ? placeholders are renumbered
// to $1..$n when a statement is built, which pgx and sqlite both accept.
type Builder struct {
	projection *ProjectionMap
	where      []predicate
	sort       []SortField
	fallback   []SortField
}

// NewBuilder creates a Builder for projection. defaultSort applies when
// OrderByFields leaves no usable field.
func NewBuilder(projection *ProjectionMap, defaultSort ...SortField) *Builder {
	return &Builder{projection: projection, fallback: defaultSort}
}

// OrderByFields replaces the sort order. Fields the projection does not map
// are dropped, so request-supplied sort strings never reach the SQL text.
func (b *Builder) OrderByFields(fields []SortField) *Builder {
	b.sort = b.sort[:0]
	for _, f := range fields {
		if b.projection.Has(f.Field) {
			b.sort = append(b.sort, f)
		}
	}
	return b
}

// WhereEquals filters on field = value. Nil values, including typed nil
// pointers from optional filters, add nothing.
func (b *Builder) WhereEquals(field string, value any) *Builder {
	if isNil(value) {
		return b
	}
	b.where = append(b.where, predicate{
		sql:  b.projection.Column(field) + " = ?",
		args: []any{value},
	})
	return b
}

// WhereSearch matches search as a case-insensitive substring of any of fields.
func (b *Builder) WhereSearch(search *string, fields ...string) *Builder {
	if search == nil || *search == "" || len(fields) == 0 {
		return b
	}

	pattern := "%" + *search + "%"
	terms := make([]string, len(fields))
	args := make([]any, len(fields))
	for i, field := range fields {
		// LOWER on both sides instead of ILIKE, which sqlite lacks
		terms[i] = "LOWER(" + b.projection.Column(field) + ") LIKE LOWER(?)"
		args[i] = pattern
	}

	b.where = append(b.where, predicate{
		sql:  "(" + strings.Join(terms, " OR ") + ")",
		args: args,
	})
	return b
}

// Build returns the filtered, ordered SELECT.
func (b *Builder) Build() (string, []any) {
	where, args := b.whereClause()
	return b.selectFrom() + where + b.orderClause(), args
}

// BuildCount returns SELECT COUNT(*) under the same filters.
func (b *Builder) BuildCount() (string, []any) {
	where, args := b.whereClause()
	return "SELECT COUNT(*) FROM " + b.projection.From() + where, args
}

// BuildPage returns Build limited to one page. page is 1-based.
func (b *Builder) BuildPage(page, pageSize int) (string, []any) {
	sql, args := b.Build()
	return fmt.Sprintf("%s LIMIT %d OFFSET %d", sql, pageSize, (page-1)*pageSize), args
}

// BuildSingle selects the row whose idField equals id, ignoring other filters.
func (b *Builder) BuildSingle(idField string, id any) (string, []any) {
	return b.selectFrom() + " WHERE " + b.projection.Column(idField) + " = $1", []any{id}
}

func (b *Builder) selectFrom() string {
	return "SELECT " + b.projection.Columns() + " FROM " + b.projection.From()
}

func (b *Builder) whereClause() (string, []any) {
	if len(b.where) == 0 {
		return "", nil
	}

	var (
		sb   strings.Builder
		args []any
	)
	sb.WriteString(" WHERE ")
	for i, p := range b.where {
		if i > 0 {
			sb.WriteString(" AND ")
		}
		next := 0
		for _, r := range p.sql {
			if r != '?' {
				sb.WriteRune(r)
				continue
			}
			args = append(args, p.args[next])
			next++
			sb.WriteString("$" + strconv.Itoa(len(args)))
		}
	}
	return sb.String(), args
}

func (b *Builder) orderClause() string {
	fields := b.sort
	if len(fields) == 0 {
		fields = b.fallback
	}
	if len(fields) == 0 {
		return ""
	}

	terms := make([]string, len(fields))
	for i, f := range fields {
		terms[i] = b.projection.Column(f.Field) + " " + f.direction()
	}
	return " ORDER BY " + strings.Join(terms, ", ")
}

func isNil(value any) bool {
	if value == nil {
		return true
	}
	switch v := reflect.ValueOf(value); v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return v.IsNil()
	}
	return false
}
