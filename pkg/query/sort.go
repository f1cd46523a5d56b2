package query

import "strings"

// SortField is one ORDER BY term. Field is a projected view name.
type SortField struct {
	Field      string
	Descending bool
}

func (f SortField) direction() string {
	if f.Descending {
		return "DESC"
	}
	return "ASC"
}

// ParseSortFields reads a comma-separated sort string such as "reference,-createdAt".
// A leading "-" marks a descending field. Blank input yields nil.
func ParseSortFields(s string) []SortField {
	var fields []SortField
	for part := range strings.SplitSeq(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, desc := strings.CutPrefix(part, "-")
		fields = append(fields, SortField{Field: name, Descending: desc})
	}
	return fields
}
