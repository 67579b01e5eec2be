package sqlite

import "database/sql"

// nullableText maps an optional text field to its column value.
func nullableText(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
