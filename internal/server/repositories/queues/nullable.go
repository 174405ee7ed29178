package queues

import "database/sql"

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
