package repository

import "time"

// timeLayout is fixed width so that text comparison in SQLite orders by instant.
// go-sqlite3 parses it back into time.Time for DATETIME columns.
const timeLayout = "2006-01-02 15:04:05.000000000-07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatOptionalTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func utc(t time.Time) time.Time {
	return t.UTC()
}
