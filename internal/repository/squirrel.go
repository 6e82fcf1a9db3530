package repository

import sq "github.com/Masterminds/squirrel"

// psql is the shared Squirrel statement builder configured for PostgreSQL dollar placeholders.
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

const (
	defaultPageSize = 50
	maxPageSize     = 200

	sqlDateLayout  = "2006-01-02"
	sqlClockLayout = "15:04:05"
)

func pageBounds(page, size int) (limit, offset uint64) {
	if size <= 0 || size > maxPageSize {
		size = defaultPageSize
	}
	if page <= 0 {
		page = 1
	}
	return uint64(size), uint64((page - 1) * size)
}
