package query

import (
	"strconv"
)

// PaginateQuery appends id based paging to a postgres query, which must end
// in a parenthesized WHERE clause:
//
//	"SELECT ... WHERE (timelock = $1)"
//
// becomes, for a descending page with a cursor and limit:
//
//	"SELECT ... WHERE (timelock = $1) AND id < $2 ORDER BY id DESC LIMIT $3"
func PaginateQuery(query string, args []interface{}, cursor Cursor, limit uint64, direction Ordering) (string, []interface{}) {
	comparison, order := " > ", " ASC"
	if direction == Descending {
		comparison, order = " < ", " DESC"
	}

	if len(cursor) > 0 {
		args = append(args, cursor.ToUint64())
		query += " AND id" + comparison + placeholder(len(args))
	}

	query += " ORDER BY id" + order

	if limit > 0 {
		args = append(args, limit)
		query += " LIMIT " + placeholder(len(args))
	}

	return query, args
}

func placeholder(position int) string {
	return "$" + strconv.Itoa(position)
}
