package corpus

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

// readPostgres reads every row of table over a single pgx connection.
func readPostgres(ctx context.Context, dsn, tableName string) (*table, error) {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	defer conn.Close(context.WithoutCancel(ctx))

	rows, err := conn.Query(ctx, "SELECT * FROM "+pgx.Identifier(strings.Split(tableName, ".")).Sanitize())
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", tableName, err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	header := make([]string, len(fields))
	for i, fd := range fields {
		header[i] = fd.Name
	}

	tbl := &table{header: header}
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			tbl.skipped++
			continue
		}
		row := make([]string, len(vals))
		for i, v := range vals {
			if v != nil {
				row[i] = fmt.Sprint(v)
			}
		}
		tbl.rows = append(tbl.rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return tbl, nil
}
