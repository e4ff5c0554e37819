package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/classhive/classhive/internal/domain/query"
)

// CollectPage runs a hand-written count/select pair and collects one page of
// rows into R. It exists for finders the executor's predicates cannot
// express, such as joins or pattern matches; those finders remain responsible
// for putting the tenant filter first in their WHERE clause.
//
// selectSQL must end with its ORDER BY clause; CollectPage appends the LIMIT
// and OFFSET placeholders, numbered after the caller's args. Both statements
// receive the same args, so the caller's placeholders must agree between the
// two.
func CollectPage[R any](
	ctx context.Context,
	pool *pgxpool.Pool,
	countSQL, selectSQL string,
	args []any,
	q query.Query,
) ([]R, int64, error) {
	var total int64
	if err := pool.QueryRow(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	pageArgs := append(args, q.Limit, q.Offset())
	pagedSQL := fmt.Sprintf("%s LIMIT $%d OFFSET $%d", selectSQL, len(pageArgs)-1, len(pageArgs))
	rows, err := pool.Query(ctx, pagedSQL, pageArgs...)
	if err != nil {
		return nil, 0, err
	}
	data, err := pgx.CollectRows(rows, pgx.RowToStructByName[R])
	if err != nil {
		return nil, 0, err
	}
	return data, total, nil
}
