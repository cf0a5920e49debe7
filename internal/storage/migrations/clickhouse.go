package migrations

import (
	"context"
	"fmt"
	"io/fs"
)

// ClickhouseExecer runs a single ClickHouse statement.
type ClickhouseExecer interface {
	Exec(ctx context.Context, query string, args ...any) error
}

// RunClickhouseMigrations applies every embedded statement in file order.
// The native driver rejects multi-statement queries, so each file is split.
// ClickHouse has no transactional DDL; statements must be idempotent.
func RunClickhouseMigrations(ctx context.Context, db ClickhouseExecer) error {
	files, err := sqlFiles(ClickhouseFS, "clickhouse")
	if err != nil {
		return err
	}
	for _, name := range files {
		data, err := fs.ReadFile(ClickhouseFS, "clickhouse/"+name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		for i, stmt := range SplitStatements(string(data)) {
			if err := db.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("apply migration %s statement %d: %w", name, i+1, err)
			}
		}
	}
	return nil
}
