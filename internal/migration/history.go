package migration

import (
	"context"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/umalmyha/customers-api/pkg/db/transactor"
)

// AppliedMigration is a row of schema history table
type AppliedMigration struct {
	InstalledRank int       `db:"installed_rank"`
	Version       uint      `db:"version"`
	Description   string    `db:"description"`
	Script        string    `db:"script"`
	Checksum      int64     `db:"checksum"`
	InstalledBy   string    `db:"installed_by"`
	InstalledOn   time.Time `db:"installed_on"`
	ExecutionTime int64     `db:"execution_time"`
	Success       bool      `db:"success"`
}

type history struct {
	table    string
	quoted   string
	executor transactor.SqlxWithinTransactionExecutor
}

func newHistory(table string, executor transactor.SqlxWithinTransactionExecutor) *history {
	return &history{
		table:    table,
		quoted:   pq.QuoteIdentifier(table),
		executor: executor,
	}
}

func (h *history) exists(ctx context.Context) (bool, error) {
	var exists bool
	q := "SELECT to_regclass($1) IS NOT NULL"
	if err := h.executor.Executor(ctx).GetContext(ctx, &exists, q, h.quoted); err != nil {
		return false, fmt.Errorf("failed to check schema history table %s - %w", h.table, err)
	}
	return exists, nil
}

func (h *history) ensure(ctx context.Context) error {
	q := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	installed_rank INTEGER      NOT NULL PRIMARY KEY,
	version        BIGINT       NOT NULL UNIQUE,
	description    VARCHAR(200) NOT NULL,
	script         VARCHAR(1000) NOT NULL,
	checksum       BIGINT       NOT NULL,
	installed_by   VARCHAR(100) NOT NULL,
	installed_on   TIMESTAMPTZ  NOT NULL DEFAULT now(),
	execution_time INTEGER      NOT NULL,
	success        BOOLEAN      NOT NULL
)`, h.quoted)

	if _, err := h.executor.Executor(ctx).ExecContext(ctx, q); err != nil {
		return fmt.Errorf("failed to create schema history table %s - %w", h.table, err)
	}
	return nil
}

func (h *history) applied(ctx context.Context) ([]AppliedMigration, error) {
	applied := make([]AppliedMigration, 0)
	q := fmt.Sprintf(`SELECT installed_rank, version, description, script, checksum, installed_by, installed_on, execution_time, success
		FROM %s ORDER BY installed_rank`, h.quoted)

	if err := h.executor.Executor(ctx).SelectContext(ctx, &applied, q); err != nil {
		return nil, fmt.Errorf("failed to read schema history table %s - %w", h.table, err)
	}
	return applied, nil
}

func (h *history) record(ctx context.Context, rank int, m Migration, executionTime time.Duration) error {
	q := fmt.Sprintf(`INSERT INTO %s(installed_rank, version, description, script, checksum, installed_by, execution_time, success)
		VALUES($1, $2, $3, $4, $5, current_user, $6, true)`, h.quoted)

	_, err := h.executor.Executor(ctx).ExecContext(ctx, q, rank, int64(m.Version), m.Description, m.Script, m.Checksum, executionTime.Milliseconds())
	if err != nil {
		return fmt.Errorf("failed to record migration %d in schema history - %w", m.Version, err)
	}
	return nil
}
