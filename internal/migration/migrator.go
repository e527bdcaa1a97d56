package migration

import (
	"context"
	"fmt"
	"hash/crc32"
	"io/fs"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"github.com/umalmyha/customers-api/internal/metrics"
	"github.com/umalmyha/customers-api/pkg/db/transactor"
)

const advisoryLockSalt uint32 = 1486364155

// Options configures Migrator behavior
type Options struct {
	// Table is a schema history table name
	Table string
	// ValidateOnMigrate runs validation before pending scripts are applied
	ValidateOnMigrate bool
	// OutOfOrder allows to apply scripts with version lower than the current schema version
	OutOfOrder bool
	// IgnoreMissing doesn't fail validation if applied script is absent locally
	IgnoreMissing bool
}

// Result is outcome of Migrate
type Result struct {
	Applied        []Migration
	CurrentVersion uint
}

// Migrator applies versioned scripts forward-only and keeps track of them in schema history table
type Migrator struct {
	db       *sqlx.DB
	fsys     fs.FS
	dir      string
	opts     Options
	trx      transactor.SqlxTransactor
	executor transactor.SqlxWithinTransactionExecutor
	history  *history
	lockID   int64
	log      logrus.FieldLogger
}

// New builds new Migrator for scripts located in dir of fsys
func New(db *sqlx.DB, fsys fs.FS, dir string, opts Options, log logrus.FieldLogger) *Migrator {
	executor := transactor.NewSqlxWithinTransactionExecutor(db)
	return &Migrator{
		db:       db,
		fsys:     fsys,
		dir:      dir,
		opts:     opts,
		trx:      transactor.NewSqlxTransactor(db),
		executor: executor,
		history:  newHistory(opts.Table, executor),
		lockID:   advisoryLockID(opts.Table),
		log:      log.WithField("component", "migrator"),
	}
}

// Migrate validates schema history and applies pending scripts in ascending version order.
// Every script is executed in its own transaction together with its history record.
func (m *Migrator) Migrate(ctx context.Context) (Result, error) {
	var res Result

	resolved, err := Resolve(m.fsys, m.dir)
	if err != nil {
		return res, err
	}

	err = m.withLock(ctx, func(ctx context.Context) error {
		if err := m.history.ensure(ctx); err != nil {
			return err
		}

		applied, err := m.history.applied(ctx)
		if err != nil {
			return err
		}

		p := newPlan(resolved, applied, m.opts)
		if m.opts.ValidateOnMigrate {
			if err := p.validate(); err != nil {
				return fmt.Errorf("schema history validation failed - %w", err)
			}
		}

		res.CurrentVersion = p.currentVersion()
		pending := p.pending()
		if len(pending) == 0 {
			metrics.SetSchemaVersion(res.CurrentVersion)
			m.log.WithField("version", res.CurrentVersion).Info("schema is up to date, no migration necessary")
			return nil
		}

		rank := p.nextRank()
		for _, mig := range pending {
			if err := m.apply(ctx, rank, mig); err != nil {
				return err
			}

			res.Applied = append(res.Applied, mig)
			if mig.Version > res.CurrentVersion {
				res.CurrentVersion = mig.Version
			}
			rank++
		}

		metrics.SetSchemaVersion(res.CurrentVersion)
		m.log.WithFields(logrus.Fields{
			"applied": len(res.Applied),
			"version": res.CurrentVersion,
		}).Info("schema successfully migrated")
		return nil
	})
	return res, err
}

// Validate checks schema history against resolved scripts without applying anything
func (m *Migrator) Validate(ctx context.Context) error {
	p, err := m.plan(ctx)
	if err != nil {
		return err
	}
	return p.validate()
}

// Info lists resolved and applied migrations in version order
func (m *Migrator) Info(ctx context.Context) ([]Info, error) {
	p, err := m.plan(ctx)
	if err != nil {
		return nil, err
	}
	return p.info(), nil
}

func (m *Migrator) plan(ctx context.Context) (*plan, error) {
	resolved, err := Resolve(m.fsys, m.dir)
	if err != nil {
		return nil, err
	}

	exists, err := m.history.exists(ctx)
	if err != nil {
		return nil, err
	}

	applied := make([]AppliedMigration, 0)
	if exists {
		if applied, err = m.history.applied(ctx); err != nil {
			return nil, err
		}
	}
	return newPlan(resolved, applied, m.opts), nil
}

func (m *Migrator) apply(ctx context.Context, rank int, mig Migration) error {
	log := m.log.WithFields(logrus.Fields{
		"version": mig.Version,
		"script":  mig.Script,
	})
	log.Info("applying migration")

	start := time.Now()
	err := m.trx.WithinTransaction(ctx, func(ctx context.Context) error {
		if _, err := m.executor.Executor(ctx).ExecContext(ctx, mig.SQL); err != nil {
			return err
		}
		return m.history.record(ctx, rank, mig, time.Since(start))
	})
	if err != nil {
		return fmt.Errorf("migration %d (%s) failed, changes are rolled back - %w", mig.Version, mig.Script, err)
	}

	elapsed := time.Since(start)
	metrics.ObserveMigration(elapsed)
	log.WithField("duration", elapsed.String()).Info("migration applied")
	return nil
}

// withLock serializes concurrent migrators via session level advisory lock
func (m *Migrator) withLock(ctx context.Context, fn func(context.Context) error) (err error) {
	conn, err := m.db.Connx(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection for migration lock - %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "SELECT pg_advisory_lock($1)", m.lockID); err != nil {
		return fmt.Errorf("failed to acquire migration lock - %w", err)
	}

	defer func() {
		// released with background context, lock must not outlive canceled ctx
		if _, unlockErr := conn.ExecContext(context.Background(), "SELECT pg_advisory_unlock($1)", m.lockID); unlockErr != nil && err == nil {
			err = fmt.Errorf("failed to release migration lock - %w", unlockErr)
		}
	}()

	return fn(ctx)
}

func advisoryLockID(table string) int64 {
	sum := crc32.ChecksumIEEE([]byte(table))
	return int64(sum * advisoryLockSalt)
}
