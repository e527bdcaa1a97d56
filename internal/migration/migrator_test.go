package migration

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"testing/fstest"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/suite"
)

const testHistoryTable = "schema_history"

const (
	createCustomersSQL = "CREATE TABLE customers(id BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY, name TEXT NOT NULL);"
	addEmailSQL        = "ALTER TABLE customers ADD COLUMN email TEXT;"
)

var historyColumns = []string{
	"installed_rank", "version", "description", "script", "checksum",
	"installed_by", "installed_on", "execution_time", "success",
}

type migratorTestSuite struct {
	suite.Suite
	db       *sqlx.DB
	mock     sqlmock.Sqlmock
	hook     *test.Hook
	migrator *Migrator
	fsys     fstest.MapFS
}

func (s *migratorTestSuite) SetupTest() {
	db, mock, err := sqlmock.New()
	s.Require().NoError(err, "failed to create sqlmock")

	s.fsys = fstest.MapFS{
		"0001_create_customers.up.sql": {Data: []byte(createCustomersSQL)},
		"0002_add_email.up.sql":        {Data: []byte(addEmailSQL)},
	}

	logger, hook := test.NewNullLogger()
	s.db = sqlx.NewDb(db, "sqlmock")
	s.mock = mock
	s.hook = hook
	s.migrator = New(s.db, s.fsys, ".", Options{Table: testHistoryTable, ValidateOnMigrate: true}, logger)
}

func (s *migratorTestSuite) TearDownTest() {
	s.db.Close()
}

func (s *migratorTestSuite) expectLock() {
	s.mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_lock($1)")).
		WithArgs(advisoryLockID(testHistoryTable)).
		WillReturnResult(sqlmock.NewResult(0, 0))
}

func (s *migratorTestSuite) expectUnlock() {
	s.mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_unlock($1)")).
		WithArgs(advisoryLockID(testHistoryTable)).
		WillReturnResult(sqlmock.NewResult(0, 0))
}

func (s *migratorTestSuite) expectEnsureHistory() {
	s.mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE IF NOT EXISTS "schema_history"`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
}

func (s *migratorTestSuite) expectApplied(rows *sqlmock.Rows) {
	s.mock.ExpectQuery(regexp.QuoteMeta(`FROM "schema_history" ORDER BY installed_rank`)).WillReturnRows(rows)
}

func (s *migratorTestSuite) expectApply(rank int, version uint, description, script, sql string) {
	s.mock.ExpectBegin()
	s.mock.ExpectExec(regexp.QuoteMeta(sql)).WillReturnResult(sqlmock.NewResult(0, 0))
	s.mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "schema_history"`)).
		WithArgs(rank, int64(version), description, script, Checksum([]byte(sql)), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	s.mock.ExpectCommit()
}

func (s *migratorTestSuite) historyRow(rows *sqlmock.Rows, rank int, version uint, script, sql string) *sqlmock.Rows {
	return rows.AddRow(rank, version, "description", script, Checksum([]byte(sql)), "customers", time.Now().UTC(), 10, true)
}

func (s *migratorTestSuite) TestMigrateFreshDatabase() {
	s.expectLock()
	s.expectEnsureHistory()
	s.expectApplied(sqlmock.NewRows(historyColumns))
	s.expectApply(1, 1, "create customers", "0001_create_customers.up.sql", createCustomersSQL)
	s.expectApply(2, 2, "add email", "0002_add_email.up.sql", addEmailSQL)
	s.expectUnlock()

	res, err := s.migrator.Migrate(context.Background())
	s.Require().NoError(err, "fresh database must be migrated")
	s.Require().Len(res.Applied, 2, "both scripts must be applied")
	s.Require().Equal(uint(2), res.CurrentVersion, "schema version must be 2")
	s.Require().NoError(s.mock.ExpectationsWereMet(), "all expectations must be met")
	s.Require().Equal("schema successfully migrated", s.hook.LastEntry().Message, "summary must be logged")
}

func (s *migratorTestSuite) TestMigrateIsIdempotent() {
	rows := sqlmock.NewRows(historyColumns)
	s.historyRow(rows, 1, 1, "0001_create_customers.up.sql", createCustomersSQL)
	s.historyRow(rows, 2, 2, "0002_add_email.up.sql", addEmailSQL)

	s.expectLock()
	s.expectEnsureHistory()
	s.expectApplied(rows)
	s.expectUnlock()

	res, err := s.migrator.Migrate(context.Background())
	s.Require().NoError(err, "up to date database must not raise error")
	s.Require().Empty(res.Applied, "nothing must be applied")
	s.Require().Equal(uint(2), res.CurrentVersion, "schema version must stay 2")
	s.Require().NoError(s.mock.ExpectationsWereMet(), "no script must be executed")
}

func (s *migratorTestSuite) TestMigrateAppliesOnlyPending() {
	rows := sqlmock.NewRows(historyColumns)
	s.historyRow(rows, 1, 1, "0001_create_customers.up.sql", createCustomersSQL)

	s.expectLock()
	s.expectEnsureHistory()
	s.expectApplied(rows)
	s.expectApply(2, 2, "add email", "0002_add_email.up.sql", addEmailSQL)
	s.expectUnlock()

	res, err := s.migrator.Migrate(context.Background())
	s.Require().NoError(err, "pending script must be applied")
	s.Require().Len(res.Applied, 1, "single script must be applied")
	s.Require().Equal(uint(2), res.Applied[0].Version, "version 2 must be applied")
	s.Require().NoError(s.mock.ExpectationsWereMet(), "all expectations must be met")
}

func (s *migratorTestSuite) TestMigrateChecksumMismatch() {
	rows := sqlmock.NewRows(historyColumns)
	s.historyRow(rows, 1, 1, "0001_create_customers.up.sql", "CREATE TABLE customers(id INT);")

	s.expectLock()
	s.expectEnsureHistory()
	s.expectApplied(rows)
	s.expectUnlock()

	_, err := s.migrator.Migrate(context.Background())
	s.Require().ErrorIs(err, ErrChecksumMismatch, "changed applied script must stop migration")
	s.Require().NoError(s.mock.ExpectationsWereMet(), "lock must be released and nothing applied")
}

func (s *migratorTestSuite) TestMigrateScriptFailure() {
	scriptErr := errors.New(`relation "customers" already exists`)

	s.expectLock()
	s.expectEnsureHistory()
	s.expectApplied(sqlmock.NewRows(historyColumns))
	s.mock.ExpectBegin()
	s.mock.ExpectExec(regexp.QuoteMeta(createCustomersSQL)).WillReturnError(scriptErr)
	s.mock.ExpectRollback()
	s.expectUnlock()

	res, err := s.migrator.Migrate(context.Background())
	s.Require().ErrorIs(err, scriptErr, "script error must be raised up")
	s.Require().Empty(res.Applied, "nothing must be applied")
	s.Require().NoError(s.mock.ExpectationsWereMet(), "transaction must be rolled back and lock released")
}

func (s *migratorTestSuite) TestMigrateLockFailure() {
	lockErr := errors.New("connection refused")
	s.mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_lock($1)")).WillReturnError(lockErr)

	_, err := s.migrator.Migrate(context.Background())
	s.Require().ErrorIs(err, lockErr, "lock error must be raised up")
	s.Require().NoError(s.mock.ExpectationsWereMet(), "nothing must be executed without lock")
}

func (s *migratorTestSuite) TestValidateWithoutHistoryTable() {
	s.mock.ExpectQuery(regexp.QuoteMeta("SELECT to_regclass($1) IS NOT NULL")).
		WithArgs(`"schema_history"`).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	err := s.migrator.Validate(context.Background())
	s.Require().NoError(err, "absent history is valid")
	s.Require().NoError(s.mock.ExpectationsWereMet(), "history must not be read")
}

func (s *migratorTestSuite) TestInfo() {
	rows := sqlmock.NewRows(historyColumns)
	s.historyRow(rows, 1, 1, "0001_create_customers.up.sql", createCustomersSQL)

	s.mock.ExpectQuery(regexp.QuoteMeta("SELECT to_regclass($1) IS NOT NULL")).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	s.expectApplied(rows)

	infos, err := s.migrator.Info(context.Background())
	s.Require().NoError(err, "info must be built")
	s.Require().Len(infos, 2, "two versions must be listed")
	s.Require().Equal(StateSuccess, infos[0].State, "version 1 is applied")
	s.Require().Equal(StatePending, infos[1].State, "version 2 is pending")
	s.Require().NoError(s.mock.ExpectationsWereMet(), "all expectations must be met")
}

// start migrator test suite
func TestMigratorTestSuite(t *testing.T) {
	suite.Run(t, new(migratorTestSuite))
}
