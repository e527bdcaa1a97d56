package migration

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var testResolved = []Migration{
	{Version: 1, Description: "create customers", Script: "0001_create_customers.up.sql", Checksum: 101},
	{Version: 2, Description: "add email", Script: "0002_add_email.up.sql", Checksum: 202},
	{Version: 3, Description: "add index", Script: "0003_add_index.up.sql", Checksum: 303},
}

func appliedFrom(rank int, m Migration) AppliedMigration {
	return AppliedMigration{
		InstalledRank: rank,
		Version:       m.Version,
		Description:   m.Description,
		Script:        m.Script,
		Checksum:      m.Checksum,
		InstalledBy:   "customers",
		InstalledOn:   time.Now().UTC(),
		ExecutionTime: 15,
		Success:       true,
	}
}

func TestPlanFreshDatabase(t *testing.T) {
	p := newPlan(testResolved, nil, Options{ValidateOnMigrate: true})

	require.NoError(t, p.validate(), "empty history is always valid")
	require.Equal(t, testResolved, p.pending(), "all scripts must be pending")
	require.Equal(t, 1, p.nextRank(), "ranks must start from 1")
	require.Equal(t, uint(0), p.currentVersion(), "no version is applied yet")
}

func TestPlanUpToDate(t *testing.T) {
	applied := []AppliedMigration{
		appliedFrom(1, testResolved[0]),
		appliedFrom(2, testResolved[1]),
		appliedFrom(3, testResolved[2]),
	}

	p := newPlan(testResolved, applied, Options{})
	require.NoError(t, p.validate(), "history matches resolved scripts")
	require.Empty(t, p.pending(), "nothing must be pending")
	require.Equal(t, uint(3), p.currentVersion(), "current version must be the highest applied")
	require.Equal(t, 4, p.nextRank(), "next rank must follow the last one")
}

func TestPlanChecksumMismatch(t *testing.T) {
	changed := appliedFrom(1, testResolved[0])
	changed.Checksum = 999

	p := newPlan(testResolved, []AppliedMigration{changed}, Options{})
	err := p.validate()
	require.ErrorIs(t, err, ErrChecksumMismatch, "changed script must be detected")
}

func TestPlanMissingMigration(t *testing.T) {
	gone := AppliedMigration{InstalledRank: 1, Version: 7, Script: "0007_gone.up.sql", Checksum: 7, Success: true}
	applied := []AppliedMigration{appliedFrom(2, testResolved[0]), gone}

	t.Log("missing script must fail validation")
	{
		p := newPlan(testResolved, applied, Options{})
		require.ErrorIs(t, p.validate(), ErrMissingMigration, "applied script absent locally must be detected")
	}

	t.Log("missing script is ignored when configured")
	{
		p := newPlan(testResolved, applied, Options{IgnoreMissing: true, OutOfOrder: true})
		require.NoError(t, p.validate(), "missing script must be ignored")
	}
}

func TestPlanFailedMigration(t *testing.T) {
	failed := appliedFrom(1, testResolved[0])
	failed.Success = false

	p := newPlan(testResolved, []AppliedMigration{failed}, Options{})
	require.ErrorIs(t, p.validate(), ErrFailedMigration, "failed history row must be detected")
	require.Equal(t, uint(0), p.currentVersion(), "failed migration doesn't advance schema version")
}

func TestPlanOutOfOrder(t *testing.T) {
	applied := []AppliedMigration{
		appliedFrom(1, testResolved[0]),
		appliedFrom(2, testResolved[2]),
	}

	t.Log("out of order script is rejected by default")
	{
		p := newPlan(testResolved, applied, Options{})
		require.ErrorIs(t, p.validate(), ErrOutOfOrder, "version 2 is lower than applied version 3")
		require.Empty(t, p.pending(), "out of order script must not be pending")

		infos := p.info()
		require.Len(t, infos, 3, "all versions must be listed")
		require.Equal(t, StateIgnored, infos[1].State, "out of order script must be ignored")
	}

	t.Log("out of order script is applied when allowed")
	{
		p := newPlan(testResolved, applied, Options{OutOfOrder: true})
		require.NoError(t, p.validate(), "out of order is allowed")
		pending := p.pending()
		require.Len(t, pending, 1, "single script must be pending")
		require.Equal(t, uint(2), pending[0].Version, "version 2 must be pending")
	}
}

func TestPlanInfo(t *testing.T) {
	gone := AppliedMigration{InstalledRank: 2, Version: 5, Script: "0005_gone.up.sql", Success: true, ExecutionTime: 40}
	applied := []AppliedMigration{appliedFrom(1, testResolved[0]), gone}

	p := newPlan(testResolved[:2], applied, Options{OutOfOrder: true})
	infos := p.info()

	require.Len(t, infos, 3, "resolved and applied migrations must be merged")
	require.Equal(t, StateSuccess, infos[0].State, "version 1 is applied")
	require.NotNil(t, infos[0].InstalledOn, "applied migration must have install time")
	require.Equal(t, StatePending, infos[1].State, "version 2 is pending")
	require.Nil(t, infos[1].InstalledOn, "pending migration has no install time")
	require.Equal(t, StateMissing, infos[2].State, "version 5 is applied but absent locally")
	require.Equal(t, 40*time.Millisecond, infos[2].ExecutionTime, "execution time must be converted")
}
