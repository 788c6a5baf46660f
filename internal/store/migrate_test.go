// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package store

import (
	"errors"
	"regexp"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatekeep/gatekeep/pkg/errutil"
)

// fakeMigrate implements migrateIface for testing.
type fakeMigrate struct {
	upErr, downErr, stepsErr, forceErr error
	version                            uint
	dirty                              bool
	versionErr                         error
	closeSourceErr, closeDBErr         error
	forced                             int
}

func (f *fakeMigrate) Up() error                    { return f.upErr }
func (f *fakeMigrate) Down() error                  { return f.downErr }
func (f *fakeMigrate) Steps(int) error              { return f.stepsErr }
func (f *fakeMigrate) Version() (uint, bool, error) { return f.version, f.dirty, f.versionErr }
func (f *fakeMigrate) Close() (error, error)        { return f.closeSourceErr, f.closeDBErr }

func (f *fakeMigrate) Force(v int) error {
	f.forced = v
	return f.forceErr
}

func TestNewMigrator_InvalidURL(t *testing.T) {
	_, err := NewMigrator("badscheme://localhost:5432/testdb")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "MIGRATION_INIT_FAILED")
}

func TestMigrateURL(t *testing.T) {
	assert.Equal(t, "pgx5://u:p@h/db", MigrateURL("postgres://u:p@h/db"))
	assert.Equal(t, "pgx5://u:p@h/db", MigrateURL("postgresql://u:p@h/db"))
	assert.Equal(t, "pgx5://u:p@h/db", MigrateURL("pgx5://u:p@h/db"))
}

func TestMigrator_Operations(t *testing.T) {
	boom := errors.New("database locked")

	tests := []struct {
		name string
		fake *fakeMigrate
		run  func(*Migrator) error
		code string
	}{
		{"up", &fakeMigrate{}, (*Migrator).Up, ""},
		{"up no change", &fakeMigrate{upErr: migrate.ErrNoChange}, (*Migrator).Up, ""},
		{"up error", &fakeMigrate{upErr: boom}, (*Migrator).Up, "MIGRATION_UP_FAILED"},
		{"down no change", &fakeMigrate{downErr: migrate.ErrNoChange}, (*Migrator).Down, ""},
		{"down error", &fakeMigrate{downErr: boom}, (*Migrator).Down, "MIGRATION_DOWN_FAILED"},
		{"steps no change", &fakeMigrate{stepsErr: migrate.ErrNoChange}, func(m *Migrator) error { return m.Steps(1) }, ""},
		{"steps error", &fakeMigrate{stepsErr: boom}, func(m *Migrator) error { return m.Steps(-1) }, "MIGRATION_STEPS_FAILED"},
		{"force error", &fakeMigrate{forceErr: boom}, func(m *Migrator) error { return m.Force(1) }, "MIGRATION_FORCE_FAILED"},
		{"force negative", &fakeMigrate{}, func(m *Migrator) error { return m.Force(-1) }, "INVALID_VERSION"},
		{"close", &fakeMigrate{}, (*Migrator).Close, ""},
		{"close source error", &fakeMigrate{closeSourceErr: boom}, (*Migrator).Close, "MIGRATION_CLOSE_FAILED"},
		{"close both errors", &fakeMigrate{closeSourceErr: boom, closeDBErr: boom}, (*Migrator).Close, "MIGRATION_CLOSE_FAILED"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run(&Migrator{m: tt.fake})
			if tt.code == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			errutil.AssertErrorCode(t, err, tt.code)
		})
	}
}

func TestMigrator_Force_RecordsVersion(t *testing.T) {
	fake := &fakeMigrate{}
	require.NoError(t, (&Migrator{m: fake}).Force(1))
	assert.Equal(t, 1, fake.forced)
}

func TestMigrator_Version(t *testing.T) {
	v, dirty, err := (&Migrator{m: &fakeMigrate{version: 1, dirty: true}}).Version()
	require.NoError(t, err)
	assert.Equal(t, uint(1), v)
	assert.True(t, dirty)

	v, dirty, err = (&Migrator{m: &fakeMigrate{versionErr: migrate.ErrNilVersion}}).Version()
	require.NoError(t, err)
	assert.Zero(t, v)
	assert.False(t, dirty)

	_, _, err = (&Migrator{m: &fakeMigrate{versionErr: errors.New("boom")}}).Version()
	errutil.AssertErrorCode(t, err, "MIGRATION_VERSION_FAILED")
}

func TestMigrator_PendingAndApplied(t *testing.T) {
	all, err := allMigrationVersions()
	require.NoError(t, err)
	require.NotEmpty(t, all)
	latest := all[len(all)-1]

	fresh := &Migrator{m: &fakeMigrate{versionErr: migrate.ErrNilVersion}}
	pending, err := fresh.PendingMigrations()
	require.NoError(t, err)
	assert.Equal(t, all, pending)
	applied, err := fresh.AppliedMigrations()
	require.NoError(t, err)
	assert.Empty(t, applied)

	current := &Migrator{m: &fakeMigrate{version: latest}}
	pending, err = current.PendingMigrations()
	require.NoError(t, err)
	assert.Empty(t, pending)
	applied, err = current.AppliedMigrations()
	require.NoError(t, err)
	assert.Equal(t, all, applied)

	broken := &Migrator{m: &fakeMigrate{versionErr: errors.New("boom")}}
	_, err = broken.PendingMigrations()
	require.Error(t, err)
	_, err = broken.AppliedMigrations()
	require.Error(t, err)
}

func TestMigrationsFS_EmbeddedFiles(t *testing.T) {
	entries, err := migrationsFS.ReadDir("migrations")
	require.NoError(t, err)

	names := make(map[string]bool)
	pattern := regexp.MustCompile(`^\d{6}_\w+\.(up|down)\.sql$`)
	for _, entry := range entries {
		names[entry.Name()] = true
		assert.True(t, pattern.MatchString(entry.Name()), "unexpected migration file %s", entry.Name())
	}
	assert.True(t, names["000001_identities.up.sql"])
	assert.True(t, names["000001_identities.down.sql"])

	up, err := migrationsFS.ReadFile("migrations/000001_identities.up.sql")
	require.NoError(t, err)
	assert.Contains(t, string(up), "identities_email_key")
	assert.Contains(t, string(up), "identities_phone_number_key")
}

func TestMigrationName(t *testing.T) {
	name, err := MigrationName(1)
	require.NoError(t, err)
	assert.Equal(t, "000001_identities", name)

	name, err = MigrationName(999)
	require.NoError(t, err)
	assert.Empty(t, name)
}
