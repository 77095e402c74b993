package postgres

import (
	"errors"
	"io/fs"
	"strings"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubMigrator struct {
	upErr      error
	downErr    error
	version    uint
	dirty      bool
	versionErr error
	closed     bool
}

func (s *stubMigrator) Up() error   { return s.upErr }
func (s *stubMigrator) Down() error { return s.downErr }
func (s *stubMigrator) Version() (uint, bool, error) {
	return s.version, s.dirty, s.versionErr
}
func (s *stubMigrator) Close() (error, error) {
	s.closed = true
	return nil, nil
}

func TestMigrator_UpTreatsNoChangeAsSuccess(t *testing.T) {
	m := &Migrator{m: &stubMigrator{upErr: migrate.ErrNoChange}}
	assert.NoError(t, m.Up())
}

func TestMigrator_UpPropagatesFailures(t *testing.T) {
	m := &Migrator{m: &stubMigrator{upErr: errors.New("syntax error")}}
	err := m.Up()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "syntax error")
}

func TestMigrator_Down(t *testing.T) {
	assert.NoError(t, (&Migrator{m: &stubMigrator{downErr: migrate.ErrNoChange}}).Down())
	assert.Error(t, (&Migrator{m: &stubMigrator{downErr: errors.New("locked")}}).Down())
}

func TestMigrator_VersionBeforeFirstMigration(t *testing.T) {
	m := &Migrator{m: &stubMigrator{versionErr: migrate.ErrNilVersion}}
	v, dirty, err := m.Version()
	require.NoError(t, err)
	assert.Zero(t, v)
	assert.False(t, dirty)
}

func TestMigrator_Close(t *testing.T) {
	stub := &stubMigrator{}
	require.NoError(t, (&Migrator{m: stub}).Close())
	assert.True(t, stub.closed)
}

func TestMigrateURL(t *testing.T) {
	assert.Equal(t, "pgx5://u:p@db:5432/app", migrateURL("postgres://u:p@db:5432/app"))
	assert.Equal(t, "pgx5://u:p@db:5432/app", migrateURL("postgresql://u:p@db:5432/app"))
	assert.Equal(t, "pgx5://db/app", migrateURL("pgx5://db/app"))
}

func TestMigrationsFS_Pairs(t *testing.T) {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	require.NoError(t, err)

	ups, downs := 0, 0
	for _, e := range entries {
		switch {
		case strings.HasSuffix(e.Name(), ".up.sql"):
			ups++
		case strings.HasSuffix(e.Name(), ".down.sql"):
			downs++
		}
	}
	assert.Positive(t, ups)
	assert.Equal(t, ups, downs, "every up migration needs a down")
}
