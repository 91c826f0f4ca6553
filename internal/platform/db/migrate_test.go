package db

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"002_appointments.sql": {Data: []byte("CREATE TABLE appointments (id UUID);")},
		"001_core.sql":         {Data: []byte("CREATE TABLE doctors (id UUID);")},
		"010_indexes.sql":      {Data: []byte("CREATE INDEX x ON doctors (id);")},
		"README.md":            {Data: []byte("not sql")},
		"notes.sql":            {Data: []byte("no version prefix")},
		"abc_core.sql":         {Data: []byte("non-numeric prefix")},
		"archive/003_old.sql":  {Data: []byte("nested, ignored")},
	}

	migrations, err := NewMigrator(nil, fsys, "").LoadMigrations()
	require.NoError(t, err)
	require.Len(t, migrations, 3)

	assert.Equal(t, 1, migrations[0].Version)
	assert.Equal(t, "001_core.sql", migrations[0].Name)
	assert.Equal(t, "CREATE TABLE doctors (id UUID);", migrations[0].SQL)
	assert.Equal(t, 2, migrations[1].Version)
	assert.Equal(t, 10, migrations[2].Version)
}

func TestLoadMigrations_DuplicateVersion(t *testing.T) {
	fsys := fstest.MapFS{
		"001_core.sql": {Data: []byte("a")},
		"01_other.sql": {Data: []byte("b")},
	}
	_, err := NewMigrator(nil, fsys, "").LoadMigrations()
	assert.ErrorContains(t, err, "share version 1")
}

func TestLoadMigrations_Empty(t *testing.T) {
	migrations, err := NewMigrator(nil, fstest.MapFS{}, "").LoadMigrations()
	require.NoError(t, err)
	assert.Empty(t, migrations)
}

func TestNewMigrator_DefaultSchema(t *testing.T) {
	m := NewMigrator(nil, fstest.MapFS{}, "")
	assert.Equal(t, "public", m.schema)
	assert.Equal(t, `"public"."_migrations"`, m.table())

	m = NewMigrator(nil, fstest.MapFS{}, "hms")
	assert.Equal(t, `"hms"."_migrations"`, m.table())
}
