package migrations

import (
	"testing"

	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrationsLoadAsValidSource(t *testing.T) {
	source, err := iofs.New(sqlFiles, "sql")
	require.NoError(t, err)
	defer source.Close()

	first, err := source.First()
	require.NoError(t, err)
	assert.EqualValues(t, 1, first)
}

func TestEmbeddedMigrationsFormSequentialUpDownPairs(t *testing.T) {
	source, err := iofs.New(sqlFiles, "sql")
	require.NoError(t, err)
	defer source.Close()

	version, err := source.First()
	require.NoError(t, err)

	seen := 0
	for {
		up, _, err := source.ReadUp(version)
		require.NoErrorf(t, err, "migration %d is missing an .up.sql file", version)
		up.Close()

		down, _, err := source.ReadDown(version)
		require.NoErrorf(t, err, "migration %d is missing a .down.sql file", version)
		down.Close()

		seen++

		next, err := source.Next(version)
		if err != nil {
			break
		}
		version = next
	}

	assert.Equal(t, 3, seen, "expected exactly 3 migration pairs embedded under sql/")
}
