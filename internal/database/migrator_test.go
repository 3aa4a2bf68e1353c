package database

import (
	"testing"
	"testing/fstest"

	"dcspace-backend/migrations"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPendingFilesOrderingAndFilters(t *testing.T) {
	fsys := fstest.MapFS{
		"m/002_events.sql":   {Data: []byte("SELECT 2;")},
		"m/001_rentals.sql":  {Data: []byte("SELECT 1;")},
		"m/003_reset_db.sql": {Data: []byte("DROP TABLE rents;")},
		"m/notes.txt":        {Data: []byte("ignored")},
	}

	files, err := PendingFiles(fsys, "m", map[string]bool{})
	require.NoError(t, err)
	assert.Equal(t, []string{"001_rentals.sql", "002_events.sql"}, files)

	files, err = PendingFiles(fsys, "m", map[string]bool{"001_rentals.sql": true})
	require.NoError(t, err)
	assert.Equal(t, []string{"002_events.sql"}, files)
}

func TestEmbeddedMigrationsPresent(t *testing.T) {
	files, err := PendingFiles(migrations.FS, ".", nil)
	require.NoError(t, err)
	assert.Contains(t, files, "001_rentals.sql")
}
