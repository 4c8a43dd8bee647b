package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/a-szyszlo/event-manager/internal/db"
	"github.com/a-szyszlo/event-manager/internal/repo/storetest"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	path := filepath.Join(t.TempDir(), "events.db")
	sqlDB, err := db.OpenSQLite(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	return NewStore(sqlDB, nil)
}

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) storetest.Store {
		return newTestStore(t)
	})
}

func TestSearchWhere_EscapesLike(t *testing.T) {
	require.Equal(t, `100\%\_\\`, escapeLike(`100%_\`))
}
