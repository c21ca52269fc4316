package sync

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sahelpos/terminal/internal/db"
)

// newTestStore opens a migrated in-memory store.
func newTestStore(t *testing.T) *db.Store {
	t.Helper()

	dbh, err := db.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { dbh.Close() })

	require.NoError(t, db.NewMigrator(dbh.DB).Up())

	store := db.NewStore(dbh.DB)
	t.Cleanup(func() { store.Close() })
	return store
}

// testCreds is a static provider used across transport tests.
func testCreds() CredentialProvider {
	return &StaticProvider{Creds: Credentials{Key: "shop-key", DeviceID: "device-1"}}
}
