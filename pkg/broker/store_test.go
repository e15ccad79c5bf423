package broker

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordStoreRoundTrip(t *testing.T) {
	store := &RecordStore{Path: filepath.Join(t.TempDir(), "nested", "authrecord.json")}
	assert.False(t, store.Exists())

	record := &AuthRecord{
		Authority:       "https://login.example.com/tenant-1",
		ClientID:        "kubedeck-client",
		TenantID:        "tenant-1",
		Username:        "dev@example.com",
		HomeAccountID:   "account-1",
		AuthenticatedAt: time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, store.Save(record))
	assert.True(t, store.Exists())

	loaded, err := store.Load()
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, record.Authority, loaded.Authority)
	assert.Equal(t, record.ClientID, loaded.ClientID)
	assert.Equal(t, record.TenantID, loaded.TenantID)
	assert.Equal(t, record.Username, loaded.Username)
	assert.Equal(t, record.HomeAccountID, loaded.HomeAccountID)
	assert.True(t, record.AuthenticatedAt.Equal(loaded.AuthenticatedAt))
}

func TestRecordStoreLoadAbsent(t *testing.T) {
	store := &RecordStore{Path: filepath.Join(t.TempDir(), "missing.json")}
	record, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, record)
}

func TestRecordStoreLoadCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "authrecord.json")
	require.NoError(t, os.WriteFile(path, []byte("{bad json"), 0o600))
	store := &RecordStore{Path: path}

	_, err := store.Load()
	require.Error(t, err)
	var storageErr *StorageError
	require.ErrorAs(t, err, &storageErr)
	assert.Equal(t, "load", storageErr.Op)
}

func TestRecordStoreSaveOverwrites(t *testing.T) {
	store := &RecordStore{Path: filepath.Join(t.TempDir(), "authrecord.json")}
	require.NoError(t, store.Save(&AuthRecord{HomeAccountID: "first"}))
	require.NoError(t, store.Save(&AuthRecord{HomeAccountID: "second"}))

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "second", loaded.HomeAccountID)
}

func TestRecordStoreSaveNil(t *testing.T) {
	store := &RecordStore{Path: filepath.Join(t.TempDir(), "authrecord.json")}
	err := store.Save(nil)
	require.Error(t, err)
	var storageErr *StorageError
	require.ErrorAs(t, err, &storageErr)
}

func TestRecordStoreClearIsIdempotent(t *testing.T) {
	store := &RecordStore{Path: filepath.Join(t.TempDir(), "authrecord.json")}
	require.NoError(t, store.Clear())

	require.NoError(t, store.Save(&AuthRecord{HomeAccountID: "account"}))
	require.NoError(t, store.Clear())
	assert.False(t, store.Exists())
	require.NoError(t, store.Clear())
}
