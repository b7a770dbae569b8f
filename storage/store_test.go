package storage

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type doc struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestStoreRoundTrip(t *testing.T) {
	store := NewStore(NewMemDB())

	var out doc
	found, err := store.Load("engine", "snapshot", &out)
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, store.Save("engine", "snapshot", doc{Name: "a", Count: 2}))
	found, err = store.Load("engine", "snapshot", &out)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, doc{Name: "a", Count: 2}, out)

	require.NoError(t, store.Delete("engine", "snapshot"))
	found, err = store.Load("engine", "snapshot", &out)
	require.NoError(t, err)
	require.False(t, found)
}

func TestMemDBIsolation(t *testing.T) {
	db := NewMemDB()
	value := []byte("abc")
	require.NoError(t, db.Put([]byte("k"), value))
	value[0] = 'z'

	got, err := db.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("abc"), got)

	ok, err := db.Has([]byte("k"))
	require.NoError(t, err)
	require.True(t, ok)

	_, err = db.Get([]byte("missing"))
	require.ErrorIs(t, err, ErrNotFound)
}
