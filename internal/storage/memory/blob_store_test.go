package memory

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBlobStoreOverwritesAndCopies(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	uri, err := store.PutObject(context.Background(), "runs/out.xlsx", "", bytes.NewReader([]byte("first")))
	require.NoError(t, err)
	require.Equal(t, "memory://runs/out.xlsx", uri)

	_, err = store.PutObject(context.Background(), "runs/out.xlsx", "", bytes.NewReader([]byte("second")))
	require.NoError(t, err)

	got, ok := store.Get("runs/out.xlsx")
	require.True(t, ok)
	require.Equal(t, "second", string(got))
	got[0] = 'S'
	again, _ := store.Get("runs/out.xlsx")
	require.Equal(t, "second", string(again))
	require.Equal(t, 2, store.Writes("runs/out.xlsx"))

	_, ok = store.Get("missing")
	require.False(t, ok)
}
