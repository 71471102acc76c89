package gcs

import (
	"context"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

func TestNewValidates(t *testing.T) {
	t.Parallel()

	_, err := New(nil, Config{Bucket: "b"})
	require.Error(t, err)

	client, err := storage.NewClient(context.Background(), option.WithoutAuthentication())
	require.NoError(t, err)
	defer client.Close()

	_, err = New(client, Config{})
	require.Error(t, err)

	s, err := New(client, Config{Bucket: "harvest"})
	require.NoError(t, err)
	require.NoError(t, s.Close(), "borrowed clients are not closed")

	_, err = s.PutObject(context.Background(), " ", "", nil)
	require.Error(t, err)
}

func TestDialRequiresBucket(t *testing.T) {
	t.Parallel()

	_, err := Dial(context.Background(), Config{})
	require.Error(t, err)
}
