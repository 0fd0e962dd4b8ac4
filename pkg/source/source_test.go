package source

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tobiasegelund/duckingit/pkg/blobstore"
	"github.com/tobiasegelund/duckingit/pkg/lakeerr"
)

type fakeStore struct {
	objects map[string][]byte
}

func newFakeStore(keys ...string) *fakeStore {
	s := &fakeStore{objects: make(map[string][]byte)}
	for _, k := range keys {
		s.objects[k] = []byte("x")
	}
	return s
}

func (f *fakeStore) List(ctx context.Context, prefix string) ([]blobstore.Object, error) {
	var out []blobstore.Object
	for k, v := range f.objects {
		if len(prefix) == 0 || (len(k) >= len(prefix) && k[:len(prefix)] == prefix) {
			out = append(out, blobstore.Object{Key: k, Size: int64(len(v))})
		}
	}
	return out, nil
}

func (f *fakeStore) Read(ctx context.Context, key string) ([]byte, error) {
	v, ok := f.objects[key]
	if !ok {
		return nil, lakeerr.NewSourceNotFound(key)
	}
	return v, nil
}

func (f *fakeStore) Write(ctx context.Context, key string, data []byte) error {
	f.objects[key] = data
	return nil
}

func (f *fakeStore) Exists(ctx context.Context, key string) (bool, error) {
	_, ok := f.objects[key]
	return ok, nil
}

func TestParseURI(t *testing.T) {
	bucket, globPath, err := ParseURI("s3://my-bucket/2023/*")
	require.NoError(t, err)
	assert.Equal(t, "my-bucket", bucket)
	assert.Equal(t, "2023/*", globPath)

	_, _, err = ParseURI("ftp://nope/x")
	assert.True(t, lakeerr.IsKind(err, lakeerr.KindInvalidSource))
}

func TestResolveGroupsByDirectory(t *testing.T) {
	store := newFakeStore(
		"2023/01/f1.parquet",
		"2023/01/f2.parquet",
		"2023/02/f3.parquet",
		"2024/01/f4.parquet",
	)
	r := New(store)

	files, err := r.Resolve(context.Background(), "s3://bucket/2023/*/*.parquet")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		"s3://bucket/2023/01/f1.parquet",
		"s3://bucket/2023/01/f2.parquet",
		"s3://bucket/2023/02/f3.parquet",
	}, files)

	prefixes, err := r.Prefixes(context.Background(), "s3://bucket/2023/*/*.parquet")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"s3://bucket/2023/01/*", "s3://bucket/2023/02/*"}, prefixes)
}

func TestResolveSourceNotFound(t *testing.T) {
	store := newFakeStore("2023/01/f1.parquet")
	r := New(store)

	_, err := r.Resolve(context.Background(), "s3://bucket/1999/*")
	assert.True(t, lakeerr.IsKind(err, lakeerr.KindSourceNotFound))
}

func TestResolveRecursiveGlob(t *testing.T) {
	store := newFakeStore("a/b/c/f1.parquet", "a/d/f2.parquet")
	r := New(store)

	files, err := r.Resolve(context.Background(), "s3://bucket/a/**/*.parquet")
	require.NoError(t, err)
	assert.Len(t, files, 2)
}
