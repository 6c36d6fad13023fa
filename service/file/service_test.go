package file

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_ReadWrite(t *testing.T) {
	ctx := context.Background()
	srv := New("mem://localhost/kproc-file-rw")
	require.NoError(t, srv.Init(ctx))
	require.NoError(t, srv.Init(ctx))

	assert.NoError(t, srv.WriteFile(ctx, "/bin/hello", []byte("entry: main\n")))
	data, err := srv.ReadFile(ctx, "bin/hello")
	assert.NoError(t, err)
	assert.Equal(t, "entry: main\n", string(data))

	_, err = srv.ReadFile(ctx, "/missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestService_References(t *testing.T) {
	ctx := context.Background()
	srv := New("mem://localhost/kproc-file-refs")

	_, err := srv.Open(ctx, "/console", OpenReadWrite|OpenCreate)
	assert.ErrorIs(t, err, ErrNotMounted)
	require.NoError(t, srv.Init(ctx))

	root := srv.Namei("/")
	srv.Idup(root)
	assert.Equal(t, 2, srv.Refs("/"))
	srv.Iput(root)
	srv.Iput(root)
	assert.Equal(t, 0, srv.Refs("/"))

	_, err = srv.Open(ctx, "/console", OpenRead)
	assert.ErrorIs(t, err, ErrNotFound)

	f, err := srv.Open(ctx, "/console", OpenReadWrite|OpenCreate)
	require.NoError(t, err)
	assert.True(t, f.Readable)
	assert.True(t, f.Writable)
	srv.Dup(f)
	assert.Equal(t, 1, srv.InUse())
	srv.Close(f)
	assert.Equal(t, 1, srv.Refs("/console"))
	srv.Close(f)
	assert.Equal(t, 0, srv.InUse())
	assert.Equal(t, 0, srv.Refs("/console"))
}
