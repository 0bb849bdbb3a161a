package engine

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	emptySHA256 = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	helloSHA256 = "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"
)

func TestHashFile(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"hello.txt": "hello",
		"copy.txt":  "hello",
		"other.txt": "different content",
	})

	h1, n, err := HashFile(context.Background(), filepath.Join(dir, "hello.txt"), HashOptions{})
	require.NoError(t, err)
	assert.Equal(t, helloSHA256, h1)
	assert.Equal(t, int64(5), n)

	h2, _, err := HashFile(context.Background(), filepath.Join(dir, "copy.txt"), HashOptions{})
	require.NoError(t, err)
	assert.Equal(t, h1, h2)

	h3, _, err := HashFile(context.Background(), filepath.Join(dir, "other.txt"), HashOptions{})
	require.NoError(t, err)
	assert.NotEqual(t, h1, h3)
}

func TestHashFileEmpty(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"empty.txt": ""})

	h, n, err := HashFile(context.Background(), filepath.Join(dir, "empty.txt"), HashOptions{})
	require.NoError(t, err)
	assert.Equal(t, emptySHA256, h)
	assert.Zero(t, n)
}

func TestHashFileNotExist(t *testing.T) {
	_, _, err := HashFile(context.Background(), "/nonexistent/path/file.txt", HashOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Equal(t, KindNotFound, classify(err))
}

func TestHashFileDirectory(t *testing.T) {
	_, _, err := HashFile(context.Background(), t.TempDir(), HashOptions{})
	require.Error(t, err)
	assert.Equal(t, KindNotRegular, classify(err))
}

func TestHashFileChunkSizeIndependent(t *testing.T) {
	dir := t.TempDir()
	data := bytes.Repeat([]byte("0123456789abcdef"), 40000) // 640KB
	path := filepath.Join(dir, "big.bin")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	for _, algo := range Algorithms {
		t.Run(string(algo), func(t *testing.T) {
			want := algo.New()
			want.Write(data)
			expected := hex.EncodeToString(want.Sum(nil))

			for _, size := range []int{13, 4096, DefaultChunkSize, 1 << 20} {
				h, n, err := HashFile(context.Background(), path, HashOptions{Algorithm: algo, ChunkSize: size})
				require.NoError(t, err)
				assert.Equal(t, int64(len(data)), n)
				assert.Len(t, h, algo.HexLen())
				assert.Equal(t, expected, h, "chunk size %d", size)
			}
		})
	}
}

func TestHashFileUsesProvidedBuffer(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"hello.txt": "hello"})

	buf := make([]byte, 2)
	h, _, err := HashFile(context.Background(), filepath.Join(dir, "hello.txt"), HashOptions{Buf: buf})
	require.NoError(t, err)
	assert.Equal(t, helloSHA256, h)
}

func TestHashFileCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	opened := make(chan struct{})
	open := func(string) (io.ReadCloser, error) {
		close(opened)
		return blockingReader{ctx: ctx}, nil
	}

	errc := make(chan error, 1)
	go func() {
		_, _, err := HashFile(ctx, "stuck", HashOptions{Open: open})
		errc <- err
	}()

	<-opened
	cancel()
	err := <-errc
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestParseAlgorithm(t *testing.T) {
	tests := []struct {
		in      string
		want    Algorithm
		wantErr bool
	}{
		{"", SHA256, false},
		{"sha256", SHA256, false},
		{"blake3", BLAKE3, false},
		{"xxh64", XXH64, false},
		{"md5", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAlgorithm(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAlgorithmHexLen(t *testing.T) {
	assert.Equal(t, 64, SHA256.HexLen())
	assert.Equal(t, 64, BLAKE3.HexLen())
	assert.Equal(t, 16, XXH64.HexLen())
}

func TestClassify(t *testing.T) {
	assert.Equal(t, KindNotFound, classify(os.ErrNotExist))
	assert.Equal(t, KindPermission, classify(os.ErrPermission))
	assert.Equal(t, KindNotRegular, classify(errNotRegular))
	assert.Equal(t, KindIO, classify(io.ErrUnexpectedEOF))
}
