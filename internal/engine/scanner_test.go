package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bamsammich/treehash/internal/filter"
)

func TestScanner_FlatDir(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a.txt": "A", "b.txt": "BB"})

	found, errs := scanAll(t, context.Background(), ScannerConfig{Root: root})
	require.Empty(t, errs)
	assert.ElementsMatch(t, []string{"a.txt", "b.txt"}, relPaths(found))

	for _, e := range found {
		assert.Equal(t, filepath.Join(root, e.RelPath), e.Path)
	}
}

func TestScanner_NestedDirs(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"top.txt":           "1",
		"sub/mid.txt":       "22",
		"sub/deep/leaf.txt": "333",
	})

	found, errs := scanAll(t, context.Background(), ScannerConfig{Root: root})
	require.Empty(t, errs)
	assert.ElementsMatch(t, []string{"top.txt", "sub/mid.txt", "sub/deep/leaf.txt"}, relPaths(found))

	sizes := make(map[string]int64)
	for _, e := range found {
		sizes[e.RelPath] = e.Size
	}
	assert.Equal(t, int64(3), sizes["sub/deep/leaf.txt"])
}

func TestScanner_DefaultExcludesGit(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"a.txt":            "hello",
		".git/config":      "[core]",
		"sub/.git/HEAD":    "ref",
		"sub/.gitignore":   "*.o",
		"sub/kept/git.txt": "x",
	})

	found, errs := scanAll(t, context.Background(), ScannerConfig{Root: root})
	require.Empty(t, errs)
	assert.ElementsMatch(t, []string{"a.txt", "sub/.gitignore", "sub/kept/git.txt"}, relPaths(found))
}

func TestScanner_ExcludedNameAsFile(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"a.txt":      "a",
		"sub/.git":   "gitdir: ../.git/modules/sub",
		"sub/lib.go": "package sub",
	})

	found, errs := scanAll(t, context.Background(), ScannerConfig{Root: root})
	require.Empty(t, errs)
	assert.ElementsMatch(t, []string{"a.txt", "sub/lib.go"}, relPaths(found))

	found, errs = scanAll(t, context.Background(), ScannerConfig{Root: root, ExcludeDirs: []string{}})
	require.Empty(t, errs)
	assert.Contains(t, relPaths(found), "sub/.git")
}

func TestScanner_ExcludeDirsOverride(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"a.txt":                "a",
		".git/config":          "c",
		"node_modules/x/y.js":  "y",
		"src/node_modules/z":   "z",
		"src/node_modules.txt": "file, not dir",
	})

	t.Run("custom names replace the default", func(t *testing.T) {
		found, errs := scanAll(t, context.Background(), ScannerConfig{
			Root:        root,
			ExcludeDirs: []string{"node_modules"},
		})
		require.Empty(t, errs)
		assert.ElementsMatch(t, []string{"a.txt", ".git/config", "src/node_modules.txt"}, relPaths(found))
	})

	t.Run("empty list excludes nothing", func(t *testing.T) {
		found, errs := scanAll(t, context.Background(), ScannerConfig{
			Root:        root,
			ExcludeDirs: []string{},
		})
		require.Empty(t, errs)
		assert.Len(t, found, 5)
	})
}

func TestScanner_EmptyDir(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "a", "b"), 0o755))

	found, errs := scanAll(t, context.Background(), ScannerConfig{Root: root})
	assert.Empty(t, errs)
	assert.Empty(t, found)
}

func TestScanner_Symlink(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"target.txt": "hello", "dir/inner.txt": "x"})
	require.NoError(t, os.Symlink("target.txt", filepath.Join(root, "link.txt")))
	require.NoError(t, os.Symlink("dir", filepath.Join(root, "dirlink")))
	require.NoError(t, os.Symlink("missing", filepath.Join(root, "dangling")))

	t.Run("not followed by default", func(t *testing.T) {
		found, errs := scanAll(t, context.Background(), ScannerConfig{Root: root})
		require.Empty(t, errs)
		assert.ElementsMatch(t, []string{"target.txt", "dir/inner.txt"}, relPaths(found))
	})

	t.Run("followed to regular files only", func(t *testing.T) {
		found, errs := scanAll(t, context.Background(), ScannerConfig{Root: root, FollowSymlinks: true})
		require.Empty(t, errs)
		assert.ElementsMatch(t, []string{"target.txt", "dir/inner.txt", "link.txt"}, relPaths(found))
	})
}

func TestScanner_Filter(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"keep.go":        "package a",
		"skip.log":       "log",
		"build/out.go":   "package b",
		"src/nested.log": "log",
		"src/main.go":    "package main",
	})

	chain := filter.NewChain()
	require.NoError(t, chain.AddExclude("*.log"))
	require.NoError(t, chain.AddExclude("build/"))

	found, errs := scanAll(t, context.Background(), ScannerConfig{Root: root, Filter: chain})
	require.Empty(t, errs)
	assert.ElementsMatch(t, []string{"keep.go", "src/main.go"}, relPaths(found))
}

func TestScanner_ContextCancel(t *testing.T) {
	root := t.TempDir()
	for i := range 200 {
		writeTree(t, root, map[string]string{fmt.Sprintf("file%03d", i): "data"})
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	found, _ := scanAll(t, ctx, ScannerConfig{Root: root})
	assert.Less(t, len(found), 200)
}

func TestScanner_PermissionDenied(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("running as root, cannot test permission denied")
	}

	root := t.TempDir()
	writeTree(t, root, map[string]string{"ok.txt": "ok", "forbidden/hidden.txt": "x"})
	forbidden := filepath.Join(root, "forbidden")
	require.NoError(t, os.Chmod(forbidden, 0o000))
	defer func() { _ = os.Chmod(forbidden, 0o755) }() //nolint:errcheck // best-effort cleanup in test

	found, errs := scanAll(t, context.Background(), ScannerConfig{Root: root})
	assert.Equal(t, []string{"ok.txt"}, relPaths(found))
	require.Len(t, errs, 1)

	var tae *TreeAccessError
	require.ErrorAs(t, errs[0], &tae)
	assert.Equal(t, forbidden, tae.Path)
	assert.ErrorIs(t, errs[0], os.ErrPermission)
}

func TestCheckRoot(t *testing.T) {
	t.Run("missing", func(t *testing.T) {
		err := CheckRoot(filepath.Join(t.TempDir(), "nope"))
		var tae *TreeAccessError
		require.ErrorAs(t, err, &tae)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("regular file", func(t *testing.T) {
		root := t.TempDir()
		writeTree(t, root, map[string]string{"f.txt": "x"})
		err := CheckRoot(filepath.Join(root, "f.txt"))
		var tae *TreeAccessError
		require.ErrorAs(t, err, &tae)
		assert.ErrorIs(t, err, syscall.ENOTDIR)
	})

	t.Run("empty dir", func(t *testing.T) {
		assert.NoError(t, CheckRoot(t.TempDir()))
	})
}

func TestDiscover(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a.txt": "a", "b/c.txt": "c", ".git/x": "x"})

	files, err := Discover(context.Background(), ScannerConfig{Root: root})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a.txt", "b/c.txt"}, relPaths(files))

	_, err = Discover(context.Background(), ScannerConfig{Root: filepath.Join(root, "missing")})
	assert.Error(t, err)
}
