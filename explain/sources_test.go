package explain

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
}

func relPaths(files []SourceFile) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.RelPath
	}
	return out
}

func TestCollect(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	writeTree(t, dir, map[string]string{
		"src/b.cpp":        "b",
		"src/a.H":          "a",
		"src/notes.txt":    "skip",
		"src/deep/z.cc":    "z",
		"main.c":           "main",
		"include/util.hpp": "u",
	})

	files, err := Collect([]string{"src", "main.c", "missing", "src/b.cpp", "include/util.hpp"}, CPPExtensions)
	require.NoError(t, err)
	assert.Equal(t, []string{"include/util.hpp", "main.c", "src/a.H", "src/b.cpp", "src/deep/z.cc"}, relPaths(files))
}

func TestCollectNothing(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	writeTree(t, dir, map[string]string{"README.md": "x"})

	files, err := Collect([]string{"."}, CPPExtensions)
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestLimit(t *testing.T) {
	files := []SourceFile{{RelPath: "a.c"}, {RelPath: "b.c"}, {RelPath: "c.c"}}

	kept, skipped := Limit(files, 2)
	assert.Equal(t, []string{"a.c", "b.c"}, relPaths(kept))
	assert.Equal(t, []SkipInfo{{Path: "c.c", Reason: ReasonMaxFiles}}, skipped)

	kept, skipped = Limit(files, 5)
	assert.Len(t, kept, 3)
	assert.Empty(t, skipped)
}

func TestReadWithBudget(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	writeTree(t, dir, map[string]string{
		"a.c": "12345",
		"b.c": "123456",
		"c.c": "1",
	})
	files, err := Collect([]string{"."}, CPPExtensions)
	require.NoError(t, err)

	blobs, skipped, err := ReadWithBudget(context.Background(), files, 10, zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)

	require.Len(t, blobs, 1)
	assert.Equal(t, FileBlob{Path: "a.c", Content: "12345", ByteSize: 5}, blobs[0])
	// c.c would fit but everything after the first overflow is dropped
	assert.Equal(t, []SkipInfo{
		{Path: "b.c", Reason: ReasonMaxBytes},
		{Path: "c.c", Reason: ReasonMaxBytes},
	}, skipped)
}

func TestReadWithBudgetCountsUTF8Bytes(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	writeTree(t, dir, map[string]string{"u.c": "é", "bad.c": "ok\xff"})
	files, err := Collect([]string{"."}, CPPExtensions)
	require.NoError(t, err)

	blobs, skipped, err := ReadWithBudget(context.Background(), files, 100, zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	assert.Empty(t, skipped)
	require.Len(t, blobs, 2)
	assert.Equal(t, "ok�", blobs[0].Content)
	assert.Equal(t, 5, blobs[0].ByteSize)
	assert.Equal(t, 2, blobs[1].ByteSize)
}

func TestReadWithBudgetCancelled(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	writeTree(t, dir, map[string]string{"a.c": "a"})
	files, err := Collect([]string{"."}, CPPExtensions)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err = ReadWithBudget(ctx, files, 100, zaptest.NewLogger(t).Sugar())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFilesBlock(t *testing.T) {
	got := FilesBlock([]FileBlob{
		{Path: "a.c", Content: "int a;"},
		{Path: "dir/b.h", Content: "int b;"},
	})
	want := strings.Join([]string{
		"<file path=\"a.c\">\nint a;\n</file>",
		"<file path=\"dir/b.h\">\nint b;\n</file>",
	}, "\n\n")
	assert.Equal(t, want, got)
}
