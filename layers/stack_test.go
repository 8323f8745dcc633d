package layers

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/strata/errors"
)

func TestReadActiveStack_Record(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"default/chat/user.j2": "",
		"site/chat/user.j2":    "",
		"active_stack.txt":     " default, site,\n",
	})

	stack, source, err := NewStore(root).ActiveStack()
	require.NoError(t, err)
	assert.Equal(t, []string{"default", "site"}, stack)
	assert.Equal(t, StackFromRecord, source)
}

func TestReadActiveStack_DefaultFallback(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"default/chat/user.j2": ""})

	stack, source, err := NewStore(root).ActiveStack()
	require.NoError(t, err)
	assert.Equal(t, []string{"default"}, stack)
	assert.Equal(t, StackFromDefault, source)
}

func TestReadActiveStack_NothingAvailable(t *testing.T) {
	_, err := NewStore(t.TempDir()).ReadActiveStack()
	require.Error(t, err)
	assert.True(t, errors.IsConfigError(err))
	assert.Contains(t, err.Error(), "no active stack")
}

func TestReadActiveStack_EmptyRecord(t *testing.T) {
	for _, content := range []string{"", "  \n", ",,"} {
		root := t.TempDir()
		writeTree(t, root, map[string]string{
			"default/chat/user.j2": "",
			"active_stack.txt":     content,
		})

		_, err := NewStore(root).ReadActiveStack()
		require.Error(t, err, "%q", content)
		assert.True(t, errors.IsConfigError(err))
		assert.Contains(t, err.Error(), "empty")
	}
}

func TestReadActiveStack_UnknownLayer(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"default/chat/user.j2": "",
		"active_stack.txt":     "default,ghost",
	})

	_, err := NewStore(root).ReadActiveStack()
	require.Error(t, err)
	assert.True(t, errors.IsConfigError(err))
	assert.Contains(t, err.Error(), "ghost")
}

func TestReadActiveStack_Duplicate(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"default/chat/user.j2": "",
		"active_stack.txt":     "default,default",
	})

	_, err := NewStore(root).ReadActiveStack()
	assert.True(t, errors.IsConfigError(err))
}

func TestWriteActiveStack(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"a/chat/user.j2":   "",
		"b/chat/user.j2":   "",
		"active_stack.txt": "a,b,and,much,longer,old,content",
	})
	store := NewStore(root)

	require.NoError(t, store.WriteActiveStack([]string{"b", "a"}))

	data, err := os.ReadFile(filepath.Join(root, ActiveStackFile))
	require.NoError(t, err)
	assert.Equal(t, "b,a", string(data))

	stack, err := store.ReadActiveStack()
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, stack)

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".active_stack-", "temp file left behind")
	}
}

func TestWriteActiveStack_Rejects(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"a/chat/user.j2":   "",
		"active_stack.txt": "a",
	})
	store := NewStore(root)

	tests := []struct {
		name  string
		stack []string
	}{
		{"empty", nil},
		{"unknown", []string{"a", "ghost"}},
		{"duplicate", []string{"a", "a"}},
		{"whitespace", []string{"a b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := store.WriteActiveStack(tt.stack)
			require.Error(t, err)
			assert.True(t, errors.IsConfigError(err))

			data, err := os.ReadFile(store.ActiveStackPath())
			require.NoError(t, err)
			assert.Equal(t, "a", string(data), "record must not change on rejection")
		})
	}
}

func TestParseStackArg(t *testing.T) {
	stack, err := ParseStackArg("default,site")
	require.NoError(t, err)
	assert.Equal(t, []string{"default", "site"}, stack)

	for _, bad := range []string{"", "a,,b", "a,", "a, b", " a"} {
		_, err := ParseStackArg(bad)
		assert.Error(t, err, "%q", bad)
		assert.True(t, errors.IsConfigError(err), "%q", bad)
	}
}
