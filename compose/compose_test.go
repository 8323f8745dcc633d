package compose

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/strata/errors"
	"github.com/teranos/strata/layers"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	}
}

func newComposer(t *testing.T, files map[string]string) (*Composer, string) {
	t.Helper()
	root := t.TempDir()
	writeTree(t, root, files)
	return New(layers.NewStore(root)), root
}

func TestResolveSources_OverrideAndAccumulate(t *testing.T) {
	c, root := newComposer(t, map[string]string{
		"A/chat/system.prepend.j2": "[preA]",
		"A/chat/system.j2":         "[bodyA]",
		"A/chat/system.append.j2":  "[appA]",
		"B/chat/system.prepend.j2": "[preB]",
		"B/chat/system.j2":         "[bodyB]",
		"B/chat/system.append.j2":  "[appB]",
	})

	sources, err := c.ResolveSources([]string{"A", "B"}, "chat", layers.RoleSystem)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "B/chat/system.j2"), sources.BodyPath)
	assert.Equal(t, "B", sources.BodyLayer)
	assert.Equal(t, []string{
		filepath.Join(root, "A/chat/system.prepend.j2"),
		filepath.Join(root, "B/chat/system.prepend.j2"),
	}, sources.PrependPaths)
	assert.Equal(t, []string{
		filepath.Join(root, "A/chat/system.append.j2"),
		filepath.Join(root, "B/chat/system.append.j2"),
	}, sources.AppendPaths)

	text, _, err := c.ComposeText([]string{"A", "B"}, "chat", layers.RoleSystem, "")
	require.NoError(t, err)
	assert.Equal(t, "[preA][preB][bodyB][appA][appB]", text)
}

func TestResolveSources_BodyFromBaseOnly(t *testing.T) {
	c, _ := newComposer(t, map[string]string{
		"A/chat/user.j2":        "base body",
		"B/chat/user.append.j2": " + site append",
		"B/other/user.j2":       "",
	})

	text, sources, err := c.ComposeText([]string{"A", "B"}, "chat", layers.RoleUser, "")
	require.NoError(t, err)
	assert.Equal(t, "A", sources.BodyLayer)
	assert.Equal(t, "base body + site append", text)
}

func TestResolveSources_MissingBody(t *testing.T) {
	c, _ := newComposer(t, map[string]string{
		"A/chat/system.prepend.j2": "only a prepend",
	})

	_, err := c.ResolveSources([]string{"A"}, "chat", layers.RoleSystem)
	require.Error(t, err)
	assert.True(t, errors.IsPromptError(err))
	assert.Equal(t, "missing template for chat/system", err.Error())
}

func TestResolveSources_UnknownLayerFails(t *testing.T) {
	c, _ := newComposer(t, map[string]string{"A/chat/system.j2": "x"})

	_, err := c.ResolveSources([]string{"A", "ghost"}, "chat", layers.RoleSystem)
	require.Error(t, err)
	assert.True(t, errors.IsConfigError(err))
}

func TestComposeText_RuntimePrepend(t *testing.T) {
	c, _ := newComposer(t, map[string]string{
		"A/explain/system.prepend.j2": "P|",
		"A/explain/system.j2":         "B|",
		"A/explain/system.append.j2":  "A",
	})

	text, _, err := c.ComposeText([]string{"A"}, "explain", layers.RoleSystem, "R|")
	require.NoError(t, err)
	assert.Equal(t, "P|R|B|A", text)
}

func TestRender_MergedVariables(t *testing.T) {
	c, _ := newComposer(t, map[string]string{
		"A/variables.yaml": "project:\n  name: base\n  lang: C++\nlimits: [1, 2]\n",
		"B/variables.yaml": "project:\n  name: site\nlimits: [3]\n",
		"A/chat/user.j2":   "{{ .project.name }}/{{ .project.lang }}/{{ join \",\" .limits }}/{{ .extra }}",
	})

	out, err := c.Render([]string{"A", "B"}, "chat", layers.RoleUser, map[string]any{"extra": "x"})
	require.NoError(t, err)
	assert.Equal(t, "site/C++/3/x", out)
}

func TestRender_ExtraVariablesWin(t *testing.T) {
	c, _ := newComposer(t, map[string]string{
		"A/variables.yaml": "files_block: from-layer\n",
		"A/chat/user.j2":   "{{ .files_block }}",
	})

	out, err := c.Render([]string{"A"}, "chat", layers.RoleUser, map[string]any{"files_block": "generated"})
	require.NoError(t, err)
	assert.Equal(t, "generated", out)
}

func TestRender_UndefinedVariableFails(t *testing.T) {
	c, _ := newComposer(t, map[string]string{
		"A/variables.yaml": "project:\n  name: x\n",
		"A/chat/user.j2":   "Hello {{ .project.owner }}",
		"A/chat/system.j2": "Hello {{ .nobody }}",
	})

	for _, role := range layers.Roles {
		out, err := c.Render([]string{"A"}, "chat", role, nil)
		require.Error(t, err, role)
		assert.True(t, errors.IsPromptError(err))
		assert.Empty(t, out)
	}
}

func TestRender_RuntimePrependIsTemplated(t *testing.T) {
	c, _ := newComposer(t, map[string]string{
		"A/variables.yaml": "who: operator\n",
		"A/chat/system.j2": "body",
	})

	out, err := c.RenderWithPrepend([]string{"A"}, "chat", layers.RoleSystem, "hi {{ .who }}\n", nil)
	require.NoError(t, err)
	assert.Equal(t, "hi operator\nbody", out)
}

func TestRender_IncludeResolvesOverrideFirst(t *testing.T) {
	c, _ := newComposer(t, map[string]string{
		"A/shared/footer.j2": "base footer",
		"B/shared/footer.j2": "site footer {{ .name }}",
		"A/chat/user.j2":     "body:{{ include \"shared/footer.j2\" }}",
		"B/variables.yaml":   "name: B\n",
	})

	out, err := c.Render([]string{"A", "B"}, "chat", layers.RoleUser, nil)
	require.NoError(t, err)
	assert.Equal(t, "body:site footer B", out)
}

func TestRender_IncludeFromBaseLayer(t *testing.T) {
	c, _ := newComposer(t, map[string]string{
		"A/chat/rules.j2": "- be terse\n- cite files",
		"B/chat/user.j2":  "rules:\n{{ include \"chat/rules.j2\" | indent 2 }}",
	})

	out, err := c.Render([]string{"A", "B"}, "chat", layers.RoleUser, nil)
	require.NoError(t, err)
	assert.Equal(t, "rules:\n  - be terse\n  - cite files", out)
}

func TestRender_IncludeErrors(t *testing.T) {
	c, _ := newComposer(t, map[string]string{
		"A/chat/user.j2":   `{{ include "../secrets.j2" }}`,
		"A/chat/system.j2": `{{ include "shared/missing.j2" }}`,
		"A/loop/user.j2":   `{{ include "loop/self.j2" }}`,
		"A/loop/self.j2":   `{{ include "loop/self.j2" }}`,
	})

	_, err := c.Render([]string{"A"}, "chat", layers.RoleUser, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "relative")

	_, err = c.Render([]string{"A"}, "chat", layers.RoleSystem, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "template not found")

	_, err = c.Render([]string{"A"}, "loop", layers.RoleUser, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nesting")
}

func TestRender_Functions(t *testing.T) {
	c, _ := newComposer(t, map[string]string{
		"A/variables.yaml": "empty: \"\"\nitems: [a, 1]\nobj: {k: v}\n",
		"A/chat/user.j2":   `{{ .empty | default "none" }}|{{ join "+" .items }}|{{ toJSON .obj }}|{{ upper "x" }}|{{ trim "  y  " }}`,
	})

	out, err := c.Render([]string{"A"}, "chat", layers.RoleUser, nil)
	require.NoError(t, err)
	assert.Equal(t, `none|a+1|{"k":"v"}|X|y`, out)
}

func TestLoaderSearchPath(t *testing.T) {
	c, root := newComposer(t, map[string]string{
		"A/x.j2": "a",
		"B/x.j2": "b",
		"C/y.j2": "c",
	})

	loader, err := NewLoader(c.Store(), []string{"A", "B", "C"})
	require.NoError(t, err)
	assert.Equal(t, []string{"C", "B", "A"}, loader.SearchPath())

	p, layer, err := loader.Resolve("x.j2")
	require.NoError(t, err)
	assert.Equal(t, "B", layer)
	assert.Equal(t, filepath.Join(root, "B", "x.j2"), p)

	_, err = NewLoader(c.Store(), []string{"A", "ghost"})
	assert.True(t, errors.IsConfigError(err))
}
