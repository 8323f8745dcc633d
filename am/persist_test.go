package am

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func useSettingsPath(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".strata", "am_user.toml")
	settingsPathOverride = path
	t.Cleanup(func() { settingsPathOverride = "" })
	return path
}

func TestUserSettingsRoundTrip(t *testing.T) {
	path := useSettingsPath(t)

	empty, err := LoadUserSettings()
	require.NoError(t, err)
	assert.True(t, empty.IsEmpty())

	want := UserSettings{
		BaseURL:  "https://llm.internal",
		APIKey:   "sk-123",
		CABundle: "/etc/ssl/internal.pem",
		Model:    "gpt-oss-120b",
	}
	require.NoError(t, SaveUserSettings(want))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(SecretFilePermissions), info.Mode().Perm())

	got, err := LoadUserSettings()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestUserSettingsFileIsMergeable(t *testing.T) {
	path := useSettingsPath(t)
	require.NoError(t, SaveUserSettings(UserSettings{BaseURL: "https://x.example", Model: "m1"}))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "https://x.example", cfg.API.BaseURL)
	assert.Equal(t, "m1", cfg.Model.Default)
}

func TestSaveUserSettingsRotatesBackups(t *testing.T) {
	path := useSettingsPath(t)

	for _, model := range []string{"m1", "m2", "m3", "m4", "m5"} {
		require.NoError(t, SaveUserSettings(UserSettings{Model: model}))
	}

	for _, suffix := range []string{".back1", ".back2", ".back3"} {
		_, err := os.Stat(path + suffix)
		assert.NoError(t, err, suffix)
	}
	_, err := os.Stat(path + ".back4")
	assert.True(t, os.IsNotExist(err))

	back1, err := os.ReadFile(path + ".back1")
	require.NoError(t, err)
	assert.Contains(t, string(back1), "m4")
}

func TestLoadUserSettings_Malformed(t *testing.T) {
	path := useSettingsPath(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0750))
	require.NoError(t, os.WriteFile(path, []byte("[api\nbase_url="), 0600))

	_, err := LoadUserSettings()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse")
}
