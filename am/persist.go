package am

import (
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/teranos/strata/errors"
	"github.com/teranos/strata/logger"
)

// UserSettings are the connection details remembered between runs
type UserSettings struct {
	BaseURL  string `toml:"base_url,omitempty"`
	APIKey   string `toml:"api_key,omitempty"`
	CABundle string `toml:"ca_bundle,omitempty"`
	Model    string `toml:"model,omitempty"`
}

// IsEmpty reports whether nothing has been stored yet
func (s UserSettings) IsEmpty() bool {
	return s == UserSettings{}
}

// userSettingsFile is the on-disk layout, sectioned like am.toml so viper can merge it
type userSettingsFile struct {
	API struct {
		BaseURL  string `toml:"base_url,omitempty"`
		APIKey   string `toml:"api_key,omitempty"`
		CABundle string `toml:"ca_bundle,omitempty"`
	} `toml:"api"`
	Model struct {
		Default string `toml:"default,omitempty"`
	} `toml:"model"`
}

// settingsPathOverride is set by tests
var settingsPathOverride string

// GetUserSettingsPath returns ~/.strata/am_user.toml
func GetUserSettingsPath() string {
	if settingsPathOverride != "" {
		return settingsPathOverride
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".strata", "am_user.toml")
}

// LoadUserSettings reads stored settings. A missing file yields empty settings.
func LoadUserSettings() (UserSettings, error) {
	path := GetUserSettingsPath()
	if path == "" {
		return UserSettings{}, errors.New("could not determine home directory")
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return UserSettings{}, nil
	}
	if err != nil {
		return UserSettings{}, errors.Wrap(err, "failed to read user settings")
	}

	var file userSettingsFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return UserSettings{}, errors.Wrapf(err, "failed to parse %s", path)
	}

	return UserSettings{
		BaseURL:  file.API.BaseURL,
		APIKey:   file.API.APIKey,
		CABundle: file.API.CABundle,
		Model:    file.Model.Default,
	}, nil
}

// SaveUserSettings writes settings with a rotating backup of the previous file
func SaveUserSettings(settings UserSettings) error {
	path := GetUserSettingsPath()
	if path == "" {
		return errors.New("could not determine home directory")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return errors.Wrap(err, "failed to create settings directory")
	}

	if err := createBackup(path); err != nil {
		return errors.Wrap(err, "failed to create backup")
	}

	var file userSettingsFile
	file.API.BaseURL = settings.BaseURL
	file.API.APIKey = settings.APIKey
	file.API.CABundle = settings.CABundle
	file.Model.Default = settings.Model

	data, err := toml.Marshal(file)
	if err != nil {
		return errors.Wrap(err, "failed to marshal user settings")
	}

	// Holds an API key
	if err := os.WriteFile(path, data, SecretFilePermissions); err != nil {
		return errors.Wrap(err, "failed to write user settings")
	}

	logger.Debugw("Saved user settings", logger.FieldPath, path)
	return nil
}

// createBackup creates rotating backups (.back1, .back2, .back3) before modifying a file
func createBackup(configPath string) error {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil
	}

	back3 := configPath + ".back3"
	back2 := configPath + ".back2"
	back1 := configPath + ".back1"

	if err := os.Remove(back3); err != nil && !os.IsNotExist(err) {
		logger.Warnw("Failed to delete old backup", logger.FieldFile, back3, logger.FieldError, err)
	}

	if _, err := os.Stat(back2); err == nil {
		if err := os.Rename(back2, back3); err != nil {
			return errors.Wrap(err, "failed to rotate .back2 to .back3")
		}
	}

	if _, err := os.Stat(back1); err == nil {
		if err := os.Rename(back1, back2); err != nil {
			return errors.Wrap(err, "failed to rotate .back1 to .back2")
		}
	}

	content, err := os.ReadFile(configPath)
	if err != nil {
		return errors.Wrap(err, "failed to read file for backup")
	}

	if err := os.WriteFile(back1, content, SecretFilePermissions); err != nil {
		return errors.Wrap(err, "failed to create .back1")
	}

	return nil
}
