package am

import (
	"os"
	"sort"
	"strings"
)

// ConfigSource represents where a configuration value came from
type ConfigSource string

const (
	SourceDefault      ConfigSource = "default"
	SourceSystem       ConfigSource = "system"        // /etc/strata/am.toml
	SourceUser         ConfigSource = "user"          // ~/.strata/am.toml
	SourceUserSettings ConfigSource = "user_settings" // ~/.strata/am_user.toml
	SourceProject      ConfigSource = "project"       // project am.toml
	SourceEnvironment  ConfigSource = "environment"   // STRATA_* / OPENAI_* env vars
)

// SettingInfo contains metadata about a configuration setting
type SettingInfo struct {
	Key        string       `json:"key"`
	Value      interface{}  `json:"value"`
	Source     ConfigSource `json:"source"`
	SourcePath string       `json:"source_path,omitempty"` // File path or env var name
}

// ConfigIntrospection provides metadata about the active configuration
type ConfigIntrospection struct {
	Files    []string      `json:"files"` // Config files that were merged
	Settings []SettingInfo `json:"settings"`
}

// SourceInfo tracks where a configuration value originated
type SourceInfo struct {
	Source ConfigSource
	Path   string
}

// ConfigSources records the file each merged key came from
var ConfigSources = map[string]SourceInfo{}

// keys whose values are masked in introspection output
var secretKeys = map[string]bool{
	"api.api_key": true,
}

// envNames lists every env var that can set a key, in lookup order
var envNames = map[string][]string{
	"api.base_url":        {"OPENAI_BASE_URL"},
	"api.api_key":         {"OPENAI_API_KEY"},
	"api.timeout_seconds": {"STRATA_TIMEOUT"},
	"api.ca_bundle":       {"STRATA_CA_BUNDLE"},
}

func trackSources(settings map[string]interface{}, prefix string, source ConfigSource, path string) {
	for key, value := range settings {
		fullKey := key
		if prefix != "" {
			fullKey = prefix + "." + key
		}
		if nested, ok := value.(map[string]interface{}); ok {
			trackSources(nested, fullKey, source, path)
			continue
		}
		ConfigSources[fullKey] = SourceInfo{Source: source, Path: path}
	}
}

// GetConfigIntrospection returns every effective setting with the source it came from
func GetConfigIntrospection() (*ConfigIntrospection, error) {
	v := GetViper()

	introspection := &ConfigIntrospection{
		Settings: make([]SettingInfo, 0),
	}

	seen := map[string]bool{}
	for _, si := range ConfigSources {
		if !seen[si.Path] {
			seen[si.Path] = true
			introspection.Files = append(introspection.Files, si.Path)
		}
	}
	sort.Strings(introspection.Files)

	flattenSettingsWithSources(v.AllSettings(), "", introspection)
	return introspection, nil
}

func flattenSettingsWithSources(settings map[string]interface{}, prefix string, introspection *ConfigIntrospection) {
	keys := make([]string, 0, len(settings))
	for k := range settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := settings[key]
		fullKey := key
		if prefix != "" {
			fullKey = prefix + "." + key
		}

		if nestedMap, ok := value.(map[string]interface{}); ok {
			flattenSettingsWithSources(nestedMap, fullKey, introspection)
			continue
		}

		sourceInfo := SourceInfo{Source: SourceDefault, Path: "built-in default"}
		if si, ok := ConfigSources[fullKey]; ok {
			sourceInfo = si
		}
		if envKey := envOverride(fullKey); envKey != "" {
			sourceInfo = SourceInfo{Source: SourceEnvironment, Path: envKey}
		}

		if secretKeys[fullKey] {
			value = MaskSecret(value)
		}

		introspection.Settings = append(introspection.Settings, SettingInfo{
			Key:        fullKey,
			Value:      value,
			Source:     sourceInfo.Source,
			SourcePath: sourceInfo.Path,
		})
	}
}

func envOverride(key string) string {
	names := append([]string{"STRATA_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))}, envNames[key]...)
	for _, name := range names {
		if os.Getenv(name) != "" {
			return name
		}
	}
	return ""
}

// MaskSecret hides all but the last four characters of a secret value
func MaskSecret(value interface{}) interface{} {
	s, ok := value.(string)
	if !ok || s == "" {
		return value
	}
	if len(s) <= 4 {
		return "****"
	}
	return "****" + s[len(s)-4:]
}
