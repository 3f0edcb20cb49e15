package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"

	"twc/internal/constants"
	apperrors "twc/internal/errors"
	"twc/internal/panel"
	"twc/internal/sorting"
)

// Config represents the application configuration
type Config struct {
	Panels PanelsConfig `json:"panels"`
	UI     UIConfig     `json:"ui"`
	Log    LogConfig    `json:"log"`
}

// PanelsConfig holds the last state of both panels
type PanelsConfig struct {
	Left   PanelConfig `json:"left"`
	Right  PanelConfig `json:"right"`
	Active string      `json:"active"` // "left", "right"
}

// PanelConfig represents one panel. Empty values fall back to the ui defaults.
type PanelConfig struct {
	Path       string `json:"path"`
	SortBy     string `json:"sortBy,omitempty"`
	SortOrder  string `json:"sortOrder,omitempty"`
	ShowHidden *bool  `json:"showHidden,omitempty"`
}

// UIConfig represents UI-related settings
type UIConfig struct {
	ShowHiddenFiles bool       `json:"showHiddenFiles"`
	Sort            SortConfig `json:"sort"`
	ConfirmDelete   *bool      `json:"confirmDelete,omitempty"`
}

// SortConfig represents file sorting settings
type SortConfig struct {
	SortBy    string `json:"sortBy"`    // "name", "size", "modified", "extension"
	SortOrder string `json:"sortOrder"` // "asc", "desc"
}

// LogConfig represents logging settings
type LogConfig struct {
	Level  string `json:"level"`  // "debug", "info", "warn", "error"
	Format string `json:"format"` // "console", "json"
	File   string `json:"file"`   // empty means twc.log next to the config file
}

// Manager provides configuration management functionality
type Manager struct {
	configPath string
}

// NewManager creates a new configuration manager for the platform config path
func NewManager() *Manager {
	return &Manager{
		configPath: getConfigPath(),
	}
}

// NewManagerWithPath creates a configuration manager for an explicit file
func NewManagerWithPath(path string) *Manager {
	return &Manager{configPath: path}
}

// Path returns the configuration file path
func (m *Manager) Path() string {
	return m.configPath
}

// DefaultLogPath returns twc.log next to the configuration file
func (m *Manager) DefaultLogPath() string {
	return filepath.Join(filepath.Dir(m.configPath), constants.LogFileName)
}

// Load loads configuration from file and merges with defaults. A missing
// file yields the defaults.
func (m *Manager) Load() (*Config, error) {
	// Start with default configuration
	config := getDefaultConfig()

	data, err := os.ReadFile(m.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return config, nil
		}
		return nil, apperrors.NewConfigError("load_config", "error reading config file", err)
	}

	// Parse config file into a temporary config
	var fileConfig Config
	if err := json.Unmarshal(data, &fileConfig); err != nil {
		return nil, apperrors.NewConfigError("load_config", "error parsing config file", err)
	}

	// Merge file config with defaults
	mergeConfigs(config, &fileConfig)
	return config, nil
}

// Save saves configuration to file
func (m *Manager) Save(config *Config) error {
	// Create the config directory if it doesn't exist
	configDir := filepath.Dir(m.configPath)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return apperrors.NewConfigError("save_config", "error creating config directory", err)
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return apperrors.NewConfigError("save_config", "error marshaling config", err)
	}

	tmp := m.configPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return apperrors.NewConfigError("save_config", "error writing config file", err)
	}
	if err := os.Rename(tmp, m.configPath); err != nil {
		os.Remove(tmp)
		return apperrors.NewConfigError("save_config", "error writing config file", err)
	}
	return nil
}

// getDefaultConfig returns the default configuration
func getDefaultConfig() *Config {
	return &Config{
		Panels: PanelsConfig{
			Active: "left",
		},
		UI: UIConfig{
			ShowHiddenFiles: false,
			Sort: SortConfig{
				SortBy:    constants.DefaultSortBy,
				SortOrder: constants.DefaultSortOrder,
			},
		},
		Log: LogConfig{
			Level:  constants.DefaultLogLevel,
			Format: "console",
		},
	}
}

// getConfigPath returns the path to the configuration file following OS conventions
func getConfigPath() string {
	var configDir string

	switch runtime.GOOS {
	case "windows":
		// Windows: %APPDATA%\twc\config.json
		appData := os.Getenv("APPDATA")
		if appData == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return constants.ConfigFileName
			}
			appData = filepath.Join(home, "AppData", "Roaming")
		}
		configDir = filepath.Join(appData, constants.ApplicationName)

	case "darwin":
		// macOS: ~/Library/Application Support/twc/config.json
		home, err := os.UserHomeDir()
		if err != nil {
			return "config.json"
		}
		configDir = filepath.Join(home, "Library", "Application Support", constants.ApplicationName)

	default:
		// Linux/Unix: $XDG_CONFIG_HOME/twc/config.json or ~/.config/twc/config.json
		xdgConfigHome := os.Getenv("XDG_CONFIG_HOME")
		if xdgConfigHome == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return constants.ConfigFileName
			}
			xdgConfigHome = filepath.Join(home, ".config")
		}
		configDir = filepath.Join(xdgConfigHome, constants.ApplicationName)
	}

	return filepath.Join(configDir, constants.ConfigFileName)
}

// mergeConfigs merges file config values into default config
func mergeConfigs(defaultConfig *Config, fileConfig *Config) {
	// Panels keep per-panel overrides as-is; empty fields fall back at conversion
	defaultConfig.Panels.Left = fileConfig.Panels.Left
	defaultConfig.Panels.Right = fileConfig.Panels.Right
	if fileConfig.Panels.Active != "" {
		defaultConfig.Panels.Active = fileConfig.Panels.Active
	}

	// Note: for bool values, we can't distinguish between false and unset, so we always use file value
	defaultConfig.UI.ShowHiddenFiles = fileConfig.UI.ShowHiddenFiles
	if fileConfig.UI.Sort.SortBy != "" {
		defaultConfig.UI.Sort.SortBy = fileConfig.UI.Sort.SortBy
	}
	if fileConfig.UI.Sort.SortOrder != "" {
		defaultConfig.UI.Sort.SortOrder = fileConfig.UI.Sort.SortOrder
	}
	if fileConfig.UI.ConfirmDelete != nil {
		defaultConfig.UI.ConfirmDelete = fileConfig.UI.ConfirmDelete
	}

	if fileConfig.Log.Level != "" {
		defaultConfig.Log.Level = fileConfig.Log.Level
	}
	if fileConfig.Log.Format != "" {
		defaultConfig.Log.Format = fileConfig.Log.Format
	}
	if fileConfig.Log.File != "" {
		defaultConfig.Log.File = fileConfig.Log.File
	}
}

// ShouldConfirmDelete reports whether deletes ask first (default true)
func (c *Config) ShouldConfirmDelete() bool {
	return c.UI.ConfirmDelete == nil || *c.UI.ConfirmDelete
}

// PairSettings converts the configuration into panel settings. Panels
// without a stored path start in fallbackDir.
func (c *Config) PairSettings(fallbackDir string) panel.PairSettings {
	active := panel.Left
	if c.Panels.Active == "right" {
		active = panel.Right
	}
	return panel.PairSettings{
		Left:   c.panelSettings(c.Panels.Left, fallbackDir),
		Right:  c.panelSettings(c.Panels.Right, fallbackDir),
		Active: active,
	}
}

func (c *Config) panelSettings(pc PanelConfig, fallbackDir string) panel.Settings {
	sortBy, sortOrder := c.UI.Sort.SortBy, c.UI.Sort.SortOrder
	if pc.SortBy != "" {
		sortBy = pc.SortBy
	}
	if pc.SortOrder != "" {
		sortOrder = pc.SortOrder
	}
	showHidden := c.UI.ShowHiddenFiles
	if pc.ShowHidden != nil {
		showHidden = *pc.ShowHidden
	}
	path := pc.Path
	if path == "" || !filepath.IsAbs(path) {
		path = fallbackDir
	}
	return panel.Settings{
		Path: path,
		Sort: sorting.Settings{
			Key:       sorting.ParseKey(sortBy),
			Direction: sorting.ParseDirection(sortOrder),
		},
		ShowHidden: showHidden,
	}
}

// ApplyPairSettings stores the current panel state for the next start
func (c *Config) ApplyPairSettings(s panel.PairSettings) {
	c.Panels.Left = toPanelConfig(s.Left)
	c.Panels.Right = toPanelConfig(s.Right)
	c.Panels.Active = s.Active.String()
}

func toPanelConfig(s panel.Settings) PanelConfig {
	showHidden := s.ShowHidden
	return PanelConfig{
		Path:       s.Path,
		SortBy:     s.Sort.Key.String(),
		SortOrder:  s.Sort.Direction.String(),
		ShowHidden: &showHidden,
	}
}
