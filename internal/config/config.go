package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	charmLog "github.com/charmbracelet/log"
	toml "github.com/pelletier/go-toml/v2"
)

// Storage drivers accepted by [database].driver.
const (
	DriverSQLite = "sqlite"
	DriverDiskv  = "diskv"
)

type Config struct {
	Database DatabaseConfig `toml:"database"`
	Logging  LoggingConfig  `toml:"logging"`
	Server   ServerConfig   `toml:"server"`
	UI       UIConfig       `toml:"ui"`
	Keys     KeyConfig      `toml:"keys"`
}

type DatabaseConfig struct {
	Driver string `toml:"driver"` // sqlite | diskv
	Path   string `toml:"path"`
}

type LoggingConfig struct {
	Level   string        `toml:"level"`
	DevFile DevFileConfig `toml:"dev_file"`
}

type DevFileConfig struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"`
}

type ServerConfig struct {
	HTTPBind    string `toml:"http_bind"`
	APIEndpoint string `toml:"api_endpoint"`
	MCPEndpoint string `toml:"mcp_endpoint"`
}

type UIConfig struct {
	DefaultRoute string `toml:"default_route"`
	ShowHelp     bool   `toml:"show_help"`
}

type KeyConfig struct {
	NewTodo        string `toml:"new_todo"`
	Toggle         string `toml:"toggle"`
	Edit           string `toml:"edit"`
	Remove         string `toml:"remove"`
	ClearCompleted string `toml:"clear_completed"`
	ToggleAll      string `toml:"toggle_all"`
	Copy           string `toml:"copy"`
}

// DefaultLogDir is the dev log directory, relative to the app data dir.
const DefaultLogDir = "logs"

func Default(dbPath string) Config {
	return Config{
		Database: DatabaseConfig{
			Driver: DriverSQLite,
			Path:   dbPath,
		},
		Logging: LoggingConfig{
			Level: "info",
			DevFile: DevFileConfig{
				Enabled: true,
				Dir:     DefaultLogDir,
			},
		},
		Server: ServerConfig{
			HTTPBind:    "127.0.0.1:8080",
			APIEndpoint: "/api/v1",
			MCPEndpoint: "/mcp",
		},
		UI: UIConfig{
			DefaultRoute: "#/",
			ShowHelp:     true,
		},
		Keys: KeyConfig{
			NewTodo:        "n",
			Toggle:         "space",
			Edit:           "e",
			Remove:         "d",
			ClearCompleted: "C",
			ToggleAll:      "A",
			Copy:           "y",
		},
	}
}

func Load(path string, defaults Config) (Config, error) {
	cfg := defaults
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if len(content) == 0 {
		return cfg, nil
	}

	if err := toml.Unmarshal(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode toml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) Validate() error {
	c.Database.Path = strings.TrimSpace(c.Database.Path)
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}
	switch strings.TrimSpace(strings.ToLower(c.Database.Driver)) {
	case "", DriverSQLite, DriverDiskv:
	default:
		return fmt.Errorf("invalid database.driver: %q", c.Database.Driver)
	}

	if _, err := charmLog.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("invalid logging.level: %q", c.Logging.Level)
	}

	api := strings.Trim(strings.TrimSpace(c.Server.APIEndpoint), "/")
	mcp := strings.Trim(strings.TrimSpace(c.Server.MCPEndpoint), "/")
	if api != "" && api == mcp {
		return fmt.Errorf("server.api_endpoint and server.mcp_endpoint must differ: %q", c.Server.APIEndpoint)
	}

	route := strings.TrimSpace(c.UI.DefaultRoute)
	if route != "" && !strings.HasPrefix(route, "#/") && !strings.HasPrefix(route, "/") {
		return fmt.Errorf("invalid ui.default_route: %q", c.UI.DefaultRoute)
	}

	seen := map[string]string{}
	for name, binding := range c.Keys.bindings() {
		binding = strings.TrimSpace(binding)
		if binding == "" {
			continue
		}
		if other, ok := seen[binding]; ok {
			return fmt.Errorf("keys.%s duplicates keys.%s: %q", name, other, binding)
		}
		seen[binding] = name
	}
	return nil
}

// bindings maps TOML key names to configured bindings.
func (k KeyConfig) bindings() map[string]string {
	return map[string]string{
		"new_todo":        k.NewTodo,
		"toggle":          k.Toggle,
		"edit":            k.Edit,
		"remove":          k.Remove,
		"clear_completed": k.ClearCompleted,
		"toggle_all":      k.ToggleAll,
		"copy":            k.Copy,
	}
}

// StorageDriver returns the normalized storage driver name.
func (c Config) StorageDriver() string {
	driver := strings.TrimSpace(strings.ToLower(c.Database.Driver))
	if driver == "" {
		return DriverSQLite
	}
	return driver
}

func EnsureConfigDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// UpsertDefaultRoute writes ui.default_route into the TOML file at path, keeping every other key.
func UpsertDefaultRoute(path, route string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return errors.New("config path is required")
	}
	route = strings.TrimSpace(route)
	if route == "" {
		route = "#/"
	}

	doc := map[string]any{}
	content, err := os.ReadFile(path)
	switch {
	case err == nil:
		if len(content) > 0 {
			if err := toml.Unmarshal(content, &doc); err != nil {
				return fmt.Errorf("decode toml: %w", err)
			}
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return fmt.Errorf("read config: %w", err)
	}

	ui, _ := doc["ui"].(map[string]any)
	if ui == nil {
		ui = map[string]any{}
	}
	ui["default_route"] = route
	doc["ui"] = ui

	encoded, err := toml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode toml: %w", err)
	}
	if err := EnsureConfigDir(path); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, encoded, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
