package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// EngineConfig is the contents of engine.yaml.
type EngineConfig struct {
	Version int `yaml:"version"`
	Engine  struct {
		Name          string `yaml:"name"`
		TickMS        int    `yaml:"tick_ms"`
		Active        *bool  `yaml:"active"`
		Debug         bool   `yaml:"debug"`
		Seed          uint64 `yaml:"seed"`
		HourLength    string `yaml:"hour_length"`
		CalendarStart string `yaml:"calendar_start"`
		QueueSize     int    `yaml:"queue_size"`
	} `yaml:"engine"`
	Jobs struct {
		Dirs     []string `yaml:"dirs"`
		Triggers []string `yaml:"triggers"`
	} `yaml:"jobs"`
	Network struct {
		UIPort int `yaml:"ui_port"`
	} `yaml:"network"`
	MQTT struct {
		Enabled     bool   `yaml:"enabled"`
		URL         string `yaml:"url"`
		ClientID    string `yaml:"client_id"`
		TopicPrefix string `yaml:"topic_prefix"`
	} `yaml:"mqtt"`
	Storage struct {
		Driver     string `yaml:"driver"`
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"storage"`
	Postgres struct {
		Host     string `yaml:"host"`
		Port     string `yaml:"port"`
		User     string `yaml:"user"`
		Database string `yaml:"database"`
		SSLMode  string `yaml:"sslmode"`
	} `yaml:"postgres"`

	dir string
}

// Storage drivers.
const (
	DriverNone     = "none"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// LoadEngineConfig reads and checks engine.yaml. Relative job and trigger
// paths are resolved against the file's directory.
func LoadEngineConfig(path string) (*EngineConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg EngineConfig
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}

	if cfg.Version != 1 {
		return nil, fmt.Errorf("unsupported engine.yaml version: %d", cfg.Version)
	}
	switch cfg.StorageDriver() {
	case DriverNone, DriverSQLite, DriverPostgres:
	default:
		return nil, fmt.Errorf("unknown storage driver: %s", cfg.Storage.Driver)
	}
	if _, err := cfg.HourLength(); err != nil {
		return nil, err
	}
	if _, err := cfg.CalendarStart(); err != nil {
		return nil, err
	}

	cfg.dir = filepath.Dir(path)
	return &cfg, nil
}

// Name returns the engine instance name, defaulting to the hostname.
func (c *EngineConfig) Name() string {
	if c.Engine.Name != "" {
		return c.Engine.Name
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "jobengine"
}

// Tick returns the tick interval, defaulting to 100ms.
func (c *EngineConfig) Tick() time.Duration {
	if c.Engine.TickMS <= 0 {
		return 100 * time.Millisecond
	}
	return time.Duration(c.Engine.TickMS) * time.Millisecond
}

// Active reports whether triggers are evaluated from the start. Defaults to true.
func (c *EngineConfig) Active() bool {
	if c.Engine.Active == nil {
		return true
	}
	return *c.Engine.Active
}

// HourLength returns the wall time of one in-sim hour, defaulting to one minute.
func (c *EngineConfig) HourLength() (time.Duration, error) {
	if c.Engine.HourLength == "" {
		return time.Minute, nil
	}
	d, err := time.ParseDuration(c.Engine.HourLength)
	if err != nil {
		return 0, fmt.Errorf("engine.hour_length: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("engine.hour_length must be positive")
	}
	return d, nil
}

// CalendarStart returns the in-sim start time. Zero means now.
func (c *EngineConfig) CalendarStart() (time.Time, error) {
	if c.Engine.CalendarStart == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, c.Engine.CalendarStart)
	if err != nil {
		return time.Time{}, fmt.Errorf("engine.calendar_start: %w", err)
	}
	return t, nil
}

// JobDirs returns the job document directories, defaulting to ./jobs.
func (c *EngineConfig) JobDirs() []string {
	if len(c.Jobs.Dirs) == 0 {
		return []string{c.resolve("jobs")}
	}
	return c.resolveAll(c.Jobs.Dirs)
}

// TriggerFiles returns the trigger documents to load.
func (c *EngineConfig) TriggerFiles() []string {
	return c.resolveAll(c.Jobs.Triggers)
}

// UIPort returns the configured UI port, defaulting to 8080 if not set.
func (c *EngineConfig) UIPort() int {
	if c.Network.UIPort == 0 {
		return 8080
	}
	return c.Network.UIPort
}

// MQTTClientID returns the MQTT client id, defaulting to jobengine-<name>.
func (c *EngineConfig) MQTTClientID() string {
	if c.MQTT.ClientID != "" {
		return c.MQTT.ClientID
	}
	return "jobengine-" + c.Name()
}

// TopicPrefix returns the MQTT topic prefix, defaulting to "jobs".
func (c *EngineConfig) TopicPrefix() string {
	if c.MQTT.TopicPrefix == "" {
		return "jobs"
	}
	return c.MQTT.TopicPrefix
}

// StorageDriver returns the journal driver, defaulting to none.
func (c *EngineConfig) StorageDriver() string {
	if c.Storage.Driver == "" {
		return DriverNone
	}
	return c.Storage.Driver
}

// SQLitePath returns the SQLite journal path, defaulting to data/events.db.
func (c *EngineConfig) SQLitePath() string {
	if c.Storage.SQLitePath == "" {
		return c.resolve(filepath.Join("data", "events.db"))
	}
	return c.resolve(c.Storage.SQLitePath)
}

// PostgresPort returns the Postgres port, defaulting to 5432.
func (c *EngineConfig) PostgresPort() string {
	if c.Postgres.Port == "" {
		return "5432"
	}
	return c.Postgres.Port
}

func (c *EngineConfig) resolve(p string) string {
	if filepath.IsAbs(p) || c.dir == "" {
		return p
	}
	return filepath.Join(c.dir, p)
}

func (c *EngineConfig) resolveAll(paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = c.resolve(p)
	}
	return out
}
