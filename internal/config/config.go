package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/salonbook/mapsync/pkg/core"
	"github.com/spf13/viper"
)

// FileName is the config file looked up in the config directory.
const FileName = "mapsync.cfg.json"

// Bounds accepted for the focus animation; values outside fall back to defaults.
const (
	minFocusZoom     = 0.0
	maxFocusZoom     = 22.0
	minFocusDuration = 100 * time.Millisecond
	maxFocusDuration = 5 * time.Second
)

// MapConfig holds the view the rendering surface is constructed with.
type MapConfig struct {
	AccessToken string
	StyleURL    string
	Center      core.Position
	Zoom        float64
	Focus       core.FocusOptions
}

// ViewOptions converts the map settings into rendering surface options.
func (m MapConfig) ViewOptions() core.ViewOptions {
	return core.ViewOptions{
		AccessToken: m.AccessToken,
		StyleURL:    m.StyleURL,
		Center:      m.Center,
		Zoom:        m.Zoom,
	}
}

// SurfaceConfig selects the rendering surface.
type SurfaceConfig struct {
	Type         string // memory | websocket
	WebsocketURL string
}

// DBConfig holds Postgres connection settings.
type DBConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Database string
	SSLMode  string
}

// DSN builds a libpq style connection string.
func (d DBConfig) DSN() string {
	return fmt.Sprintf(`host=%s port=%s user=%s password=%s dbname=%s sslmode=%s`,
		d.Host, d.Port, d.Username, d.Password, d.Database, d.SSLMode)
}

// RestConfig holds the hosted backend settings.
type RestConfig struct {
	BaseURL string
	APIKey  string
	Table   string
}

// SourceConfig selects where marker descriptors come from.
type SourceConfig struct {
	Type       string // sqlite | postgres | rest
	SQLitePath string
	DB         DBConfig
	Rest       RestConfig
}

// SyncConfig controls the polling loop of the sync command.
type SyncConfig struct {
	Interval time.Duration
}

// OTelConfig holds OpenTelemetry settings.
type OTelConfig struct {
	Enabled      bool
	ServiceName  string
	BatchTimeout time.Duration
	Endpoint     string
	Insecure     bool
}

// SetDefaults registers every default value.
func SetDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./mapsynclogs")

	viper.SetDefault("map.accessToken", "")
	viper.SetDefault("map.styleUrl", "mapbox://styles/mapbox/streets-v12")
	viper.SetDefault("map.center.longitude", -43.2)
	viper.SetDefault("map.center.latitude", -22.9)
	viper.SetDefault("map.zoom", 11.0)
	viper.SetDefault("map.focusZoom", core.DefaultFocusZoom)
	viper.SetDefault("map.focusDuration", core.DefaultFocusDuration.String())

	viper.SetDefault("surface.type", "memory")
	viper.SetDefault("surface.websocket.url", "ws://localhost:8090/map")

	viper.SetDefault("source.type", "sqlite")
	viper.SetDefault("source.sqlite.path", "./mapsync.db")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "salons")
	viper.SetDefault("db.sslmode", "disable")

	viper.SetDefault("rest.baseUrl", "http://localhost:54321")
	viper.SetDefault("rest.apiKey", "")
	viper.SetDefault("rest.table", "shops")

	viper.SetDefault("sync.interval", "30s")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "mapsync")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file. Environment
// variables prefixed with MAPSYNC_ override file values, e.g.
// MAPSYNC_MAP_ACCESSTOKEN.
func Load(configDir string) error {
	SetDefaults()

	viper.SetEnvPrefix("MAPSYNC")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}

	return nil
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetMapConfig returns the map view settings with focus options clamped to
// their accepted range.
func GetMapConfig() MapConfig {
	focus := core.FocusOptions{
		Zoom:     viper.GetFloat64("map.focusZoom"),
		Duration: viper.GetDuration("map.focusDuration"),
	}
	if focus.Zoom < minFocusZoom || focus.Zoom > maxFocusZoom {
		focus.Zoom = core.DefaultFocusZoom
	}
	if focus.Duration < minFocusDuration || focus.Duration > maxFocusDuration {
		focus.Duration = core.DefaultFocusDuration
	}

	return MapConfig{
		AccessToken: viper.GetString("map.accessToken"),
		StyleURL:    viper.GetString("map.styleUrl"),
		Center: core.Position{
			Longitude: viper.GetFloat64("map.center.longitude"),
			Latitude:  viper.GetFloat64("map.center.latitude"),
		},
		Zoom:  viper.GetFloat64("map.zoom"),
		Focus: focus,
	}
}

// GetSurfaceConfig returns the rendering surface settings.
func GetSurfaceConfig() SurfaceConfig {
	return SurfaceConfig{
		Type:         viper.GetString("surface.type"),
		WebsocketURL: viper.GetString("surface.websocket.url"),
	}
}

// GetSourceConfig returns the descriptor source settings.
func GetSourceConfig() SourceConfig {
	return SourceConfig{
		Type:       viper.GetString("source.type"),
		SQLitePath: viper.GetString("source.sqlite.path"),
		DB: DBConfig{
			Host:     viper.GetString("db.host"),
			Port:     viper.GetString("db.port"),
			Username: viper.GetString("db.username"),
			Password: viper.GetString("db.password"),
			Database: viper.GetString("db.database"),
			SSLMode:  viper.GetString("db.sslmode"),
		},
		Rest: RestConfig{
			BaseURL: viper.GetString("rest.baseUrl"),
			APIKey:  viper.GetString("rest.apiKey"),
			Table:   viper.GetString("rest.table"),
		},
	}
}

// GetSyncConfig returns the sync loop settings.
func GetSyncConfig() SyncConfig {
	interval := viper.GetDuration("sync.interval")
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return SyncConfig{Interval: interval}
}

// GetOTelConfig returns the OpenTelemetry settings.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}
