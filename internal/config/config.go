// Package config handles configuration loading for the SE-Atlas server.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "SE_ATLAS_"

// Config represents the server configuration.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Data   DataConfig   `yaml:"data"`
	Cache  CacheConfig  `yaml:"cache"`
	Render RenderConfig `yaml:"render"`
	Auth   AuthConfig   `yaml:"auth"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port        int      `yaml:"port"`
	Title       string   `yaml:"title"`
	CORSOrigins []string `yaml:"cors_origins"`
}

// DataConfig contains data source settings.
type DataConfig struct {
	ZonesURL            string `yaml:"zones_url"`
	PointsURL           string `yaml:"points_url"`
	LatColumn           string `yaml:"lat_column"`
	LonColumn           string `yaml:"lon_column"`
	MaleField           string `yaml:"male_field"`
	FeminineField       string `yaml:"feminine_field"`
	FetchTimeoutSeconds int    `yaml:"fetch_timeout_seconds"`
}

// FetchTimeout returns the dataset fetch timeout.
func (d DataConfig) FetchTimeout() time.Duration {
	return time.Duration(d.FetchTimeoutSeconds) * time.Second
}

// CacheConfig contains caching settings.
type CacheConfig struct {
	ImageSizeMB     int `yaml:"image_size_mb"`
	ImageTTLMinutes int `yaml:"image_ttl_minutes"`
	QueryEntries    int `yaml:"query_entries"`
}

// RenderConfig contains map snapshot and chart settings.
type RenderConfig struct {
	MapWidth   int `yaml:"map_width"`
	MapHeight  int `yaml:"map_height"`
	MapPadding int `yaml:"map_padding"`
	PieSize    int `yaml:"pie_size"`
	BarWidth   int `yaml:"bar_width"`
	BarHeight  int `yaml:"bar_height"`
}

// UserConfig is one entry of the static credential table. Password may be
// a bcrypt hash.
type UserConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Role     string `yaml:"role"`
}

// AuthConfig contains login and session settings.
type AuthConfig struct {
	Users             []UserConfig `yaml:"users"`
	JWTSecret         string       `yaml:"jwt_secret"`
	SessionTTLMinutes int          `yaml:"session_ttl_minutes"`
	MaxSessions       int          `yaml:"max_sessions"`
	CookieName        string       `yaml:"cookie_name"`
	SecureCookie      bool         `yaml:"secure_cookie"`
}

// SessionTTL returns the idle session lifetime.
func (a AuthConfig) SessionTTL() time.Duration {
	return time.Duration(a.SessionTTLMinutes) * time.Minute
}

// LoadEnv loads .env files into the process environment. Missing files are
// ignored; variables already set win.
func LoadEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", p, err)
		}
		log.Printf("[Config] Loaded environment from %s", p)
	}
	return nil
}

// Load reads configuration from a YAML file, then applies environment
// overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err == nil {
		cfg = &Config{}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		// Apply defaults for missing values
		applyDefaults(cfg)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	if err := applyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        8080,
			Title:       "Geospatial Enterprise Solution",
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Data: DataConfig{
			ZonesURL:            "https://raw.githubusercontent.com/Moccamara/web_mapping/master/data/SE.geojson",
			PointsURL:           "https://raw.githubusercontent.com/Moccamara/web_mapping/master/data/concession.csv",
			LatColumn:           "LAT",
			LonColumn:           "LON",
			MaleField:           "Masculin",
			FeminineField:       "Feminin",
			FetchTimeoutSeconds: 60,
		},
		Cache: CacheConfig{
			ImageSizeMB:     64,
			ImageTTLMinutes: 10,
			QueryEntries:    1000,
		},
		Render: RenderConfig{
			MapWidth:   800,
			MapHeight:  500,
			MapPadding: 16,
			PieSize:    300,
			BarWidth:   480,
			BarHeight:  240,
		},
		Auth: AuthConfig{
			Users: []UserConfig{
				{Username: "admin", Password: "admin2025", Role: "Admin"},
				{Username: "customer", Password: "cust2025", Role: "Customer"},
			},
			SessionTTLMinutes: 720,
			MaxSessions:       1024,
			CookieName:        "se_atlas_session",
		},
	}
}

func applyDefaults(cfg *Config) {
	defaults := DefaultConfig()

	if cfg.Server.Port == 0 {
		cfg.Server.Port = defaults.Server.Port
	}
	if cfg.Server.Title == "" {
		cfg.Server.Title = defaults.Server.Title
	}
	if len(cfg.Server.CORSOrigins) == 0 {
		cfg.Server.CORSOrigins = defaults.Server.CORSOrigins
	}
	if cfg.Data.ZonesURL == "" {
		cfg.Data.ZonesURL = defaults.Data.ZonesURL
	}
	if cfg.Data.PointsURL == "" {
		cfg.Data.PointsURL = defaults.Data.PointsURL
	}
	if cfg.Data.LatColumn == "" {
		cfg.Data.LatColumn = defaults.Data.LatColumn
	}
	if cfg.Data.LonColumn == "" {
		cfg.Data.LonColumn = defaults.Data.LonColumn
	}
	if cfg.Data.MaleField == "" {
		cfg.Data.MaleField = defaults.Data.MaleField
	}
	if cfg.Data.FeminineField == "" {
		cfg.Data.FeminineField = defaults.Data.FeminineField
	}
	if cfg.Data.FetchTimeoutSeconds == 0 {
		cfg.Data.FetchTimeoutSeconds = defaults.Data.FetchTimeoutSeconds
	}
	if cfg.Cache.ImageSizeMB == 0 {
		cfg.Cache.ImageSizeMB = defaults.Cache.ImageSizeMB
	}
	if cfg.Cache.ImageTTLMinutes == 0 {
		cfg.Cache.ImageTTLMinutes = defaults.Cache.ImageTTLMinutes
	}
	if cfg.Cache.QueryEntries == 0 {
		cfg.Cache.QueryEntries = defaults.Cache.QueryEntries
	}
	if cfg.Render.MapWidth == 0 {
		cfg.Render.MapWidth = defaults.Render.MapWidth
	}
	if cfg.Render.MapHeight == 0 {
		cfg.Render.MapHeight = defaults.Render.MapHeight
	}
	if cfg.Render.PieSize == 0 {
		cfg.Render.PieSize = defaults.Render.PieSize
	}
	if cfg.Render.BarWidth == 0 {
		cfg.Render.BarWidth = defaults.Render.BarWidth
	}
	if cfg.Render.BarHeight == 0 {
		cfg.Render.BarHeight = defaults.Render.BarHeight
	}
	if len(cfg.Auth.Users) == 0 {
		cfg.Auth.Users = defaults.Auth.Users
	}
	if cfg.Auth.SessionTTLMinutes == 0 {
		cfg.Auth.SessionTTLMinutes = defaults.Auth.SessionTTLMinutes
	}
	if cfg.Auth.MaxSessions == 0 {
		cfg.Auth.MaxSessions = defaults.Auth.MaxSessions
	}
	if cfg.Auth.CookieName == "" {
		cfg.Auth.CookieName = defaults.Auth.CookieName
	}
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			*dst = v
		}
	}
	num := func(name string, dst *int) error {
		v, ok := lookup(EnvPrefix + name)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
		}
		*dst = n
		return nil
	}

	str("TITLE", &cfg.Server.Title)
	str("ZONES_URL", &cfg.Data.ZonesURL)
	str("POINTS_URL", &cfg.Data.PointsURL)
	str("JWT_SECRET", &cfg.Auth.JWTSecret)
	if v, ok := lookup(EnvPrefix + "CORS_ORIGINS"); ok && v != "" {
		cfg.Server.CORSOrigins = splitList(v)
	}
	if v, ok := lookup(EnvPrefix + "SECURE_COOKIE"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sSECURE_COOKIE: %w", EnvPrefix, err)
		}
		cfg.Auth.SecureCookie = b
	}

	for name, dst := range map[string]*int{
		"PORT":                  &cfg.Server.Port,
		"FETCH_TIMEOUT_SECONDS": &cfg.Data.FetchTimeoutSeconds,
		"SESSION_TTL_MINUTES":   &cfg.Auth.SessionTTLMinutes,
	} {
		if err := num(name, dst); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks values that have no usable default.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Data.FetchTimeoutSeconds <= 0 {
		return fmt.Errorf("data.fetch_timeout_seconds must be positive, got %d", c.Data.FetchTimeoutSeconds)
	}
	for i, u := range c.Auth.Users {
		if u.Username == "" || u.Password == "" || u.Role == "" {
			return fmt.Errorf("auth.users[%d]: username, password and role are required", i)
		}
	}
	return nil
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
