package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/mdpwire/internal/frame"
	"github.com/danmuck/mdpwire/internal/logging"
)

// Config is the mdpctl service configuration.
type Config struct {
	Name        string
	Addr        string
	CorsOrigins []string
	SchemaFile  string
	APIToken    string
	Strict      bool
	LogLevel    string
	Workers     int
	Limits      frame.Limits
}

type fileConfig struct {
	Name            string   `toml:"name"`
	Addr            string   `toml:"addr"`
	CorsOrigins     []string `toml:"cors_origins"`
	SchemaFile      string   `toml:"schema_file"`
	APIToken        string   `toml:"api_token"`
	Strict          bool     `toml:"strict"`
	LogLevel        string   `toml:"log_level"`
	Workers         int      `toml:"workers"`
	MaxMessageBytes int      `toml:"max_message_bytes"`
	MaxPacketBytes  int      `toml:"max_packet_bytes"`
	MaxMessages     int      `toml:"max_messages"`
}

func DefaultConfig() Config {
	return Config{
		Name:        "mdpctl",
		Addr:        ":9300",
		CorsOrigins: []string{},
		LogLevel:    "info",
		Workers:     4,
		Limits:      frame.DefaultLimits(),
	}
}

// LoadConfig overlays the keys present in the file at path onto
// DefaultConfig and validates the result.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("config parse failed (%s): unknown key %q", path, undecoded[0].String())
	}

	if meta.IsDefined("name") {
		cfg.Name = strings.TrimSpace(raw.Name)
	}
	if meta.IsDefined("addr") {
		cfg.Addr = strings.TrimSpace(raw.Addr)
	}
	if meta.IsDefined("cors_origins") {
		cfg.CorsOrigins = normalizeOrigins(raw.CorsOrigins)
	}
	if meta.IsDefined("schema_file") {
		cfg.SchemaFile = resolvePath(path, strings.TrimSpace(raw.SchemaFile))
	}
	if meta.IsDefined("api_token") {
		cfg.APIToken = strings.TrimSpace(raw.APIToken)
	}
	if meta.IsDefined("strict") {
		cfg.Strict = raw.Strict
	}
	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}
	if meta.IsDefined("workers") {
		cfg.Workers = raw.Workers
	}
	if meta.IsDefined("max_message_bytes") {
		cfg.Limits.MaxMessageBytes = raw.MaxMessageBytes
	}
	if meta.IsDefined("max_packet_bytes") {
		cfg.Limits.MaxPacketBytes = raw.MaxPacketBytes
	}
	if meta.IsDefined("max_messages") {
		cfg.Limits.MaxMessages = raw.MaxMessages
	}

	if err := ValidateConfig(cfg); err != nil {
		return Config{}, fmt.Errorf("config invalid (%s): %w", path, err)
	}
	return cfg, nil
}

func ValidateConfig(cfg Config) error {
	if strings.TrimSpace(cfg.Name) == "" {
		return fmt.Errorf("config missing name")
	}
	if strings.TrimSpace(cfg.Addr) == "" {
		return fmt.Errorf("config missing addr")
	}
	if strings.TrimSpace(cfg.SchemaFile) == "" {
		return fmt.Errorf("config missing schema_file")
	}
	if _, ok := logging.ParseLevel(cfg.LogLevel); !ok {
		return fmt.Errorf("unknown log_level %q", cfg.LogLevel)
	}
	if cfg.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", cfg.Workers)
	}
	if cfg.Limits.MaxMessageBytes < frame.MessageHeaderLen {
		return fmt.Errorf("max_message_bytes must be at least %d", frame.MessageHeaderLen)
	}
	if cfg.Limits.MaxPacketBytes < frame.PacketHeaderLen || cfg.Limits.MaxPacketBytes > 0xffff {
		return fmt.Errorf("max_packet_bytes must be between %d and %d", frame.PacketHeaderLen, 0xffff)
	}
	if cfg.Limits.MaxMessages < 1 {
		return fmt.Errorf("max_messages must be at least 1")
	}
	return nil
}

// resolvePath makes a relative path relative to the directory of the
// config file that names it.
func resolvePath(configPath, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(filepath.Dir(configPath), p)
}

func normalizeOrigins(in []string) []string {
	out := make([]string, 0, len(in))
	for _, origin := range in {
		v := strings.TrimSpace(origin)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
