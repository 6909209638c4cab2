package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// FileName is the default config file name, looked up in the working directory.
const FileName = "remitsheet.yaml"

// Config represents the top-level remitsheet.yaml configuration.
type Config struct {
	Directory DirectoryConfig `yaml:"directory"`
	Parser    ParserConfig    `yaml:"parser"`
	Batch     BatchConfig     `yaml:"batch"`
	Session   SessionConfig   `yaml:"session"`
	Log       LogConfig       `yaml:"log"`
	Server    ServerConfig    `yaml:"server"`
}

// DirectoryConfig points at the remote spreadsheet script.
type DirectoryConfig struct {
	ScriptURL         string        `yaml:"script_url"`
	SheetURL          string        `yaml:"sheet_url,omitempty"` // human-facing link to the backing sheet
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Burst             int           `yaml:"burst"`
	BankCacheTTL      time.Duration `yaml:"bank_cache_ttl"`
	MinSearchLength   int           `yaml:"min_search_length"`
}

// ParserConfig controls the optional free-text vendor parser.
// The API key is never written to the config file.
type ParserConfig struct {
	Model  string `yaml:"model"`
	APIKey string `yaml:"-"`
}

// BatchConfig controls generation output and the vendor form.
type BatchConfig struct {
	FileSuffix   string        `yaml:"file_suffix"` // appended to YYYYMMDD
	DownloadDir  string        `yaml:"download_dir"`
	SheetOptions []string      `yaml:"sheet_options"` // first entry is the default
	BankDebounce time.Duration `yaml:"bank_debounce"`
}

// SessionConfig selects where the transfer batch is persisted.
type SessionConfig struct {
	Backend       string        `yaml:"backend"` // "file" or "redis"
	StateDir      string        `yaml:"state_dir"`
	RedisAddr     string        `yaml:"redis_addr,omitempty"`
	RedisPassword string        `yaml:"-"`
	RedisDB       int           `yaml:"redis_db,omitempty"`
	TTL           time.Duration `yaml:"ttl"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ServerConfig controls the local HTTP API.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// Load reads a remitsheet.yaml file from disk. Fields missing from the file
// keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// LoadOrDefault is Load, falling back to Default when the file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Directory: DirectoryConfig{
			Timeout:           30 * time.Second,
			RequestsPerSecond: 5,
			Burst:             5,
			BankCacheTTL:      10 * time.Minute,
			MinSearchLength:   2,
		},
		Parser: ParserConfig{
			Model: "gemini-2.5-flash",
		},
		Batch: BatchConfig{
			FileSuffix:   "農會匯款單.xlsx",
			DownloadDir:  ".",
			SheetOptions: []string{"廠商", "玉山", "朴子市農會", "幼教", "個人", "少用到", "債權人"},
			BankDebounce: 300 * time.Millisecond,
		},
		Session: SessionConfig{
			Backend:  "file",
			StateDir: ".remitsheet",
			TTL:      12 * time.Hour,
		},
		Log: LogConfig{
			Level:  "warn",
			Format: "console",
		},
		Server: ServerConfig{
			Addr: "127.0.0.1:8080",
		},
	}
}

// ApplyEnv loads .env files (missing files are ignored) and overlays
// environment variables onto cfg.
func ApplyEnv(cfg *Config, envFiles ...string) error {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", f, err)
		}
	}

	if v := getenv("REMITSHEET_SCRIPT_URL"); v != "" {
		cfg.Directory.ScriptURL = v
	}
	if v := getenv("REMITSHEET_SHEET_URL"); v != "" {
		cfg.Directory.SheetURL = v
	}
	// API_KEY is the older name for the Gemini key.
	if v := getenv("GEMINI_API_KEY"); v != "" {
		cfg.Parser.APIKey = v
	} else if v := getenv("API_KEY"); v != "" {
		cfg.Parser.APIKey = v
	}
	if v := getenv("REMITSHEET_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := getenv("REMITSHEET_STATE_DIR"); v != "" {
		cfg.Session.StateDir = v
	}
	if v := getenv("REMITSHEET_REDIS_ADDR"); v != "" {
		cfg.Session.Backend = "redis"
		cfg.Session.RedisAddr = v
	}
	if v := getenv("REMITSHEET_REDIS_PASSWORD"); v != "" {
		cfg.Session.RedisPassword = v
	}
	if v := getenv("REMITSHEET_REDIS_DB"); v != "" {
		db, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parsing REMITSHEET_REDIS_DB %q: %w", v, err)
		}
		cfg.Session.RedisDB = db
	}
	return nil
}

// DefaultSheet returns the sheet new vendors go to unless told otherwise.
func (c *Config) DefaultSheet() string {
	if len(c.Batch.SheetOptions) == 0 {
		return ""
	}
	return c.Batch.SheetOptions[0]
}

func getenv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}
