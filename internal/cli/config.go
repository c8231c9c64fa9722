package cli

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/pthm/schemaward/pkg/catalog"
	"github.com/pthm/schemaward/pkg/guard"
	"github.com/pthm/schemaward/pkg/migrator"
)

const (
	maxWalkDepth = 25
)

// configNames are the file names looked for during discovery.
var configNames = []string{"schemaward.yaml", "schemaward.yml"}

// Config represents the schemaward configuration from schemaward.yaml.
type Config struct {
	// Database configuration
	Database DatabaseConfig `mapstructure:"database" json:"database"`

	// Per-command configuration
	Guard   GuardConfig   `mapstructure:"guard" json:"guard"`
	Migrate MigrateConfig `mapstructure:"migrate" json:"migrate"`
	Doctor  DoctorConfig  `mapstructure:"doctor" json:"doctor"`
	Metrics MetricsConfig `mapstructure:"metrics" json:"metrics"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Engine is postgres or sqlite. For sqlite, URL is the database file.
	Engine   string `mapstructure:"engine" json:"engine"`
	URL      string `mapstructure:"url" json:"url"`
	Host     string `mapstructure:"host" json:"host"`
	Port     int    `mapstructure:"port" json:"port"`
	Name     string `mapstructure:"name" json:"name"`
	User     string `mapstructure:"user" json:"user"`
	Password string `mapstructure:"password" json:"password"`
	SSLMode  string `mapstructure:"sslmode" json:"sslmode"`
}

// GuardConfig holds migration guard settings.
type GuardConfig struct {
	Dir        string       `mapstructure:"dir" json:"dir"`
	Extensions []string     `mapstructure:"extensions" json:"extensions"`
	Rules      []RuleConfig `mapstructure:"rules" json:"rules"`
}

// RuleConfig is an extra guard rule defined in configuration.
type RuleConfig struct {
	ID      string `mapstructure:"id" json:"id"`
	Pattern string `mapstructure:"pattern" json:"pattern"`
	Message string `mapstructure:"message" json:"message"`
}

// MigrateConfig holds migration settings.
type MigrateConfig struct {
	Table      string `mapstructure:"table" json:"table"`
	DryRun     bool   `mapstructure:"dry_run" json:"dry_run"`
	StrictDown bool   `mapstructure:"strict_down" json:"strict_down"`
}

// DoctorConfig holds doctor command settings.
type DoctorConfig struct {
	Verbose bool `mapstructure:"verbose" json:"verbose"`
}

// MetricsConfig holds metrics export settings.
type MetricsConfig struct {
	// Textfile is a node-exporter textfile written after each run.
	Textfile string `mapstructure:"textfile" json:"textfile"`
}

// LoadConfig discovers and loads configuration with proper precedence:
// flags > env > config file > defaults.
//
// Returns the loaded config, the path to the config file (empty if none found),
// and any error encountered.
func LoadConfig(explicitConfigPath string) (*Config, string, error) {
	v := viper.New()

	// 1. Set defaults first (lowest precedence)
	setDefaults(v)

	// 2. Set up environment variable binding
	v.SetEnvPrefix("SCHEMAWARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 3. Find and load config file
	configPath, err := findConfigFile(explicitConfigPath)
	if err != nil {
		return nil, "", err
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, configPath, fmt.Errorf("reading config file: %w", err)
		}
	}

	// 4. Unmarshal into Config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, configPath, fmt.Errorf("unmarshaling config: %w", err)
	}

	if _, err := cfg.Dialect(); err != nil {
		return nil, configPath, err
	}

	return &cfg, configPath, nil
}

func setDefaults(v *viper.Viper) {
	// Database defaults
	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.url", "")
	v.SetDefault("database.host", "")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "")
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.sslmode", "prefer")

	// Guard defaults
	v.SetDefault("guard.dir", "migrations")
	v.SetDefault("guard.extensions", guard.DefaultExtensions)
	v.SetDefault("guard.rules", []RuleConfig{})

	// Migrate defaults
	v.SetDefault("migrate.table", migrator.DefaultTable)
	v.SetDefault("migrate.dry_run", false)
	v.SetDefault("migrate.strict_down", false)

	// Doctor defaults
	v.SetDefault("doctor.verbose", false)

	// Metrics defaults
	v.SetDefault("metrics.textfile", "")
}

// findConfigFile finds the config file to use.
// If explicitPath is provided, it validates the file exists.
// Otherwise, it walks up from cwd looking for schemaward.yaml or
// schemaward.yml, stopping at a .git directory or after maxWalkDepth levels.
func findConfigFile(explicitPath string) (string, error) {
	if explicitPath != "" {
		if _, err := os.Stat(explicitPath); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicitPath)
		}
		return explicitPath, nil
	}

	// Auto-discovery: walk up to .git or maxWalkDepth
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting cwd: %w", err)
	}

	dir := cwd
	for i := 0; i < maxWalkDepth; i++ {
		for _, name := range configNames {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				return path, nil
			}
		}

		// Check for repo boundary (.git file or directory)
		gitPath := filepath.Join(dir, ".git")
		if _, err := os.Stat(gitPath); err == nil {
			break // Stop at repo root
		}

		// Move up
		parent := filepath.Dir(dir)
		if parent == dir {
			break // Reached filesystem root
		}
		dir = parent
	}

	return "", nil // No config found, use defaults
}

// Dialect returns the configured database engine.
func (c *Config) Dialect() (catalog.Dialect, error) {
	d, err := catalog.ParseDialect(c.Database.Engine)
	if err != nil {
		return "", fmt.Errorf("database.engine: %w", err)
	}
	return d, nil
}

// DSN returns the database connection string.
// If database.url is set, it's returned directly.
// Otherwise, builds a DSN from discrete fields.
func (c *Config) DSN() (string, error) {
	db := c.Database

	if db.URL != "" {
		return db.URL, nil
	}

	if d, _ := c.Dialect(); d == catalog.SQLite {
		return "", fmt.Errorf("database.url is required for the sqlite engine")
	}

	// Build DSN from discrete fields
	if db.Host == "" {
		return "", fmt.Errorf("database.host is required when database.url is not set")
	}
	if db.Name == "" {
		return "", fmt.Errorf("database.name is required when database.url is not set")
	}
	if db.User == "" {
		return "", fmt.Errorf("database.user is required when database.url is not set")
	}

	// Build postgres:// URL
	u := &url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   "/" + db.Name,
	}

	if db.Password != "" {
		u.User = url.UserPassword(db.User, db.Password)
	} else {
		u.User = url.User(db.User)
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	return u.String(), nil
}

// GuardRules compiles the extra rules from configuration.
func (c *Config) GuardRules() ([]guard.Rule, error) {
	rules := make([]guard.Rule, 0, len(c.Guard.Rules))
	for _, rc := range c.Guard.Rules {
		r, err := guard.NewRule(rc.ID, rc.Pattern, rc.Message)
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	return rules, nil
}

// Redacted returns a copy of c with the database password masked, for
// display.
func (c *Config) Redacted() *Config {
	out := *c
	if out.Database.Password != "" {
		out.Database.Password = "********"
	}
	if out.Database.URL != "" {
		if u, err := url.Parse(out.Database.URL); err == nil && u.User != nil {
			if _, ok := u.User.Password(); ok {
				u.User = url.UserPassword(u.User.Username(), "********")
				out.Database.URL = u.String()
			}
		}
	}
	return &out
}
