package cli

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/pthm/safeplan/pkg/compiler"
)

const (
	maxWalkDepth = 25
)

// Config represents the safeplan configuration from safeplan.yaml.
type Config struct {
	Database DatabaseConfig `mapstructure:"database" json:"database"`
	Planner  PlannerConfig  `mapstructure:"planner" json:"planner"`
	Codegen  CodegenConfig  `mapstructure:"codegen" json:"codegen"`
	Eval     EvalConfig     `mapstructure:"eval" json:"eval"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string `mapstructure:"url" json:"url"`
	Host     string `mapstructure:"host" json:"host"`
	Port     int    `mapstructure:"port" json:"port"`
	Name     string `mapstructure:"name" json:"name"`
	User     string `mapstructure:"user" json:"user"`
	Password string `mapstructure:"password" json:"password"`
	SSLMode  string `mapstructure:"sslmode" json:"sslmode"`
}

// PlannerConfig holds safe plan construction settings.
type PlannerConfig struct {
	// Oracle is "builtin" or "prover9".
	Oracle           string        `mapstructure:"oracle" json:"oracle"`
	Prover9Path      string        `mapstructure:"prover9_path" json:"prover9_path"`
	OracleTimeout    time.Duration `mapstructure:"oracle_timeout" json:"oracle_timeout"`
	MaxGroundClauses int           `mapstructure:"max_ground_clauses" json:"max_ground_clauses"`
	Parallel         bool          `mapstructure:"parallel" json:"parallel"`
}

// CodegenConfig holds SQL generation settings.
type CodegenConfig struct {
	// Mode is "direct" or "universal".
	Mode          string `mapstructure:"mode" json:"mode"`
	UseLog        bool   `mapstructure:"use_log" json:"use_log"`
	UseNull       bool   `mapstructure:"use_null" json:"use_null"`
	MissingTuples bool   `mapstructure:"missing_tuples" json:"missing_tuples"`
	DomainSize    int    `mapstructure:"domain_size" json:"domain_size"`
}

// EvalConfig holds query execution settings.
type EvalConfig struct {
	// Driver is "postgres" or "sqlite".
	Driver     string `mapstructure:"driver" json:"driver"`
	SQLitePath string `mapstructure:"sqlite_path" json:"sqlite_path"`
}

// Oracle names.
const (
	OracleBuiltin = "builtin"
	OracleProver9 = "prover9"
)

// Codegen modes.
const (
	ModeDirect    = "direct"
	ModeUniversal = "universal"
)

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
	v.SetEnvPrefix("SAFEPLAN")
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

	if err := cfg.Validate(); err != nil {
		return nil, configPath, err
	}

	return &cfg, configPath, nil
}

func setDefaults(v *viper.Viper) {
	// Database defaults
	v.SetDefault("database.url", "")
	v.SetDefault("database.host", "")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "")
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.sslmode", "prefer")

	// Planner defaults
	v.SetDefault("planner.oracle", OracleBuiltin)
	v.SetDefault("planner.prover9_path", "prover9")
	v.SetDefault("planner.oracle_timeout", 5*time.Second)
	v.SetDefault("planner.max_ground_clauses", 0)
	v.SetDefault("planner.parallel", false)

	// Codegen defaults
	v.SetDefault("codegen.mode", ModeDirect)
	v.SetDefault("codegen.use_log", false)
	v.SetDefault("codegen.use_null", false)
	v.SetDefault("codegen.missing_tuples", false)
	v.SetDefault("codegen.domain_size", 0)

	// Eval defaults
	v.SetDefault("eval.driver", "postgres")
	v.SetDefault("eval.sqlite_path", "")
}

// Validate rejects unknown enumerated values.
func (c *Config) Validate() error {
	switch c.Planner.Oracle {
	case OracleBuiltin, OracleProver9:
	default:
		return fmt.Errorf("planner.oracle must be %q or %q, got %q", OracleBuiltin, OracleProver9, c.Planner.Oracle)
	}
	switch c.Codegen.Mode {
	case ModeDirect, ModeUniversal:
	default:
		return fmt.Errorf("codegen.mode must be %q or %q, got %q", ModeDirect, ModeUniversal, c.Codegen.Mode)
	}
	switch c.Eval.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("eval.driver must be \"postgres\" or \"sqlite\", got %q", c.Eval.Driver)
	}
	if c.Codegen.DomainSize < 0 {
		return fmt.Errorf("codegen.domain_size must not be negative")
	}
	return nil
}

// findConfigFile finds the config file to use.
// If explicitPath is provided, it validates the file exists.
// Otherwise, it walks up from cwd looking for safeplan.yaml or safeplan.yml,
// stopping at a .git directory or after maxWalkDepth levels.
func findConfigFile(explicitPath string) (string, error) {
	if explicitPath != "" {
		if _, err := os.Stat(explicitPath); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicitPath)
		}
		return explicitPath, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting cwd: %w", err)
	}

	dir := cwd
	for i := 0; i < maxWalkDepth; i++ {
		for _, name := range []string{"safeplan.yaml", "safeplan.yml"} {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				return path, nil
			}
		}

		// Check for repo boundary (.git file or directory)
		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			break
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", nil
}

// DSN returns the database connection string.
// If database.url is set, it's returned directly.
// Otherwise, builds a DSN from discrete fields.
func (c *Config) DSN() (string, error) {
	db := c.Database

	if db.URL != "" {
		return db.URL, nil
	}

	if db.Host == "" {
		return "", fmt.Errorf("database.host is required when database.url is not set")
	}
	if db.Name == "" {
		return "", fmt.Errorf("database.name is required when database.url is not set")
	}
	if db.User == "" {
		return "", fmt.Errorf("database.user is required when database.url is not set")
	}

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

// EvalDSN returns the driver and data source for query execution.
// The sqlite driver reads eval.sqlite_path; postgres uses DSN.
func (c *Config) EvalDSN() (driver, dsn string, err error) {
	if c.Eval.Driver == "sqlite" {
		if c.Eval.SQLitePath == "" {
			return "", "", fmt.Errorf("eval.sqlite_path is required for the sqlite driver")
		}
		return "sqlite", c.Eval.SQLitePath, nil
	}
	dsn, err = c.DSN()
	return "postgres", dsn, err
}

// Params returns the universal-mode code generation parameters.
func (c *Config) Params() compiler.Params {
	return compiler.Params{
		UseLog:        c.Codegen.UseLog,
		UseNull:       c.Codegen.UseNull,
		MissingTuples: c.Codegen.MissingTuples,
		DomainSize:    c.Codegen.DomainSize,
	}
}

// Redacted returns a copy with the database password masked, for display.
func (c *Config) Redacted() Config {
	out := *c
	if out.Database.Password != "" {
		out.Database.Password = "********"
	}
	if u, err := url.Parse(out.Database.URL); err == nil && u.User != nil {
		if _, ok := u.User.Password(); ok {
			u.User = url.UserPassword(u.User.Username(), "********")
			out.Database.URL = u.String()
		}
	}
	return out
}
